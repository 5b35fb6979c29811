// Package points polls the Twitch Channel Points API for reward redemptions,
// deduplicates them across overlapping poll windows, and emits one domain
// event per redemption with a derived visual effect.
package points

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/omkom/live-community-tool-sub000/internal/events"
	"github.com/omkom/live-community-tool-sub000/internal/metrics"
	"github.com/omkom/live-community-tool-sub000/internal/twitch"
)

// RewardsAPI is the slice of the Twitch client the poller consumes.
type RewardsAPI interface {
	GetUser(ctx context.Context) (*twitch.User, error)
	ListRewards(ctx context.Context, broadcasterID string) ([]twitch.Reward, error)
	ListRedemptions(ctx context.Context, broadcasterID, rewardID string, since time.Time) ([]twitch.Redemption, error)
}

// RedemptionEvent is the immutable domain event for one processed redemption.
type RedemptionEvent struct {
	ID          string    `json:"id"`
	RewardID    string    `json:"rewardId"`
	RewardTitle string    `json:"rewardTitle"`
	RewardCost  int       `json:"rewardCost"`
	UserID      string    `json:"userId"`
	UserLogin   string    `json:"userLogin"`
	UserName    string    `json:"userName"`
	UserInput   string    `json:"userInput,omitempty"`
	RedeemedAt  time.Time `json:"redeemedAt"`
	Effect      string    `json:"effect"`
}

// Status is a point-in-time snapshot of the poller for the host application.
type Status struct {
	IsMonitoring        bool      `json:"isMonitoring"`
	EffectMappingCount  int       `json:"effectMappingCount"`
	ProcessedEventCount int64     `json:"processedEventCount"`
	LastPoll            time.Time `json:"lastPollTimestamp"`
}

type state int

const (
	stateStopped state = iota
	stateStarting
	stateRunning
)

// Poller drives the polling loop: STOPPED → STARTING (prerequisite checks)
// → RUNNING → STOPPED on explicit stop or terminal authorization failure.
type Poller struct {
	api      RewardsAPI
	clock    clockwork.Clock
	interval time.Duration
	window   time.Duration
	effects  *EffectTable
	seen     *SeenSet

	mu            sync.Mutex
	state         state
	stopRequested bool
	broadcasterID string
	lastPoll      time.Time
	processed     int64
	stopCh        chan struct{}
	done          chan struct{}

	redemptions *events.Emitter[RedemptionEvent]
	started     *events.Emitter[string]
	stopped     *events.Emitter[string]
	errs        *events.Emitter[error]
}

// NewPoller creates a stopped poller. window must be at least interval so
// consecutive poll windows overlap; the overlap tolerates clock skew and API
// latency, and the seen-set absorbs the resulting duplicates.
func NewPoller(api RewardsAPI, clock clockwork.Clock, interval, window time.Duration, effects *EffectTable) *Poller {
	if window < interval {
		window = interval
	}
	return &Poller{
		api:         api,
		clock:       clock,
		interval:    interval,
		window:      window,
		effects:     effects,
		seen:        NewSeenSet(defaultSeenLimit),
		redemptions: events.NewEmitter[RedemptionEvent](),
		started:     events.NewEmitter[string](),
		stopped:     events.NewEmitter[string](),
		errs:        events.NewEmitter[error](),
	}
}

// OnRedemption subscribes to processed redemption events.
func (p *Poller) OnRedemption(handler func(RedemptionEvent)) { p.redemptions.Subscribe(handler) }

// OnMonitoringStarted subscribes to start notifications (broadcaster id).
func (p *Poller) OnMonitoringStarted(handler func(string)) { p.started.Subscribe(handler) }

// OnMonitoringStopped subscribes to stop notifications (reason).
func (p *Poller) OnMonitoringStopped(handler func(string)) { p.stopped.Subscribe(handler) }

// OnError subscribes to terminal poller errors.
func (p *Poller) OnError(handler func(error)) { p.errs.Subscribe(handler) }

// Start validates prerequisites and begins polling. An eligibility failure
// is terminal for this attempt: the caller gets the reason and no retry is
// scheduled.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state != stateStopped {
		p.mu.Unlock()
		return fmt.Errorf("poller already running")
	}
	p.state = stateStarting
	p.stopRequested = false
	p.mu.Unlock()

	fail := func(err error) error {
		p.mu.Lock()
		p.state = stateStopped
		p.mu.Unlock()
		return err
	}

	user, err := p.api.GetUser(ctx)
	if err != nil {
		// Covers both missing/expired credentials (ErrReauthRequired
		// bubbles up from the token source) and Helix auth rejections.
		return fail(fmt.Errorf("credential check failed: %w", err))
	}
	if user.BroadcasterType != "affiliate" && user.BroadcasterType != "partner" {
		return fail(fmt.Errorf("account %q is not eligible for channel points (broadcaster type %q)", user.Login, user.BroadcasterType))
	}

	p.mu.Lock()
	if p.stopRequested {
		// Stop arrived while the prerequisite checks were in flight.
		p.stopRequested = false
		p.state = stateStopped
		p.mu.Unlock()
		return fmt.Errorf("poller stopped during startup")
	}
	p.state = stateRunning
	p.broadcasterID = user.ID
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	stopCh, done := p.stopCh, p.done
	p.mu.Unlock()

	go p.run(stopCh, done)

	slog.Info("Redemption polling started", "broadcaster_id", user.ID, "login", user.Login, "interval", p.interval)
	p.started.Emit(user.ID)
	return nil
}

// Stop cancels polling. Idempotent. A Stop that lands while Start is still
// validating prerequisites cancels that attempt too. The seen-set is left
// intact; only ClearSeen empties it.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state == stateStarting {
		// Startup checks are still in flight; Start observes the flag and
		// declines to enter the running state.
		p.stopRequested = true
		p.mu.Unlock()
		return
	}
	if p.state != stateRunning {
		p.mu.Unlock()
		return
	}
	p.state = stateStopped
	close(p.stopCh)
	done := p.done
	p.mu.Unlock()

	<-done
	slog.Info("Redemption polling stopped")
	p.stopped.Emit("stopped")
}

// ClearSeen empties the dedup set. Maintenance operation.
func (p *Poller) ClearSeen() {
	p.seen.Clear()
}

// GetStatus reports the poller's current state.
func (p *Poller) GetStatus() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		IsMonitoring:        p.state == stateRunning,
		EffectMappingCount:  p.effects.Len(),
		ProcessedEventCount: p.processed,
		LastPoll:            p.lastPoll,
	}
}

// Effects exposes the effect table for configuration and chat lookups.
func (p *Poller) Effects() *EffectTable {
	return p.effects
}

func (p *Poller) run(stopCh chan struct{}, done chan struct{}) {
	defer close(done)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if terminal := p.poll(); terminal {
				return
			}
		case <-stopCh:
			return
		}
	}
}

// poll runs one cycle. Returns true when the poller must terminate
// (authorization failure). Transient errors are logged and the next tick is
// the retry; the fixed interval itself is the backoff.
func (p *Poller) poll() (terminal bool) {
	start := p.clock.Now()
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	p.mu.Lock()
	broadcasterID := p.broadcasterID
	p.mu.Unlock()

	rewards, err := p.api.ListRewards(ctx, broadcasterID)
	if err != nil {
		if twitch.IsAuthError(err) {
			p.terminate(err)
			return true
		}
		slog.Warn("Reward listing failed, retrying next interval", "error", err)
		metrics.PollCyclesTotal.WithLabelValues("error").Inc()
		return false
	}

	since := start.Add(-p.window)
	for _, reward := range rewards {
		redemptions, err := p.api.ListRedemptions(ctx, broadcasterID, reward.ID, since)
		if err != nil {
			if twitch.IsAuthError(err) {
				p.terminate(err)
				return true
			}
			// One reward's failure never aborts the cycle for the others.
			slog.Warn("Redemption listing failed", "reward_id", reward.ID, "error", err)
			continue
		}

		for _, redemption := range redemptions {
			p.process(reward, redemption)
		}
	}

	p.mu.Lock()
	p.lastPoll = p.clock.Now()
	p.mu.Unlock()

	metrics.PollCyclesTotal.WithLabelValues("ok").Inc()
	metrics.PollDuration.Observe(p.clock.Since(start).Seconds())
	return false
}

func (p *Poller) process(reward twitch.Reward, redemption twitch.Redemption) {
	if p.seen.Contains(redemption.ID) {
		metrics.RedemptionsDedupedTotal.Inc()
		return
	}

	event := RedemptionEvent{
		ID:          redemption.ID,
		RewardID:    reward.ID,
		RewardTitle: reward.Title,
		RewardCost:  reward.Cost,
		UserID:      redemption.UserID,
		UserLogin:   redemption.UserLogin,
		UserName:    redemption.UserName,
		UserInput:   redemption.UserInput,
		RedeemedAt:  redemption.RedeemedAt,
		Effect:      p.effects.Detect(reward.Title, reward.Prompt, reward.Cost),
	}

	p.seen.Add(redemption.ID)

	p.mu.Lock()
	p.processed++
	p.mu.Unlock()

	metrics.RedemptionsProcessedTotal.Inc()
	slog.Info("Redemption processed", "redemption_id", redemption.ID, "reward", reward.Title, "user", redemption.UserLogin, "effect", event.Effect)
	p.redemptions.Emit(event)
}

// terminate stops polling after an authorization failure. Retrying against a
// permanently denied endpoint only wastes quota, so the loop exits and the
// host is told to surface the error to an operator.
func (p *Poller) terminate(err error) {
	p.mu.Lock()
	p.state = stateStopped
	p.mu.Unlock()

	slog.Error("Redemption polling stopped on authorization failure", "error", err)
	metrics.PollCyclesTotal.WithLabelValues("auth_error").Inc()
	p.errs.Emit(err)
	p.stopped.Emit("authorization failure")
}
