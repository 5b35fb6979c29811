// Package bridge turns domain events (redemptions, chat keyword matches)
// into broadcast messages, decoupling event sources from the transport.
package bridge

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/omkom/live-community-tool-sub000/internal/broadcast"
	"github.com/omkom/live-community-tool-sub000/internal/metrics"
	"github.com/omkom/live-community-tool-sub000/internal/points"
	"github.com/omkom/live-community-tool-sub000/internal/ws"
)

const (
	// ClientTypeOverlay and ClientTypeAdmin are the audiences the bridge
	// targets. Clients self-identify at connect time.
	ClientTypeOverlay = "overlay"
	ClientTypeAdmin   = "admin"

	defaultMessageDelay = 2 * time.Second
)

// messageDelays staggers the narration text behind the effect itself so the
// text does not collide with the effect's entrance animation. Longer-running
// effects get a longer delay.
var messageDelays = map[string]time.Duration{
	"tada":         4 * time.Second,
	"perturbation": 6 * time.Second,
	"zoom":         3 * time.Second,
}

// Sender is the slice of the broadcast router the bridge uses.
type Sender interface {
	SendToType(payload any, clientType string) broadcast.Result
}

// Bridge consumes domain events and emits overlay effects, delayed
// narration messages, and admin summaries.
type Bridge struct {
	sender Sender
	clock  clockwork.Clock
}

func New(sender Sender, clock clockwork.Clock) *Bridge {
	return &Bridge{sender: sender, clock: clock}
}

// HandleRedemption reacts to one processed redemption: the effect goes to
// overlay clients immediately, a narration message follows after the
// per-effect delay, and the admin dashboard gets its own summary payload.
func (b *Bridge) HandleRedemption(event points.RedemptionEvent) {
	b.sender.SendToType(ws.NewEffect(event.Effect, map[string]any{
		"user":        event.UserName,
		"rewardTitle": event.RewardTitle,
		"cost":        event.RewardCost,
		"userInput":   event.UserInput,
		"timestamp":   event.RedeemedAt,
	}), ClientTypeOverlay)
	metrics.EffectsTriggeredTotal.WithLabelValues(event.Effect, "redemption").Inc()

	b.sender.SendToType(map[string]any{
		"type":       "redemption",
		"user":       event.UserName,
		"reward":     event.RewardTitle,
		"cost":       event.RewardCost,
		"effect":     event.Effect,
		"userInput":  event.UserInput,
		"redeemedAt": event.RedeemedAt,
	}, ClientTypeAdmin)

	narration := fmt.Sprintf("🎉 %s a utilisé « %s » !", event.UserName, event.RewardTitle)
	b.clock.AfterFunc(b.messageDelay(event.Effect), func() {
		b.sender.SendToType(ws.NewText(narration), ClientTypeOverlay)
	})
}

// HandleChatEffect reacts to a chat keyword match: same overlay effect path
// as redemptions, without cost metadata.
func (b *Bridge) HandleChatEffect(effect, user string) {
	b.sender.SendToType(ws.NewEffect(effect, map[string]any{
		"user":      user,
		"timestamp": b.clock.Now(),
	}), ClientTypeOverlay)
	metrics.EffectsTriggeredTotal.WithLabelValues(effect, "chat").Inc()

	b.sender.SendToType(map[string]any{
		"type":   "chat_effect",
		"user":   user,
		"effect": effect,
	}, ClientTypeAdmin)
}

// TriggerManual reacts to an operator-initiated effect from the dashboard.
func (b *Bridge) TriggerManual(effect string) broadcast.Result {
	result := b.sender.SendToType(ws.NewEffect(effect, nil), ClientTypeOverlay)
	metrics.EffectsTriggeredTotal.WithLabelValues(effect, "manual").Inc()
	return result
}

func (b *Bridge) messageDelay(effect string) time.Duration {
	if delay, ok := messageDelays[effect]; ok {
		return delay
	}
	return defaultMessageDelay
}
