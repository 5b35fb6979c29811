// Package chat watches the Twitch channel's chat for effect keywords
// ("!tada" and friends) and forwards matches to the effect bridge.
package chat

import (
	"context"
	"log/slog"
	"strings"

	twitchirc "github.com/gempir/go-twitch-irc/v4"

	"github.com/omkom/live-community-tool-sub000/internal/points"
)

// EffectSink receives chat keyword matches.
type EffectSink interface {
	HandleChatEffect(effect, user string)
}

// Listener reads chat anonymously (chat keywords need no write access) and
// resolves "!keyword" commands through the shared effect table. Reconnects
// are handled by the IRC library.
type Listener struct {
	client  *twitchirc.Client
	channel string
	effects *points.EffectTable
	sink    EffectSink
}

func NewListener(channel string, effects *points.EffectTable, sink EffectSink) *Listener {
	l := &Listener{
		client:  twitchirc.NewAnonymousClient(),
		channel: channel,
		effects: effects,
		sink:    sink,
	}
	l.client.OnPrivateMessage(l.handleMessage)
	return l
}

// Run connects and blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		_ = l.client.Disconnect()
		close(done)
	}()

	l.client.Join(l.channel)
	if err := l.client.Connect(); err != nil {
		slog.Error("Twitch chat connection ended", "channel", l.channel, "error", err)
	}
	<-done
}

func (l *Listener) handleMessage(msg twitchirc.PrivateMessage) {
	text := strings.TrimSpace(msg.Message)
	if !strings.HasPrefix(text, "!") {
		return
	}

	keyword := strings.ToLower(strings.TrimPrefix(strings.Fields(text)[0], "!"))
	if keyword == "" {
		return
	}

	effect := l.effects.EffectForKeyword(keyword)
	if effect == "" {
		return
	}

	slog.Debug("Chat keyword matched", "keyword", keyword, "effect", effect, "user", msg.User.DisplayName)
	l.sink.HandleChatEffect(effect, msg.User.DisplayName)
}
