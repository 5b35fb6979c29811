package ws

import "time"

// Inbound is the envelope for client-to-server frames. Only Type is
// guaranteed; Channel accompanies subscribe/unsubscribe. Frames with any
// other Type are forwarded to the host application as opaque messages.
type Inbound struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
}

const (
	InboundPing        = "ping"
	InboundSubscribe   = "subscribe"
	InboundUnsubscribe = "unsubscribe"
)

// Init is sent once to every client immediately after registration.
type Init struct {
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	ConnectionID string    `json:"connectionId"`
	ServerTime   time.Time `json:"serverTime"`
}

func NewInit(connectionID string, serverTime time.Time) Init {
	return Init{Type: "init", Status: "connected", ConnectionID: connectionID, ServerTime: serverTime}
}

// Pong answers an application-level ping frame.
type Pong struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPong(now time.Time) Pong {
	return Pong{Type: "pong", Timestamp: now}
}

// Update notifies clients that a named resource changed and should be refetched.
type Update struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

func NewUpdate(target string) Update {
	return Update{Type: "update", Target: target}
}

// Effect triggers a named overlay animation.
type Effect struct {
	Type  string         `json:"type"`
	Value string         `json:"value"`
	Data  map[string]any `json:"data,omitempty"`
}

func NewEffect(effect string, data map[string]any) Effect {
	return Effect{Type: "effect", Value: effect, Data: data}
}

// Text carries a free-form message for on-screen display.
type Text struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func NewText(value string) Text {
	return Text{Type: "message", Value: value}
}
