package ws

import "encoding/json"

// Client -> server message types.
const (
	MsgSubscribe   = "subscribe"
	MsgUnsubscribe = "unsubscribe"
	MsgQueue       = "queue"
	MsgQueueAI     = "queueAI"
	MsgLeaveQueue  = "leaveQueue"
	MsgReady       = "ready"
	MsgPress       = "press"
	MsgRelease     = "release"
	MsgMove        = "move"
	MsgPing        = "ping"
)

// Server -> client message types.
const (
	MsgEvent = "event"
	MsgPong  = "pong"
	MsgError = "error"
)

// Events sent directly to one connection.
const (
	EventWelcome      = "welcome"
	EventSubscribed   = "subscribed"
	EventUnsubscribed = "unsubscribed"
	EventQueued       = "queued"
	EventLeftQueue    = "leftQueue"
)

// Message is the envelope for every frame in both directions. Broadcasts
// carry the channel and event they were published on.
type Message struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SubscribePayload struct {
	Channel string `json:"channel"`
}

type QueueAIPayload struct {
	Difficulty string `json:"difficulty"`
}

type MatchPayload struct {
	MatchID string `json:"matchId"`
}

type InputPayload struct {
	MatchID   string `json:"matchId"`
	Direction string `json:"direction"`
}

type MovePayload struct {
	MatchID string  `json:"matchId"`
	Delta   float64 `json:"delta"`
}

type PingPayload struct {
	ClientTime int64 `json:"clientTime"`
}

type PongPayload struct {
	ClientTime int64 `json:"clientTime"`
	ServerTime int64 `json:"serverTime"`
}

type ErrorPayload struct {
	Request string `json:"request"`
	Error   string `json:"error"`
}

type QueuedPayload struct {
	Waiting int `json:"waiting"`
}

type WelcomePayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

func Encode(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func Decode(data []byte) (Message, error) {
	var msg Message
	err := json.Unmarshal(data, &msg)
	return msg, err
}

// NewMessage builds an envelope around payload.
func NewMessage(typ, channel, event string, payload any) (Message, error) {
	msg := Message{Type: typ, Channel: channel, Event: event}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Payload = json.RawMessage(data)
	return msg, nil
}
