package pubsub

// PubSubClient fans match and tournament results out to downstream consumers.
type PubSubClient interface {
	SendMessage(topic EventType, data any) error
	ProcessMessage(data []byte, returnValue any) error
	Close()
}
