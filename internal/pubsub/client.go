package pubsub

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// New creates a Pub/Sub client for projectID. With an empty projectID messages
// are encoded and logged but not sent.
func New(projectID string) (PubSubClient, error) {
	if projectID == "" {
		log.Warn("No GCP project configured, pubsub messages will only be logged")
		return &client{teardown: func() {}}, nil
	}
	ctx := context.Background()
	pubSubC, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	teardown := func() {
		pubSubC.Close()
	}

	return &client{
		client:   pubSubC,
		teardown: teardown,
	}, nil
}

func (c *client) SendMessage(topic EventType, data any) error {
	ctx := context.Background()
	msgpackData, err := msgpack.Marshal(data)
	if err != nil {
		log.Error("MessagePack marshal error", "error", err)
		return err
	}
	if c.client == nil {
		log.Info("[Dry Run] Would publish message", "topic", topic, "bytes", len(msgpackData))
		return nil
	}
	message := &pubsub.Message{
		Data: msgpackData,
	}
	result := c.client.Topic(string(topic)).Publish(ctx, message)
	serverID, err := result.Get(ctx)
	if err != nil {
		log.Error("Failed to publish message", "error", err, "topic", topic)
		return err
	}
	log.Info("SendMessage", "serverID", serverID, "topic", topic)
	return nil
}

func (c *client) ProcessMessage(data []byte, returnValue any) error {
	// Unmarshal the MessagePack data into the provided pointer struct
	err := msgpack.Unmarshal(data, returnValue)
	if err != nil {
		log.Error("MessagePack unmarshal error", "error", err)
		return err
	}
	return nil
}

func (c *client) Close() {
	c.teardown()
}
