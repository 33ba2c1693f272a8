// Package pubsub announces completed digest runs on Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"google.golang.org/api/option"
)

// Attribute keys set on every message.
const (
	AttrEventType   = "event_type"
	AttrContentType = "content_type"
)

// Topic is the slice of *pubsub.Topic the publisher needs.
type Topic interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// Publisher sends run events to a Pub/Sub topic as JSON.
type Publisher struct {
	topic  Topic
	closer func() error
}

// New creates a Publisher for the provided topic. The caller owns the topic.
func New(topic Topic) *Publisher {
	return &Publisher{topic: topic}
}

// Dial opens a client for projectID and publishes to topicName. The returned
// Publisher owns the client; call Close to flush and release it.
// PUBSUB_EMULATOR_HOST is honored by the client library.
func Dial(ctx context.Context, projectID, topicName string, opts ...option.ClientOption) (*Publisher, error) {
	if projectID == "" || topicName == "" {
		return nil, fmt.Errorf("project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(topicName)
	return &Publisher{
		topic: topic,
		closer: func() error {
			topic.Stop()
			return client.Close()
		},
	}, nil
}

// Publish marshals the payload and blocks until the server acknowledges it.
// Trace context is carried in the message attributes.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload any) (string, error) {
	if p.topic == nil {
		return "", fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	attrs := map[string]string{AttrContentType: "application/json"}
	if eventType != "" {
		attrs[AttrEventType] = eventType
	}
	otel.GetTextMapPropagator().Inject(ctx, attributeCarrier(attrs))

	id, err := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", eventType, err)
	}
	return id, nil
}

// Close flushes pending messages and closes a client opened by Dial.
func (p *Publisher) Close() error {
	if p.closer == nil {
		return nil
	}
	closer := p.closer
	p.closer = nil
	return closer()
}

// attributeCarrier adapts message attributes to propagation.TextMapCarrier.
type attributeCarrier map[string]string

func (c attributeCarrier) Get(key string) string { return c[key] }

func (c attributeCarrier) Set(key, value string) { c[key] = value }

func (c attributeCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
