package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/xandervandijck/scraper-backend/internal/progress"
)

// PubSub publishes job events to a Google Cloud Pub/Sub topic so external
// consumers (exports, notifications) can follow runs without a socket into
// this process. Publishing is fire-and-forget; the client batches and
// retries in the background.
type PubSub struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSub connects to the topic using application default credentials.
func NewPubSub(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*PubSub, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}
	return &PubSub{client: client, topic: topic, logger: logger}, nil
}

// Broadcast serializes the event and publishes it asynchronously.
func (p *PubSub) Broadcast(evt progress.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		p.logger.Warn("marshal event for pubsub failed", zap.Error(err))
		return
	}
	p.topic.Publish(context.Background(), &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"type":       string(evt.Type),
			"session_id": evt.SessionID,
		},
	})
}

// Close flushes pending publishes and closes the client.
func (p *PubSub) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

var _ progress.Broadcaster = (*PubSub)(nil)
