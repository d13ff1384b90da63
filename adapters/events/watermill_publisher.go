package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/agentgate/ports"
)

const (
	EventSessionIssued = "session.issued"
	EventAccessDenied  = "auth.denied"
)

// AuthEvent is the payload of every published auth event
type AuthEvent struct {
	Type    string    `json:"type"`
	Address string    `json:"address"`
	AssetID string    `json:"asset_id"`
	TokenID string    `json:"token_id,omitempty"`
	At      time.Time `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher, topic string) ports.EventPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     topic,
	}
}

// PublishSessionIssued publishes a session issued event
func (p *WatermillPublisher) PublishSessionIssued(ctx context.Context, owner, assetID, tokenID string) error {
	return p.publish(ctx, AuthEvent{
		Type:    EventSessionIssued,
		Address: owner,
		AssetID: assetID,
		TokenID: tokenID,
	})
}

// PublishAccessDenied publishes an event for a valid signer that does not hold the asset
func (p *WatermillPublisher) PublishAccessDenied(ctx context.Context, address, assetID string) error {
	return p.publish(ctx, AuthEvent{
		Type:    EventAccessDenied,
		Address: address,
		AssetID: assetID,
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, event AuthEvent) error {
	event.At = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("type", event.Type)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
