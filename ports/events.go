package ports

import "context"

// EventPublisher publishes handshake outcomes for other services to observe
type EventPublisher interface {
	PublishSessionIssued(ctx context.Context, owner, assetID, tokenID string) error
	PublishAccessDenied(ctx context.Context, address, assetID string) error
}
