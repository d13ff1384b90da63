package ports

import "context"

// NonceStore issues single-use sign-in nonces.
// Consume must succeed at most once per issued nonce, and only within the TTL.
type NonceStore interface {
	Issue(ctx context.Context) (string, error)
	Consume(ctx context.Context, nonce string) (bool, error)
}
