package core

import "errors"

var (
	ErrInvalidNonce        = errors.New("invalid or expired nonce")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrNotOwner            = errors.New("wallet does not own this asset")
	ErrInvalidToken        = errors.New("invalid token")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrAssetNotFound       = errors.New("asset not found")
	ErrRegistryUnavailable = errors.New("asset registry unavailable")
	ErrAgentUnavailable    = errors.New("agent not responding")
	ErrInvalidRequest      = errors.New("invalid request")
)
