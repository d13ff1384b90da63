package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with the asset the session is scoped to
type SessionClaims struct {
	jwt.RegisteredClaims
	AssetID string `json:"asset_id"`
}
