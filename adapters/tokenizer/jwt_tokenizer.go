package tokenizer

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/agentgate/core"
	"github.com/layer-3/agentgate/ports"
)

const AudienceSession = "agentgate:session"

// JWTTokenizer implements the Tokenizer interface using HS256 JWTs
type JWTTokenizer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(secret []byte, issuer string) ports.Tokenizer {
	return newJWTTokenizer(secret, issuer, time.Now)
}

func newJWTTokenizer(secret []byte, issuer string, now func() time.Time) *JWTTokenizer {
	return &JWTTokenizer{secret: secret, issuer: issuer, now: now}
}

// SessionToToken converts a Session to a signed JWT
func (j *JWTTokenizer) SessionToToken(session *core.Session) (string, error) {
	if session.Owner == "" || session.AssetID == "" {
		return "", fmt.Errorf("session without owner or asset")
	}

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   session.Owner,
			ID:        session.ID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
		AssetID: session.AssetID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// TokenToSession parses and validates a session token
func (j *JWTTokenizer) TokenToSession(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(AudienceSession),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, core.ErrInvalidToken
	}
	if claims.Subject == "" || claims.AssetID == "" {
		return nil, fmt.Errorf("%w: missing subject or asset", core.ErrInvalidToken)
	}

	session := &core.Session{
		ID:        claims.ID,
		Owner:     claims.Subject,
		AssetID:   claims.AssetID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}

	return session, nil
}
