package ports

import "github.com/layer-3/agentgate/core"

// Tokenizer converts between sessions and bearer tokens
type Tokenizer interface {
	SessionToToken(session *core.Session) (string, error)

	// TokenToSession fails with core.ErrInvalidToken for any forged,
	// expired or malformed token
	TokenToSession(token string) (*core.Session, error)
}
