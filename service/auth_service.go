package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/agentgate/core"
	"github.com/layer-3/agentgate/internal/siws"
	"github.com/layer-3/agentgate/ports"
)

// AuthConfig holds handshake settings
type AuthConfig struct {
	SessionTTL     time.Duration
	AllowedDomains []string // Empty accepts any sign-in domain
}

// VerifyRequest is a signed challenge submitted for one asset
type VerifyRequest struct {
	Input   siws.Input
	Output  siws.Output
	AssetID string
}

// IssuedSession is the result of a successful handshake
type IssuedSession struct {
	Token   string
	Session *core.Session
}

// AuthService handles the sign-in handshake
type AuthService struct {
	nonces    ports.NonceStore
	tokenizer ports.Tokenizer
	registry  ports.AssetRegistry
	eventPub  ports.EventPublisher
	logger    *slog.Logger

	sessionTTL     time.Duration
	allowedDomains []string
	now            func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(
	nonces ports.NonceStore,
	tokenizer ports.Tokenizer,
	registry ports.AssetRegistry,
	eventPub ports.EventPublisher,
	logger *slog.Logger,
	cfg AuthConfig,
) *AuthService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		nonces:         nonces,
		tokenizer:      tokenizer,
		registry:       registry,
		eventPub:       eventPub,
		logger:         logger,
		sessionTTL:     cfg.SessionTTL,
		allowedDomains: cfg.AllowedDomains,
		now:            time.Now,
	}
}

// SessionTTL returns how long issued sessions stay valid
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// CreateNonce issues a fresh single-use challenge nonce
func (s *AuthService) CreateNonce(ctx context.Context) (string, error) {
	nonce, err := s.nonces.Issue(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to issue nonce: %w", err)
	}

	s.logger.Debug("nonce issued", "stage", core.StageChallengeIssued)
	return nonce, nil
}

// Verify runs a submitted proof through the handshake and issues a session
// token scoped to the requested asset. The nonce is consumed before any other
// check.
func (s *AuthService) Verify(ctx context.Context, req VerifyRequest) (*IssuedSession, error) {
	if req.AssetID == "" {
		return nil, core.ErrInvalidRequest
	}

	owner, err := s.checkProof(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.checkOwnership(ctx, owner, req.AssetID); err != nil {
		return nil, err
	}

	now := s.now()
	session := &core.Session{
		ID:        uuid.New().String(),
		Owner:     owner,
		AssetID:   req.AssetID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	token, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	s.logger.Info("session issued",
		"stage", core.StageTokenIssued,
		"owner", owner,
		"asset_id", req.AssetID,
		"jti", session.ID,
	)

	if err := s.eventPub.PublishSessionIssued(ctx, owner, req.AssetID, session.ID); err != nil {
		s.logger.Warn("failed to publish session event", "error", err)
	}

	return &IssuedSession{Token: token, Session: session}, nil
}

// checkProof consumes the nonce and verifies the signature, returning the signer
func (s *AuthService) checkProof(ctx context.Context, req VerifyRequest) (string, error) {
	if req.Input.Nonce == "" {
		return "", core.Reject(core.StageProofSubmitted, core.ErrInvalidNonce)
	}

	ok, err := s.nonces.Consume(ctx, req.Input.Nonce)
	if err != nil {
		return "", fmt.Errorf("failed to consume nonce: %w", err)
	}
	if !ok {
		s.logger.Info("proof rejected", "stage", core.StageProofSubmitted, "reason", "nonce")
		return "", core.Reject(core.StageProofSubmitted, core.ErrInvalidNonce)
	}

	msg, err := siws.VerifyDetailed(req.Input, req.Output)
	if err != nil {
		s.logger.Info("proof rejected", "stage", core.StageProofSubmitted, "reason", err)
		return "", core.Reject(core.StageProofSubmitted, core.ErrInvalidSignature)
	}

	if len(s.allowedDomains) > 0 && !slices.Contains(s.allowedDomains, msg.Domain) {
		s.logger.Info("proof rejected", "stage", core.StageProofSubmitted, "reason", "domain", "domain", msg.Domain)
		return "", core.Reject(core.StageProofSubmitted, core.ErrInvalidSignature)
	}

	return msg.Address, nil
}

func (s *AuthService) checkOwnership(ctx context.Context, owner, assetID string) error {
	asset, err := s.registry.GetAsset(ctx, assetID)
	switch {
	case errors.Is(err, core.ErrAssetNotFound):
		s.logger.Info("ownership rejected", "stage", core.StageOwnershipChecked, "asset_id", assetID, "reason", "unknown asset")
		return core.Reject(core.StageOwnershipChecked, core.ErrNotOwner)
	case err != nil:
		s.logger.Error("asset registry lookup failed", "asset_id", assetID, "error", err)
		if !errors.Is(err, core.ErrRegistryUnavailable) {
			err = fmt.Errorf("%w: %v", core.ErrRegistryUnavailable, err)
		}
		return core.Reject(core.StageOwnershipChecked, err)
	}

	if !asset.OwnedBy(owner) {
		s.logger.Info("ownership rejected", "stage", core.StageOwnershipChecked, "asset_id", assetID, "address", owner)
		if err := s.eventPub.PublishAccessDenied(ctx, owner, assetID); err != nil {
			s.logger.Warn("failed to publish denial event", "error", err)
		}
		return core.Reject(core.StageOwnershipChecked, core.ErrNotOwner)
	}

	return nil
}
