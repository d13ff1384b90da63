package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/layer-3/agentgate/core"
	"github.com/layer-3/agentgate/ports"
)

// ChatConfig holds relay gate settings
type ChatConfig struct {
	FallbackEndpoint     string
	AllowUnauthenticated bool
	RevalidateOwnership  bool
}

// ChatRequest is one conversation turn addressed to an asset's agent
type ChatRequest struct {
	AssetID  string
	Messages []core.ChatMessage
	Token    string
}

// ChatReply is the agent's answer and the mode it was produced in
type ChatReply struct {
	Reply string
	Mode  core.ChatMode
}

// AgentInfo is the public metadata of an asset
type AgentInfo struct {
	Name        string
	Description string
	Image       string
}

// ChatService gates and relays conversations to token agents
type ChatService struct {
	tokenizer ports.Tokenizer
	registry  ports.AssetRegistry
	relay     ports.AgentRelay
	logger    *slog.Logger
	cfg       ChatConfig
}

// NewChatService creates a new chat relay gate
func NewChatService(
	tokenizer ports.Tokenizer,
	registry ports.AssetRegistry,
	relay ports.AgentRelay,
	logger *slog.Logger,
	cfg ChatConfig,
) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}

	return &ChatService{
		tokenizer: tokenizer,
		registry:  registry,
		relay:     relay,
		logger:    logger,
		cfg:       cfg,
	}
}

// Chat authorizes the request and forwards the conversation to the agent
func (s *ChatService) Chat(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	if req.AssetID == "" {
		return nil, core.ErrInvalidRequest
	}
	for _, m := range req.Messages {
		if !m.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", core.ErrInvalidRequest, m.Role)
		}
	}

	session, err := s.authorize(req)
	if err != nil {
		return nil, err
	}

	mode := core.ChatModeDemo
	if session != nil {
		mode = core.ChatModeAuthenticated
	}

	asset, err := s.registry.GetAsset(ctx, req.AssetID)
	if err != nil {
		if errors.Is(err, core.ErrAssetNotFound) {
			return nil, err
		}
		s.logger.Error("asset registry lookup failed", "asset_id", req.AssetID, "error", err)
		if !errors.Is(err, core.ErrRegistryUnavailable) {
			err = fmt.Errorf("%w: %v", core.ErrRegistryUnavailable, err)
		}
		return nil, err
	}

	if session != nil && s.cfg.RevalidateOwnership && !asset.OwnedBy(session.Owner) {
		s.logger.Info("session holder no longer owns asset", "asset_id", req.AssetID, "address", session.Owner)
		return nil, core.ErrNotOwner
	}

	relayReq := core.RelayRequest{
		Endpoint:  asset.AgentEndpoint,
		AgentType: asset.AgentType,
		Messages:  req.Messages,
	}
	if relayReq.Endpoint == "" {
		s.logger.Warn("no agent endpoint on asset, using fallback agent",
			"asset_id", req.AssetID,
			"endpoint", s.cfg.FallbackEndpoint,
		)
		relayReq.Endpoint = s.cfg.FallbackEndpoint
		relayReq.Trusted = true
	}

	reply, err := s.relay.Forward(ctx, relayReq)
	if err != nil {
		s.logger.Error("agent relay failed", "asset_id", req.AssetID, "agent_type", relayReq.AgentType, "error", err)
		return nil, fmt.Errorf("%w: %v", core.ErrAgentUnavailable, err)
	}

	return &ChatReply{Reply: reply, Mode: mode}, nil
}

// authorize returns the session bound to the request, or nil in demo mode
func (s *ChatService) authorize(req ChatRequest) (*core.Session, error) {
	if req.Token == "" {
		if !s.cfg.AllowUnauthenticated {
			return nil, core.ErrUnauthorized
		}
		return nil, nil
	}

	session, err := s.tokenizer.TokenToSession(req.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUnauthorized, err)
	}
	if session.AssetID != req.AssetID {
		return nil, fmt.Errorf("%w: token is scoped to another asset", core.ErrUnauthorized)
	}

	return session, nil
}

// AgentInfo returns the public metadata of an asset
func (s *ChatService) AgentInfo(ctx context.Context, assetID string) (*AgentInfo, error) {
	if assetID == "" {
		return nil, core.ErrInvalidRequest
	}

	asset, err := s.registry.GetAsset(ctx, assetID)
	if err != nil {
		if !errors.Is(err, core.ErrAssetNotFound) {
			s.logger.Error("asset registry lookup failed", "asset_id", assetID, "error", err)
		}
		return nil, err
	}

	return &AgentInfo{
		Name:        asset.Name,
		Description: asset.Description,
		Image:       asset.Image,
	}, nil
}
