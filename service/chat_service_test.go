package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/agentgate/adapters/tokenizer"
	"github.com/layer-3/agentgate/core"
	"github.com/layer-3/agentgate/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	holder   = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	fallback = "http://localhost:4000"
)

type chatFixture struct {
	svc      *ChatService
	tokens   ports.Tokenizer
	registry *fakeRegistry
	relay    *fakeRelay
}

func newChatFixture(t *testing.T, cfg ChatConfig) *chatFixture {
	t.Helper()
	if cfg.FallbackEndpoint == "" {
		cfg.FallbackEndpoint = fallback
	}
	f := &chatFixture{
		tokens: tokenizer.NewJWTTokenizer(testSecret, "agentgate"),
		registry: newFakeRegistry(
			core.Asset{ID: "asset-x", Owner: holder, Name: "SolBot", Description: "demo", Image: "img",
				AgentEndpoint: "https://agent.example.com", AgentType: core.AgentTypeWebhook},
			core.Asset{ID: "asset-bare", Owner: holder, AgentType: core.AgentTypeOpenAI},
		),
		relay: &fakeRelay{reply: "hello from agent"},
	}
	f.svc = NewChatService(f.tokens, f.registry, f.relay, discardLogger(), cfg)
	return f
}

func (f *chatFixture) token(t *testing.T, assetID string) string {
	t.Helper()
	now := time.Now()
	token, err := f.tokens.SessionToToken(&core.Session{
		ID:        uuid.New().String(),
		Owner:     holder,
		AssetID:   assetID,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	return token
}

var conversation = []core.ChatMessage{{Role: core.RoleUser, Content: "hello"}}

func TestChatService_Authenticated(t *testing.T) {
	f := newChatFixture(t, ChatConfig{AllowUnauthenticated: true})

	reply, err := f.svc.Chat(context.Background(), ChatRequest{
		AssetID:  "asset-x",
		Messages: conversation,
		Token:    f.token(t, "asset-x"),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello from agent", reply.Reply)
	assert.Equal(t, core.ChatModeAuthenticated, reply.Mode)

	require.NotNil(t, f.relay.last)
	assert.Equal(t, "https://agent.example.com", f.relay.last.Endpoint)
	assert.Equal(t, core.AgentTypeWebhook, f.relay.last.AgentType)
	assert.Equal(t, conversation, f.relay.last.Messages)
	assert.False(t, f.relay.last.Trusted)
}

func TestChatService_TokenForAnotherAsset(t *testing.T) {
	f := newChatFixture(t, ChatConfig{AllowUnauthenticated: true})

	_, err := f.svc.Chat(context.Background(), ChatRequest{
		AssetID:  "asset-x",
		Messages: conversation,
		Token:    f.token(t, "asset-y"),
	})
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	assert.Equal(t, 0, f.relay.calls)
	assert.Equal(t, 0, f.registry.calls)
}

func TestChatService_InvalidToken(t *testing.T) {
	f := newChatFixture(t, ChatConfig{AllowUnauthenticated: true})

	expired, err := f.tokens.SessionToToken(&core.Session{
		ID: "jti", Owner: holder, AssetID: "asset-x",
		IssuedAt: time.Now().Add(-48 * time.Hour), ExpiresAt: time.Now().Add(-24 * time.Hour),
	})
	require.NoError(t, err)

	for _, token := range []string{"garbage", expired} {
		_, err := f.svc.Chat(context.Background(), ChatRequest{AssetID: "asset-x", Messages: conversation, Token: token})
		assert.ErrorIs(t, err, core.ErrUnauthorized)
	}
	assert.Equal(t, 0, f.relay.calls)
}

func TestChatService_DemoMode(t *testing.T) {
	f := newChatFixture(t, ChatConfig{AllowUnauthenticated: true})

	reply, err := f.svc.Chat(context.Background(), ChatRequest{AssetID: "asset-x", Messages: conversation})
	require.NoError(t, err)
	assert.Equal(t, core.ChatModeDemo, reply.Mode)
	assert.Equal(t, 1, f.relay.calls)
}

func TestChatService_DemoModeDisabled(t *testing.T) {
	f := newChatFixture(t, ChatConfig{AllowUnauthenticated: false})

	_, err := f.svc.Chat(context.Background(), ChatRequest{AssetID: "asset-x", Messages: conversation})
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	assert.Equal(t, 0, f.relay.calls)
}

func TestChatService_FallbackEndpoint(t *testing.T) {
	f := newChatFixture(t, ChatConfig{AllowUnauthenticated: true})

	_, err := f.svc.Chat(context.Background(), ChatRequest{AssetID: "asset-bare", Messages: conversation})
	require.NoError(t, err)
	assert.Equal(t, fallback, f.relay.last.Endpoint)
	assert.Equal(t, core.AgentTypeOpenAI, f.relay.last.AgentType)
	assert.True(t, f.relay.last.Trusted)
}

func TestChatService_UnknownAsset(t *testing.T) {
	f := newChatFixture(t, ChatConfig{AllowUnauthenticated: true})

	_, err := f.svc.Chat(context.Background(), ChatRequest{AssetID: "missing", Messages: conversation})
	assert.ErrorIs(t, err, core.ErrAssetNotFound)
}

func TestChatService_RegistryUnavailable(t *testing.T) {
	f := newChatFixture(t, ChatConfig{AllowUnauthenticated: true})
	f.registry.err = errors.New("timeout")

	_, err := f.svc.Chat(context.Background(), ChatRequest{AssetID: "asset-x", Messages: conversation})
	assert.ErrorIs(t, err, core.ErrRegistryUnavailable)
}

func TestChatService_AgentUnavailable(t *testing.T) {
	f := newChatFixture(t, ChatConfig{AllowUnauthenticated: true})
	f.relay.err = context.DeadlineExceeded

	_, err := f.svc.Chat(context.Background(), ChatRequest{AssetID: "asset-x", Messages: conversation})
	assert.ErrorIs(t, err, core.ErrAgentUnavailable)
}

func TestChatService_RevalidateOwnership(t *testing.T) {
	f := newChatFixture(t, ChatConfig{AllowUnauthenticated: true, RevalidateOwnership: true})
	token := f.token(t, "asset-x")

	_, err := f.svc.Chat(context.Background(), ChatRequest{AssetID: "asset-x", Messages: conversation, Token: token})
	require.NoError(t, err)

	f.registry.transfer("asset-x", "new-owner")

	_, err = f.svc.Chat(context.Background(), ChatRequest{AssetID: "asset-x", Messages: conversation, Token: token})
	assert.ErrorIs(t, err, core.ErrNotOwner)
	assert.Equal(t, 1, f.relay.calls)
}

func TestChatService_TrustWindowWithoutRevalidation(t *testing.T) {
	f := newChatFixture(t, ChatConfig{AllowUnauthenticated: true})
	token := f.token(t, "asset-x")

	f.registry.transfer("asset-x", "new-owner")

	reply, err := f.svc.Chat(context.Background(), ChatRequest{AssetID: "asset-x", Messages: conversation, Token: token})
	require.NoError(t, err)
	assert.Equal(t, core.ChatModeAuthenticated, reply.Mode)
}

func TestChatService_Validation(t *testing.T) {
	f := newChatFixture(t, ChatConfig{AllowUnauthenticated: true})

	_, err := f.svc.Chat(context.Background(), ChatRequest{Messages: conversation})
	assert.ErrorIs(t, err, core.ErrInvalidRequest)

	_, err = f.svc.Chat(context.Background(), ChatRequest{
		AssetID:  "asset-x",
		Messages: []core.ChatMessage{{Role: "tool", Content: "x"}},
	})
	assert.ErrorIs(t, err, core.ErrInvalidRequest)

	reply, err := f.svc.Chat(context.Background(), ChatRequest{AssetID: "asset-x", Messages: []core.ChatMessage{}})
	require.NoError(t, err)
	assert.Equal(t, "hello from agent", reply.Reply)
}

func TestChatService_AgentInfo(t *testing.T) {
	f := newChatFixture(t, ChatConfig{})

	info, err := f.svc.AgentInfo(context.Background(), "asset-x")
	require.NoError(t, err)
	assert.Equal(t, &AgentInfo{Name: "SolBot", Description: "demo", Image: "img"}, info)

	_, err = f.svc.AgentInfo(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrAssetNotFound)

	_, err = f.svc.AgentInfo(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}
