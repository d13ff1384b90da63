package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/layer-3/agentgate/adapters/store"
	"github.com/layer-3/agentgate/adapters/tokenizer"
	"github.com/layer-3/agentgate/core"
	"github.com/layer-3/agentgate/internal/siws"
	"github.com/layer-3/agentgate/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	svc      *AuthService
	nonces   ports.NonceStore
	tokens   ports.Tokenizer
	registry *fakeRegistry
	events   *fakePublisher
	owner    wallet
}

func newAuthFixture(t *testing.T, cfg AuthConfig) *authFixture {
	t.Helper()
	owner := newWallet(t)
	f := &authFixture{
		nonces:   store.NewMemoryStore(5 * time.Minute),
		tokens:   tokenizer.NewJWTTokenizer(testSecret, "agentgate"),
		registry: newFakeRegistry(core.Asset{ID: "asset-x", Owner: owner.address, Name: "SolBot"}),
		events:   &fakePublisher{},
		owner:    owner,
	}
	f.svc = NewAuthService(f.nonces, f.tokens, f.registry, f.events, discardLogger(), cfg)
	return f
}

func (f *authFixture) nonce(t *testing.T) string {
	t.Helper()
	nonce, err := f.svc.CreateNonce(context.Background())
	require.NoError(t, err)
	return nonce
}

func stageOf(t *testing.T, err error) core.Stage {
	t.Helper()
	var rejected *core.RejectedError
	require.True(t, errors.As(err, &rejected), "expected a rejection, got %v", err)
	return rejected.Stage
}

func TestAuthService_Verify(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, AuthConfig{})

	input, output := f.owner.sign(t, f.nonce(t))
	issued, err := f.svc.Verify(ctx, VerifyRequest{Input: input, Output: output, AssetID: "asset-x"})
	require.NoError(t, err)

	assert.NotEmpty(t, issued.Token)
	assert.Equal(t, f.owner.address, issued.Session.Owner)
	assert.Equal(t, "asset-x", issued.Session.AssetID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), issued.Session.ExpiresAt, 5*time.Second)
	assert.Equal(t, 24*time.Hour, f.svc.SessionTTL())

	session, err := f.tokens.TokenToSession(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, f.owner.address, session.Owner)
	assert.Equal(t, "asset-x", session.AssetID)
	assert.Equal(t, issued.Session.ID, session.ID)

	assert.Equal(t, []publishedEvent{{kind: "session.issued", address: f.owner.address, assetID: "asset-x"}}, f.events.recorded())
}

func TestAuthService_NonceSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, AuthConfig{})

	input, output := f.owner.sign(t, f.nonce(t))
	req := VerifyRequest{Input: input, Output: output, AssetID: "asset-x"}

	_, err := f.svc.Verify(ctx, req)
	require.NoError(t, err)

	_, err = f.svc.Verify(ctx, req)
	assert.ErrorIs(t, err, core.ErrInvalidNonce)
	assert.Equal(t, core.StageProofSubmitted, stageOf(t, err))
}

func TestAuthService_RejectsUnknownOrMissingNonce(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, AuthConfig{})

	input, output := f.owner.sign(t, "00000000000000000000000000000000")
	_, err := f.svc.Verify(ctx, VerifyRequest{Input: input, Output: output, AssetID: "asset-x"})
	assert.ErrorIs(t, err, core.ErrInvalidNonce)

	input, output = f.owner.sign(t, "")
	_, err = f.svc.Verify(ctx, VerifyRequest{Input: input, Output: output, AssetID: "asset-x"})
	assert.ErrorIs(t, err, core.ErrInvalidNonce)
	assert.Equal(t, 0, f.registry.calls)
}

func TestAuthService_BadSignatureBurnsNonce(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, AuthConfig{})
	nonce := f.nonce(t)

	input, output := f.owner.sign(t, nonce)
	sig, err := output.Signature.Bytes()
	require.NoError(t, err)
	sig[0] ^= 0xff
	output.Signature = siws.NewBinary(sig)

	_, err = f.svc.Verify(ctx, VerifyRequest{Input: input, Output: output, AssetID: "asset-x"})
	assert.ErrorIs(t, err, core.ErrInvalidSignature)
	assert.Equal(t, core.StageProofSubmitted, stageOf(t, err))

	_, good := f.owner.sign(t, nonce)
	_, err = f.svc.Verify(ctx, VerifyRequest{Input: input, Output: good, AssetID: "asset-x"})
	assert.ErrorIs(t, err, core.ErrInvalidNonce)
	assert.Equal(t, 0, f.registry.calls)
}

func TestAuthService_TamperedInput(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, AuthConfig{})

	input, output := f.owner.sign(t, f.nonce(t))
	input.Domain = "evil.example.com"

	_, err := f.svc.Verify(ctx, VerifyRequest{Input: input, Output: output, AssetID: "asset-x"})
	assert.ErrorIs(t, err, core.ErrInvalidSignature)
}

func TestAuthService_AllowedDomains(t *testing.T) {
	ctx := context.Background()

	f := newAuthFixture(t, AuthConfig{AllowedDomains: []string{"other.example.com"}})
	input, output := f.owner.sign(t, f.nonce(t))
	_, err := f.svc.Verify(ctx, VerifyRequest{Input: input, Output: output, AssetID: "asset-x"})
	assert.ErrorIs(t, err, core.ErrInvalidSignature)

	f = newAuthFixture(t, AuthConfig{AllowedDomains: []string{"other.example.com", "agents.example.com"}})
	input, output = f.owner.sign(t, f.nonce(t))
	_, err = f.svc.Verify(ctx, VerifyRequest{Input: input, Output: output, AssetID: "asset-x"})
	assert.NoError(t, err)
}

func TestAuthService_NotOwner(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, AuthConfig{})
	stranger := newWallet(t)

	input, output := stranger.sign(t, f.nonce(t))
	_, err := f.svc.Verify(ctx, VerifyRequest{Input: input, Output: output, AssetID: "asset-x"})
	assert.ErrorIs(t, err, core.ErrNotOwner)
	assert.Equal(t, core.StageOwnershipChecked, stageOf(t, err))

	assert.Equal(t, []publishedEvent{{kind: "auth.denied", address: stranger.address, assetID: "asset-x"}}, f.events.recorded())
}

func TestAuthService_UnknownAssetIsNotOwner(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, AuthConfig{})

	input, output := f.owner.sign(t, f.nonce(t))
	_, err := f.svc.Verify(ctx, VerifyRequest{Input: input, Output: output, AssetID: "asset-missing"})
	assert.ErrorIs(t, err, core.ErrNotOwner)
}

func TestAuthService_RegistryUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, AuthConfig{})
	f.registry.err = errors.New("connection refused")

	input, output := f.owner.sign(t, f.nonce(t))
	_, err := f.svc.Verify(ctx, VerifyRequest{Input: input, Output: output, AssetID: "asset-x"})
	assert.ErrorIs(t, err, core.ErrRegistryUnavailable)
	assert.Equal(t, core.StageOwnershipChecked, stageOf(t, err))
	assert.Empty(t, f.events.recorded())
}

func TestAuthService_PublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, AuthConfig{})
	f.events.err = errors.New("broker down")

	input, output := f.owner.sign(t, f.nonce(t))
	issued, err := f.svc.Verify(ctx, VerifyRequest{Input: input, Output: output, AssetID: "asset-x"})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Token)
}

func TestAuthService_MissingAsset(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	input, output := f.owner.sign(t, f.nonce(t))

	_, err := f.svc.Verify(context.Background(), VerifyRequest{Input: input, Output: output})
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestAuthService_StoreFailure(t *testing.T) {
	svc := NewAuthService(failingStore{}, tokenizer.NewJWTTokenizer(testSecret, "agentgate"),
		newFakeRegistry(), &fakePublisher{}, discardLogger(), AuthConfig{})

	_, err := svc.CreateNonce(context.Background())
	assert.ErrorIs(t, err, errBackend)

	_, err = svc.Verify(context.Background(), VerifyRequest{Input: siws.Input{Nonce: "abc"}, AssetID: "asset-x"})
	assert.ErrorIs(t, err, errBackend)
	var rejected *core.RejectedError
	assert.False(t, errors.As(err, &rejected))
}
