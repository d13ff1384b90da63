package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/layer-3/agentgate/core"
	"github.com/layer-3/agentgate/internal/siws"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("service-test-secret-0123456789abcdef")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRegistry struct {
	mu     sync.Mutex
	assets map[string]core.Asset
	err    error
	calls  int
}

func newFakeRegistry(assets ...core.Asset) *fakeRegistry {
	r := &fakeRegistry{assets: make(map[string]core.Asset)}
	for _, a := range assets {
		r.assets[a.ID] = a
	}
	return r
}

func (r *fakeRegistry) GetAsset(ctx context.Context, assetID string) (*core.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	a, ok := r.assets[assetID]
	if !ok {
		return nil, core.ErrAssetNotFound
	}
	return &a, nil
}

func (r *fakeRegistry) transfer(assetID, owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.assets[assetID]
	a.Owner = owner
	r.assets[assetID] = a
}

type publishedEvent struct {
	kind    string
	address string
	assetID string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) PublishSessionIssued(ctx context.Context, owner, assetID, tokenID string) error {
	return p.record("session.issued", owner, assetID)
}

func (p *fakePublisher) PublishAccessDenied(ctx context.Context, address, assetID string) error {
	return p.record("auth.denied", address, assetID)
}

func (p *fakePublisher) record(kind, address, assetID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{kind: kind, address: address, assetID: assetID})
	return nil
}

func (p *fakePublisher) recorded() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

type fakeRelay struct {
	mu    sync.Mutex
	reply string
	err   error
	last  *core.RelayRequest
	calls int
}

func (r *fakeRelay) Forward(ctx context.Context, req core.RelayRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.last = &req
	if r.err != nil {
		return "", r.err
	}
	return r.reply, nil
}

var errBackend = errors.New("backend down")

type failingStore struct{}

func (failingStore) Issue(ctx context.Context) (string, error)              { return "", errBackend }
func (failingStore) Consume(ctx context.Context, nonce string) (bool, error) { return false, errBackend }

type wallet struct {
	priv    ed25519.PrivateKey
	address string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return wallet{priv: priv, address: siws.Address(priv.Public().(ed25519.PublicKey))}
}

func (w wallet) sign(t *testing.T, nonce string) (siws.Input, siws.Output) {
	t.Helper()
	input := siws.Input{
		Domain:    "agents.example.com",
		Address:   w.address,
		Statement: "Sign in to chat with your agent",
		URI:       "https://agents.example.com",
		Version:   "1",
		Nonce:     nonce,
	}
	output, err := siws.Sign(input, w.priv)
	require.NoError(t, err)
	return input, output
}
