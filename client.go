// Package agentgate is a Go client for the agentgate gateway.
//
// A Client signs in with an ed25519 wallet key for one asset and then relays
// chat messages to the agent bound to that asset:
//
//	c := agentgate.NewClient("https://gate.example.com")
//	if _, err := c.SignIn(ctx, key, assetID, "gate.example.com"); err != nil {
//		return err
//	}
//	reply, err := c.Chat(ctx, assetID, []agentgate.Message{{Role: agentgate.RoleUser, Content: "gm"}})
package agentgate

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/layer-3/agentgate/core"
	"github.com/layer-3/agentgate/internal/siws"
)

// SignInStatement is the statement the client asks the wallet to sign
const SignInStatement = "Sign in to chat with this agent"

const maxResponseBytes = 1 << 20

type (
	Message = core.ChatMessage
	Mode    = core.ChatMode
)

const (
	RoleUser      = core.RoleUser
	RoleAssistant = core.RoleAssistant
	RoleSystem    = core.RoleSystem

	ModeAuthenticated = core.ChatModeAuthenticated
	ModeDemo          = core.ChatModeDemo
)

// Session is the outcome of a successful sign-in
type Session struct {
	Token     string
	AssetID   string
	Address   string
	ExpiresAt time.Time
}

// Reply is the answer of an agent
type Reply struct {
	Text string
	Mode Mode
}

// AgentInfo is the public metadata of an asset
type AgentInfo struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Image       *string `json:"image"`
}

// Client talks to one gateway. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu       sync.RWMutex
	sessions map[string]Session
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the gateway at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		sessions:   make(map[string]Session),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Nonce requests a fresh sign-in nonce
func (c *Client) Nonce(ctx context.Context) (string, error) {
	var resp struct {
		Nonce string `json:"nonce"`
	}
	if err := c.do(ctx, routeNonce, http.MethodGet, "/auth/nonce", nil, "", nil, &resp); err != nil {
		return "", err
	}
	if resp.Nonce == "" {
		return "", fmt.Errorf("agentgate: empty nonce")
	}
	return resp.Nonce, nil
}

// SignIn proves ownership of assetID with the wallet key priv and keeps the
// resulting session for later Chat calls on that asset. domain is the host
// the signed message is bound to.
func (c *Client) SignIn(ctx context.Context, priv ed25519.PrivateKey, assetID, domain string) (*Session, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("agentgate: invalid private key length %d", len(priv))
	}

	nonce, err := c.Nonce(ctx)
	if err != nil {
		return nil, err
	}

	input := siws.Input{
		Domain:    domain,
		Statement: SignInStatement,
		Nonce:     nonce,
	}
	output, err := siws.Sign(input, priv)
	if err != nil {
		return nil, fmt.Errorf("agentgate: signing challenge: %w", err)
	}
	address, err := siws.Signer(output)
	if err != nil {
		return nil, fmt.Errorf("agentgate: signing challenge: %w", err)
	}
	input.Address = address

	body := map[string]any{
		"input":   input,
		"output":  output,
		"assetId": assetID,
	}
	var resp struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	if err := c.do(ctx, routeVerify, http.MethodPost, "/auth/verify", nil, "", body, &resp); err != nil {
		return nil, err
	}

	session := Session{
		Token:     resp.Token,
		AssetID:   assetID,
		Address:   address,
		ExpiresAt: time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}

	c.mu.Lock()
	c.sessions[assetID] = session
	c.mu.Unlock()

	return &session, nil
}

// Session returns the session kept for assetID, if any
func (c *Client) Session(assetID string) (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[assetID]
	return s, ok
}

// SetToken installs a session token obtained elsewhere for assetID
func (c *Client) SetToken(assetID, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[assetID] = Session{Token: token, AssetID: assetID}
}

// SignOut forgets the session kept for assetID. The token itself stays
// valid until it expires.
func (c *Client) SignOut(assetID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, assetID)
}

// Chat sends the conversation to the agent of assetID. Without a session for
// the asset the call is made anonymously and the gateway decides whether to
// answer in demo mode.
func (c *Client) Chat(ctx context.Context, assetID string, messages []Message) (*Reply, error) {
	if messages == nil {
		messages = []Message{}
	}

	var token string
	if s, ok := c.Session(assetID); ok {
		token = s.Token
	}

	body := map[string]any{
		"assetId":  assetID,
		"messages": messages,
	}
	var resp struct {
		Reply string `json:"reply"`
		Mode  Mode   `json:"mode"`
	}
	if err := c.do(ctx, routeChat, http.MethodPost, "/chat", nil, token, body, &resp); err != nil {
		return nil, err
	}

	return &Reply{Text: resp.Reply, Mode: resp.Mode}, nil
}

// AgentInfo fetches the public metadata of assetID
func (c *Client) AgentInfo(ctx context.Context, assetID string) (*AgentInfo, error) {
	var info AgentInfo
	query := url.Values{"assetId": {assetID}}
	if err := c.do(ctx, routeAgentInfo, http.MethodGet, "/agent-info", query, "", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) do(ctx context.Context, r route, method, path string, query url.Values, token string, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("agentgate: encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("agentgate: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("agentgate: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("agentgate: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &apiErr)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    apiErr.Error,
			Err:        statusError(r, resp.StatusCode),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("agentgate: decoding response: %w", err)
	}
	return nil
}
