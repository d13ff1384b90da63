package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/layer-3/agentgate/core"
	"github.com/layer-3/agentgate/ports"
)

const (
	completionsPath  = "/v1/chat/completions"
	defaultModel     = "default"
	noResponseReply  = "No response from agent"
	maxResponseBytes = 1 << 20
)

var (
	ErrInvalidEndpoint  = errors.New("invalid agent endpoint")
	ErrPrivateNetwork   = errors.New("agent endpoint resolves to a private address")
	ErrResponseTooLarge = errors.New("agent response too large")
)

// Config holds relay settings
type Config struct {
	Timeout              time.Duration
	BlockPrivateNetworks bool
}

// HTTPRelay implements the AgentRelay interface over HTTP
type HTTPRelay struct {
	timeout time.Duration
	trusted *http.Client
	guarded *http.Client
}

// NewHTTPRelay creates a new HTTP relay
func NewHTTPRelay(cfg Config) ports.AgentRelay {
	r := &HTTPRelay{
		timeout: cfg.Timeout,
		trusted: &http.Client{},
		guarded: &http.Client{},
	}

	if cfg.BlockPrivateNetworks {
		dialer := &net.Dialer{
			Timeout: 5 * time.Second,
			Control: publicOnly,
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = nil
		transport.DialContext = dialer.DialContext
		r.guarded = &http.Client{Transport: transport}
	}

	return r
}

type completionRequest struct {
	Model    string             `json:"model"`
	Messages []core.ChatMessage `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type webhookRequest struct {
	Message string             `json:"message"`
	History []core.ChatMessage `json:"history"`
}

// Forward sends the conversation to the agent and returns its reply
func (r *HTTPRelay) Forward(ctx context.Context, req core.RelayRequest) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	messages := req.Messages
	if messages == nil {
		messages = []core.ChatMessage{}
	}

	if req.AgentType == core.AgentTypeOpenAI {
		return r.forwardCompletion(ctx, req, messages)
	}
	return r.forwardWebhook(ctx, req, messages)
}

func (r *HTTPRelay) forwardCompletion(ctx context.Context, req core.RelayRequest, messages []core.ChatMessage) (string, error) {
	endpoint := strings.TrimRight(req.Endpoint, "/")
	if !strings.HasSuffix(endpoint, completionsPath) {
		endpoint += completionsPath
	}

	body, err := r.post(ctx, endpoint, req.Trusted, completionRequest{Model: defaultModel, Messages: messages})
	if err != nil {
		return "", err
	}

	var resp completionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode agent response: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil || resp.Choices[0].Message.Content == nil {
		return noResponseReply, nil
	}

	return *resp.Choices[0].Message.Content, nil
}

func (r *HTTPRelay) forwardWebhook(ctx context.Context, req core.RelayRequest, messages []core.ChatMessage) (string, error) {
	var last string
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}

	body, err := r.post(ctx, req.Endpoint, req.Trusted, webhookRequest{Message: last, History: messages})
	if err != nil {
		return "", err
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode agent response: %w", err)
	}
	resp, _ := decoded.(map[string]any)
	for _, key := range []string{"reply", "message", "content"} {
		if v, ok := resp[key]; ok && v != nil {
			if s, ok := v.(string); ok {
				return s, nil
			}
			encoded, _ := json.Marshal(v)
			return string(encoded), nil
		}
	}

	return string(bytes.TrimSpace(body)), nil
}

func (r *HTTPRelay) post(ctx context.Context, endpoint string, trusted bool, payload any) ([]byte, error) {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode agent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build agent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := r.guarded
	if trusted {
		client = r.trusted
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("agent request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read agent response: %w", err)
	}
	if len(body) > maxResponseBytes {
		return nil, ErrResponseTooLarge
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("agent returned %d", resp.StatusCode)
	}

	return body, nil
}

// publicOnly refuses connections to loopback, private and link-local addresses
func publicOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("%w: %s", ErrPrivateNetwork, host)
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified() || ip.IsMulticast() {
		return fmt.Errorf("%w: %s", ErrPrivateNetwork, ip)
	}

	return nil
}
