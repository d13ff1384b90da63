// Package registrytest provides an in-process DAS JSON-RPC server for tests.
package registrytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"github.com/layer-3/agentgate/core"
)

// Server answers getAsset calls from an in-memory asset table
type Server struct {
	*httptest.Server

	mu     sync.Mutex
	assets map[string]core.Asset
	down   bool
	calls  atomic.Int32
}

type request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type response struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// NewServer starts a registry server. Close it when done.
func NewServer() *Server {
	s := &Server{assets: make(map[string]core.Asset)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Put stores or replaces an asset
func (s *Server) Put(asset core.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[asset.ID] = asset
}

// Transfer changes the owner of a stored asset
func (s *Server) Transfer(assetID, owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset := s.assets[assetID]
	asset.Owner = owner
	s.assets[assetID] = asset
}

// SetDown makes every call fail with an internal JSON-RPC error
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// Calls returns how many getAsset requests were served
func (s *Server) Calls() int {
	return int(s.calls.Load())
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	resp := response{Version: "2.0", ID: req.ID}
	switch {
	case req.Method != "getAsset":
		resp.Error = &rpcError{Code: -32601, Message: "method not found"}
	case len(req.Params) != 1:
		resp.Error = &rpcError{Code: -32602, Message: "invalid params"}
	default:
		s.calls.Add(1)
		resp.Result, resp.Error = s.lookup(req.Params[0])
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) lookup(param json.RawMessage) (any, *rpcError) {
	var id string
	if err := json.Unmarshal(param, &id); err != nil {
		return nil, &rpcError{Code: -32602, Message: "invalid params"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.down {
		return nil, &rpcError{Code: -32603, Message: "internal error"}
	}

	asset, ok := s.assets[id]
	if !ok {
		return nil, &rpcError{Code: -32000, Message: "Asset Not Found"}
	}

	return Encode(asset), nil
}

// Encode renders an asset the way a DAS indexer returns it, with agent
// traits in the attribute list
func Encode(asset core.Asset) map[string]any {
	var traits []map[string]any
	if asset.AgentEndpoint != "" {
		traits = append(traits, map[string]any{"trait_type": "agent_endpoint", "value": asset.AgentEndpoint})
	}
	if asset.AgentType != "" {
		traits = append(traits, map[string]any{"trait_type": "agent_type", "value": string(asset.AgentType)})
	}

	return map[string]any{
		"id": asset.ID,
		"content": map[string]any{
			"json_uri": "https://example.invalid/" + asset.ID + ".json",
			"metadata": map[string]any{
				"name":        asset.Name,
				"description": asset.Description,
			},
			"links": map[string]any{
				"image": asset.Image,
			},
		},
		"ownership": map[string]any{
			"owner": asset.Owner,
		},
		"attributes": map[string]any{
			"attribute_list": traits,
		},
	}
}
