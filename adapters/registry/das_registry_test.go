package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/layer-3/agentgate/adapters/registry/registrytest"
	"github.com/layer-3/agentgate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

func newRegistry(t *testing.T, url string, timeout time.Duration) *DASRegistry {
	t.Helper()
	r, err := NewDASRegistry(context.Background(), url, timeout)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

// rawServer answers every call with the given result or error JSON
func rawServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,` + body + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDASRegistry_GetAsset(t *testing.T) {
	srv := registrytest.NewServer()
	defer srv.Close()

	srv.Put(core.Asset{
		ID:            "asset-1",
		Owner:         owner,
		Name:          "SolBot",
		Description:   "A Solana assistant",
		Image:         "https://example.invalid/solbot.png",
		AgentEndpoint: "https://agent.example.invalid",
		AgentType:     core.AgentTypeWebhook,
	})

	r := newRegistry(t, srv.URL, 5*time.Second)
	asset, err := r.GetAsset(context.Background(), "asset-1")
	require.NoError(t, err)

	assert.Equal(t, "asset-1", asset.ID)
	assert.Equal(t, owner, asset.Owner)
	assert.Equal(t, "SolBot", asset.Name)
	assert.Equal(t, "A Solana assistant", asset.Description)
	assert.Equal(t, "https://example.invalid/solbot.png", asset.Image)
	assert.Equal(t, "https://agent.example.invalid", asset.AgentEndpoint)
	assert.Equal(t, core.AgentTypeWebhook, asset.AgentType)
	assert.True(t, asset.OwnedBy(owner))
	assert.False(t, asset.OwnedBy("someone-else"))
	assert.Equal(t, 1, srv.Calls())
}

func TestDASRegistry_NoCaching(t *testing.T) {
	srv := registrytest.NewServer()
	defer srv.Close()
	srv.Put(core.Asset{ID: "asset-1", Owner: owner})

	r := newRegistry(t, srv.URL, 5*time.Second)
	_, err := r.GetAsset(context.Background(), "asset-1")
	require.NoError(t, err)

	srv.Transfer("asset-1", "new-owner")

	asset, err := r.GetAsset(context.Background(), "asset-1")
	require.NoError(t, err)
	assert.Equal(t, "new-owner", asset.Owner)
	assert.Equal(t, 2, srv.Calls())
}

func TestDASRegistry_DefaultsToOpenAI(t *testing.T) {
	srv := registrytest.NewServer()
	defer srv.Close()
	srv.Put(core.Asset{ID: "asset-1", Owner: owner})

	asset, err := newRegistry(t, srv.URL, 5*time.Second).GetAsset(context.Background(), "asset-1")
	require.NoError(t, err)
	assert.Empty(t, asset.AgentEndpoint)
	assert.Equal(t, core.AgentTypeOpenAI, asset.AgentType)
}

func TestDASRegistry_NotFound(t *testing.T) {
	srv := registrytest.NewServer()
	defer srv.Close()

	_, err := newRegistry(t, srv.URL, 5*time.Second).GetAsset(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrAssetNotFound)
}

func TestDASRegistry_NullResult(t *testing.T) {
	srv := rawServer(t, `"result":null`)

	_, err := newRegistry(t, srv.URL, 5*time.Second).GetAsset(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrAssetNotFound)
}

func TestDASRegistry_Unavailable(t *testing.T) {
	t.Run("rpc error", func(t *testing.T) {
		srv := registrytest.NewServer()
		defer srv.Close()
		srv.Put(core.Asset{ID: "asset-1", Owner: owner})
		srv.SetDown(true)

		_, err := newRegistry(t, srv.URL, 5*time.Second).GetAsset(context.Background(), "asset-1")
		assert.ErrorIs(t, err, core.ErrRegistryUnavailable)
	})

	t.Run("http error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := newRegistry(t, srv.URL, 5*time.Second).GetAsset(context.Background(), "asset-1")
		assert.ErrorIs(t, err, core.ErrRegistryUnavailable)
	})

	t.Run("missing owner", func(t *testing.T) {
		srv := rawServer(t, `"result":{"id":"asset-1","ownership":{}}`)

		_, err := newRegistry(t, srv.URL, 5*time.Second).GetAsset(context.Background(), "asset-1")
		assert.ErrorIs(t, err, core.ErrRegistryUnavailable)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		_, err := newRegistry(t, srv.URL, 50*time.Millisecond).GetAsset(context.Background(), "asset-1")
		assert.ErrorIs(t, err, core.ErrRegistryUnavailable)
	})
}

func TestDASRegistry_TraitLookupOrder(t *testing.T) {
	tests := []struct {
		name     string
		result   string
		endpoint string
		typ      core.AgentType
	}{
		{
			name: "attribute list wins",
			result: `{"id":"a","ownership":{"owner":"o"},
				"attributes":{"attribute_list":[{"trait_type":"agent_endpoint","value":"https://first"}]},
				"plugins":{"attributes":{"data":{"attribute_list":[{"trait_type":"agent_endpoint","value":"https://second"}]}}},
				"content":{"metadata":{"attributes":[{"trait_type":"agent_endpoint","value":"https://third"}]}}}`,
			endpoint: "https://first",
			typ:      core.AgentTypeOpenAI,
		},
		{
			name: "attributes plugin",
			result: `{"id":"a","ownership":{"owner":"o"},
				"plugins":{"attributes":{"data":{"attribute_list":[
					{"trait_type":"agent_endpoint","value":"https://second"},
					{"trait_type":"agent_type","value":"webhook"}]}}},
				"content":{"metadata":{"attributes":[{"trait_type":"agent_endpoint","value":"https://third"}]}}}`,
			endpoint: "https://second",
			typ:      core.AgentTypeWebhook,
		},
		{
			name: "off-chain metadata",
			result: `{"id":"a","ownership":{"owner":"o"},
				"content":{"metadata":{"attributes":[
					{"trait_type":"level","value":7},
					{"trait_type":"agent_endpoint","value":"https://third"},
					{"trait_type":"agent_type","value":"custom"}]}}}`,
			endpoint: "https://third",
			typ:      core.AgentTypeWebhook,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := rawServer(t, `"result":`+tt.result)

			asset, err := newRegistry(t, srv.URL, 5*time.Second).GetAsset(context.Background(), "a")
			require.NoError(t, err)
			assert.Equal(t, tt.endpoint, asset.AgentEndpoint)
			assert.Equal(t, tt.typ, asset.AgentType)
		})
	}
}

func TestTraitValue(t *testing.T) {
	var traits []trait
	require.NoError(t, json.Unmarshal([]byte(`[
		{"trait_type":"s","value":"text"},
		{"trait_type":"n","value":42},
		{"trait_type":"b","value":true},
		{"trait_type":"o","value":{"nested":1}},
		{"trait_type":"z","value":null}
	]`), &traits))

	got := map[string]string{}
	for _, tr := range traits {
		got[tr.TraitType] = string(tr.Value)
	}
	assert.Equal(t, map[string]string{"s": "text", "n": "42", "b": "true", "o": "", "z": ""}, got)
}
