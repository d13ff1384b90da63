package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/layer-3/agentgate/core"
)

const methodGetAsset = "getAsset"

// DASRegistry implements the AssetRegistry interface against a Digital Asset
// Standard JSON-RPC endpoint
type DASRegistry struct {
	client  *rpc.Client
	timeout time.Duration
}

// NewDASRegistry creates a registry client for the JSON-RPC endpoint at rpcURL
func NewDASRegistry(ctx context.Context, rpcURL string, timeout time.Duration) (*DASRegistry, error) {
	client, err := rpc.DialOptions(ctx, rpcURL, rpc.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, fmt.Errorf("failed to dial asset registry: %w", err)
	}

	return &DASRegistry{
		client:  client,
		timeout: timeout,
	}, nil
}

// GetAsset reads the current owner and agent metadata of a token
func (r *DASRegistry) GetAsset(ctx context.Context, assetID string) (*core.Asset, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	// Params go out positionally as [id]; DAS providers accept both this and {"id": ...}
	var result *dasAsset
	if err := r.client.CallContext(ctx, &result, methodGetAsset, assetID); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrAssetNotFound, assetID)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrRegistryUnavailable, err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: %s", core.ErrAssetNotFound, assetID)
	}
	if result.Ownership.Owner == "" {
		return nil, fmt.Errorf("%w: asset %s has no owner", core.ErrRegistryUnavailable, assetID)
	}

	asset := &core.Asset{
		ID:          result.ID,
		Owner:       result.Ownership.Owner,
		Name:        result.Content.Metadata.Name,
		Description: result.Content.Metadata.Description,
		Image:       result.Content.Links.Image,
	}
	if asset.ID == "" {
		asset.ID = assetID
	}

	endpoint, _ := result.lookupTrait(TraitAgentEndpoint)
	agentType, _ := result.lookupTrait(TraitAgentType)
	asset.AgentEndpoint = strings.TrimSpace(endpoint)
	asset.AgentType = core.ParseAgentType(strings.TrimSpace(agentType))

	return asset, nil
}

// Close releases the underlying RPC client
func (r *DASRegistry) Close() {
	r.client.Close()
}

func isNotFound(err error) bool {
	if errors.Is(err, rpc.ErrNoResult) {
		return true
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return strings.Contains(strings.ToLower(rpcErr.Error()), "not found")
	}

	return false
}
