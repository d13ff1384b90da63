package ports

import (
	"context"

	"github.com/layer-3/agentgate/core"
)

// AssetRegistry reads token ownership and metadata from the chain indexer.
// Every call is a fresh read; implementations do not cache.
type AssetRegistry interface {
	GetAsset(ctx context.Context, assetID string) (*core.Asset, error)
}
