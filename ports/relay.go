package ports

import (
	"context"

	"github.com/layer-3/agentgate/core"
)

// AgentRelay forwards a conversation to an agent and returns its reply
type AgentRelay interface {
	Forward(ctx context.Context, req core.RelayRequest) (string, error)
}
