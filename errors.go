package agentgate

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/layer-3/agentgate/core"
)

var (
	// ErrInvalidNonce is returned when the gateway rejects the nonce of a sign-in
	ErrInvalidNonce = core.ErrInvalidNonce

	// ErrInvalidSignature is returned when the gateway rejects the wallet proof
	ErrInvalidSignature = core.ErrInvalidSignature

	// ErrNotOwner is returned when the wallet does not hold the asset
	ErrNotOwner = core.ErrNotOwner

	// ErrUnauthorized is returned when a chat call carries no valid session
	ErrUnauthorized = core.ErrUnauthorized

	// ErrAssetNotFound is returned when the registry has no such asset
	ErrAssetNotFound = core.ErrAssetNotFound

	// ErrRegistryUnavailable is returned when the gateway cannot reach the registry
	ErrRegistryUnavailable = core.ErrRegistryUnavailable

	// ErrAgentUnavailable is returned when the agent behind an asset did not answer
	ErrAgentUnavailable = core.ErrAgentUnavailable

	// ErrInvalidRequest is returned when the gateway finds the request malformed
	ErrInvalidRequest = core.ErrInvalidRequest

	// ErrRateLimited is returned when the gateway throttles the caller
	ErrRateLimited = errors.New("rate limit exceeded")
)

// APIError is a non-2xx answer from the gateway
type APIError struct {
	StatusCode int
	Message    string
	Err        error // Sentinel matching the status, if any
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("agentgate: status %d", e.StatusCode)
	}
	return fmt.Sprintf("agentgate: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

type route int

const (
	routeNonce route = iota
	routeVerify
	routeChat
	routeAgentInfo
)

// statusError maps a gateway status to the sentinel it stands for on a route
func statusError(r route, status int) error {
	switch status {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusNotFound:
		return ErrAssetNotFound
	}

	switch r {
	case routeVerify:
		switch status {
		case http.StatusBadRequest:
			return ErrInvalidNonce
		case http.StatusUnauthorized:
			return ErrInvalidSignature
		case http.StatusForbidden:
			return ErrNotOwner
		case http.StatusServiceUnavailable:
			return ErrRegistryUnavailable
		}
	case routeChat:
		switch status {
		case http.StatusBadRequest:
			return ErrInvalidRequest
		case http.StatusUnauthorized:
			return ErrUnauthorized
		case http.StatusForbidden:
			return ErrNotOwner
		case http.StatusBadGateway:
			return ErrAgentUnavailable
		}
	case routeAgentInfo:
		switch status {
		case http.StatusBadRequest:
			return ErrInvalidRequest
		case http.StatusServiceUnavailable:
			return ErrRegistryUnavailable
		}
	}
	return nil
}
