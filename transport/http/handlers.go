package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/agentgate/core"
	"github.com/layer-3/agentgate/internal/siws"
	"github.com/layer-3/agentgate/service"
)

// AuthHandlers contains HTTP handlers for the sign-in handshake
type AuthHandlers struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, logger *slog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		logger:      logger,
	}
}

// Nonce issues a sign-in nonce
func (h *AuthHandlers) Nonce(c *gin.Context) {
	nonce, err := h.authService.CreateNonce(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to issue nonce", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create nonce"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// Verify handles a signed challenge and returns a session token
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		Input   *siws.Input  `json:"input" binding:"required"`
		Output  *siws.Output `json:"output" binding:"required"`
		AssetID string       `json:"assetId" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing input, output, or assetId"})
		return
	}

	issued, err := h.authService.Verify(c.Request.Context(), service.VerifyRequest{
		Input:   *req.Input,
		Output:  *req.Output,
		AssetID: req.AssetID,
	})
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Verification failed"

		// Map specific errors to appropriate status codes
		switch {
		case errors.Is(err, core.ErrInvalidRequest):
			statusCode = http.StatusBadRequest
			errorMsg = "Missing input, output, or assetId"
		case errors.Is(err, core.ErrInvalidNonce):
			statusCode = http.StatusBadRequest
			errorMsg = "Invalid or expired nonce"
		case errors.Is(err, core.ErrInvalidSignature):
			statusCode = http.StatusUnauthorized
			errorMsg = "Invalid signature"
		case errors.Is(err, core.ErrNotOwner):
			statusCode = http.StatusForbidden
			errorMsg = "Wallet does not own this NFT"
		case errors.Is(err, core.ErrRegistryUnavailable):
			statusCode = http.StatusServiceUnavailable
			errorMsg = "Asset registry unavailable"
		default:
			h.logger.Error("verification failed", "error", err)
		}

		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      issued.Token,
		"token_type": "Bearer",
		"expires_in": int(h.authService.SessionTTL().Seconds()),
	})
}

// ChatHandlers contains HTTP handlers for the agent relay
type ChatHandlers struct {
	chatService *service.ChatService
	logger      *slog.Logger
}

// NewChatHandlers creates new chat handlers
func NewChatHandlers(chatService *service.ChatService, logger *slog.Logger) *ChatHandlers {
	return &ChatHandlers{
		chatService: chatService,
		logger:      logger,
	}
}

// Chat relays a conversation to the agent of an asset
func (h *ChatHandlers) Chat(c *gin.Context) {
	var req struct {
		AssetID  string             `json:"assetId" binding:"required"`
		Messages []core.ChatMessage `json:"messages" binding:"required"`
		Token    string             `json:"token"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing assetId or messages"})
		return
	}

	token := req.Token
	if header := c.GetHeader("Authorization"); header != "" {
		credential, ok := bearerToken(header)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		token = credential
	}

	reply, err := h.chatService.Chat(c.Request.Context(), service.ChatRequest{
		AssetID:  req.AssetID,
		Messages: req.Messages,
		Token:    token,
	})
	if err != nil {
		statusCode := http.StatusBadGateway
		errorMsg := "Agent not responding"

		switch {
		case errors.Is(err, core.ErrInvalidRequest):
			statusCode = http.StatusBadRequest
			errorMsg = "Invalid messages"
		case errors.Is(err, core.ErrUnauthorized):
			statusCode = http.StatusUnauthorized
			errorMsg = "Unauthorized"
		case errors.Is(err, core.ErrNotOwner):
			statusCode = http.StatusForbidden
			errorMsg = "Wallet no longer owns this NFT"
		case errors.Is(err, core.ErrAssetNotFound):
			statusCode = http.StatusNotFound
			errorMsg = "Asset not found"
		case errors.Is(err, core.ErrAgentUnavailable), errors.Is(err, core.ErrRegistryUnavailable):
		default:
			h.logger.Error("chat relay failed", "error", err)
		}

		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	if reply.Mode == core.ChatModeDemo {
		c.Header("X-Agent-Mode", string(core.ChatModeDemo))
	}

	c.JSON(http.StatusOK, gin.H{
		"reply": reply.Reply,
		"mode":  reply.Mode,
	})
}

// bearerToken extracts the credential of a Bearer Authorization header.
// The scheme is case-insensitive; any other scheme or an empty credential fails.
func bearerToken(header string) (string, bool) {
	scheme, credentials, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	credentials = strings.TrimSpace(credentials)
	return credentials, credentials != ""
}

// AgentInfo returns the public metadata of an asset
func (h *ChatHandlers) AgentInfo(c *gin.Context) {
	assetID := c.Query("assetId")
	if assetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing assetId"})
		return
	}

	info, err := h.chatService.AgentInfo(c.Request.Context(), assetID)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Failed to fetch agent info"

		switch {
		case errors.Is(err, core.ErrAssetNotFound):
			statusCode = http.StatusNotFound
			errorMsg = "Asset not found"
		case errors.Is(err, core.ErrRegistryUnavailable):
			statusCode = http.StatusServiceUnavailable
		default:
			h.logger.Error("agent info failed", "error", err)
		}

		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	var image any
	if info.Image != "" {
		image = info.Image
	}

	c.JSON(http.StatusOK, gin.H{
		"name":        info.Name,
		"description": info.Description,
		"image":       image,
	})
}

// Health reports liveness
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
