package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/layer-3/agentgate/core"
)

const agentName = "SolBot"

type completionRequest struct {
	Messages []core.ChatMessage `json:"messages"`
}

type webhookRequest struct {
	Message string `json:"message"`
}

func setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// OpenAI-compatible endpoint
	router.POST("/v1/chat/completions", func(c *gin.Context) {
		var req completionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		var last string
		for _, m := range req.Messages {
			if m.Role == core.RoleUser {
				last = m.Content
			}
		}

		now := time.Now()
		c.JSON(http.StatusOK, gin.H{
			"id":      fmt.Sprintf("chatcmpl-%s", uuid.NewString()),
			"object":  "chat.completion",
			"created": now.Unix(),
			"model":   "solbot-1.0",
			"choices": []gin.H{{
				"index":         0,
				"message":       gin.H{"role": core.RoleAssistant, "content": replyTo(last)},
				"finish_reason": "stop",
			}},
			"usage": gin.H{"prompt_tokens": 0, "completion_tokens": 0, "total_tokens": 0},
		})
	})

	router.POST("/webhook", func(c *gin.Context) {
		var req webhookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reply": replyTo(req.Message)})
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "agent": agentName})
	})

	return router
}
