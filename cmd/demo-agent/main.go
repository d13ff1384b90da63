// Command demo-agent serves canned Solana answers over the OpenAI chat
// completions and webhook protocols, for use as the gateway's fallback agent.
package main

import (
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/agentgate/internal/logging"
)

func main() {
	logger := logging.New(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), os.Stdout)
	slog.SetDefault(logger)

	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}

	logger.Info("demo agent running", "agent", agentName, "url", "http://localhost:"+port)
	if err := setupRouter().Run(":" + port); err != nil {
		logger.Error("failed to start demo agent", "error", err)
		os.Exit(1)
	}
}
