package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/agentgate/adapters/events"
	"github.com/layer-3/agentgate/adapters/registry"
	"github.com/layer-3/agentgate/adapters/relay"
	"github.com/layer-3/agentgate/adapters/store"
	"github.com/layer-3/agentgate/adapters/tokenizer"
	"github.com/layer-3/agentgate/config"
	"github.com/layer-3/agentgate/internal/logging"
	"github.com/layer-3/agentgate/ports"
	"github.com/layer-3/agentgate/service"
	transport "github.com/layer-3/agentgate/transport/http"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", os.Getenv("AGENTGATE_CONFIG"), "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "agentgate: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	slog.SetDefault(logger)
	gin.SetMode(cfg.Server.GinMode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var redisClient *redis.Client
	if cfg.NonceStore.Driver == config.DriverRedis || cfg.Events.Driver == config.DriverRedis {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach Redis: %w", err)
		}
	}

	var nonces ports.NonceStore
	switch cfg.NonceStore.Driver {
	case config.DriverRedis:
		nonces = store.NewRedisStore(redisClient, cfg.Auth.NonceTTL.Std())
	default:
		nonces = store.NewMemoryStore(cfg.Auth.NonceTTL.Std())
	}

	publisher, err := newPublisher(ctx, cfg, redisClient, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	assets, err := registry.NewDASRegistry(ctx, cfg.Registry.RPCURL, cfg.Registry.Timeout.Std())
	if err != nil {
		return err
	}
	defer assets.Close()

	tokens := tokenizer.NewJWTTokenizer([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)
	agentRelay := relay.NewHTTPRelay(relay.Config{
		Timeout:              cfg.Relay.Timeout.Std(),
		BlockPrivateNetworks: cfg.Relay.BlockPrivateNetworks,
	})

	authService := service.NewAuthService(
		nonces,
		tokens,
		assets,
		events.NewWatermillPublisher(publisher, cfg.Events.Topic),
		logger.With("component", "auth"),
		service.AuthConfig{
			SessionTTL:     cfg.Auth.SessionTTL.Std(),
			AllowedDomains: cfg.Auth.AllowedDomains,
		},
	)
	chatService := service.NewChatService(
		tokens,
		assets,
		agentRelay,
		logger.With("component", "chat"),
		service.ChatConfig{
			FallbackEndpoint:     cfg.Relay.FallbackEndpoint,
			AllowUnauthenticated: cfg.Relay.AllowUnauthenticated,
			RevalidateOwnership:  cfg.Relay.RevalidateOwnership,
		},
	)

	router := transport.SetupRouter(authService, chatService, logger, transport.RouterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	})

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("agentgate listening",
			"addr", cfg.Server.HTTPAddr,
			"nonce_store", cfg.NonceStore.Driver,
			"events", cfg.Events.Driver,
			"allow_unauthenticated", cfg.Relay.AllowUnauthenticated,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}

// newPublisher returns the event publisher selected by the config.
// The in-process channel is drained into the debug log.
func newPublisher(ctx context.Context, cfg *config.Config, client *redis.Client, logger *slog.Logger) (message.Publisher, error) {
	wmLogger := watermill.NewSlogLogger(logger.With("component", "events"))

	if cfg.Events.Driver == config.DriverRedis {
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: client,
			},
			wmLogger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis publisher: %w", err)
		}
		return publisher, nil
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
	messages, err := pubSub.Subscribe(ctx, cfg.Events.Topic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}

	go func() {
		for msg := range messages {
			logger.Debug("auth event", "type", msg.Metadata.Get("type"), "payload", string(msg.Payload))
			msg.Ack()
		}
	}()

	return pubSub, nil
}
