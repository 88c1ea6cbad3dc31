package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/msi-gate/assistant/internal/assistant"
	"github.com/msi-gate/assistant/internal/dblink"
	"github.com/msi-gate/assistant/internal/gateway"
	"github.com/msi-gate/assistant/internal/llm"
	"github.com/msi-gate/assistant/internal/metrics"
	"github.com/msi-gate/assistant/internal/server"
	"github.com/msi-gate/assistant/internal/store"
	"github.com/msi-gate/assistant/internal/tools"
	"github.com/msi-gate/assistant/internal/validation"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the assistant HTTP service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	model, err := llm.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize model: %w", err)
	}
	logger.Info("model initialized", "provider", cfg.Provider, "model", model.Name())

	pool, conversations, prompts, err := setupStorage(ctx)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	collector := metrics.NewCollector()
	policy := gateway.NewPolicy(cfg.AllowWriteActions)
	client := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayTimeout, logger)

	registry := tools.NewRegistry(logger)
	if cfg.EnableFunctionCalling {
		registry = tools.DefaultRegistry(client, policy, cfg.AggregateMaxPage, logger)
		logger.Info("tool catalog registered", "tools", registry.Count(), "writes_allowed", cfg.AllowWriteActions)
	} else {
		logger.Warn("function calling disabled, serving chat without tools")
	}

	orch := assistant.New(assistant.Options{
		Model:         model,
		Registry:      registry,
		Prompts:       assistant.NewPromptResolver(prompts, cfg.PromptCacheTTL, logger),
		Conversations: conversations,
		Collector:     collector,
		Logger:        logger,
		MaxHistory:    cfg.MaxHistory,
		MaxToolRounds: cfg.MaxToolRounds,
	})

	var (
		link      *dblink.Manager
		validator *validation.Service
	)
	if pool != nil {
		link = dblink.NewManager(pool, linkConfig(), logger)
		if err := link.EnsureReady(ctx, false); err != nil {
			logger.Warn("gate_sso link not ready at startup", "error", err)
		}
		validator = validation.NewService(validation.NewLinkCustomers(pool, link), model, logger)
	} else {
		logger.Warn("no database configured, customer validation disabled")
	}

	srv := server.New(server.Options{
		Orchestrator: orch,
		Validator:    validator,
		Collector:    collector,
		Link:         link,
		Logger:       logger,
	})

	if pool != nil {
		go purgeLoop(ctx, conversations)
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 120 * time.Second, // long, tool loops call the model repeatedly
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("assistant listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// setupStorage connects PostgreSQL and the optional Redis cache. Without a
// DATABASE_URL the service runs on in-memory conversations.
func setupStorage(ctx context.Context) (*pgxpool.Pool, store.ConversationStore, store.PromptStore, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("no DATABASE_URL, conversations are in-memory only")
		return nil, store.NewMemory(), nil, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := store.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	var conversations store.ConversationStore = store.NewConversations(pool)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		conversations = store.NewCachedConversations(conversations, rdb, logger)
		logger.Info("conversation cache enabled", "addr", cfg.RedisAddr)
	}

	return pool, conversations, store.NewPrompts(pool), nil
}

func linkConfig() dblink.Config {
	port, err := strconv.Atoi(cfg.LinkPort)
	if err != nil {
		port = 5432
	}
	return dblink.Config{
		Host:     cfg.LinkHost,
		Port:     port,
		Database: cfg.LinkDatabase,
		User:     cfg.LinkUser,
		Password: cfg.LinkPassword,
	}
}

// purgeLoop removes expired conversations hourly.
func purgeLoop(ctx context.Context, conversations store.ConversationStore) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := conversations.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("conversation purge failed", "error", err)
				continue
			}
			if purged > 0 {
				logger.Info("expired conversations purged", "count", purged)
			}
		}
	}
}
