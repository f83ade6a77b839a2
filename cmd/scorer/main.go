package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	app_service "token-score-engine/internal/application/service"
	"token-score-engine/internal/domain/entity"
	"token-score-engine/internal/domain/repository"
	domain_service "token-score-engine/internal/domain/service"
	"token-score-engine/internal/infrastructure/blockchain"
	"token-score-engine/internal/infrastructure/cache"
	"token-score-engine/internal/infrastructure/config"
	"token-score-engine/internal/infrastructure/database"
	"token-score-engine/internal/infrastructure/logger"
	"token-score-engine/internal/infrastructure/messaging"
	"token-score-engine/internal/infrastructure/provider"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.NewLogger(cfg.App.LogLevel, cfg.App.Env)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	// Create FX application
	app := fx.New(
		// Provide dependencies
		fx.Supply(cfg),
		fx.Supply(log),
		fx.Supply(&cfg.NATS),
		fx.Supply(&cfg.Neo4J),
		fx.Provide(func() *zap.Logger { return log.Logger }),

		// Infrastructure providers
		fx.Provide(
			newCacheStore,
			newCached,
			newRetry,
			newEthereumClient,
			func(ec *blockchain.EthereumClient) domain_service.ChainStateReader { return ec },
			func(chain domain_service.ChainStateReader, cfg *config.Config, log *logger.Logger) *blockchain.DeepDataSource {
				return blockchain.NewDeepDataSource(chain, &cfg.Chain, log)
			},
			database.NewNeo4JClient,
			newScoreRepository,
			messaging.NewNATSConsumer,
			messaging.NewNATSPublisher,
		),

		// Application providers
		fx.Provide(
			newActivityAnalyzer,
			newHolderAnalyzer,
			newPermissionAnalyzer,
			newScoringService,
		),

		// Lifecycle hooks
		fx.Invoke(startScorer),
		fx.Invoke(startHTTPServer),
		fx.Invoke(startCacheSweeper),

		// Configure logging
		fx.WithLogger(func() fxevent.Logger {
			return fxevent.NopLogger
		}),
	)

	// Start the application
	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Error("Failed to start application", zap.Error(err))
		os.Exit(1)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down application...")

	// Stop the application
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Stop(stopCtx); err != nil {
		log.Error("Failed to stop application gracefully", zap.Error(err))
		os.Exit(1)
	}

	log.Info("Application stopped successfully")
}

// newCacheStore picks the persistent SQLite store when a path is
// configured, otherwise an in-memory store
func newCacheStore(cfg *config.Config, log *logger.Logger) (repository.CacheStore, error) {
	if cfg.Cache.Path == "" {
		log.Info("No cache path configured, using in-memory cache")
		return cache.NewMemoryStore(), nil
	}
	return cache.NewSQLiteStore(cfg.Cache.Path, log)
}

func newCached(store repository.CacheStore, log *logger.Logger) *cache.Cached {
	return cache.NewCached(store, log)
}

func newRetry(cfg *config.Config, log *logger.Logger) *cache.Retry {
	return cache.NewRetry(cfg.Retry.MaxRetries, cfg.Retry.BaseDelay, log)
}

func newEthereumClient(cfg *config.Config, log *logger.Logger) (*blockchain.EthereumClient, error) {
	return blockchain.NewEthereumClient(cfg.Chain.RPCURL, log)
}

// newScoreRepository returns the Neo4J-backed history store, or nil when
// score history is disabled
func newScoreRepository(cfg *config.Config, client *database.Neo4JClient, log *logger.Logger) repository.ScoreRepository {
	if !cfg.Neo4J.Enabled {
		return nil
	}
	return database.NewNeo4JScoreRepository(client, log)
}

func newActivityAnalyzer(cached *cache.Cached, retry *cache.Retry, cfg *config.Config, log *logger.Logger) *app_service.ActivityAnalyzer {
	return app_service.NewActivityAnalyzer(cached, retry, cfg.Cache.TTL, log)
}

func newHolderAnalyzer(cached *cache.Cached, retry *cache.Retry, chain domain_service.ChainStateReader, cfg *config.Config, log *logger.Logger) *app_service.HolderAnalyzer {
	return app_service.NewHolderAnalyzer(cached, retry, chain, cfg.Cache.TTL, log)
}

func newPermissionAnalyzer(chain domain_service.ChainStateReader, cached *cache.Cached, retry *cache.Retry, cfg *config.Config, log *logger.Logger) *app_service.PermissionAnalyzer {
	return app_service.NewPermissionAnalyzer(chain, cached, retry, cfg.Cache.TTL, log)
}

// newScoringService assembles the orchestrator. The fast path is wired in
// only when the indexed provider is configured; without it auto mode runs
// deep scans.
func newScoringService(
	deep *blockchain.DeepDataSource,
	chain domain_service.ChainStateReader,
	activity *app_service.ActivityAnalyzer,
	holder *app_service.HolderAnalyzer,
	permission *app_service.PermissionAnalyzer,
	scores repository.ScoreRepository,
	cfg *config.Config,
	log *logger.Logger,
) *app_service.ScoringService {
	var fast domain_service.DataSource
	if cfg.Provider.Enabled && cfg.Provider.APIKey != "" {
		client := provider.NewIndexedClient(&cfg.Provider, log)
		fast = provider.NewFastDataSource(client, log)
	} else {
		log.Info("Indexed provider not configured, auto mode will use on-chain scans")
	}

	return app_service.NewScoringService(fast, deep, chain, activity, holder, permission, scores, cfg, log)
}

// startScorer wires the NATS request feed into a scoring worker pool
func startScorer(
	lifecycle fx.Lifecycle,
	consumer *messaging.NATSConsumer,
	publisher *messaging.NATSPublisher,
	scoringService *app_service.ScoringService,
	neo4jClient *database.Neo4JClient,
	log *zap.Logger,
	cfg *config.Config,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting scoring service...")

			if cfg.Neo4J.Enabled {
				log.Info("Connecting to Neo4J database")
				if err := neo4jClient.Connect(ctx); err != nil {
					return fmt.Errorf("failed to connect to Neo4J: %w", err)
				}
			}

			if err := consumer.Connect(ctx); err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}

			go processRequests(consumer, publisher, scoringService, log, cfg)

			log.Info("Scoring service started successfully")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping scoring service...")
			if cfg.Neo4J.Enabled {
				if err := neo4jClient.Close(ctx); err != nil {
					log.Error("Failed to close Neo4J connection", zap.Error(err))
				}
			}
			return consumer.Disconnect()
		},
	})
}

// processRequests runs the scoring worker pool over the NATS request
// channel until it closes
func processRequests(
	consumer *messaging.NATSConsumer,
	publisher *messaging.NATSPublisher,
	scoringService *app_service.ScoringService,
	log *zap.Logger,
	cfg *config.Config,
) {
	reqChan := consumer.GetRequestChannel()
	var wg sync.WaitGroup

	for i := 0; i < cfg.App.WorkerPoolSize; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			log.Info("Starting scoring worker", zap.Int("worker_id", workerID))

			for req := range reqChan {
				ctx := context.Background()
				result, err := scoringService.ScoreToken(ctx, *req)
				if err != nil {
					log.Error("Failed to score token",
						zap.Error(err),
						zap.Int("worker_id", workerID),
						zap.String("token", req.TokenAddress))
					continue
				}

				if err := publisher.PublishResult(ctx, result); err != nil {
					log.Error("Failed to publish result",
						zap.Error(err),
						zap.String("token", req.TokenAddress))
				}
			}
		}(i)
	}

	wg.Wait()
	log.Info("Scoring workers stopped")
}

// startHTTPServer starts the health and scoring HTTP API
func startHTTPServer(
	lifecycle fx.Lifecycle,
	scoringService *app_service.ScoringService,
	scores repository.ScoreRepository,
	cfg *config.Config,
	logger *logger.Logger,
) {
	var server *http.Server

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting HTTP server...", zap.Int("port", cfg.App.HTTPPort))

			mux := http.NewServeMux()
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"status":"ok"}`))
			})
			mux.HandleFunc("/score", handleScore(scoringService))
			mux.HandleFunc("/history", handleHistory(scores))

			server = &http.Server{
				Addr:    fmt.Sprintf(":%d", cfg.App.HTTPPort),
				Handler: mux,
			}

			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", zap.Error(err))
				}
			}()

			logger.Info("HTTP server started successfully")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server...")
			if server != nil {
				return server.Shutdown(ctx)
			}
			return nil
		},
	})
}

// handleScore serves GET /score?token=0x...&mode=auto&window=1&limit=1000
func handleScore(scoringService *app_service.ScoringService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		q := r.URL.Query()
		req := entity.ScoreRequest{
			TokenAddress: q.Get("token"),
			Mode:         entity.AnalysisMode(q.Get("mode")),
		}
		if v := q.Get("window"); v != "" {
			if hours, err := strconv.Atoi(v); err == nil {
				req.TimeWindowHours = hours
			}
		}
		if v := q.Get("limit"); v != "" {
			if limit, err := strconv.Atoi(v); err == nil {
				req.Limit = limit
			}
		}

		result, err := scoringService.ScoreToken(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// handleHistory serves GET /history?token=0x...&limit=10
func handleHistory(scores repository.ScoreRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if scores == nil {
			http.Error(w, `{"error":"score history is disabled"}`, http.StatusNotImplemented)
			return
		}

		token := r.URL.Query().Get("token")
		if !entity.IsValidAddress(token) {
			http.Error(w, `{"error":"invalid token address"}`, http.StatusBadRequest)
			return
		}

		limit := 10
		if v := r.URL.Query().Get("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
				limit = parsed
			}
		}

		history, err := scores.GetScoreHistory(r.Context(), token, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":   token,
			"history": history,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var validationErr *domain_service.ValidationError
	if errors.As(err, &validationErr) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// startCacheSweeper periodically evicts expired cache rows
func startCacheSweeper(
	lifecycle fx.Lifecycle,
	store repository.CacheStore,
	cfg *config.Config,
	logger *logger.Logger,
) {
	stop := make(chan struct{})

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			interval := cfg.Cache.SweepInterval
			if interval <= 0 {
				return nil
			}

			go func() {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				for {
					select {
					case <-stop:
						return
					case <-ticker.C:
						removed, err := store.Sweep(context.Background())
						if err != nil {
							logger.Warn("Cache sweep failed", zap.Error(err))
						} else if removed > 0 {
							logger.Debug("Cache sweep completed", zap.Int("removed", removed))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stop)
			return nil
		},
	})
}
