package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/campuskit/parentassist/internal/config"
	dbRedis "github.com/campuskit/parentassist/internal/db/redis"
	"github.com/campuskit/parentassist/internal/domain"
	logpkg "github.com/campuskit/parentassist/internal/logger"
	"github.com/campuskit/parentassist/internal/metrics"
	conversationrepo "github.com/campuskit/parentassist/internal/repository/conversation"
	corpusrepo "github.com/campuskit/parentassist/internal/repository/corpus"
	"github.com/campuskit/parentassist/internal/repository/embcache"
	"github.com/campuskit/parentassist/internal/retry"
	"github.com/campuskit/parentassist/internal/source"
	"github.com/campuskit/parentassist/internal/translate"
	"github.com/campuskit/parentassist/internal/transport/httpapi"
	openaiTransport "github.com/campuskit/parentassist/internal/transport/openai"
	"github.com/campuskit/parentassist/internal/transport/tcpserver"
	answeruc "github.com/campuskit/parentassist/internal/usecase/answer"
	ingestuc "github.com/campuskit/parentassist/internal/usecase/ingest"
	"github.com/campuskit/parentassist/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting parentassist server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Int("tcp_port", cfg.TCP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// Build embedder chain — composition root
	var embedder domain.Embedder = openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})
	if cfg.Embedding.Cache {
		embedder = embcache.New(embedder, store, cfg.Storage.KeyPrefix, metrics.EmbeddingCacheTotal, logger)
	}
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cfg.Embedding.Cache),
	)

	completer := openaiTransport.NewCompleter(&openaiTransport.CompleterConfig{
		APIKey:      cfg.Completion.APIKey,
		BaseURL:     cfg.Completion.BaseURL,
		Model:       cfg.Completion.Model,
		Temperature: cfg.Completion.Temperature,
		Provider:    "openai",
		Logger:      logger,
	})

	var translator answeruc.Translator = translate.Passthrough{}
	if cfg.Translation.Mode == "llm" {
		translator = translate.NewLLM(completer)
	}

	// Repositories and use case services
	corpus := corpusrepo.New(store, cfg.Storage.KeyPrefix)
	conversations := conversationrepo.New(store, cfg.Storage.KeyPrefix)
	documents := source.NewDir(cfg.Ingest.Dir, logger)

	ingestSvc := ingestuc.New(documents, corpus, embedder, logger,
		ingestuc.WithChunkSize(cfg.Ingest.ChunkSize))

	answerSvc := answeruc.New(corpus, ingestSvc, embedder, completer, translator, logger,
		answeruc.WithTopK(cfg.Completion.TopK),
		answeruc.WithRetry(retry.Policy{
			MaxAttempts: cfg.Completion.MaxAttempts,
			Delay:       time.Duration(cfg.Completion.RetryDelaySec) * time.Second,
		}),
		answeruc.WithCompletionTimeout(time.Duration(cfg.Completion.AttemptTimeoutSec)*time.Second),
	)

	if cfg.Ingest.OnStart {
		go func() {
			stored, err := ingestSvc.Ingest(ctx)
			if err != nil {
				logger.Error("Startup ingestion failed", zap.Error(err))
				return
			}
			logger.Info("Startup ingestion done", zap.Int("stored_chunks", stored))
		}()
	}

	// HTTP server
	api := httpapi.NewServer(answerSvc, conversations, store, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	api.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// TCP server
	tcpSrv := tcpserver.New(
		fmt.Sprintf(":%d", cfg.TCP.Port),
		answerSvc,
		logger,
		time.Duration(cfg.TCP.ReadTimeoutSec)*time.Second,
	)
	tcpCtx, tcpCancel := context.WithCancel(ctx)
	defer tcpCancel()

	tcpDone := make(chan error, 1)
	go func() { tcpDone <- tcpSrv.ListenAndServe(tcpCtx) }()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	select {
	case <-quit:
		logger.Info("Received shutdown signal")
	case err := <-tcpDone:
		logger.Error("TCP server stopped unexpectedly", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during HTTP shutdown", zap.Error(err))
	}

	tcpCancel()
	select {
	case <-tcpDone:
	case <-shutdownCtx.Done():
		logger.Error("TCP server did not stop in time")
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"error":   "Internal Server Error",
						"details": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
