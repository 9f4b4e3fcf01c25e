// Package app wires the translator server runtime: config, logging, metrics,
// the message store, the change-feed gateway, and the REST surface.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/ai"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/api"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/blob"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/chat"
	"github.com/AKHILESH2208/healthcare-translator/cmd/internal/realtime"
)

// Store is a small app-level lifecycle abstraction for closable persistence
// resources.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

// App owns the wired server: HTTP surface, change-feed gateway, and the
// persistence and AI collaborators behind them.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	messages chat.Store
	hub      *realtime.Hub
	ws       *realtime.WSGateway
	rest     *api.Handler

	registry *prometheus.Registry
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	registry := newMetricsRegistry()

	st, dbPool, dbEnabled, messages, err := newMessageStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	hub := realtime.NewHub(log, realtime.NewMetrics(registry))
	ws := realtime.NewWSGateway(log, hub, nil)

	aiClient := ai.NewClient(log, ai.Config{
		BaseURL:         cfg.AIBaseURL,
		APIKey:          cfg.AIAPIKey,
		TranslateModel:  cfg.AITranslateModel,
		TranscribeModel: cfg.AITranscribeModel,
		SummaryModel:    cfg.AISummaryModel,
		AssistModel:     cfg.AIAssistModel,
		Timeout:         cfg.AITimeout,
	}, ai.WithMetrics(ai.NewMetrics(registry)))

	blobs, err := blob.NewDiskStore(log, cfg.MediaDir, "/media")
	if err != nil {
		if cErr := st.Close(context.Background()); cErr != nil {
			log.Error("store.close.fail", "err", cErr)
		}
		return nil, err
	}

	rest := api.NewHandler(log, api.Config{
		RateRPS:   cfg.APIRateRPS,
		RateBurst: cfg.APIRateBurst,
	}, messages, hub, api.Services{
		Translator:  aiClient,
		Transcriber: aiClient,
		Summarizer:  aiClient,
		Assistant:   aiClient,
	},
		api.WithMetrics(api.NewMetrics(registry)),
		api.WithBlobStore(blobs),
	)

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		messages:  messages,
		hub:       hub,
		ws:        ws,
		rest:      rest,
		registry:  registry,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	handler := a.routes()
	handler = WithCORS(handler, a.cfg, a.log)
	handler = WithSecurityHeaders(handler)
	handler = WithRequestLogging(handler, a.log)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"db_enabled", a.dbEnabled,
		"base_url", runtimeBaseURL(a.cfg.HTTPAddr),
		"feed_url", wsBaseURL(runtimeBaseURL(a.cfg.HTTPAddr))+"/ws",
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newMessageStore decides between Postgres-backed persistence and the
// in-memory dev store.
func newMessageStore(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, bool, chat.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return nopStore{}, nil, false, chat.NewMemoryStore(), nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, nil, err
	}

	log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)

	// Ownership model: the app owns the pool lifecycle; PostgresStore.Close
	// is a no-op.
	messages, err := chat.NewPostgresStore(pool, chat.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, false, nil, err
	}

	return dbStore{pool: pool, messages: messages}, pool, true, messages, nil
}

type dbStore struct {
	pool     *pgxpool.Pool
	messages chat.Store
}

func (s dbStore) Close(_ context.Context) error {
	if s.messages != nil {
		_ = s.messages.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
