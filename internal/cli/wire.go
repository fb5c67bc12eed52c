package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/ppiankov/gazette/internal/cache"
	"github.com/ppiankov/gazette/internal/logger"
	"github.com/ppiankov/gazette/internal/model"
	"github.com/ppiankov/gazette/internal/monitor"
	"github.com/ppiankov/gazette/internal/sources"
	"github.com/ppiankov/gazette/internal/store"
	"github.com/ppiankov/gazette/internal/worker"
)

// app holds everything one command needs; close releases it
type app struct {
	cfg      *model.Config
	log      *slog.Logger
	registry *sources.Registry
	store    *store.SQLStore
	monitor  *monitor.Orchestrator
	closers  []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", "err", err)
		}
	}
}

// newTokenStore picks the credential cache backend
func newTokenStore(cfg model.CacheConfig) (cache.TokenStore, func() error) {
	if cfg.Backend == "redis" {
		rs := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		return rs, rs.Close
	}
	return cache.NewMemoryStore(cfg.DefaultTTL, cfg.CleanupInterval), func() error { return nil }
}

// newAdapters builds one adapter per registry entry sharing a client,
// a credential cache and a pacing limiter
func newAdapters(cfg *model.Config, reg *sources.Registry, v *viper.Viper, log *slog.Logger) ([]sources.Adapter, func() error, error) {
	client, err := sources.NewClient(cfg.HTTP)
	if err != nil {
		return nil, nil, fmt.Errorf("http client: %w", err)
	}

	tokens, closeTokens := newTokenStore(cfg.Cache)
	auth := sources.NewAuthenticator(client, cache.NewCredentialCache(tokens, cfg.Cache.DefaultTTL), sources.NewEnvCredentials(v))

	opts := sources.Options{
		Client:       client,
		Auth:         auth,
		Limiter:      worker.NewLimiter(0, 0),
		Logger:       log,
		Timeout:      cfg.HTTP.Timeout,
		LookbackDays: cfg.Monitor.LookbackDays,
		MaxContent:   cfg.Monitor.MaxContentLength,
		MaxTitle:     cfg.Monitor.MaxTitleLength,
	}

	descs := reg.All()
	adapters := make([]sources.Adapter, 0, len(descs))
	for _, d := range descs {
		adapters = append(adapters, sources.NewAdapter(d, opts))
	}
	return adapters, closeTokens, nil
}

// newApp wires configuration, registry, store and orchestrator
func newApp(ctx context.Context, v *viper.Viper) (*app, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: logger.New(cfg.Logging.Level)}

	a.registry, err = sources.LoadRegistry(cfg.Monitor.SourcesFile)
	if err != nil {
		return nil, err
	}

	a.store, err = store.New(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)

	adapters, closeTokens, err := newAdapters(cfg, a.registry, v, a.log)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, closeTokens)

	a.monitor, err = monitor.New(adapters, a.store, monitor.Options{
		Workers:      cfg.Concurrency.Workers,
		DedupePrefix: cfg.Monitor.DedupePrefix,
		Recorder:     a.store,
		Logger:       a.log,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	return a, nil
}
