package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/sashi/internal/activity"
	"github.com/ent0n29/sashi/internal/catalog"
	"github.com/ent0n29/sashi/internal/config"
	"github.com/ent0n29/sashi/internal/events"
	"github.com/ent0n29/sashi/internal/httpapi"
	"github.com/ent0n29/sashi/internal/inbox"
	"github.com/ent0n29/sashi/internal/notify"
	"github.com/ent0n29/sashi/internal/observability"
	"github.com/ent0n29/sashi/internal/queue"
	"github.com/ent0n29/sashi/internal/reliability"
	"github.com/ent0n29/sashi/internal/store"
	"github.com/ent0n29/sashi/internal/tasks"
	"github.com/ent0n29/sashi/internal/viewcache"
)

const (
	storeOpenAttempts = 5
	storeOpenBase     = 200 * time.Millisecond
	storeOpenCap      = 3 * time.Second
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Store    store.Store
	Cache    viewcache.Cache
	Hub      *events.Hub
	Recorder *activity.Recorder
	Services httpapi.Services
	Metrics  *observability.Metrics

	// Cleanup should be called on shutdown to release external resources (DB, cache client).
	Cleanup func() error
}

// Build wires the store, view cache, event hub and domain services behind
// the HTTP API, and starts the activity recorder.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger) (*BuildResult, error) {
	return build(ctx, cfg, log, observability.NewMetrics(cfg.MetricsNamespace))
}

func build(ctx context.Context, cfg config.Config, log zerolog.Logger, metrics *observability.Metrics) (*BuildResult, error) {
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}

	cache, err := viewcache.New(ctx, cfg.RedisURL)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("view cache init failed: %w", err)
	}

	hub := events.NewHub(metrics)
	notifications := notify.NewService(st, hub, metrics, log)
	feed := activity.NewService(st, metrics, log)
	recorder := activity.NewRecorder(feed, hub, log)
	recorder.Start(ctx)
	svc := httpapi.Services{
		Queue:         queue.NewService(st, hub, metrics, log),
		Tasks:         tasks.NewService(st, notifications, hub, metrics, log),
		Notifications: notifications,
		Inbox: inbox.NewService(st, hub, metrics, inbox.Limits{
			Default: cfg.InboxDefaultLimit,
			Landing: cfg.InboxLandingLimit,
			Max:     cfg.InboxMaxLimit,
		}, log),
		Catalog:  catalog.NewService(st, cache, cfg.ViewCacheTTL, metrics, log),
		Activity: feed,
	}
	api := httpapi.New(cfg, svc, st, hub, metrics, log)

	log.Info().
		Str("store_mode", st.Mode()).
		Str("cache_mode", cache.Mode()).
		Msg("components ready")

	cleanup := func() error {
		recorder.Stop()
		var errs []string
		if c, ok := cache.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if err := st.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Store:    st,
		Cache:    cache,
		Hub:      hub,
		Recorder: recorder,
		Services: svc,
		Metrics:  metrics,
		Cleanup:  cleanup,
	}, nil
}

// openStore retries transient connection failures so the service can start
// alongside its database.
func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (store.Store, error) {
	opts := store.Options{
		DatabaseURL: cfg.DatabaseURL,
		Path:        cfg.DatabasePath,
		Timeout:     cfg.StoreTimeout,
	}
	var st store.Store
	attempt := 0
	err := reliability.Retry(ctx, storeOpenAttempts, storeOpenBase, storeOpenCap, func(ctx context.Context) error {
		attempt++
		var err error
		st, err = store.NewStore(ctx, opts)
		if err != nil {
			log.Warn().Err(err).
				Int("attempt", attempt).
				Str("class", string(reliability.ClassifyStoreError(err))).
				Msg("store open failed")
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}
