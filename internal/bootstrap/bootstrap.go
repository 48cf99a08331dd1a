package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/config"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/integration"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/metrics"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/storage"
)

// ErrProcessLocal marks configured state that a second process, such as
// timelinectl next to a running server, cannot safely share.
var ErrProcessLocal = errors.New("state is not shared between processes")

// CheckShared reports whether cfg lets another process write next to a
// running server. The file backend is held in memory by each process and
// flushed wholesale. Syncs additionally need the redis lock.
func CheckShared(cfg *config.Config, syncing bool) error {
	if cfg.DBType == "file" {
		return fmt.Errorf("%w: STORAGE_BACKEND=file is owned by a single process", ErrProcessLocal)
	}
	if syncing && cfg.LockBackend != "redis" {
		return fmt.Errorf("%w: LOCK_BACKEND=%s only guards syncs within one process", ErrProcessLocal, cfg.LockBackend)
	}
	return nil
}

// Runtime is the set of long-lived components shared by the server and the
// operator CLI.
type Runtime struct {
	Config       *config.Config
	Logger       internal.Logger
	Store        storage.Store
	Orchestrator *integration.Orchestrator
	Metrics      *metrics.Collector

	redis *redis.Client
}

// New opens storage, builds the provider registry and the sync lock
// selected by cfg.
func New(ctx context.Context, cfg *config.Config, logger internal.Logger) (*Runtime, error) {
	store, err := storage.FromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	rt := &Runtime{Config: cfg, Logger: logger, Store: store, Metrics: metrics.NewCollector("timeline")}

	locker, err := rt.locker(ctx)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	rt.Orchestrator = integration.NewOrchestrator(
		NewRegistry(cfg, logger),
		integration.NewEngine(store, store, logger),
		logger,
		integration.WithLocker(locker, cfg.LockTTL),
		integration.WithMetrics(rt.Metrics),
	)
	return rt, nil
}

// NewRegistry registers every supported provider adapter.
func NewRegistry(cfg *config.Config, logger internal.Logger) *integration.Registry {
	remote := func(baseURL string) integration.RemoteOptions {
		return integration.RemoteOptions{BaseURL: baseURL, UserAgent: cfg.SyncUserAgent, Timeout: cfg.SyncHTTPTimeout}
	}
	return integration.NewRegistry(
		integration.NewGitHubAdapter(remote(cfg.GitHubAPIURL), logger),
		integration.NewNotionAdapter(integration.NotionOptions{RemoteOptions: remote(cfg.NotionAPIURL), Version: cfg.NotionVersion}, logger),
	)
}

func (rt *Runtime) locker(ctx context.Context) (integration.Locker, error) {
	if rt.Config.LockBackend != "redis" {
		return integration.NewMemoryLocker(), nil
	}
	rt.redis = redis.NewClient(&redis.Options{Addr: rt.Config.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rt.redis.Ping(pingCtx).Err(); err != nil {
		_ = rt.redis.Close()
		return nil, fmt.Errorf("connect redis at %s: %w", rt.Config.RedisAddr, err)
	}
	rt.Logger.Infof("sync locks backed by redis at %s", rt.Config.RedisAddr)
	return integration.NewRedisLocker(rt.redis), nil
}

func (rt *Runtime) Close() error {
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	return rt.Store.Close()
}
