package integration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/metrics"
)

// Outcome labels recorded per sync run.
const (
	OutcomeSuccess    = "success"
	OutcomeNotFound   = "not_found"
	OutcomeInvalid    = "invalid"
	OutcomeInProgress = "in_progress"
	OutcomeExpired    = "credential_expired"
	OutcomeRemote     = "remote_error"
	OutcomeTransport  = "transport_error"
	OutcomeFailed     = "failed"
)

const (
	defaultLockTTL = 2 * time.Minute
	// Unregistered names share one label value.
	unknownProviderLabel = "unknown"
)

// Orchestrator is the entry point for user-triggered syncs. It resolves the
// adapter, serializes runs per (user, provider) and translates failures into
// *internal.AppError values the API layer can render.
type Orchestrator struct {
	registry *Registry
	engine   *Engine
	locker   Locker
	lockTTL  time.Duration
	metrics  *metrics.Collector
	logger   internal.Logger
}

type OrchestratorOption func(*Orchestrator)

// WithLocker installs a lock guarding concurrent syncs of the same pair.
func WithLocker(l Locker, ttl time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.locker = l
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

func WithMetrics(m *metrics.Collector) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

func NewOrchestrator(registry *Registry, engine *Engine, logger internal.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		engine:   engine,
		lockTTL:  defaultLockTTL,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Providers lists the provider names this orchestrator can sync.
func (o *Orchestrator) Providers() []string {
	return o.registry.Providers()
}

// RunSync synchronizes providerName for userID and returns the newly created
// entries. Every error it returns is an *internal.AppError.
func (o *Orchestrator) RunSync(ctx context.Context, userID, providerName string) ([]internal.TimelineEntry, error) {
	start := time.Now()

	adapter, ok := o.registry.Lookup(providerName)
	if !ok {
		appErr, outcome := translate(providerName, ErrProviderNotFound)
		o.metrics.ObserveSync(unknownProviderLabel, outcome, 0, time.Since(start))
		o.logger.Warnf("sync requested for unknown provider %q by user %s", providerName, userID)
		return nil, appErr
	}
	provider := adapter.Provider()

	if o.locker != nil {
		unlock, acquired, err := o.locker.TryLock(ctx, syncLockKey(userID, provider), o.lockTTL)
		switch {
		case err != nil:
			// Storage-level uniqueness still holds without the lock.
			o.logger.Warnf("sync %s: lock unavailable for user %s, continuing unguarded: %v", provider, userID, err)
		case !acquired:
			return nil, o.fail(provider, userID, start, ErrSyncInProgress)
		default:
			defer unlock()
		}
	}

	created, err := o.engine.Synchronize(ctx, adapter, userID, providerName)
	if err != nil {
		return nil, o.fail(provider, userID, start, err)
	}
	o.metrics.ObserveSync(provider, OutcomeSuccess, len(created), time.Since(start))
	return created, nil
}

func (o *Orchestrator) fail(provider, userID string, start time.Time, err error) error {
	appErr, outcome := translate(provider, err)
	o.metrics.ObserveSync(provider, outcome, 0, time.Since(start))
	if appErr.Code >= http.StatusInternalServerError {
		o.logger.Errorf("sync %s failed for user %s: %v", provider, userID, err)
	} else {
		o.logger.Warnf("sync %s rejected for user %s: %v", provider, userID, err)
	}
	return appErr
}

// translate maps engine failures onto API errors. Remote and transport
// failures surface as 400s carrying a hint for the user.
func translate(provider string, err error) (*internal.AppError, string) {
	var (
		remote    *RemoteAPIError
		transport *TransportError
	)
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return internal.NewAppError(http.StatusBadRequest, err.Error()), OutcomeInvalid
	case errors.Is(err, ErrProviderNotFound):
		return internal.NewAppError(http.StatusNotFound, fmt.Sprintf("No service found for provider: %s", provider)), OutcomeNotFound
	case errors.Is(err, ErrSyncInProgress):
		return internal.NewAppError(http.StatusConflict, fmt.Sprintf("A %s sync is already running for this account", provider)), OutcomeInProgress
	case errors.Is(err, ErrCredentialExpired):
		return internal.NewAppError(http.StatusBadRequest, fmt.Sprintf("The %s credential has expired. Please reconnect your %s account.", provider, provider)), OutcomeExpired
	case errors.As(err, &remote):
		msg := fmt.Sprintf("API call failed for %s: status %d: %s. Please check your connection or reconnect your account.", provider, remote.StatusCode, remote.Body)
		return internal.NewAppError(http.StatusBadRequest, msg), OutcomeRemote
	case errors.As(err, &transport):
		msg := fmt.Sprintf("API call failed for %s: %v. Please try again later.", provider, transport.Err)
		return internal.NewAppError(http.StatusBadRequest, msg), OutcomeTransport
	default:
		return internal.NewAppError(http.StatusInternalServerError, fmt.Sprintf("An unexpected error occurred while syncing %s", provider)), OutcomeFailed
	}
}
