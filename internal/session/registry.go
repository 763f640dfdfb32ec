package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-session/internal/domain/cart"
	"github.com/xenking/kart-session/internal/reconcile"
)

const instrumentationName = "github.com/xenking/kart-session/internal/session"

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Session holds defaults for every opened session. View is ignored.
	Session Options
	// TTL is how long a session may stay idle before it is evicted.
	// Zero disables eviction.
	TTL time.Duration

	Publisher      reconcile.Publisher
	Logger         *zap.Logger
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

type entry struct {
	session  *Session
	lastUsed time.Time
}

// Registry tracks open sessions by ID.
type Registry struct {
	store     cart.Store
	cfg       RegistryConfig
	publisher reconcile.Publisher
	lg        *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time

	opened  metric.Int64Counter
	closed  metric.Int64Counter
	evicted metric.Int64Counter
	active  metric.Int64UpDownCounter

	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry
}

// NewRegistry creates a registry opening sessions over store.
func NewRegistry(store cart.Store, cfg RegistryConfig) (*Registry, error) {
	if cfg.Publisher == nil {
		cfg.Publisher = reconcile.NopPublisher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = metricnoop.NewMeterProvider()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = tracenoop.NewTracerProvider()
	}

	r := &Registry{
		store:     store,
		cfg:       cfg,
		publisher: cfg.Publisher,
		lg:        cfg.Logger,
		tracer:    cfg.TracerProvider.Tracer(instrumentationName),
		now:       time.Now,
		sessions:  make(map[uuid.UUID]*entry),
	}

	meter := cfg.MeterProvider.Meter(instrumentationName)
	var err error
	if r.opened, err = meter.Int64Counter("kart.session.opened",
		metric.WithDescription("Cart sessions opened"),
	); err != nil {
		return nil, errors.Wrap(err, "opened counter")
	}
	if r.closed, err = meter.Int64Counter("kart.session.closed",
		metric.WithDescription("Cart sessions closed by the client"),
	); err != nil {
		return nil, errors.Wrap(err, "closed counter")
	}
	if r.evicted, err = meter.Int64Counter("kart.session.evicted",
		metric.WithDescription("Cart sessions evicted after idling"),
	); err != nil {
		return nil, errors.Wrap(err, "evicted counter")
	}
	if r.active, err = meter.Int64UpDownCounter("kart.session.active",
		metric.WithDescription("Cart sessions currently open"),
	); err != nil {
		return nil, errors.Wrap(err, "active counter")
	}
	return r, nil
}

// Open starts a session. A non-positive pageSize uses the configured default.
func (r *Registry) Open(ctx context.Context, pageSize int) (uuid.UUID, *Session, error) {
	ctx, span := r.tracer.Start(ctx, "session.Open")
	defer span.End()

	opts := r.cfg.Session
	opts.View = nil
	if pageSize > 0 {
		opts.PageSize = pageSize
	}
	id := uuid.New()
	opts.Logger = r.lg.With(zap.Stringer("session", id))

	s, err := Open(ctx, r.store, opts)
	if err != nil {
		span.RecordError(err)
		return uuid.Nil, nil, errors.Wrap(err, "open session")
	}
	span.SetAttributes(attribute.String("session.id", id.String()))

	r.mu.Lock()
	r.sessions[id] = &entry{session: s, lastUsed: r.now()}
	r.mu.Unlock()

	r.opened.Add(ctx, 1)
	r.active.Add(ctx, 1)
	r.lg.Debug("Session opened", zap.Stringer("session", id), zap.Int("page_size", s.pageSize))
	return id, s, nil
}

// Get returns the open session with the given ID and marks it used.
func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.lastUsed = r.now()
	return e.session, nil
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close ends the session, publishes its difference when non-empty and
// returns it. A publishing failure is logged; the difference is still
// returned to the caller.
func (r *Registry) Close(ctx context.Context, id uuid.UUID) (reconcile.Difference, bool, error) {
	ctx, span := r.tracer.Start(ctx, "session.Close",
		trace.WithAttributes(attribute.String("session.id", id.String())),
	)
	defer span.End()

	s, ok := r.take(id)
	if !ok {
		return reconcile.Difference{}, false, ErrSessionNotFound
	}
	d, changed, err := r.finish(ctx, id, s)
	if err != nil {
		span.RecordError(err)
		return reconcile.Difference{}, false, err
	}
	r.closed.Add(ctx, 1)
	span.SetAttributes(attribute.Bool("session.changed", changed))
	return d, changed, nil
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were evicted.
func (r *Registry) Sweep(ctx context.Context) int {
	if r.cfg.TTL <= 0 {
		return 0
	}
	now := r.now()

	var stale []uuid.UUID
	r.mu.RLock()
	for id, e := range r.sessions {
		if now.Sub(e.lastUsed) > r.cfg.TTL {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	n := r.evict(ctx, stale)
	if n > 0 {
		r.lg.Info("Evicted idle sessions", zap.Int("count", n))
	}
	return n
}

// CloseAll closes every open session, publishing their differences. It is
// used on shutdown.
func (r *Registry) CloseAll(ctx context.Context) int {
	r.mu.RLock()
	ids := make([]uuid.UUID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	return r.evict(ctx, ids)
}

func (r *Registry) evict(ctx context.Context, ids []uuid.UUID) int {
	n := 0
	for _, id := range ids {
		s, ok := r.take(id)
		if !ok {
			continue
		}
		if _, _, err := r.finish(ctx, id, s); err != nil {
			r.lg.Warn("Evict session", zap.Stringer("session", id), zap.Error(err))
		}
		r.evicted.Add(ctx, 1)
		n++
	}
	return n
}

// StartSweeper evicts idle sessions every interval until ctx is cancelled.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	if r.cfg.TTL <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep(ctx)
			}
		}
	}()
}

func (r *Registry) take(id uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	return e.session, true
}

func (r *Registry) finish(ctx context.Context, id uuid.UUID, s *Session) (reconcile.Difference, bool, error) {
	r.active.Add(ctx, -1)
	d, changed, err := s.Close()
	if err != nil {
		return reconcile.Difference{}, false, errors.Wrap(err, "close session")
	}
	if !changed {
		return d, false, nil
	}
	if err := r.publisher.Publish(ctx, d); err != nil {
		r.lg.Error("Publish difference",
			zap.Stringer("session", id),
			zap.Stringer("difference", d.ID),
			zap.Error(err),
		)
	}
	return d, true, nil
}
