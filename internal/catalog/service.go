// Package catalog implements the hierarchical schema and record validation
// engine: the category tree, field catalog, schema resolver, record
// validator and typed queries over a domain.PersistentStore.
package catalog

import (
	"context"
	"log/slog"
	"time"

	"wildlifecore/internal/blob"
	blobmemory "wildlifecore/internal/infra/blob/memory"
	"wildlifecore/internal/infra/persistence/memory"
	"wildlifecore/pkg/domain"
)

// Service exposes transactional catalog operations. A Service owns its store
// for the lifetime of the process.
type Service struct {
	store    domain.PersistentStore
	images   *blob.Images
	logger   *slog.Logger
	metrics  MetricsRecorder
	tracer   Tracer
	resolver *resolver
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the structured logger. A nil logger keeps the default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder installs a recorder observing every operation.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer installs a tracer that wraps every operation in a span.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithBlobStore sets the backend holding image bytes. The default is an
// in-memory store.
func WithBlobStore(store blob.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.images = blob.NewImages(store)
		}
	}
}

// WithResolverCacheTTL overrides how long resolved field sets stay cached.
func WithResolverCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.resolver = newResolver(ttl)
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:    store,
		images:   blob.NewImages(blobmemory.New()),
		logger:   slog.Default(),
		metrics:  noopMetrics{},
		tracer:   noopTracer{},
		resolver: newResolver(defaultResolverTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store. A nil
// engine selects NewDefaultRulesEngine.
func NewInMemoryService(engine *domain.RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore { return s.store }

// BlobStore returns the backend holding image bytes.
func (s *Service) BlobStore() blob.Store { return s.images.Store() }

// run executes fn in one store transaction wrapped with tracing, metrics and
// logging. The resolver cache is invalidated after every commit.
func (s *Service) run(ctx context.Context, op string, fn func(domain.Transaction) error) (domain.Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	res, err := s.store.RunInTransaction(ctx, fn)
	if err == nil {
		s.resolver.invalidate()
	}
	outcome := Outcome{Operation: op, Err: err, Duration: time.Since(started), Violations: res.Violations}
	s.metrics.Observe(ctx, outcome)
	span.End(outcome)
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityWarn {
			s.logger.WarnContext(ctx, "rule warning", "op", op, "rule", v.Rule, "entity", string(v.Entity), "id", v.EntityID, "message", v.Message)
		}
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "catalog operation failed", "op", op, "error", err)
		return res, err
	}
	s.logger.DebugContext(ctx, "catalog operation committed", "op", op)
	return res, nil
}

// view runs a read-only operation with the same instrumentation as run.
func (s *Service) view(ctx context.Context, op string, fn func(domain.TransactionView) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	err := s.store.View(ctx, fn)
	outcome := Outcome{Operation: op, Err: err, Duration: time.Since(started)}
	s.metrics.Observe(ctx, outcome)
	span.End(outcome)
	return err
}

// removeBlobs deletes refs after a commit. Failures are logged, never returned.
func (s *Service) removeBlobs(ctx context.Context, op string, refs []string) {
	for _, ref := range refs {
		if err := s.images.Remove(ctx, ref); err != nil {
			s.logger.WarnContext(ctx, "blob cleanup failed", "op", op, "ref", ref, "error", err)
		}
	}
}
