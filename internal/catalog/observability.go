package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"wildlifecore/pkg/domain"
)

// StatusSuccess labels operations that returned no error.
const StatusSuccess = "success"

// Outcome describes one finished service operation.
type Outcome struct {
	Operation  string
	Err        error
	Duration   time.Duration
	Violations []domain.Violation
}

// Status labels the outcome: StatusSuccess, the domain error kind,
// "rule_violation" for blocked transactions, or "error" for anything else.
func (o Outcome) Status() string {
	if o.Err == nil {
		return StatusSuccess
	}
	var blocked domain.RuleViolationError
	if errors.As(o.Err, &blocked) {
		return "rule_violation"
	}
	if kind := domain.KindOf(o.Err); kind != "" {
		return string(kind)
	}
	return "error"
}

// MetricsRecorder observes every service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, outcome Outcome)
}

// Tracer starts a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation outcome.
type TraceSpan interface {
	End(outcome Outcome)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, Outcome) {}

// MetricsRecorders fans every outcome out to each recorder in order.
type MetricsRecorders []MetricsRecorder

// Observe implements MetricsRecorder.
func (rs MetricsRecorders) Observe(ctx context.Context, outcome Outcome) {
	for _, r := range rs {
		r.Observe(ctx, outcome)
	}
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(Outcome) {}

func violationLabel(v domain.Violation) string {
	return v.Rule + ":" + string(v.Severity)
}

var expvarSeq uint64

// ExpvarMetricsRecorder publishes per-operation totals via expvar: summed
// duration in milliseconds, counts per outcome status and rule violation
// counts keyed by "rule:severity".
type ExpvarMetricsRecorder struct {
	name       string
	mu         sync.Mutex
	durations  map[string]float64
	results    map[string]map[string]int64
	violations map[string]int64
}

// ExpvarMetricsSnapshot captures a read-only view of the recorded metrics.
type ExpvarMetricsSnapshot struct {
	DurationsMS map[string]float64          `json:"durations_ms_total"`
	Results     map[string]map[string]int64 `json:"results_total"`
	Violations  map[string]int64            `json:"rule_violations_total"`
	RecordedAt  time.Time                   `json:"recorded_at"`
}

// NewExpvarMetricsRecorder publishes a recorder under name. An empty name is
// replaced by a generated unique one. expvar names are process global, so a
// name may only be published once.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("wildlife_catalog_metrics_%d", id)
	}
	rec := &ExpvarMetricsRecorder{
		name:       name,
		durations:  make(map[string]float64),
		results:    make(map[string]map[string]int64),
		violations: make(map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Snapshot returns a copy of the aggregated metrics.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	durations := make(map[string]float64, len(r.durations))
	for op, total := range r.durations {
		durations[op] = total
	}
	results := make(map[string]map[string]int64, len(r.results))
	for op, counts := range r.results {
		cpy := make(map[string]int64, len(counts))
		for status, n := range counts {
			cpy[status] = n
		}
		results[op] = cpy
	}
	violations := make(map[string]int64, len(r.violations))
	for label, n := range r.violations {
		violations[label] = n
	}
	return ExpvarMetricsSnapshot{DurationsMS: durations, Results: results, Violations: violations, RecordedAt: time.Now().UTC()}
}

// Observe records a service operation outcome.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, o Outcome) {
	if o.Operation == "" {
		return
	}
	ms := float64(o.Duration) / float64(time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations[o.Operation] += ms
	if _, ok := r.results[o.Operation]; !ok {
		r.results[o.Operation] = make(map[string]int64, 2)
	}
	r.results[o.Operation][o.Status()]++
	for _, v := range o.Violations {
		r.violations[violationLabel(v)]++
	}
}

// JSONTraceEntry is one finished span as written by JSONTracer.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Violations []string  `json:"violations,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTracer writes spans as JSON lines and keeps them for inspection.
type JSONTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
}

// NewJSONTracer returns a tracer writing to w. A nil writer only retains spans.
func NewJSONTracer(w io.Writer) *JSONTracer {
	t := &JSONTracer{}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of all recorded spans.
func (t *JSONTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// Start implements Tracer.
func (t *JSONTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonSpan{tracer: t, operation: operation, started: time.Now().UTC()}
}

type jsonSpan struct {
	tracer    *JSONTracer
	operation string
	started   time.Time
}

func (s *jsonSpan) End(o Outcome) {
	ended := time.Now().UTC()
	entry := JSONTraceEntry{
		Operation:  s.operation,
		Status:     o.Status(),
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if o.Err != nil {
		entry.Error = o.Err.Error()
	}
	for _, v := range o.Violations {
		entry.Violations = append(entry.Violations, violationLabel(v))
	}
	s.tracer.mu.Lock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
	s.tracer.mu.Unlock()
}
