package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wildlifecore/pkg/domain"
)

type captureMetrics struct {
	calls map[string][]string
}

func (c *captureMetrics) Observe(_ context.Context, o Outcome) {
	if c.calls == nil {
		c.calls = map[string][]string{}
	}
	c.calls[o.Operation] = append(c.calls[o.Operation], o.Status())
}

// nestCategories creates a chain of depth categories and returns the
// deepest id. Depths above domain.MaxCategoryDepth raise a depth warning.
func nestCategories(t *testing.T, svc *Service, prefix string, depth int) int64 {
	t.Helper()
	var parent *int64
	for i := 0; i < depth; i++ {
		c, err := svc.CreateCategory(context.Background(), fmt.Sprintf("%s %d", prefix, i), parent)
		require.NoError(t, err)
		id := c.ID
		parent = &id
	}
	return *parent
}

func TestOutcomeStatus(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, StatusSuccess},
		{domain.Conflict(domain.EntityCategory, "taken"), "conflict"},
		{fmt.Errorf("commit: %w", domain.NotFound(domain.EntityRecord, 7)), "not_found"},
		{domain.InvalidArgument(domain.EntityRecord, "bad", "Wingspan"), "invalid_argument"},
		{domain.RuleViolationError{}, "rule_violation"},
		{errors.New("disk full"), "error"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Outcome{Err: tc.err}.Status(), "err=%v", tc.err)
	}
}

func TestServiceObservability(t *testing.T) {
	ctx := context.Background()
	metrics := &captureMetrics{}
	var traces bytes.Buffer
	tracer := NewJSONTracer(&traces)
	f := newBirds(t, WithMetricsRecorder(metrics), WithTracer(tracer))

	_, err := f.svc.CreateCategory(ctx, "Birds", nil)
	require.Error(t, err)
	_, err = f.svc.GetRecord(ctx, 42)
	require.Error(t, err)

	assert.Equal(t, []string{"success", "success", "conflict"}, metrics.calls["create_category"])
	assert.Equal(t, []string{"not_found"}, metrics.calls["get_record"])

	entries := tracer.Entries()
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, "get_record", last.Operation)
	assert.Equal(t, "not_found", last.Status)
	assert.Contains(t, last.Error, "not found")

	lines := bytes.Split(bytes.TrimSpace(traces.Bytes()), []byte("\n"))
	assert.Len(t, lines, len(entries))
	var decoded JSONTraceEntry
	require.NoError(t, json.Unmarshal(lines[0], &decoded))
	assert.Equal(t, "create_category", decoded.Operation)

	assert.Contains(t, f.logs.String(), "catalog operation failed")
	assert.Contains(t, f.logs.String(), "catalog operation committed")
}

func TestTraceRecordsRuleViolations(t *testing.T) {
	tracer := NewJSONTracer(nil)
	svc := NewInMemoryService(nil, WithTracer(tracer))
	nestCategories(t, svc, "Level", domain.MaxCategoryDepth+1)

	entries := tracer.Entries()
	require.Len(t, entries, domain.MaxCategoryDepth+1)
	for _, e := range entries[:domain.MaxCategoryDepth] {
		assert.Empty(t, e.Violations)
	}
	deepest := entries[domain.MaxCategoryDepth]
	assert.Equal(t, StatusSuccess, deepest.Status)
	assert.Equal(t, []string{"category_depth:warn"}, deepest.Violations)
}

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	require.NotNil(t, expvar.Get(rec.Name()))
	svc := NewInMemoryService(nil, WithMetricsRecorder(rec))
	_, err := svc.CreateCategory(context.Background(), "Animals", nil)
	require.NoError(t, err)
	_, err = svc.CreateCategory(context.Background(), "Animals", nil)
	require.Error(t, err)
	nestCategories(t, svc, "Level", domain.MaxCategoryDepth+1)
	rec.Observe(context.Background(), Outcome{Duration: time.Second})

	snap := rec.Snapshot()
	assert.Equal(t, int64(domain.MaxCategoryDepth+2), snap.Results["create_category"]["success"])
	assert.Equal(t, int64(1), snap.Results["create_category"]["conflict"])
	assert.NotContains(t, snap.Results, "")
	assert.Equal(t, map[string]int64{"category_depth:warn": 1}, snap.Violations)

	var exported ExpvarMetricsSnapshot
	require.NoError(t, json.Unmarshal([]byte(expvar.Get(rec.Name()).String()), &exported))
	assert.Equal(t, snap.Results, exported.Results)
	assert.Equal(t, snap.Violations, exported.Violations)
}

func TestPrometheusRecorder(t *testing.T) {
	registry := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(registry)
	svc := NewInMemoryService(nil, WithMetricsRecorder(rec))
	ctx := context.Background()
	_, err := svc.CreateCategory(ctx, "Animals", nil)
	require.NoError(t, err)
	_, err = svc.CreateCategory(ctx, "Animals", nil)
	require.True(t, domain.IsConflict(err))

	assert.Equal(t, 1.0, promtestutil.ToFloat64(rec.Operations.WithLabelValues("create_category", "success")))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(rec.Operations.WithLabelValues("create_category", "conflict")))
	assert.Equal(t, 1, promtestutil.CollectAndCount(rec.Duration))
	families, err := registry.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 2, "violation counter stays empty until a rule fires")

	nestCategories(t, svc, "Level", domain.MaxCategoryDepth+1)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(rec.Violations.WithLabelValues(RuleCategoryDepth, string(domain.SeverityWarn))))
	families, err = registry.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 3)
}

func TestMetricsRecordersFanOut(t *testing.T) {
	ctx := context.Background()
	first, second := &captureMetrics{}, &captureMetrics{}
	f := newBirds(t, WithMetricsRecorder(MetricsRecorders{first, second}))

	_, err := f.svc.GetCategory(ctx, 999)
	require.Error(t, err)
	assert.Equal(t, []string{"not_found"}, first.calls["get_category"])
	assert.Equal(t, first.calls, second.calls)
}
