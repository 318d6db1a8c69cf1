package domain

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}})
	if result.HasBlocking() {
		t.Fatalf("expected no blocking violations")
	}
	result.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock, Message: "nope"}}})
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	err := RuleViolationError{Result: result}
	if !strings.Contains(err.Error(), "block: nope") {
		t.Fatalf("expected blocking message in error, got %q", err.Error())
	}
	if strings.Contains(err.Error(), "warn") {
		t.Fatalf("warnings must not appear in error: %q", err.Error())
	}
}

func TestResultMergeEmptyInput(t *testing.T) {
	original := Result{Violations: []Violation{{Rule: "existing", Severity: SeverityWarn}}}
	original.Merge(Result{})
	if len(original.Violations) != 1 || original.Violations[0].Rule != "existing" {
		t.Fatalf("expected original violations to remain, got %+v", original.Violations)
	}
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{name: "warn"})
	engine.Register(staticRule{name: "second"})
	res, err := engine.Evaluate(context.Background(), emptyView{}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 {
		t.Fatalf("expected two violations, got %d", len(res.Violations))
	}
	if got := engine.Rules(); len(got) != 2 || got[0] != "warn" || got[1] != "second" {
		t.Fatalf("unexpected rule names %v", got)
	}
}

func TestRulesEngineEvaluatePropagatesError(t *testing.T) {
	engine := NewRulesEngine()
	boom := errors.New("boom")
	engine.Register(staticRule{name: "broken", err: boom})
	if _, err := engine.Evaluate(context.Background(), emptyView{}, nil); !errors.Is(err, boom) {
		t.Fatalf("expected rule error, got %v", err)
	}
}

type staticRule struct {
	name string
	err  error
}

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	if r.err != nil {
		return Result{}, r.err
	}
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}

type emptyView struct{}

func (emptyView) ListCategories() []Category                       { return nil }
func (emptyView) FindCategory(int64) (Category, bool)              { return Category{}, false }
func (emptyView) FindCategoryByName(string) (Category, bool)       { return Category{}, false }
func (emptyView) Ancestors(int64) ([]int64, bool)                  { return nil, false }
func (emptyView) Descendants([]int64) []int64                      { return nil }
func (emptyView) ListFields() []Field                              { return nil }
func (emptyView) FindField(int64) (Field, bool)                    { return Field{}, false }
func (emptyView) FindFieldByName(string) (Field, bool)             { return Field{}, false }
func (emptyView) ListAssociations() []FieldCategory                { return nil }
func (emptyView) CategoryFieldIDs(int64) []int64                   { return nil }
func (emptyView) ListRecords() []Record                            { return nil }
func (emptyView) FindRecord(int64) (Record, bool)                  { return Record{}, false }
func (emptyView) FindRecordByName(string) (Record, bool)           { return Record{}, false }
func (emptyView) FindRecordByScientificName(string) (Record, bool) { return Record{}, false }
func (emptyView) RecordValues(int64) []FieldValue                  { return nil }
func (emptyView) FieldValues(int64) []FieldValue                   { return nil }
func (emptyView) ListImages(int64) []Image                         { return nil }
func (emptyView) FindImage(int64) (Image, bool)                    { return Image{}, false }
