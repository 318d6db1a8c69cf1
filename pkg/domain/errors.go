package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies failures surfaced by the catalog.
type ErrorKind string

// Error kinds returned to callers. Transport layers map these onto their own
// status codes.
const (
	KindNotFound         ErrorKind = "not_found"
	KindConflict         ErrorKind = "conflict"
	KindInvalidArgument  ErrorKind = "invalid_argument"
	KindInvalidOperation ErrorKind = "invalid_operation"
)

// Error is the typed error returned by catalog operations. Fields names every
// offending field when the failure is field specific.
type Error struct {
	Kind    ErrorKind
	Entity  EntityType
	Message string
	Fields  []string
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error with the same kind, so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind && (other.Entity == "" || other.Entity == e.Entity)
}

// NotFound reports a missing entity by id.
func NotFound(entity EntityType, id int64) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, Message: fmt.Sprintf("%s %d not found", entity, id)}
}

// NotFoundf reports a missing entity or relation with a custom message.
func NotFoundf(entity EntityType, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a uniqueness violation.
func Conflict(entity EntityType, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Entity: entity, Message: fmt.Sprintf(format, args...)}
}

// InvalidArgument reports malformed input. fields, when given, are sorted so
// messages are deterministic.
func InvalidArgument(entity EntityType, message string, fields ...string) *Error {
	sorted := sortedCopy(fields)
	if len(sorted) > 0 {
		message += ": " + strings.Join(sorted, ", ")
	}
	return &Error{Kind: KindInvalidArgument, Entity: entity, Message: message, Fields: sorted}
}

// InvalidOperation reports a structurally disallowed action.
func InvalidOperation(entity EntityType, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidOperation, Entity: entity, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsInvalidArgument reports whether err is an invalid-argument error.
func IsInvalidArgument(err error) bool { return KindOf(err) == KindInvalidArgument }

// IsInvalidOperation reports whether err is an invalid-operation error.
func IsInvalidOperation(err error) bool { return KindOf(err) == KindInvalidOperation }

// FieldProblems collects per-field validation failures grouped by reason so a
// single error can name every offending field.
type FieldProblems struct {
	entity  EntityType
	reasons []string
	fields  map[string][]string
}

// NewFieldProblems returns an empty collector for entity.
func NewFieldProblems(entity EntityType) *FieldProblems {
	return &FieldProblems{entity: entity, fields: make(map[string][]string)}
}

// Add records that field failed for reason. Reasons keep first-seen order.
func (p *FieldProblems) Add(reason, field string) {
	if _, ok := p.fields[reason]; !ok {
		p.reasons = append(p.reasons, reason)
	}
	p.fields[reason] = append(p.fields[reason], field)
}

// Empty reports whether nothing was collected.
func (p *FieldProblems) Empty() bool { return len(p.reasons) == 0 }

// Err returns nil when empty, otherwise an InvalidArgument error whose message
// lists every reason with its fields and whose Fields holds every field.
func (p *FieldProblems) Err() error {
	if p.Empty() {
		return nil
	}
	parts := make([]string, 0, len(p.reasons))
	var all []string
	seen := make(map[string]struct{})
	for _, reason := range p.reasons {
		fields := sortedCopy(p.fields[reason])
		parts = append(parts, reason+": "+strings.Join(fields, ", "))
		for _, f := range fields {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			all = append(all, f)
		}
	}
	sort.Strings(all)
	return &Error{Kind: KindInvalidArgument, Entity: p.entity, Message: strings.Join(parts, "; "), Fields: all}
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
