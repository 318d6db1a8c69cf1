// Package domain defines the persistent catalog entities, error kinds,
// taxonomy closure primitives and rule evaluation types used by wildlifecore.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// EntityType identifies the type of row stored in the catalog.
type EntityType string

// Supported entity type identifiers used in Change records, errors and persistence buckets.
const (
	// EntityCategory identifies a taxonomy node.
	EntityCategory EntityType = "category"
	// EntityField identifies a typed field definition.
	EntityField EntityType = "field"
	// EntityFieldCategory identifies a field to category association edge.
	EntityFieldCategory EntityType = "field_category"
	// EntityRecord identifies a wildlife record.
	EntityRecord EntityType = "record"
	// EntityFieldValue identifies a single stored field value of a record.
	EntityFieldValue EntityType = "field_value"
	// EntityImage identifies a gallery image attached to a record.
	EntityImage EntityType = "image"
)

// FieldType tags the value shape of a field definition.
type FieldType string

// Field types recognised by the validator. Dispatch on these is exhaustive.
const (
	FieldText       FieldType = "TEXT"
	FieldNumber     FieldType = "NUMBER"
	FieldEnum       FieldType = "ENUM"
	FieldImage      FieldType = "IMAGE"
	FieldMonthRange FieldType = "MONTH_RANGE"
)

// FieldTypes lists every supported field type in declaration order.
func FieldTypes() []FieldType {
	return []FieldType{FieldText, FieldNumber, FieldEnum, FieldImage, FieldMonthRange}
}

// ParseFieldType maps a user supplied type name onto a FieldType. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseFieldType(raw string) (FieldType, bool) {
	candidate := FieldType(strings.ToUpper(strings.TrimSpace(raw)))
	for _, t := range FieldTypes() {
		if t == candidate {
			return t, true
		}
	}
	return "", false
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Category is a node in the taxonomy forest.
type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id"`
}

// IsRoot reports whether the category has no parent.
func (c Category) IsRoot() bool { return c.ParentID == nil }

// Field is a typed attribute definition associable with categories.
type Field struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	Type    FieldType `json:"type"`
	Options []string  `json:"options,omitempty"`
}

// HasOption reports whether value is one of the declared enum options.
func (f Field) HasOption(value string) bool {
	for _, opt := range f.Options {
		if opt == value {
			return true
		}
	}
	return false
}

// FieldCategory is the many-to-many association between a field and a category.
type FieldCategory struct {
	FieldID    int64 `json:"field_id"`
	CategoryID int64 `json:"category_id"`
}

// Record is a wildlife entry belonging to exactly one category.
type Record struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	ScientificName string `json:"scientific_name"`
	CategoryID     int64  `json:"category_id"`
	ThumbnailID    *int64 `json:"thumbnail_id"`
}

// MonthRange is an inclusive begin/end pair of month numbers (1-12). When
// Begin is greater than End the range wraps across the year boundary.
type MonthRange struct {
	Begin int `json:"begin"`
	End   int `json:"end"`
}

// Valid reports whether both months are within 1..12.
func (m MonthRange) Valid() bool {
	return m.Begin >= 1 && m.Begin <= 12 && m.End >= 1 && m.End <= 12
}

// Wraps reports whether the range crosses the December/January boundary.
func (m MonthRange) Wraps() bool { return m.Begin > m.End }

// Contains reports whether month falls inside the range, honoring wraparound.
func (m MonthRange) Contains(month int) bool {
	if month < 1 || month > 12 {
		return false
	}
	if m.Wraps() {
		return month >= m.Begin || month <= m.End
	}
	return month >= m.Begin && month <= m.End
}

// String renders the canonical "begin-end" form.
func (m MonthRange) String() string {
	return strconv.Itoa(m.Begin) + "-" + strconv.Itoa(m.End)
}

// FieldValue is a single canonical value attached to a record.
type FieldValue struct {
	RecordID int64       `json:"record_id"`
	FieldID  int64       `json:"field_id"`
	Value    string      `json:"value"`
	Months   *MonthRange `json:"months,omitempty"`
}

// Image is a gallery image attached to a record. Ref is an opaque blob key.
type Image struct {
	ID       int64  `json:"id"`
	RecordID int64  `json:"record_id"`
	Ref      string `json:"ref"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID int64
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	var msgs []string
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			msgs = append(msgs, fmt.Sprintf("%s: %s", v.Rule, v.Message))
		}
	}
	if len(msgs) == 0 {
		return "transaction blocked by rules"
	}
	return "transaction blocked by rules: " + strings.Join(msgs, "; ")
}
