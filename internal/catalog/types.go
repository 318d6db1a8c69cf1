package catalog

import (
	"encoding/json"

	"wildlifecore/pkg/domain"
)

// DeleteMode selects how DeleteCategory treats a category's members.
type DeleteMode string

const (
	// DeleteReassign moves direct records and subcategories to the parent.
	DeleteReassign DeleteMode = "reassign"
	// DeleteCascade removes the whole subtree with every member record.
	DeleteCascade DeleteMode = "cascade"
)

// FieldSpec describes a field to create.
type FieldSpec struct {
	Name        string
	Type        domain.FieldType
	Options     []string
	CategoryIDs []int64
}

// FieldEdit describes changes to an existing field. Nil NewName keeps the name.
type FieldEdit struct {
	NewName        *string
	AddCategoryIDs []int64
}

// Upload is a file supplied for an IMAGE field or a gallery image. An empty
// ContentType is sniffed from Data.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// RecordInput is the payload of CreateRecord. Values and Files are keyed by
// field name or by decimal field id.
type RecordInput struct {
	Name           string
	ScientificName string
	CategoryID     int64
	Values         map[string]string
	Files          map[string]Upload
}

// RecordEdit is the payload of EditRecord. Only supplied members change.
type RecordEdit struct {
	Name           *string
	ScientificName *string
	CategoryID     *int64
	Values         map[string]string
	Files          map[string]Upload
}

// TypedValue is a stored value rendered according to its field type.
type TypedValue struct {
	FieldID int64              `json:"field_id"`
	Field   string             `json:"field"`
	Type    domain.FieldType   `json:"type"`
	Value   string             `json:"value"`
	Number  json.Number        `json:"number,omitempty"`
	Months  *domain.MonthRange `json:"months,omitempty"`
}

// RecordDetail is a record with its typed values and gallery.
type RecordDetail struct {
	domain.Record
	Values []TypedValue   `json:"values"`
	Images []domain.Image `json:"images"`
}

// TaxonomyNode is a category with its direct subcategories and the ids of
// every field it resolves to.
type TaxonomyNode struct {
	domain.Category
	SubcategoryIDs []int64 `json:"subcategory_ids"`
	FieldIDs       []int64 `json:"field_ids"`
}

// Taxonomy is the full category tree with the field dictionary.
type Taxonomy struct {
	Categories []TaxonomyNode `json:"categories"`
	Fields     []domain.Field `json:"fields"`
}

// NumberQuery selects records by a NUMBER field. Exact is exclusive with the
// bounds; bounds are exclusive.
type NumberQuery struct {
	FieldID int64
	Exact   *string
	Min     *string
	Max     *string
}

// TextQuery is a case-insensitive containment search on a TEXT field.
type TextQuery struct {
	FieldID     int64
	Query       string
	CategoryIDs []int64
}

// NameQuery matches a record's name or scientific name.
type NameQuery struct {
	Query       string
	CategoryIDs []int64
}

// MonthQuery selects records whose MONTH_RANGE value contains Month.
type MonthQuery struct {
	FieldID int64
	Month   int
}
