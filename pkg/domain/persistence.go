package domain

import "context"

// Transaction exposes the row-level operations a persistence implementation
// must support within an atomic scope. Implementations enforce referential
// integrity and name uniqueness; callers are expected to compute cascades
// and pass the full id set to the batch deletes.
type Transaction interface {
	Snapshot() TransactionView

	CreateCategory(Category) (Category, error)
	UpdateCategory(id int64, mutator func(*Category) error) (Category, error)
	// DeleteCategories removes every listed category and its field
	// associations. It fails when a surviving category or any record still
	// references one of them.
	DeleteCategories(ids []int64) error

	CreateField(Field) (Field, error)
	UpdateField(id int64, mutator func(*Field) error) (Field, error)
	// DeleteField removes the field, its associations and every value stored for it.
	DeleteField(id int64) error
	// AttachField associates a field with a category. It reports false when
	// the association already existed.
	AttachField(fieldID, categoryID int64) (bool, error)
	DetachField(fieldID, categoryID int64) error

	CreateRecord(Record) (Record, error)
	UpdateRecord(id int64, mutator func(*Record) error) (Record, error)
	// DeleteRecords removes every listed record with its values and images.
	DeleteRecords(ids []int64) error
	// PutFieldValue inserts or replaces the value keyed by (RecordID, FieldID).
	PutFieldValue(FieldValue) error
	DeleteFieldValue(recordID, fieldID int64) error

	CreateImage(Image) (Image, error)
	// DeleteImage removes a gallery image and clears it as thumbnail.
	DeleteImage(id int64) error
}

// TransactionView provides read-only access to snapshot data. List methods
// return rows sorted by id.
type TransactionView interface {
	ListCategories() []Category
	FindCategory(id int64) (Category, bool)
	FindCategoryByName(name string) (Category, bool)
	// Ancestors returns id followed by its ancestors up to the root.
	Ancestors(id int64) ([]int64, bool)
	// Descendants returns the sorted closure of ids and all their subcategories.
	Descendants(ids []int64) []int64

	ListFields() []Field
	FindField(id int64) (Field, bool)
	FindFieldByName(name string) (Field, bool)
	ListAssociations() []FieldCategory
	// CategoryFieldIDs returns the ids of fields directly associated with categoryID.
	CategoryFieldIDs(categoryID int64) []int64

	ListRecords() []Record
	FindRecord(id int64) (Record, bool)
	FindRecordByName(name string) (Record, bool)
	FindRecordByScientificName(name string) (Record, bool)
	// RecordValues returns a record's values sorted by field id.
	RecordValues(recordID int64) []FieldValue
	// FieldValues returns every stored value of a field sorted by record id.
	FieldValues(fieldID int64) []FieldValue

	ListImages(recordID int64) []Image
	FindImage(id int64) (Image, bool)
}

// PersistentStore is a minimal abstraction over durable backends. Mutations
// run through RunInTransaction and are committed all-or-nothing.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}
