package memory

import (
	"strings"

	"wildlifecore/pkg/domain"
)

// transaction represents a mutation set applied to a cloned store state.
type transaction struct {
	state   memoryState
	changes []Change
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) view() transactionView {
	return transactionView{state: &tx.state}
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) checkCategory(c Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return domain.InvalidArgument(domain.EntityCategory, "category name is required")
	}
	for id, other := range tx.state.categories {
		if id != c.ID && other.Name == c.Name {
			return domain.Conflict(domain.EntityCategory, "category %q already exists", c.Name)
		}
	}
	if c.ParentID == nil {
		return nil
	}
	if _, ok := tx.state.categories[*c.ParentID]; !ok {
		return domain.NotFound(domain.EntityCategory, *c.ParentID)
	}
	if c.ID != 0 && tx.view().index().WouldCycle(c.ID, *c.ParentID) {
		return domain.InvalidOperation(domain.EntityCategory, "category %d cannot be moved under its own subtree", c.ID)
	}
	return nil
}

// CreateCategory stores a new category with the next category id.
func (tx *transaction) CreateCategory(c Category) (Category, error) {
	c.ID = 0
	if err := tx.checkCategory(c); err != nil {
		return Category{}, err
	}
	tx.state.seq.Category++
	c.ID = tx.state.seq.Category
	tx.state.categories[c.ID] = cloneCategory(c)
	tx.recordChange(Change{Entity: domain.EntityCategory, Action: domain.ActionCreate, After: cloneCategory(c)})
	return cloneCategory(c), nil
}

// UpdateCategory mutates a category using the provided mutator function.
func (tx *transaction) UpdateCategory(id int64, mutator func(*Category) error) (Category, error) {
	current, ok := tx.state.categories[id]
	if !ok {
		return Category{}, domain.NotFound(domain.EntityCategory, id)
	}
	before := cloneCategory(current)
	if err := mutator(&current); err != nil {
		return Category{}, err
	}
	current.ID = id
	if err := tx.checkCategory(current); err != nil {
		return Category{}, err
	}
	tx.state.categories[id] = cloneCategory(current)
	tx.recordChange(Change{Entity: domain.EntityCategory, Action: domain.ActionUpdate, Before: before, After: cloneCategory(current)})
	return cloneCategory(current), nil
}

// DeleteCategories removes the listed categories and their field associations.
func (tx *transaction) DeleteCategories(ids []int64) error {
	doomed := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := tx.state.categories[id]; !ok {
			return domain.NotFound(domain.EntityCategory, id)
		}
		doomed[id] = struct{}{}
	}
	for id, c := range tx.state.categories {
		if _, gone := doomed[id]; gone || c.ParentID == nil {
			continue
		}
		if _, orphaned := doomed[*c.ParentID]; orphaned {
			return domain.InvalidOperation(domain.EntityCategory, "category %d still has subcategory %d", *c.ParentID, id)
		}
	}
	for _, r := range tx.state.records {
		if _, orphaned := doomed[r.CategoryID]; orphaned {
			return domain.InvalidOperation(domain.EntityCategory, "category %d still has record %d", r.CategoryID, r.ID)
		}
	}
	for link := range tx.state.links {
		if _, gone := doomed[link.CategoryID]; gone {
			delete(tx.state.links, link)
			tx.recordChange(Change{Entity: domain.EntityFieldCategory, Action: domain.ActionDelete, Before: link})
		}
	}
	for id := range doomed {
		before := tx.state.categories[id]
		delete(tx.state.categories, id)
		tx.recordChange(Change{Entity: domain.EntityCategory, Action: domain.ActionDelete, Before: before})
	}
	return nil
}

func (tx *transaction) checkField(f Field) error {
	if strings.TrimSpace(f.Name) == "" {
		return domain.InvalidArgument(domain.EntityField, "field name is required")
	}
	if parsed, ok := domain.ParseFieldType(string(f.Type)); !ok || parsed != f.Type {
		return domain.InvalidArgument(domain.EntityField, "unknown field type "+string(f.Type))
	}
	if f.Type == domain.FieldEnum && len(f.Options) == 0 {
		return domain.InvalidArgument(domain.EntityField, "enum field requires options")
	}
	for id, other := range tx.state.fields {
		if id != f.ID && other.Name == f.Name {
			return domain.Conflict(domain.EntityField, "field %q already exists", f.Name)
		}
	}
	return nil
}

// CreateField stores a new field definition.
func (tx *transaction) CreateField(f Field) (Field, error) {
	f.ID = 0
	if err := tx.checkField(f); err != nil {
		return Field{}, err
	}
	tx.state.seq.Field++
	f.ID = tx.state.seq.Field
	tx.state.fields[f.ID] = cloneField(f)
	tx.recordChange(Change{Entity: domain.EntityField, Action: domain.ActionCreate, After: cloneField(f)})
	return cloneField(f), nil
}

// UpdateField mutates a field definition. The type cannot change.
func (tx *transaction) UpdateField(id int64, mutator func(*Field) error) (Field, error) {
	current, ok := tx.state.fields[id]
	if !ok {
		return Field{}, domain.NotFound(domain.EntityField, id)
	}
	before := cloneField(current)
	if err := mutator(&current); err != nil {
		return Field{}, err
	}
	current.ID = id
	if current.Type != before.Type {
		return Field{}, domain.InvalidOperation(domain.EntityField, "field %d type cannot change", id)
	}
	if err := tx.checkField(current); err != nil {
		return Field{}, err
	}
	tx.state.fields[id] = cloneField(current)
	tx.recordChange(Change{Entity: domain.EntityField, Action: domain.ActionUpdate, Before: before, After: cloneField(current)})
	return cloneField(current), nil
}

// DeleteField removes the field, its associations and all its values.
func (tx *transaction) DeleteField(id int64) error {
	current, ok := tx.state.fields[id]
	if !ok {
		return domain.NotFound(domain.EntityField, id)
	}
	for link := range tx.state.links {
		if link.FieldID == id {
			delete(tx.state.links, link)
			tx.recordChange(Change{Entity: domain.EntityFieldCategory, Action: domain.ActionDelete, Before: link})
		}
	}
	for key, val := range tx.state.values {
		if key.fieldID == id {
			delete(tx.state.values, key)
			tx.recordChange(Change{Entity: domain.EntityFieldValue, Action: domain.ActionDelete, Before: val})
		}
	}
	delete(tx.state.fields, id)
	tx.recordChange(Change{Entity: domain.EntityField, Action: domain.ActionDelete, Before: current})
	return nil
}

// AttachField associates fieldID with categoryID; existing edges are left untouched.
func (tx *transaction) AttachField(fieldID, categoryID int64) (bool, error) {
	if _, ok := tx.state.fields[fieldID]; !ok {
		return false, domain.NotFound(domain.EntityField, fieldID)
	}
	if _, ok := tx.state.categories[categoryID]; !ok {
		return false, domain.NotFound(domain.EntityCategory, categoryID)
	}
	link := FieldCategory{FieldID: fieldID, CategoryID: categoryID}
	if _, exists := tx.state.links[link]; exists {
		return false, nil
	}
	tx.state.links[link] = struct{}{}
	tx.recordChange(Change{Entity: domain.EntityFieldCategory, Action: domain.ActionCreate, After: link})
	return true, nil
}

// DetachField removes a single field/category edge.
func (tx *transaction) DetachField(fieldID, categoryID int64) error {
	link := FieldCategory{FieldID: fieldID, CategoryID: categoryID}
	if _, exists := tx.state.links[link]; !exists {
		return domain.NotFoundf(domain.EntityFieldCategory, "field %d is not associated with category %d", fieldID, categoryID)
	}
	delete(tx.state.links, link)
	tx.recordChange(Change{Entity: domain.EntityFieldCategory, Action: domain.ActionDelete, Before: link})
	return nil
}

func (tx *transaction) checkRecord(r Record) error {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.ScientificName) == "" {
		return domain.InvalidArgument(domain.EntityRecord, "record name and scientific name are required")
	}
	v := tx.view()
	if other, ok := v.FindRecordByName(r.Name); ok && other.ID != r.ID {
		return domain.Conflict(domain.EntityRecord, "record name %q already exists", r.Name)
	}
	if other, ok := v.FindRecordByScientificName(r.ScientificName); ok && other.ID != r.ID {
		return domain.Conflict(domain.EntityRecord, "scientific name %q already exists", r.ScientificName)
	}
	if _, ok := tx.state.categories[r.CategoryID]; !ok {
		return domain.NotFound(domain.EntityCategory, r.CategoryID)
	}
	if r.ThumbnailID != nil {
		img, ok := tx.state.images[*r.ThumbnailID]
		if !ok {
			return domain.NotFound(domain.EntityImage, *r.ThumbnailID)
		}
		if img.RecordID != r.ID {
			return domain.InvalidArgument(domain.EntityImage, "thumbnail must belong to the record")
		}
	}
	return nil
}

// CreateRecord stores a new record row without values.
func (tx *transaction) CreateRecord(r Record) (Record, error) {
	r.ID = 0
	r.ThumbnailID = nil
	if err := tx.checkRecord(r); err != nil {
		return Record{}, err
	}
	tx.state.seq.Record++
	r.ID = tx.state.seq.Record
	tx.state.records[r.ID] = cloneRecord(r)
	tx.recordChange(Change{Entity: domain.EntityRecord, Action: domain.ActionCreate, After: cloneRecord(r)})
	return cloneRecord(r), nil
}

// UpdateRecord mutates a record row using the provided mutator function.
func (tx *transaction) UpdateRecord(id int64, mutator func(*Record) error) (Record, error) {
	current, ok := tx.state.records[id]
	if !ok {
		return Record{}, domain.NotFound(domain.EntityRecord, id)
	}
	before := cloneRecord(current)
	if err := mutator(&current); err != nil {
		return Record{}, err
	}
	current.ID = id
	if err := tx.checkRecord(current); err != nil {
		return Record{}, err
	}
	tx.state.records[id] = cloneRecord(current)
	tx.recordChange(Change{Entity: domain.EntityRecord, Action: domain.ActionUpdate, Before: before, After: cloneRecord(current)})
	return cloneRecord(current), nil
}

// DeleteRecords removes the listed records with their values and images.
func (tx *transaction) DeleteRecords(ids []int64) error {
	doomed := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := tx.state.records[id]; !ok {
			return domain.NotFound(domain.EntityRecord, id)
		}
		doomed[id] = struct{}{}
	}
	for key, val := range tx.state.values {
		if _, gone := doomed[key.recordID]; gone {
			delete(tx.state.values, key)
			tx.recordChange(Change{Entity: domain.EntityFieldValue, Action: domain.ActionDelete, Before: val})
		}
	}
	for imgID, img := range tx.state.images {
		if _, gone := doomed[img.RecordID]; gone {
			delete(tx.state.images, imgID)
			tx.recordChange(Change{Entity: domain.EntityImage, Action: domain.ActionDelete, Before: img})
		}
	}
	for id := range doomed {
		before := tx.state.records[id]
		delete(tx.state.records, id)
		tx.recordChange(Change{Entity: domain.EntityRecord, Action: domain.ActionDelete, Before: before})
	}
	return nil
}

// PutFieldValue inserts or replaces the value keyed by record and field.
func (tx *transaction) PutFieldValue(v FieldValue) error {
	if _, ok := tx.state.records[v.RecordID]; !ok {
		return domain.NotFound(domain.EntityRecord, v.RecordID)
	}
	if _, ok := tx.state.fields[v.FieldID]; !ok {
		return domain.NotFound(domain.EntityField, v.FieldID)
	}
	key := valueKey{recordID: v.RecordID, fieldID: v.FieldID}
	change := Change{Entity: domain.EntityFieldValue, Action: domain.ActionCreate, After: cloneValue(v)}
	if before, exists := tx.state.values[key]; exists {
		change.Action = domain.ActionUpdate
		change.Before = before
	}
	tx.state.values[key] = cloneValue(v)
	tx.recordChange(change)
	return nil
}

// DeleteFieldValue removes a single stored value.
func (tx *transaction) DeleteFieldValue(recordID, fieldID int64) error {
	key := valueKey{recordID: recordID, fieldID: fieldID}
	before, ok := tx.state.values[key]
	if !ok {
		return domain.NotFoundf(domain.EntityFieldValue, "record %d has no value for field %d", recordID, fieldID)
	}
	delete(tx.state.values, key)
	tx.recordChange(Change{Entity: domain.EntityFieldValue, Action: domain.ActionDelete, Before: before})
	return nil
}

// CreateImage stores a gallery image for an existing record.
func (tx *transaction) CreateImage(img Image) (Image, error) {
	if _, ok := tx.state.records[img.RecordID]; !ok {
		return Image{}, domain.NotFound(domain.EntityRecord, img.RecordID)
	}
	if strings.TrimSpace(img.Ref) == "" {
		return Image{}, domain.InvalidArgument(domain.EntityImage, "image reference is required")
	}
	tx.state.seq.Image++
	img.ID = tx.state.seq.Image
	tx.state.images[img.ID] = img
	tx.recordChange(Change{Entity: domain.EntityImage, Action: domain.ActionCreate, After: img})
	return img, nil
}

// DeleteImage removes a gallery image and clears it as its record's thumbnail.
func (tx *transaction) DeleteImage(id int64) error {
	img, ok := tx.state.images[id]
	if !ok {
		return domain.NotFound(domain.EntityImage, id)
	}
	if r, ok := tx.state.records[img.RecordID]; ok && r.ThumbnailID != nil && *r.ThumbnailID == id {
		before := cloneRecord(r)
		r.ThumbnailID = nil
		tx.state.records[r.ID] = r
		tx.recordChange(Change{Entity: domain.EntityRecord, Action: domain.ActionUpdate, Before: before, After: cloneRecord(r)})
	}
	delete(tx.state.images, id)
	tx.recordChange(Change{Entity: domain.EntityImage, Action: domain.ActionDelete, Before: img})
	return nil
}
