package memory

import (
	"sort"

	"wildlifecore/pkg/domain"
)

// transactionView exposes a read-only snapshot of the transactional state.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) index() domain.CategoryIndex {
	return domain.NewCategoryIndex(v.ListCategories())
}

// ListCategories returns all categories sorted by id.
func (v transactionView) ListCategories() []Category {
	out := make([]Category, 0, len(v.state.categories))
	for _, c := range v.state.categories {
		out = append(out, cloneCategory(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindCategory returns the category with id.
func (v transactionView) FindCategory(id int64) (Category, bool) {
	c, ok := v.state.categories[id]
	if !ok {
		return Category{}, false
	}
	return cloneCategory(c), true
}

// FindCategoryByName returns the category with exactly name.
func (v transactionView) FindCategoryByName(name string) (Category, bool) {
	for _, c := range v.state.categories {
		if c.Name == name {
			return cloneCategory(c), true
		}
	}
	return Category{}, false
}

// Ancestors returns id and its ancestor chain up to the root.
func (v transactionView) Ancestors(id int64) ([]int64, bool) {
	return v.index().Ancestors(id)
}

// Descendants returns the sorted descendant closure of ids.
func (v transactionView) Descendants(ids []int64) []int64 {
	return v.index().Descendants(ids)
}

// ListFields returns all fields sorted by id.
func (v transactionView) ListFields() []Field {
	out := make([]Field, 0, len(v.state.fields))
	for _, f := range v.state.fields {
		out = append(out, cloneField(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindField returns the field with id.
func (v transactionView) FindField(id int64) (Field, bool) {
	f, ok := v.state.fields[id]
	if !ok {
		return Field{}, false
	}
	return cloneField(f), true
}

// FindFieldByName returns the field with exactly name.
func (v transactionView) FindFieldByName(name string) (Field, bool) {
	for _, f := range v.state.fields {
		if f.Name == name {
			return cloneField(f), true
		}
	}
	return Field{}, false
}

// ListAssociations returns every field/category edge ordered by field then category.
func (v transactionView) ListAssociations() []FieldCategory {
	out := make([]FieldCategory, 0, len(v.state.links))
	for link := range v.state.links {
		out = append(out, link)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FieldID != out[j].FieldID {
			return out[i].FieldID < out[j].FieldID
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

// CategoryFieldIDs returns ids of fields directly associated with categoryID.
func (v transactionView) CategoryFieldIDs(categoryID int64) []int64 {
	var out []int64
	for link := range v.state.links {
		if link.CategoryID == categoryID {
			out = append(out, link.FieldID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ListRecords returns all records sorted by id.
func (v transactionView) ListRecords() []Record {
	out := make([]Record, 0, len(v.state.records))
	for _, r := range v.state.records {
		out = append(out, cloneRecord(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindRecord returns the record with id.
func (v transactionView) FindRecord(id int64) (Record, bool) {
	r, ok := v.state.records[id]
	if !ok {
		return Record{}, false
	}
	return cloneRecord(r), true
}

// FindRecordByName returns the record whose name is exactly name.
func (v transactionView) FindRecordByName(name string) (Record, bool) {
	for _, r := range v.state.records {
		if r.Name == name {
			return cloneRecord(r), true
		}
	}
	return Record{}, false
}

// FindRecordByScientificName returns the record whose scientific name is exactly name.
func (v transactionView) FindRecordByScientificName(name string) (Record, bool) {
	for _, r := range v.state.records {
		if r.ScientificName == name {
			return cloneRecord(r), true
		}
	}
	return Record{}, false
}

// RecordValues returns the values of recordID sorted by field id.
func (v transactionView) RecordValues(recordID int64) []FieldValue {
	var out []FieldValue
	for key, val := range v.state.values {
		if key.recordID == recordID {
			out = append(out, cloneValue(val))
		}
	}
	sortValues(out)
	return out
}

// FieldValues returns every value stored for fieldID sorted by record id.
func (v transactionView) FieldValues(fieldID int64) []FieldValue {
	var out []FieldValue
	for key, val := range v.state.values {
		if key.fieldID == fieldID {
			out = append(out, cloneValue(val))
		}
	}
	sortValues(out)
	return out
}

// ListImages returns the gallery of recordID sorted by id.
func (v transactionView) ListImages(recordID int64) []Image {
	var out []Image
	for _, img := range v.state.images {
		if img.RecordID == recordID {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindImage returns the image with id.
func (v transactionView) FindImage(id int64) (Image, bool) {
	img, ok := v.state.images[id]
	return img, ok
}
