package catalog

import (
	"sort"
	"strconv"

	"wildlifecore/pkg/domain"
)

const (
	reasonUnknown      = "unknown fields"
	reasonDuplicate    = "fields supplied more than once"
	reasonMissing      = "missing required fields"
	reasonMissingFile  = "missing image files"
	reasonImageAsValue = "image fields supplied as values"
	reasonValueAsFile  = "non-image fields supplied as files"
)

// schema is a resolved field set indexed for payload binding.
type schema struct {
	fields []domain.Field
	byID   map[int64]domain.Field
	byName map[string]domain.Field
}

func newSchema(fields []domain.Field) schema {
	s := schema{
		fields: fields,
		byID:   make(map[int64]domain.Field, len(fields)),
		byName: make(map[string]domain.Field, len(fields)),
	}
	for _, f := range fields {
		s.byID[f.ID] = f
		s.byName[f.Name] = f
	}
	return s
}

func (s schema) has(id int64) bool {
	_, ok := s.byID[id]
	return ok
}

// match resolves a payload key: a valid field name first, otherwise a decimal
// id of a valid field.
func (s schema) match(key string) (domain.Field, bool) {
	if f, ok := s.byName[key]; ok {
		return f, true
	}
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		if f, ok := s.byID[id]; ok {
			return f, true
		}
	}
	return domain.Field{}, false
}

// binding is a payload mapped onto field ids.
type binding struct {
	values map[int64]string
	files  map[int64]Upload
}

func (b binding) supplied(id int64) bool {
	if _, ok := b.values[id]; ok {
		return true
	}
	_, ok := b.files[id]
	return ok
}

// bind maps values and files onto the schema and records every shape problem:
// unknown keys, duplicates, and image/non-image fields supplied the wrong way.
// With requireAll, every field must also be present in its expected form.
func (s schema) bind(values map[string]string, files map[string]Upload, requireAll bool, problems *domain.FieldProblems) binding {
	b := binding{values: make(map[int64]string), files: make(map[int64]Upload)}
	seen := make(map[int64]struct{})
	claim := func(f domain.Field) bool {
		if _, dup := seen[f.ID]; dup {
			problems.Add(reasonDuplicate, f.Name)
			return false
		}
		seen[f.ID] = struct{}{}
		return true
	}
	for _, key := range sortedKeys(values) {
		f, ok := s.match(key)
		if !ok {
			problems.Add(reasonUnknown, key)
			continue
		}
		if !claim(f) {
			continue
		}
		if f.Type == domain.FieldImage {
			problems.Add(reasonImageAsValue, f.Name)
			continue
		}
		b.values[f.ID] = values[key]
	}
	for _, key := range sortedKeys(files) {
		f, ok := s.match(key)
		if !ok {
			problems.Add(reasonUnknown, key)
			continue
		}
		if !claim(f) {
			continue
		}
		if f.Type != domain.FieldImage {
			problems.Add(reasonValueAsFile, f.Name)
			continue
		}
		b.files[f.ID] = files[key]
	}
	if requireAll {
		for _, f := range s.fields {
			if _, ok := seen[f.ID]; ok {
				continue
			}
			if f.Type == domain.FieldImage {
				problems.Add(reasonMissingFile, f.Name)
			} else {
				problems.Add(reasonMissing, f.Name)
			}
		}
	}
	return b
}

// pendingUpload is a validated image waiting to be written to the blob store.
type pendingUpload struct {
	field       domain.Field
	upload      Upload
	contentType string
}

// normalize validates every bound value by type. Problems are collected so
// one error names every offending field.
func (s schema) normalize(b binding, problems *domain.FieldProblems) ([]domain.FieldValue, []pendingUpload) {
	var values []domain.FieldValue
	for _, id := range sortedIDs(b.values) {
		f := s.byID[id]
		v, err := normalizeValue(f, b.values[id])
		if err != nil {
			problems.Add(problemReason(f), f.Name)
			continue
		}
		values = append(values, v)
	}
	var uploads []pendingUpload
	for _, id := range sortedIDs(b.files) {
		f := s.byID[id]
		up := b.files[id]
		contentType, err := checkUpload(up)
		if err != nil {
			problems.Add(err.Error(), f.Name)
			continue
		}
		uploads = append(uploads, pendingUpload{field: f, upload: up, contentType: contentType})
	}
	return values, uploads
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedIDs[V any](m map[int64]V) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
