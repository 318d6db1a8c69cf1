package memory

import (
	"encoding/json"
	"fmt"
	"sort"
)

type valueKey struct {
	recordID int64
	fieldID  int64
}

// Sequences holds the last id handed out per entity kind.
type Sequences struct {
	Category int64 `json:"category"`
	Field    int64 `json:"field"`
	Record   int64 `json:"record"`
	Image    int64 `json:"image"`
}

type memoryState struct {
	categories map[int64]Category
	fields     map[int64]Field
	links      map[FieldCategory]struct{}
	records    map[int64]Record
	values     map[valueKey]FieldValue
	images     map[int64]Image
	seq        Sequences
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Categories   map[int64]Category `json:"categories"`
	Fields       map[int64]Field    `json:"fields"`
	Associations []FieldCategory    `json:"associations"`
	Records      map[int64]Record   `json:"records"`
	Values       []FieldValue       `json:"values"`
	Images       map[int64]Image    `json:"images"`
	Sequences    Sequences          `json:"sequences"`
}

// Buckets names the snapshot sections persisted by the SQL backends, in
// write order.
var Buckets = []string{"categories", "fields", "associations", "records", "values", "images", "sequences"}

func (s *Snapshot) bucketTarget(bucket string) (any, bool) {
	switch bucket {
	case "categories":
		return &s.Categories, true
	case "fields":
		return &s.Fields, true
	case "associations":
		return &s.Associations, true
	case "records":
		return &s.Records, true
	case "values":
		return &s.Values, true
	case "images":
		return &s.Images, true
	case "sequences":
		return &s.Sequences, true
	}
	return nil, false
}

// EncodeBucket renders one snapshot section as JSON.
func (s Snapshot) EncodeBucket(bucket string) ([]byte, error) {
	target, ok := s.bucketTarget(bucket)
	if !ok {
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}
	data, err := json.Marshal(target)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", bucket, err)
	}
	return data, nil
}

// DecodeBucket fills one snapshot section from JSON. Unknown buckets are ignored.
func (s *Snapshot) DecodeBucket(bucket string, payload []byte) error {
	target, ok := s.bucketTarget(bucket)
	if !ok || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}

func newMemoryState() memoryState {
	return memoryState{
		categories: make(map[int64]Category),
		fields:     make(map[int64]Field),
		links:      make(map[FieldCategory]struct{}),
		records:    make(map[int64]Record),
		values:     make(map[valueKey]FieldValue),
		images:     make(map[int64]Image),
	}
}

func (s memoryState) clone() memoryState {
	c := newMemoryState()
	for k, v := range s.categories {
		c.categories[k] = cloneCategory(v)
	}
	for k, v := range s.fields {
		c.fields[k] = cloneField(v)
	}
	for k := range s.links {
		c.links[k] = struct{}{}
	}
	for k, v := range s.records {
		c.records[k] = cloneRecord(v)
	}
	for k, v := range s.values {
		c.values[k] = cloneValue(v)
	}
	for k, v := range s.images {
		c.images[k] = v
	}
	c.seq = s.seq
	return c
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cloned := state.clone()
	s := Snapshot{
		Categories:   cloned.categories,
		Fields:       cloned.fields,
		Associations: make([]FieldCategory, 0, len(cloned.links)),
		Records:      cloned.records,
		Values:       make([]FieldValue, 0, len(cloned.values)),
		Images:       cloned.images,
		Sequences:    cloned.seq,
	}
	for link := range cloned.links {
		s.Associations = append(s.Associations, link)
	}
	sort.Slice(s.Associations, func(i, j int) bool {
		a, b := s.Associations[i], s.Associations[j]
		if a.FieldID != b.FieldID {
			return a.FieldID < b.FieldID
		}
		return a.CategoryID < b.CategoryID
	})
	for _, v := range cloned.values {
		s.Values = append(s.Values, v)
	}
	sortValues(s.Values)
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Categories {
		state.categories[k] = cloneCategory(v)
	}
	for k, v := range s.Fields {
		state.fields[k] = cloneField(v)
	}
	for _, link := range s.Associations {
		state.links[link] = struct{}{}
	}
	for k, v := range s.Records {
		state.records[k] = cloneRecord(v)
	}
	for _, v := range s.Values {
		state.values[valueKey{recordID: v.RecordID, fieldID: v.FieldID}] = cloneValue(v)
	}
	for k, v := range s.Images {
		state.images[k] = v
	}
	state.seq = s.Sequences
	return state
}

// migrateSnapshot normalizes a persisted snapshot: nil sections become empty,
// rows referencing missing parents are dropped, dangling optional references
// are cleared and sequences never fall behind stored ids.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Categories == nil {
		snapshot.Categories = map[int64]Category{}
	}
	if snapshot.Fields == nil {
		snapshot.Fields = map[int64]Field{}
	}
	if snapshot.Records == nil {
		snapshot.Records = map[int64]Record{}
	}
	if snapshot.Images == nil {
		snapshot.Images = map[int64]Image{}
	}

	for id, c := range snapshot.Categories {
		c.ID = id
		if c.ParentID != nil {
			if _, ok := snapshot.Categories[*c.ParentID]; !ok || *c.ParentID == id {
				c.ParentID = nil
			}
		}
		snapshot.Categories[id] = c
	}
	for id, f := range snapshot.Fields {
		f.ID = id
		snapshot.Fields[id] = f
	}

	links := snapshot.Associations[:0:0]
	seenLinks := make(map[FieldCategory]struct{})
	for _, link := range snapshot.Associations {
		if _, ok := snapshot.Fields[link.FieldID]; !ok {
			continue
		}
		if _, ok := snapshot.Categories[link.CategoryID]; !ok {
			continue
		}
		if _, dup := seenLinks[link]; dup {
			continue
		}
		seenLinks[link] = struct{}{}
		links = append(links, link)
	}
	snapshot.Associations = links

	for id, r := range snapshot.Records {
		if _, ok := snapshot.Categories[r.CategoryID]; !ok {
			delete(snapshot.Records, id)
			continue
		}
		r.ID = id
		snapshot.Records[id] = r
	}
	for id, img := range snapshot.Images {
		if _, ok := snapshot.Records[img.RecordID]; !ok || img.Ref == "" {
			delete(snapshot.Images, id)
			continue
		}
		img.ID = id
		snapshot.Images[id] = img
	}
	for id, r := range snapshot.Records {
		if r.ThumbnailID == nil {
			continue
		}
		if img, ok := snapshot.Images[*r.ThumbnailID]; !ok || img.RecordID != id {
			r.ThumbnailID = nil
			snapshot.Records[id] = r
		}
	}

	values := snapshot.Values[:0:0]
	for _, v := range snapshot.Values {
		if _, ok := snapshot.Records[v.RecordID]; !ok {
			continue
		}
		if _, ok := snapshot.Fields[v.FieldID]; !ok {
			continue
		}
		values = append(values, v)
	}
	snapshot.Values = values

	for id := range snapshot.Categories {
		snapshot.Sequences.Category = max(snapshot.Sequences.Category, id)
	}
	for id := range snapshot.Fields {
		snapshot.Sequences.Field = max(snapshot.Sequences.Field, id)
	}
	for id := range snapshot.Records {
		snapshot.Sequences.Record = max(snapshot.Sequences.Record, id)
	}
	for id := range snapshot.Images {
		snapshot.Sequences.Image = max(snapshot.Sequences.Image, id)
	}
	return snapshot
}

func cloneCategory(c Category) Category {
	if c.ParentID != nil {
		p := *c.ParentID
		c.ParentID = &p
	}
	return c
}

func cloneField(f Field) Field {
	if f.Options != nil {
		f.Options = append([]string(nil), f.Options...)
	}
	return f
}

func cloneRecord(r Record) Record {
	if r.ThumbnailID != nil {
		t := *r.ThumbnailID
		r.ThumbnailID = &t
	}
	return r
}

func cloneValue(v FieldValue) FieldValue {
	if v.Months != nil {
		m := *v.Months
		v.Months = &m
	}
	return v
}

func sortValues(values []FieldValue) {
	sort.Slice(values, func(i, j int) bool {
		if values[i].RecordID != values[j].RecordID {
			return values[i].RecordID < values[j].RecordID
		}
		return values[i].FieldID < values[j].FieldID
	})
}
