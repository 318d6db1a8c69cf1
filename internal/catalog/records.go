package catalog

import (
	"context"
	"strings"

	"wildlifecore/pkg/domain"
)

// CreateRecord validates in against the resolved fields of its category and
// stores the record with all its values in one transaction. Image uploads
// are written to the blob store first and removed again if nothing commits.
func (s *Service) CreateRecord(ctx context.Context, in RecordInput) (RecordDetail, error) {
	var (
		detail RecordDetail
		saved  []string
	)
	_, err := s.run(ctx, "create_record", func(tx domain.Transaction) error {
		view := tx.Snapshot()
		if err := checkRecordNames(view, 0, in.Name, in.ScientificName); err != nil {
			return err
		}
		if _, ok := view.FindCategory(in.CategoryID); !ok {
			return domain.NotFound(domain.EntityCategory, in.CategoryID)
		}
		fields, err := resolveView(view, in.CategoryID)
		if err != nil {
			return err
		}
		sch := newSchema(fields)
		problems := domain.NewFieldProblems(domain.EntityRecord)
		bound := sch.bind(in.Values, in.Files, true, problems)
		if err := problems.Err(); err != nil {
			return err
		}
		values, uploads := sch.normalize(bound, problems)
		if err := problems.Err(); err != nil {
			return err
		}

		record, err := tx.CreateRecord(domain.Record{Name: in.Name, ScientificName: in.ScientificName, CategoryID: in.CategoryID})
		if err != nil {
			return err
		}
		imageValues, err := s.saveUploads(ctx, uploads, &saved)
		if err != nil {
			return err
		}
		for _, v := range append(values, imageValues...) {
			v.RecordID = record.ID
			if err := tx.PutFieldValue(v); err != nil {
				return err
			}
		}
		detail = recordDetail(tx.Snapshot(), record)
		return nil
	})
	if err != nil {
		s.removeBlobs(ctx, "create_record", saved)
		return RecordDetail{}, err
	}
	return detail, nil
}

// EditRecord applies a partial update. Supplied values are validated against
// the resolved fields of the record's (possibly new) category and upserted.
// Moving to another category drops values that no longer resolve and
// requires a value for every field of the new category.
func (s *Service) EditRecord(ctx context.Context, id int64, edit RecordEdit) (RecordDetail, error) {
	var (
		detail RecordDetail
		saved  []string
		stale  []string
	)
	_, err := s.run(ctx, "edit_record", func(tx domain.Transaction) error {
		view := tx.Snapshot()
		current, ok := view.FindRecord(id)
		if !ok {
			return domain.NotFound(domain.EntityRecord, id)
		}
		next := current
		if edit.Name != nil {
			next.Name = *edit.Name
		}
		if edit.ScientificName != nil {
			next.ScientificName = *edit.ScientificName
		}
		if err := checkRecordNames(view, id, next.Name, next.ScientificName); err != nil {
			return err
		}
		if edit.CategoryID != nil {
			if _, ok := view.FindCategory(*edit.CategoryID); !ok {
				return domain.NotFound(domain.EntityCategory, *edit.CategoryID)
			}
			next.CategoryID = *edit.CategoryID
		}
		fields, err := resolveView(view, next.CategoryID)
		if err != nil {
			return err
		}
		sch := newSchema(fields)
		problems := domain.NewFieldProblems(domain.EntityRecord)
		bound := sch.bind(edit.Values, edit.Files, false, problems)

		existing := make(map[int64]domain.FieldValue)
		for _, v := range view.RecordValues(id) {
			existing[v.FieldID] = v
		}
		if next.CategoryID != current.CategoryID {
			for _, f := range sch.fields {
				if _, kept := existing[f.ID]; kept || bound.supplied(f.ID) {
					continue
				}
				if f.Type == domain.FieldImage {
					problems.Add(reasonMissingFile, f.Name)
				} else {
					problems.Add(reasonMissing, f.Name)
				}
			}
		}
		if err := problems.Err(); err != nil {
			return err
		}
		values, uploads := sch.normalize(bound, problems)
		if err := problems.Err(); err != nil {
			return err
		}

		for _, fieldID := range sortedIDs(existing) {
			if sch.has(fieldID) {
				continue
			}
			if err := tx.DeleteFieldValue(id, fieldID); err != nil {
				return err
			}
			if f, ok := view.FindField(fieldID); ok && f.Type == domain.FieldImage {
				stale = append(stale, existing[fieldID].Value)
			}
		}
		if _, err := tx.UpdateRecord(id, func(r *domain.Record) error {
			r.Name = next.Name
			r.ScientificName = next.ScientificName
			r.CategoryID = next.CategoryID
			return nil
		}); err != nil {
			return err
		}
		imageValues, err := s.saveUploads(ctx, uploads, &saved)
		if err != nil {
			return err
		}
		for _, v := range imageValues {
			if old, ok := existing[v.FieldID]; ok {
				stale = append(stale, old.Value)
			}
		}
		for _, v := range append(values, imageValues...) {
			v.RecordID = id
			if err := tx.PutFieldValue(v); err != nil {
				return err
			}
		}
		updated, _ := tx.Snapshot().FindRecord(id)
		detail = recordDetail(tx.Snapshot(), updated)
		return nil
	})
	if err != nil {
		s.removeBlobs(ctx, "edit_record", saved)
		return RecordDetail{}, err
	}
	s.removeBlobs(ctx, "edit_record", stale)
	return detail, nil
}

// GetRecord returns a record with its typed values and gallery.
func (s *Service) GetRecord(ctx context.Context, id int64) (RecordDetail, error) {
	var detail RecordDetail
	err := s.view(ctx, "get_record", func(view domain.TransactionView) error {
		record, ok := view.FindRecord(id)
		if !ok {
			return domain.NotFound(domain.EntityRecord, id)
		}
		detail = recordDetail(view, record)
		return nil
	})
	return detail, err
}

// ListRecords returns every record sorted by id. Given category ids, only
// records within their subtrees are listed.
func (s *Service) ListRecords(ctx context.Context, categoryIDs ...int64) ([]RecordDetail, error) {
	var out []RecordDetail
	err := s.view(ctx, "list_records", func(view domain.TransactionView) error {
		scope := newScope(view, categoryIDs)
		for _, r := range view.ListRecords() {
			if scope.includes(r) {
				out = append(out, recordDetail(view, r))
			}
		}
		return nil
	})
	return out, err
}

// DeleteRecord removes a record with its values and gallery. Backing blobs
// are removed after commit.
func (s *Service) DeleteRecord(ctx context.Context, id int64) error {
	var refs []string
	_, err := s.run(ctx, "delete_record", func(tx domain.Transaction) error {
		view := tx.Snapshot()
		if _, ok := view.FindRecord(id); !ok {
			return domain.NotFound(domain.EntityRecord, id)
		}
		refs = blobRefs(view, []int64{id})
		return tx.DeleteRecords([]int64{id})
	})
	if err != nil {
		return err
	}
	s.removeBlobs(ctx, "delete_record", refs)
	return nil
}

// checkRecordNames enforces global uniqueness of both names, ignoring selfID.
func checkRecordNames(view domain.TransactionView, selfID int64, name, scientificName string) error {
	if other, ok := view.FindRecordByName(name); ok && other.ID != selfID {
		return domain.Conflict(domain.EntityRecord, "record name %q already exists", name)
	}
	if other, ok := view.FindRecordByScientificName(scientificName); ok && other.ID != selfID {
		return domain.Conflict(domain.EntityRecord, "scientific name %q already exists", scientificName)
	}
	var blank []string
	if strings.TrimSpace(name) == "" {
		blank = append(blank, "name")
	}
	if strings.TrimSpace(scientificName) == "" {
		blank = append(blank, "scientific_name")
	}
	if len(blank) > 0 {
		return domain.InvalidArgument(domain.EntityRecord, "required record attributes are blank", blank...)
	}
	return nil
}

// saveUploads writes each upload under a new reference and returns the image
// values to store. Every written reference is appended to saved.
func (s *Service) saveUploads(ctx context.Context, uploads []pendingUpload, saved *[]string) ([]domain.FieldValue, error) {
	values := make([]domain.FieldValue, 0, len(uploads))
	for _, up := range uploads {
		ref, err := s.images.Save(ctx, up.upload.Filename, up.contentType, up.upload.Data)
		if err != nil {
			return nil, err
		}
		*saved = append(*saved, ref)
		values = append(values, domain.FieldValue{FieldID: up.field.ID, Value: ref})
	}
	return values, nil
}

func recordDetail(view domain.TransactionView, record domain.Record) RecordDetail {
	detail := RecordDetail{Record: record, Values: []TypedValue{}, Images: view.ListImages(record.ID)}
	if detail.Images == nil {
		detail.Images = []domain.Image{}
	}
	for _, v := range view.RecordValues(record.ID) {
		f, ok := view.FindField(v.FieldID)
		if !ok {
			continue
		}
		detail.Values = append(detail.Values, typedValue(f, v))
	}
	return detail
}

// blobRefs collects gallery and IMAGE value references of the given records.
func blobRefs(view domain.TransactionView, recordIDs []int64) []string {
	var refs []string
	for _, id := range recordIDs {
		for _, img := range view.ListImages(id) {
			refs = append(refs, img.Ref)
		}
		for _, v := range view.RecordValues(id) {
			if f, ok := view.FindField(v.FieldID); ok && f.Type == domain.FieldImage {
				refs = append(refs, v.Value)
			}
		}
	}
	return refs
}
