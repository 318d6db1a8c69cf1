package catalog

import (
	"context"
	"strings"

	"wildlifecore/pkg/domain"
)

// CreateField defines a field and attaches it to spec.CategoryIDs in one
// transaction.
func (s *Service) CreateField(ctx context.Context, spec FieldSpec) (domain.Field, error) {
	var created domain.Field
	_, err := s.run(ctx, "create_field", func(tx domain.Transaction) error {
		field, err := checkFieldSpec(tx.Snapshot(), spec)
		if err != nil {
			return err
		}
		if created, err = tx.CreateField(field); err != nil {
			return err
		}
		for _, categoryID := range spec.CategoryIDs {
			if _, err := tx.AttachField(created.ID, categoryID); err != nil {
				return err
			}
		}
		return nil
	})
	return created, err
}

func checkFieldSpec(view domain.TransactionView, spec FieldSpec) (domain.Field, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return domain.Field{}, domain.InvalidArgument(domain.EntityField, "field name is required")
	}
	if _, taken := view.FindFieldByName(spec.Name); taken {
		return domain.Field{}, domain.Conflict(domain.EntityField, "field %q already exists", spec.Name)
	}
	fieldType, ok := domain.ParseFieldType(string(spec.Type))
	if !ok {
		return domain.Field{}, domain.InvalidArgument(domain.EntityField, "unknown field type "+string(spec.Type))
	}
	switch fieldType {
	case domain.FieldEnum:
		if len(spec.Options) == 0 {
			return domain.Field{}, domain.InvalidArgument(domain.EntityField, "enum field requires options")
		}
		seen := make(map[string]struct{}, len(spec.Options))
		for _, opt := range spec.Options {
			if strings.TrimSpace(opt) == "" {
				return domain.Field{}, domain.InvalidArgument(domain.EntityField, "enum options must not be blank")
			}
			if _, dup := seen[opt]; dup {
				return domain.Field{}, domain.InvalidArgument(domain.EntityField, "duplicate enum option "+opt)
			}
			seen[opt] = struct{}{}
		}
	case domain.FieldText, domain.FieldNumber, domain.FieldImage, domain.FieldMonthRange:
		if len(spec.Options) > 0 {
			return domain.Field{}, domain.InvalidArgument(domain.EntityField, "options are only allowed on ENUM fields")
		}
	}
	for _, categoryID := range spec.CategoryIDs {
		if _, ok := view.FindCategory(categoryID); !ok {
			return domain.Field{}, domain.NotFound(domain.EntityCategory, categoryID)
		}
	}
	return domain.Field{Name: spec.Name, Type: fieldType, Options: append([]string(nil), spec.Options...)}, nil
}

// EditField renames a field and attaches it to more categories. Existing
// associations are left as they are.
func (s *Service) EditField(ctx context.Context, id int64, edit FieldEdit) (domain.Field, error) {
	var updated domain.Field
	_, err := s.run(ctx, "edit_field", func(tx domain.Transaction) error {
		view := tx.Snapshot()
		field, ok := view.FindField(id)
		if !ok {
			return domain.NotFound(domain.EntityField, id)
		}
		for _, categoryID := range edit.AddCategoryIDs {
			if _, ok := view.FindCategory(categoryID); !ok {
				return domain.NotFound(domain.EntityCategory, categoryID)
			}
		}
		if edit.NewName != nil && *edit.NewName != field.Name {
			var err error
			field, err = tx.UpdateField(id, func(f *domain.Field) error {
				f.Name = *edit.NewName
				return nil
			})
			if err != nil {
				return err
			}
		}
		for _, categoryID := range edit.AddCategoryIDs {
			if _, err := tx.AttachField(id, categoryID); err != nil {
				return err
			}
		}
		updated = field
		return nil
	})
	return updated, err
}

// DeleteField removes a field with its associations and stored values. Image
// blobs of an IMAGE field are removed after commit.
func (s *Service) DeleteField(ctx context.Context, id int64) error {
	var refs []string
	_, err := s.run(ctx, "delete_field", func(tx domain.Transaction) error {
		view := tx.Snapshot()
		field, ok := view.FindField(id)
		if !ok {
			return domain.NotFound(domain.EntityField, id)
		}
		if field.Type == domain.FieldImage {
			for _, v := range view.FieldValues(id) {
				refs = append(refs, v.Value)
			}
		}
		return tx.DeleteField(id)
	})
	if err != nil {
		return err
	}
	s.removeBlobs(ctx, "delete_field", refs)
	return nil
}

// DetachField removes the association between a field and one category.
// Records of that subtree lose values of the field unless an ancestor still
// provides it.
func (s *Service) DetachField(ctx context.Context, fieldID, categoryID int64) error {
	var refs []string
	_, err := s.run(ctx, "detach_field", func(tx domain.Transaction) error {
		view := tx.Snapshot()
		if _, ok := view.FindField(fieldID); !ok {
			return domain.NotFound(domain.EntityField, fieldID)
		}
		if _, ok := view.FindCategory(categoryID); !ok {
			return domain.NotFound(domain.EntityCategory, categoryID)
		}
		if err := tx.DetachField(fieldID, categoryID); err != nil {
			return err
		}
		var err error
		refs, err = dropUnresolvedValues(tx, view.Descendants([]int64{categoryID}))
		return err
	})
	if err != nil {
		return err
	}
	s.removeBlobs(ctx, "detach_field", refs)
	return nil
}

// GetField returns a single field definition.
func (s *Service) GetField(ctx context.Context, id int64) (domain.Field, error) {
	var field domain.Field
	err := s.view(ctx, "get_field", func(view domain.TransactionView) error {
		var ok bool
		if field, ok = view.FindField(id); !ok {
			return domain.NotFound(domain.EntityField, id)
		}
		return nil
	})
	return field, err
}

// ListFields returns every field sorted by id.
func (s *Service) ListFields(ctx context.Context) ([]domain.Field, error) {
	var fields []domain.Field
	err := s.view(ctx, "list_fields", func(view domain.TransactionView) error {
		fields = view.ListFields()
		return nil
	})
	return fields, err
}
