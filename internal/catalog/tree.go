package catalog

import (
	"context"

	"wildlifecore/pkg/domain"
)

// CreateCategory adds a category under parentID, or a root when nil.
func (s *Service) CreateCategory(ctx context.Context, name string, parentID *int64) (domain.Category, error) {
	var created domain.Category
	_, err := s.run(ctx, "create_category", func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateCategory(domain.Category{Name: name, ParentID: copyID(parentID)})
		return err
	})
	return created, err
}

// GetCategory returns a single category.
func (s *Service) GetCategory(ctx context.Context, id int64) (domain.Category, error) {
	var category domain.Category
	err := s.view(ctx, "get_category", func(view domain.TransactionView) error {
		var ok bool
		if category, ok = view.FindCategory(id); !ok {
			return domain.NotFound(domain.EntityCategory, id)
		}
		return nil
	})
	return category, err
}

// ListCategories returns every category sorted by id.
func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	err := s.view(ctx, "list_categories", func(view domain.TransactionView) error {
		categories = view.ListCategories()
		return nil
	})
	return categories, err
}

// AncestorChain returns id followed by its ancestors, root last.
func (s *Service) AncestorChain(ctx context.Context, id int64) ([]int64, error) {
	var chain []int64
	err := s.view(ctx, "ancestor_chain", func(view domain.TransactionView) error {
		var ok bool
		if chain, ok = view.Ancestors(id); !ok {
			return domain.NotFound(domain.EntityCategory, id)
		}
		return nil
	})
	return chain, err
}

// DescendantClosure returns ids and all their subcategories, ascending.
// Unknown ids contribute nothing.
func (s *Service) DescendantClosure(ctx context.Context, ids []int64) ([]int64, error) {
	closure := []int64{}
	err := s.view(ctx, "descendant_closure", func(view domain.TransactionView) error {
		closure = append(closure, view.Descendants(ids)...)
		return nil
	})
	return closure, err
}

// MoveCategory reparents id under newParent, or makes it a root when nil.
// Values of records in the moved subtree whose field no longer resolves are
// dropped.
func (s *Service) MoveCategory(ctx context.Context, id int64, newParent *int64) (domain.Category, error) {
	var (
		moved domain.Category
		refs  []string
	)
	_, err := s.run(ctx, "move_category", func(tx domain.Transaction) error {
		var err error
		moved, err = tx.UpdateCategory(id, func(c *domain.Category) error {
			c.ParentID = copyID(newParent)
			return nil
		})
		if err != nil {
			return err
		}
		refs, err = dropUnresolvedValues(tx, tx.Snapshot().Descendants([]int64{id}))
		return err
	})
	if err != nil {
		return domain.Category{}, err
	}
	s.removeBlobs(ctx, "move_category", refs)
	return moved, nil
}

// DeleteCategory removes a category. DeleteReassign moves its direct records
// and subcategories to its parent and fails for roots. DeleteCascade removes
// the whole subtree with every member record, value and image.
func (s *Service) DeleteCategory(ctx context.Context, id int64, mode DeleteMode) error {
	var refs []string
	_, err := s.run(ctx, "delete_category", func(tx domain.Transaction) error {
		view := tx.Snapshot()
		category, ok := view.FindCategory(id)
		if !ok {
			return domain.NotFound(domain.EntityCategory, id)
		}
		var err error
		switch mode {
		case DeleteReassign:
			refs, err = reassignCategory(tx, category)
		case DeleteCascade:
			refs, err = cascadeCategory(tx, category)
		default:
			err = domain.InvalidArgument(domain.EntityCategory, "unknown delete mode "+string(mode))
		}
		return err
	})
	if err != nil {
		return err
	}
	s.removeBlobs(ctx, "delete_category", refs)
	return nil
}

func reassignCategory(tx domain.Transaction, category domain.Category) ([]string, error) {
	if category.ParentID == nil {
		return nil, domain.InvalidOperation(domain.EntityCategory, "category %d has no parent to reassign members to", category.ID)
	}
	parent := *category.ParentID
	view := tx.Snapshot()
	affected := view.Descendants([]int64{category.ID})
	for _, r := range view.ListRecords() {
		if r.CategoryID != category.ID {
			continue
		}
		if _, err := tx.UpdateRecord(r.ID, func(rec *domain.Record) error {
			rec.CategoryID = parent
			return nil
		}); err != nil {
			return nil, err
		}
	}
	for _, childID := range childrenOf(view, category.ID) {
		if _, err := tx.UpdateCategory(childID, func(c *domain.Category) error {
			c.ParentID = copyID(&parent)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	if err := tx.DeleteCategories([]int64{category.ID}); err != nil {
		return nil, err
	}
	scope := []int64{parent}
	for _, id := range affected {
		if id != category.ID {
			scope = append(scope, id)
		}
	}
	return dropUnresolvedValues(tx, scope)
}

func cascadeCategory(tx domain.Transaction, category domain.Category) ([]string, error) {
	view := tx.Snapshot()
	closure := view.Descendants([]int64{category.ID})
	inClosure := make(map[int64]struct{}, len(closure))
	for _, id := range closure {
		inClosure[id] = struct{}{}
	}
	var doomed []int64
	for _, r := range view.ListRecords() {
		if _, ok := inClosure[r.CategoryID]; ok {
			doomed = append(doomed, r.ID)
		}
	}
	refs := blobRefs(view, doomed)
	if len(doomed) > 0 {
		if err := tx.DeleteRecords(doomed); err != nil {
			return nil, err
		}
	}
	if err := tx.DeleteCategories(closure); err != nil {
		return nil, err
	}
	return refs, nil
}

// Taxonomy returns every category with its direct subcategories and resolved
// field ids, plus the field dictionary.
func (s *Service) Taxonomy(ctx context.Context) (Taxonomy, error) {
	out := Taxonomy{Categories: []TaxonomyNode{}, Fields: []domain.Field{}}
	err := s.view(ctx, "taxonomy", func(view domain.TransactionView) error {
		idx := domain.NewCategoryIndex(view.ListCategories())
		for _, c := range view.ListCategories() {
			fields, err := resolveView(view, c.ID)
			if err != nil {
				return err
			}
			node := TaxonomyNode{Category: c, SubcategoryIDs: idx.Children(c.ID), FieldIDs: fieldIDs(fields)}
			if node.SubcategoryIDs == nil {
				node.SubcategoryIDs = []int64{}
			}
			out.Categories = append(out.Categories, node)
		}
		out.Fields = append(out.Fields, view.ListFields()...)
		return nil
	})
	return out, err
}

// dropUnresolvedValues deletes values of records in categoryIDs whose field
// is no longer part of the record's resolved set and returns the image
// references that lost their value.
func dropUnresolvedValues(tx domain.Transaction, categoryIDs []int64) ([]string, error) {
	view := tx.Snapshot()
	inScope := make(map[int64]struct{}, len(categoryIDs))
	for _, id := range categoryIDs {
		inScope[id] = struct{}{}
	}
	resolved := make(map[int64]schema)
	var refs []string
	for _, r := range view.ListRecords() {
		if _, ok := inScope[r.CategoryID]; !ok {
			continue
		}
		sch, ok := resolved[r.CategoryID]
		if !ok {
			fields, err := resolveView(view, r.CategoryID)
			if err != nil {
				return nil, err
			}
			sch = newSchema(fields)
			resolved[r.CategoryID] = sch
		}
		for _, v := range view.RecordValues(r.ID) {
			if sch.has(v.FieldID) {
				continue
			}
			if err := tx.DeleteFieldValue(r.ID, v.FieldID); err != nil {
				return nil, err
			}
			if f, ok := view.FindField(v.FieldID); ok && f.Type == domain.FieldImage {
				refs = append(refs, v.Value)
			}
		}
	}
	return refs, nil
}

func childrenOf(view domain.TransactionView, id int64) []int64 {
	return domain.NewCategoryIndex(view.ListCategories()).Children(id)
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
