package catalog

import (
	"context"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"wildlifecore/pkg/domain"
)

const defaultResolverTTL = 10 * time.Minute

// resolver caches resolved field sets per category. Keys carry the current
// generation, which every commit bumps, so an entry computed against older
// state is never served.
type resolver struct {
	cache      *cache.Cache
	generation atomic.Uint64
}

func newResolver(ttl time.Duration) *resolver {
	return &resolver{cache: cache.New(ttl, 2*ttl)}
}

func (r *resolver) key(gen uint64, categoryID int64) string {
	return strconv.FormatUint(gen, 10) + ":" + strconv.FormatInt(categoryID, 10)
}

func (r *resolver) invalidate() {
	r.generation.Add(1)
	r.cache.Flush()
}

func (r *resolver) get(gen uint64, categoryID int64) ([]domain.Field, bool) {
	cached, ok := r.cache.Get(r.key(gen, categoryID))
	if !ok {
		return nil, false
	}
	return cloneFields(cached.([]domain.Field)), true
}

func (r *resolver) put(gen uint64, categoryID int64, fields []domain.Field) {
	r.cache.SetDefault(r.key(gen, categoryID), cloneFields(fields))
}

// resolveView computes the union of fields attached to categoryID and its
// ancestors, sorted by field id.
func resolveView(view domain.TransactionView, categoryID int64) ([]domain.Field, error) {
	chain, ok := view.Ancestors(categoryID)
	if !ok {
		return nil, domain.NotFound(domain.EntityCategory, categoryID)
	}
	seen := make(map[int64]struct{})
	var fields []domain.Field
	for _, id := range chain {
		for _, fieldID := range view.CategoryFieldIDs(id) {
			if _, dup := seen[fieldID]; dup {
				continue
			}
			seen[fieldID] = struct{}{}
			if f, ok := view.FindField(fieldID); ok {
				fields = append(fields, f)
			}
		}
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].ID < fields[j].ID })
	return fields, nil
}

// ResolveFields returns every field valid for records of categoryID: those
// attached to the category or any ancestor, without duplicates, by id.
func (s *Service) ResolveFields(ctx context.Context, categoryID int64) ([]domain.Field, error) {
	gen := s.resolver.generation.Load()
	if fields, ok := s.resolver.get(gen, categoryID); ok {
		return fields, nil
	}
	var fields []domain.Field
	err := s.view(ctx, "resolve_fields", func(view domain.TransactionView) error {
		var err error
		fields, err = resolveView(view, categoryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.resolver.put(gen, categoryID, fields)
	return fields, nil
}

// ResolveFieldIDs is ResolveFields reduced to ids.
func (s *Service) ResolveFieldIDs(ctx context.Context, categoryID int64) ([]int64, error) {
	fields, err := s.ResolveFields(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	return fieldIDs(fields), nil
}

func fieldIDs(fields []domain.Field) []int64 {
	ids := make([]int64, len(fields))
	for i, f := range fields {
		ids[i] = f.ID
	}
	return ids
}

func cloneFields(in []domain.Field) []domain.Field {
	if in == nil {
		return nil
	}
	out := make([]domain.Field, len(in))
	for i, f := range in {
		f.Options = append([]string(nil), f.Options...)
		out[i] = f
	}
	return out
}
