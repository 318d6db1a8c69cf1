package catalog

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"wildlifecore/pkg/domain"
)

// scope restricts results to records in a category closure. A nil scope
// admits every record.
type scope map[int64]struct{}

// newScope expands categoryIDs to their descendant closure. Empty input
// means unscoped; a non-empty input with an empty closure admits nothing.
func newScope(view domain.TransactionView, categoryIDs []int64) scope {
	if len(categoryIDs) == 0 {
		return nil
	}
	sc := scope{}
	for _, id := range view.Descendants(categoryIDs) {
		sc[id] = struct{}{}
	}
	return sc
}

func (sc scope) includes(r domain.Record) bool {
	if sc == nil {
		return true
	}
	_, ok := sc[r.CategoryID]
	return ok
}

func typedField(view domain.TransactionView, id int64, want domain.FieldType) (domain.Field, error) {
	f, ok := view.FindField(id)
	if !ok {
		return domain.Field{}, domain.NotFound(domain.EntityField, id)
	}
	if f.Type != want {
		return domain.Field{}, domain.InvalidArgument(domain.EntityField, "field "+f.Name+" is "+string(f.Type)+", not "+string(want))
	}
	return f, nil
}

// recordsOf maps matching values to their records, sorted by id.
func recordsOf(view domain.TransactionView, values []domain.FieldValue, sc scope, match func(domain.FieldValue) bool) []domain.Record {
	out := []domain.Record{}
	for _, v := range values {
		if !match(v) {
			continue
		}
		r, ok := view.FindRecord(v.RecordID)
		if !ok || !sc.includes(r) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SearchNumber finds records by exact value or by exclusive bounds on a
// NUMBER field. Values compare as exact decimals.
func (s *Service) SearchNumber(ctx context.Context, q NumberQuery) ([]domain.Record, error) {
	if q.Exact != nil && (q.Min != nil || q.Max != nil) {
		return nil, domain.InvalidArgument(domain.EntityField, "exact value cannot be combined with range bounds")
	}
	if q.Exact == nil && q.Min == nil && q.Max == nil {
		return nil, domain.InvalidArgument(domain.EntityField, "an exact value or a range bound is required")
	}
	problems := domain.NewFieldProblems(domain.EntityField)
	parse := func(name string, raw *string) string {
		if raw == nil {
			return ""
		}
		canonical, err := NormalizeNumber(*raw)
		if err != nil {
			problems.Add("invalid number", name)
		}
		return canonical
	}
	exact, lower, upper := parse("exact_value", q.Exact), parse("min_value", q.Min), parse("max_value", q.Max)
	if err := problems.Err(); err != nil {
		return nil, err
	}

	var out []domain.Record
	err := s.view(ctx, "search_number", func(view domain.TransactionView) error {
		if _, err := typedField(view, q.FieldID, domain.FieldNumber); err != nil {
			return err
		}
		exactRat, _ := numberValue(exact)
		minRat, _ := numberValue(lower)
		maxRat, _ := numberValue(upper)
		out = recordsOf(view, view.FieldValues(q.FieldID), nil, func(v domain.FieldValue) bool {
			n, ok := numberValue(v.Value)
			if !ok {
				return false
			}
			if q.Exact != nil {
				return n.Cmp(exactRat) == 0
			}
			if q.Min != nil && n.Cmp(minRat) <= 0 {
				return false
			}
			if q.Max != nil && n.Cmp(maxRat) >= 0 {
				return false
			}
			return true
		})
		return nil
	})
	return out, err
}

// SearchText finds records whose TEXT value contains the query, ignoring case.
func (s *Service) SearchText(ctx context.Context, q TextQuery) ([]domain.Record, error) {
	var out []domain.Record
	err := s.view(ctx, "search_text", func(view domain.TransactionView) error {
		if _, err := typedField(view, q.FieldID, domain.FieldText); err != nil {
			return err
		}
		fold := cases.Fold()
		needle := fold.String(q.Query)
		out = recordsOf(view, view.FieldValues(q.FieldID), newScope(view, q.CategoryIDs), func(v domain.FieldValue) bool {
			return strings.Contains(fold.String(v.Value), needle)
		})
		return nil
	})
	return out, err
}

// SearchNames finds records whose name or scientific name contains the query,
// ignoring case.
func (s *Service) SearchNames(ctx context.Context, q NameQuery) ([]domain.Record, error) {
	out := []domain.Record{}
	err := s.view(ctx, "search_names", func(view domain.TransactionView) error {
		fold := cases.Fold()
		needle := fold.String(q.Query)
		sc := newScope(view, q.CategoryIDs)
		for _, r := range view.ListRecords() {
			if !sc.includes(r) {
				continue
			}
			if strings.Contains(fold.String(r.Name), needle) || strings.Contains(fold.String(r.ScientificName), needle) {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}

// SearchMonth finds records whose MONTH_RANGE value contains q.Month. Ranges
// with a begin after their end wrap across the new year.
func (s *Service) SearchMonth(ctx context.Context, q MonthQuery) ([]domain.Record, error) {
	if q.Month < 1 || q.Month > 12 {
		return nil, domain.InvalidArgument(domain.EntityField, "month must be between 1 and 12")
	}
	var out []domain.Record
	err := s.view(ctx, "search_month", func(view domain.TransactionView) error {
		if _, err := typedField(view, q.FieldID, domain.FieldMonthRange); err != nil {
			return err
		}
		out = recordsOf(view, view.FieldValues(q.FieldID), nil, func(v domain.FieldValue) bool {
			months := v.Months
			if months == nil {
				parsed, err := ParseMonthRange(v.Value)
				if err != nil {
					return false
				}
				months = &parsed
			}
			return months.Contains(q.Month)
		})
		return nil
	})
	return out, err
}
