package catalog

import (
	"context"
	"fmt"

	"wildlifecore/pkg/domain"
)

const (
	// RuleCategoryDepth warns when a category nests deeper than MaxCategoryDepth.
	RuleCategoryDepth = "category_depth"
	// RuleFieldMembership blocks values for fields outside the record's resolved set.
	RuleFieldMembership = "record_field_membership"
)

// NewDefaultRulesEngine returns an engine with the catalog's built-in rules.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(CategoryDepthRule())
	engine.Register(FieldMembershipRule())
	return engine
}

type categoryDepthRule struct{}

// CategoryDepthRule reports created or moved categories deeper than
// domain.MaxCategoryDepth. The violation is a warning only.
func CategoryDepthRule() domain.Rule { return categoryDepthRule{} }

func (categoryDepthRule) Name() string { return RuleCategoryDepth }

func (categoryDepthRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	seen := make(map[int64]struct{})
	for _, ch := range changes {
		if ch.Entity != domain.EntityCategory || ch.Action == domain.ActionDelete {
			continue
		}
		c, ok := ch.After.(domain.Category)
		if !ok {
			continue
		}
		// A move deepens the whole subtree.
		for _, id := range view.Descendants([]int64{c.ID}) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			chain, ok := view.Ancestors(id)
			if !ok || len(chain) <= domain.MaxCategoryDepth {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     RuleCategoryDepth,
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("category %d is nested %d levels deep (intended maximum %d)", id, len(chain), domain.MaxCategoryDepth),
				Entity:   domain.EntityCategory,
				EntityID: id,
			})
		}
	}
	return res, nil
}

type fieldMembershipRule struct{}

// FieldMembershipRule blocks a transaction that leaves a written value on a
// field its record's category does not resolve to.
func FieldMembershipRule() domain.Rule { return fieldMembershipRule{} }

func (fieldMembershipRule) Name() string { return RuleFieldMembership }

func (fieldMembershipRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	resolved := make(map[int64]schema)
	for _, ch := range changes {
		if ch.Entity != domain.EntityFieldValue || ch.Action == domain.ActionDelete {
			continue
		}
		v, ok := ch.After.(domain.FieldValue)
		if !ok {
			continue
		}
		r, ok := view.FindRecord(v.RecordID)
		if !ok || !hasValue(view, v.RecordID, v.FieldID) {
			continue
		}
		sch, ok := resolved[r.CategoryID]
		if !ok {
			fields, err := resolveView(view, r.CategoryID)
			if err != nil {
				return domain.Result{}, err
			}
			sch = newSchema(fields)
			resolved[r.CategoryID] = sch
		}
		if sch.has(v.FieldID) {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     RuleFieldMembership,
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("field %d is not valid for record %d in category %d", v.FieldID, r.ID, r.CategoryID),
			Entity:   domain.EntityRecord,
			EntityID: r.ID,
		})
	}
	return res, nil
}

func hasValue(view domain.RuleView, recordID, fieldID int64) bool {
	for _, v := range view.RecordValues(recordID) {
		if v.FieldID == fieldID {
			return true
		}
	}
	return false
}
