package gatekeeper

import (
	"github.com/yungbote/readiness-backend/internal/catalog"
	"github.com/yungbote/readiness-backend/internal/domain/aggregates"
	"github.com/yungbote/readiness-backend/internal/domain/assessment"
)

// VisibleSet is the ordered set of questions an assessment may answer.
type VisibleSet struct {
	questions []catalog.Question
	byID      map[int]catalog.Question
	byDim     map[int][]catalog.Question
}

// Visible computes the question set for (typ, tier). QUICK sees the quick
// subset at every tier; FULL sees the whole bank but is refused for FREE.
func Visible(c *catalog.Catalog, typ assessment.Type, tier assessment.Tier) (VisibleSet, error) {
	const op = "gatekeeper.visible"
	if _, ok := assessment.ParseTier(string(tier)); !ok {
		return VisibleSet{}, aggregates.Errorf(aggregates.CodeValidation, op, "unknown subscription tier %q", tier)
	}
	var qs []catalog.Question
	switch typ {
	case assessment.TypeQuick:
		qs = c.QuickQuestions()
	case assessment.TypeFull:
		if tier == assessment.TierFree {
			return VisibleSet{}, aggregates.NewError(aggregates.CodeTierNotAllowed, op, "FULL assessments require a paid subscription tier", nil)
		}
		qs, _ = c.ListQuestions(nil)
	default:
		return VisibleSet{}, aggregates.Errorf(aggregates.CodeValidation, op, "unknown assessment type %q", typ)
	}
	return newVisibleSet(qs), nil
}

// Check reports whether (typ, tier) may be created at all.
func Check(typ assessment.Type, tier assessment.Tier) error {
	if _, ok := assessment.ParseType(string(typ)); !ok {
		return aggregates.Errorf(aggregates.CodeValidation, "gatekeeper.check", "unknown assessment type %q", typ)
	}
	if _, ok := assessment.ParseTier(string(tier)); !ok {
		return aggregates.Errorf(aggregates.CodeValidation, "gatekeeper.check", "unknown subscription tier %q", tier)
	}
	if typ == assessment.TypeFull && tier == assessment.TierFree {
		return aggregates.NewError(aggregates.CodeTierNotAllowed, "gatekeeper.check", "FULL assessments require a paid subscription tier", nil)
	}
	return nil
}

func newVisibleSet(qs []catalog.Question) VisibleSet {
	vs := VisibleSet{
		questions: qs,
		byID:      make(map[int]catalog.Question, len(qs)),
		byDim:     make(map[int][]catalog.Question),
	}
	for _, q := range qs {
		vs.byID[q.ID] = q
		vs.byDim[q.DimensionID] = append(vs.byDim[q.DimensionID], q)
	}
	return vs
}

func (v VisibleSet) Contains(questionID int) bool {
	_, ok := v.byID[questionID]
	return ok
}

func (v VisibleSet) Question(questionID int) (catalog.Question, bool) {
	q, ok := v.byID[questionID]
	return q, ok
}

// Questions returns the visible questions in catalog order.
func (v VisibleSet) Questions() []catalog.Question {
	return append([]catalog.Question(nil), v.questions...)
}

// ForDimension returns the visible questions of one dimension, possibly none.
func (v VisibleSet) ForDimension(dimensionID int) []catalog.Question {
	return append([]catalog.Question(nil), v.byDim[dimensionID]...)
}

func (v VisibleSet) Len() int { return len(v.questions) }
