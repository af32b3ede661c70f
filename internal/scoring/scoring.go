package scoring

import (
	"math"

	"github.com/yungbote/readiness-backend/internal/catalog"
	"github.com/yungbote/readiness-backend/internal/domain/aggregates"
	"github.com/yungbote/readiness-backend/internal/domain/assessment"
	"github.com/yungbote/readiness-backend/internal/gatekeeper"
)

// DimensionResult is one dimension's score plus the inputs behind it.
type DimensionResult struct {
	DimensionID int     `json:"dimension_id"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Icon        string  `json:"icon,omitempty"`
	Weight      int     `json:"weight"`
	Score       float64 `json:"score"`
	Answered    int     `json:"answered"`
	Visible     int     `json:"visible"`
}

type Result struct {
	DimensionScores map[int]float64   `json:"dimension_scores"`
	Overall         float64           `json:"overall_score"`
	Dimensions      []DimensionResult `json:"dimensions"`
}

// Score converts the assessment's answers into per-dimension and overall
// scores over the questions visible to its type and tier.
//
// Per dimension: 100 * sum((value-ScaleMin)*w) / sum((ScaleMax-ScaleMin)*w),
// where the denominator covers every visible question of the dimension and an
// unanswered question contributes zero to the numerator. Dimensions without
// visible questions are left out. The overall score is the dimension-weight
// mean of the included dimensions. Rounding to 2 decimals happens last.
func Score(a *assessment.Assessment, c *catalog.Catalog) (Result, error) {
	const op = "scoring.score"
	if a == nil || c == nil {
		return Result{}, aggregates.NewError(aggregates.CodeInternal, op, "assessment and catalog are required", nil)
	}
	visible, err := gatekeeper.Visible(c, a.Type, a.Tier)
	if err != nil {
		return Result{}, err
	}
	if visible.Len() == 0 {
		return Result{}, aggregates.NewError(aggregates.CodeInsufficientData, op, "no visible questions to score", nil)
	}

	const span = float64(assessment.ScaleMax - assessment.ScaleMin)
	var (
		dims          []DimensionResult
		raw           []float64
		weightedSum   float64
		weightTotal   float64
		totalAnswered int
	)
	for _, d := range c.ListDimensions() {
		qs := visible.ForDimension(d.ID)
		if len(qs) == 0 {
			continue
		}
		var num, den float64
		answered := 0
		for _, q := range qs {
			w := float64(q.Weight)
			den += span * w
			ans, ok := a.Answers[q.ID]
			if !ok {
				continue
			}
			answered++
			num += float64(clampInt(ans.Value, assessment.ScaleMin, assessment.ScaleMax)-assessment.ScaleMin) * w
		}
		score := 0.0
		if den > 0 {
			score = clamp(100*num/den, 0, 100)
		}
		totalAnswered += answered
		weightedSum += score * float64(d.Weight)
		weightTotal += float64(d.Weight)
		raw = append(raw, score)
		dims = append(dims, DimensionResult{
			DimensionID: d.ID,
			Name:        d.Name,
			DisplayName: d.DisplayName,
			Icon:        d.Icon,
			Weight:      d.Weight,
			Answered:    answered,
			Visible:     len(qs),
		})
	}
	if totalAnswered == 0 || weightTotal == 0 {
		return Result{}, aggregates.NewError(aggregates.CodeInsufficientData, op, "no answered questions to score", nil)
	}

	res := Result{
		DimensionScores: make(map[int]float64, len(dims)),
		Overall:         round2(clamp(weightedSum/weightTotal, 0, 100)),
		Dimensions:      dims,
	}
	for i := range res.Dimensions {
		s := round2(raw[i])
		res.Dimensions[i].Score = s
		res.DimensionScores[res.Dimensions[i].DimensionID] = s
	}
	return res, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
