package catalogtest

import (
	"fmt"

	"github.com/yungbote/readiness-backend/internal/catalog"
)

// Uniform builds a catalog of n dimensions (ids 1..n, weight 1), each with
// perDim weight-1 questions. Question ids are dimension*100 + position, and
// the first question of every dimension is quick.
func Uniform(n, perDim int) *catalog.Catalog {
	dims := make([]catalog.Dimension, 0, n)
	qs := make([]catalog.Question, 0, n*perDim)
	for d := 1; d <= n; d++ {
		dims = append(dims, catalog.Dimension{
			ID:          d,
			Name:        fmt.Sprintf("dimension_%d", d),
			DisplayName: fmt.Sprintf("Dimension %d", d),
			Slug:        fmt.Sprintf("dimension-%d", d),
			Weight:      1,
			Order:       d,
		})
		for p := 1; p <= perDim; p++ {
			qs = append(qs, catalog.Question{
				ID:                d*100 + p,
				Text:              fmt.Sprintf("Question %d.%d", d, p),
				DimensionID:       d,
				Order:             p,
				IsQuickDiagnostic: p == 1,
				Weight:            1,
			})
		}
	}
	c, err := catalog.New(dims, qs)
	if err != nil {
		panic(err)
	}
	return c
}
