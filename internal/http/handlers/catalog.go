package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/readiness-backend/internal/catalog"
	"github.com/yungbote/readiness-backend/internal/domain/aggregates"
)

type CatalogHandler struct {
	catalog *catalog.Catalog
}

func NewCatalogHandler(c *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

type dimensionRef struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Icon        string `json:"icon,omitempty"`
}

type questionView struct {
	ID                int          `json:"id"`
	Text              string       `json:"text"`
	HelpText          string       `json:"help_text,omitempty"`
	Order             int          `json:"order"`
	Weight            int          `json:"weight"`
	IsQuickDiagnostic bool         `json:"is_quick_diagnostic"`
	Dimension         dimensionRef `json:"dimension"`
}

// GET /api/dimensions
func (h *CatalogHandler) ListDimensions(c *gin.Context) {
	respondOK(c, gin.H{"dimensions": h.catalog.ListDimensions()})
}

// GET /api/questions/quick
func (h *CatalogHandler) ListQuickQuestions(c *gin.Context) {
	respondOK(c, gin.H{"questions": questionViews(h.catalog, h.catalog.QuickQuestions())})
}

// GET /api/questions?dimension_id=
func (h *CatalogHandler) ListQuestions(c *gin.Context) {
	var filter *int
	if raw := strings.TrimSpace(c.Query("dimension_id")); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			respondErr(c, aggregates.NewError(aggregates.CodeValidation, "http.list_questions", "dimension_id must be an integer", err))
			return
		}
		filter = &id
	}
	qs, err := h.catalog.ListQuestions(filter)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"questions": questionViews(h.catalog, qs)})
}

func questionViews(cat *catalog.Catalog, qs []catalog.Question) []questionView {
	out := make([]questionView, 0, len(qs))
	for _, q := range qs {
		d, _ := cat.Dimension(q.DimensionID)
		out = append(out, questionView{
			ID:                q.ID,
			Text:              q.Text,
			HelpText:          q.HelpText,
			Order:             q.Order,
			Weight:            q.Weight,
			IsQuickDiagnostic: q.IsQuickDiagnostic,
			Dimension: dimensionRef{
				ID:          d.ID,
				Name:        d.Name,
				DisplayName: d.DisplayName,
				Icon:        d.Icon,
			},
		})
	}
	return out
}
