package catalog

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	domainagg "github.com/yungbote/readiness-backend/internal/domain/aggregates"
)

//go:embed seed.yaml
var seedFS embed.FS

const seedFile = "seed.yaml"

type Dimension struct {
	ID          int    `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Slug        string `yaml:"slug" json:"slug"`
	Icon        string `yaml:"icon" json:"icon"`
	Weight      int    `yaml:"weight" json:"weight"`
	Order       int    `yaml:"order" json:"order"`
}

type Question struct {
	ID                int    `yaml:"id" json:"id"`
	Text              string `yaml:"text" json:"text"`
	HelpText          string `yaml:"help_text" json:"help_text,omitempty"`
	DimensionID       int    `yaml:"dimension_id" json:"dimension_id"`
	Order             int    `yaml:"order" json:"order"`
	IsQuickDiagnostic bool   `yaml:"quick" json:"is_quick_diagnostic"`
	Weight            int    `yaml:"weight" json:"weight"`
}

type seedDoc struct {
	Version    int         `yaml:"version"`
	Dimensions []Dimension `yaml:"dimensions"`
	Questions  []Question  `yaml:"questions"`
}

// Catalog is the read-only dimension registry and question bank.
// Every accessor returns copies.
type Catalog struct {
	dimensions []Dimension
	questions  []Question
	quick      []Question
	dimByID    map[int]int
	dimByName  map[string]int
	qByID      map[int]int
	byDim      map[int][]Question
}

// Load parses the seed at path, or the embedded seed when path is empty.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	var (
		raw []byte
		err error
	)
	if path != "" {
		raw, err = os.ReadFile(path)
	} else {
		raw, err = seedFS.ReadFile(seedFile)
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML seed document and validates it.
func Parse(raw []byte) (*Catalog, error) {
	var doc seedDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog seed: %w", err)
	}
	return New(doc.Dimensions, doc.Questions)
}

// New validates dimensions and questions and builds the ordered indices.
// Question weights of zero default to 1.
func New(dimensions []Dimension, questions []Question) (*Catalog, error) {
	const op = "catalog.new"
	if len(dimensions) == 0 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "catalog has no dimensions", nil)
	}
	c := &Catalog{
		dimensions: append([]Dimension(nil), dimensions...),
		dimByID:    make(map[int]int, len(dimensions)),
		dimByName:  make(map[string]int, len(dimensions)),
		qByID:      make(map[int]int, len(questions)),
		byDim:      make(map[int][]Question, len(dimensions)),
	}
	names := make(map[string]struct{}, len(dimensions))
	for _, d := range c.dimensions {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, domainagg.Errorf(domainagg.CodeValidation, op, "dimension %d has no name", d.ID)
		}
		if _, dup := names[name]; dup {
			return nil, domainagg.Errorf(domainagg.CodeValidation, op, "duplicate dimension name %q", name)
		}
		names[name] = struct{}{}
		if _, dup := c.dimByID[d.ID]; dup {
			return nil, domainagg.Errorf(domainagg.CodeValidation, op, "duplicate dimension id %d", d.ID)
		}
		if d.Weight <= 0 {
			return nil, domainagg.Errorf(domainagg.CodeValidation, op, "dimension %q weight must be > 0", name)
		}
		c.dimByID[d.ID] = 0
	}
	sort.SliceStable(c.dimensions, func(i, j int) bool {
		if c.dimensions[i].Order != c.dimensions[j].Order {
			return c.dimensions[i].Order < c.dimensions[j].Order
		}
		return c.dimensions[i].ID < c.dimensions[j].ID
	})
	for i, d := range c.dimensions {
		c.dimByID[d.ID] = i
		c.dimByName[strings.TrimSpace(d.Name)] = i
	}

	c.questions = make([]Question, 0, len(questions))
	for _, q := range questions {
		if _, dup := c.qByID[q.ID]; dup {
			return nil, domainagg.Errorf(domainagg.CodeValidation, op, "duplicate question id %d", q.ID)
		}
		if _, ok := c.dimByID[q.DimensionID]; !ok {
			return nil, domainagg.Errorf(domainagg.CodeValidation, op, "question %d references unknown dimension %d", q.ID, q.DimensionID)
		}
		if strings.TrimSpace(q.Text) == "" {
			return nil, domainagg.Errorf(domainagg.CodeValidation, op, "question %d has no text", q.ID)
		}
		if q.Weight == 0 {
			q.Weight = 1
		}
		if q.Weight < 1 {
			return nil, domainagg.Errorf(domainagg.CodeValidation, op, "question %d weight must be >= 1", q.ID)
		}
		c.qByID[q.ID] = 0
		c.questions = append(c.questions, q)
	}
	sort.SliceStable(c.questions, func(i, j int) bool {
		a, b := c.questions[i], c.questions[j]
		da, db := c.dimensions[c.dimByID[a.DimensionID]].Order, c.dimensions[c.dimByID[b.DimensionID]].Order
		if da != db {
			return da < db
		}
		if a.DimensionID != b.DimensionID {
			return a.DimensionID < b.DimensionID
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
	for i, q := range c.questions {
		c.qByID[q.ID] = i
		c.byDim[q.DimensionID] = append(c.byDim[q.DimensionID], q)
		if q.IsQuickDiagnostic {
			c.quick = append(c.quick, q)
		}
	}
	return c, nil
}

// ListDimensions returns all dimensions ordered by (order, id).
func (c *Catalog) ListDimensions() []Dimension {
	return append([]Dimension(nil), c.dimensions...)
}

// ListQuestions returns the full bank, or one dimension's questions when
// dimensionID is set, ordered by (dimension order, question order, id).
func (c *Catalog) ListQuestions(dimensionID *int) ([]Question, error) {
	if dimensionID == nil {
		return append([]Question(nil), c.questions...), nil
	}
	if _, ok := c.dimByID[*dimensionID]; !ok {
		return nil, domainagg.Errorf(domainagg.CodeNotFound, "catalog.list_questions", "dimension %d not found", *dimensionID)
	}
	return append([]Question(nil), c.byDim[*dimensionID]...), nil
}

// QuickQuestions returns the quick diagnostic subset in catalog order.
func (c *Catalog) QuickQuestions() []Question {
	return append([]Question(nil), c.quick...)
}

func (c *Catalog) Dimension(id int) (Dimension, bool) {
	i, ok := c.dimByID[id]
	if !ok {
		return Dimension{}, false
	}
	return c.dimensions[i], true
}

func (c *Catalog) DimensionByName(name string) (Dimension, bool) {
	i, ok := c.dimByName[strings.TrimSpace(name)]
	if !ok {
		return Dimension{}, false
	}
	return c.dimensions[i], true
}

func (c *Catalog) Question(id int) (Question, bool) {
	i, ok := c.qByID[id]
	if !ok {
		return Question{}, false
	}
	return c.questions[i], true
}

// Counts reports dimension and question totals, used in startup logs.
func (c *Catalog) Counts() (dimensions, questions, quick int) {
	return len(c.dimensions), len(c.questions), len(c.quick)
}
