package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/readiness-backend/internal/data/aggregates"
	"github.com/yungbote/readiness-backend/internal/domain/assessment"
	"github.com/yungbote/readiness-backend/internal/platform/dbctx"
	"github.com/yungbote/readiness-backend/internal/platform/logger"
)

const assessmentTable = "assessment"

type assessmentRow struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey"`
	OrganizationName string         `gorm:"column:organization_name;not null"`
	Email            string         `gorm:"column:email;not null;index"`
	Industry         string         `gorm:"column:industry"`
	CompanySize      string         `gorm:"column:company_size"`
	AssessmentType   string         `gorm:"column:assessment_type;not null"`
	SubscriptionTier string         `gorm:"column:subscription_tier;not null"`
	Status           string         `gorm:"column:status;not null;index:idx_assessment_status_updated,priority:1"`
	Answers          datatypes.JSON `gorm:"column:answers"`
	DimensionScores  datatypes.JSON `gorm:"column:dimension_scores"`
	OverallScore     *float64       `gorm:"column:overall_score"`
	Version          int            `gorm:"column:version;not null;default:0"`
	CreatedAt        time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;not null;index:idx_assessment_status_updated,priority:2"`
	SubmittedAt      *time.Time     `gorm:"column:submitted_at"`
	ScoredAt         *time.Time     `gorm:"column:scored_at"`
	ArchivedAt       *time.Time     `gorm:"column:archived_at"`
}

func (assessmentRow) TableName() string { return assessmentTable }

// AutoMigrate creates or updates the assessment table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&assessmentRow{})
}

// GormStore is the relational Store over Postgres or SQLite.
type GormStore struct {
	db   *gorm.DB
	log  *logger.Logger
	deps aggregates.BaseDeps
}

var _ Store = (*GormStore)(nil)

// NewGormStore wires a gorm-backed store. timeout bounds each operation.
func NewGormStore(db *gorm.DB, baseLog *logger.Logger, hooks aggregates.Hooks, timeout time.Duration) *GormStore {
	log := baseLog.With("repo", "AssessmentStore")
	return &GormStore{
		db:  db,
		log: log,
		deps: aggregates.BaseDeps{
			DB:       db,
			Log:      log,
			Runner:   aggregates.NewGormTxRunner(db),
			Hooks:    hooks,
			CASGuard: aggregates.NewCASGuard(db),
			Timeout:  timeout,
		},
	}
}

// WithRunner swaps the transaction runner; used by tests to inject failures.
func (s *GormStore) WithRunner(r aggregates.TxRunner) *GormStore {
	cp := *s
	cp.deps.Runner = r
	return &cp
}

func (s *GormStore) Get(ctx context.Context, id uuid.UUID) (*assessment.Assessment, error) {
	var out *assessment.Assessment
	err := aggregates.ExecuteRead(ctx, s.deps, opGet, func(dbc dbctx.Context) error {
		var row assessmentRow
		if err := dbc.DB(s.db).Where("id = ?", id).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(opGet, id)
			}
			return err
		}
		a, err := row.toDomain()
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) Create(ctx context.Context, a *assessment.Assessment) (*assessment.Assessment, error) {
	if a == nil {
		return nil, aggregates.MapError(opCreate, aggregates.ValidationError("assessment is required"))
	}
	in := a.Clone()
	in.ID = uuid.New()
	stampCreate(in, time.Now().UTC())
	row, err := rowFromDomain(in)
	if err != nil {
		return nil, aggregates.MapError(opCreate, err)
	}
	err = aggregates.ExecuteWrite(ctx, s.deps, opCreate, func(dbc dbctx.Context) error {
		return dbc.DB(s.db).Create(&row).Error
	})
	if err != nil {
		s.log.Warn("create assessment failed", "error", err)
		return nil, err
	}
	return in, nil
}

func (s *GormStore) CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int, mutated *assessment.Assessment) (*assessment.Assessment, error) {
	if mutated == nil {
		return nil, aggregates.MapError(opCAS, aggregates.ValidationError("mutated assessment is required"))
	}
	updates, err := rowUpdates(mutated)
	if err != nil {
		return nil, aggregates.MapError(opCAS, err)
	}
	var out *assessment.Assessment
	err = aggregates.ExecuteWrite(ctx, s.deps, opCAS, func(dbc dbctx.Context) error {
		ok, err := s.deps.CASGuard.UpdateByVersion(dbc, assessmentTable, id, expectedVersion, updates)
		if err != nil {
			return err
		}
		if !ok {
			// Zero rows: either the id is unknown or the version moved on.
			var probe assessmentRow
			if err := dbc.DB(s.db).Select("id", "version").Where("id = ?", id).Take(&probe).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return notFound(opCAS, id)
				}
				return err
			}
			return aggregates.RequireCASSuccess(false, fmt.Sprintf("expected version %d, stored version %d", expectedVersion, probe.Version))
		}
		var row assessmentRow
		if err := dbc.DB(s.db).Where("id = ?", id).Take(&row).Error; err != nil {
			return err
		}
		a, err := row.toDomain()
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) ListByStatusBefore(ctx context.Context, status assessment.Status, cutoff time.Time, limit int) ([]*assessment.Assessment, error) {
	var out []*assessment.Assessment
	err := aggregates.ExecuteRead(ctx, s.deps, opList, func(dbc dbctx.Context) error {
		var rows []assessmentRow
		q := dbc.DB(s.db).
			Where("status = ? AND updated_at < ?", string(status), cutoff.UTC()).
			Order("updated_at ASC").
			Order("id ASC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		if err := q.Find(&rows).Error; err != nil {
			return err
		}
		out = make([]*assessment.Assessment, 0, len(rows))
		for i := range rows {
			a, err := rows[i].toDomain()
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func rowFromDomain(a *assessment.Assessment) (assessmentRow, error) {
	answers, scores, err := encodeMaps(a)
	if err != nil {
		return assessmentRow{}, err
	}
	return assessmentRow{
		ID:               a.ID,
		OrganizationName: a.OrganizationName,
		Email:            a.Email,
		Industry:         a.Industry,
		CompanySize:      a.CompanySize,
		AssessmentType:   string(a.Type),
		SubscriptionTier: string(a.Tier),
		Status:           string(a.Status),
		Answers:          answers,
		DimensionScores:  scores,
		OverallScore:     a.OverallScore,
		Version:          a.Version,
		CreatedAt:        a.CreatedAt.UTC(),
		UpdatedAt:        a.UpdatedAt.UTC(),
		SubmittedAt:      utcPtr(a.SubmittedAt),
		ScoredAt:         utcPtr(a.ScoredAt),
		ArchivedAt:       utcPtr(a.ArchivedAt),
	}, nil
}

// rowUpdates lists every mutable column. version is set by the CAS guard.
func rowUpdates(a *assessment.Assessment) (map[string]any, error) {
	answers, scores, err := encodeMaps(a)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"organization_name": a.OrganizationName,
		"email":             a.Email,
		"industry":          a.Industry,
		"company_size":      a.CompanySize,
		"assessment_type":   string(a.Type),
		"subscription_tier": string(a.Tier),
		"status":            string(a.Status),
		"answers":           answers,
		"dimension_scores":  scores,
		"overall_score":     a.OverallScore,
		"updated_at":        a.UpdatedAt.UTC(),
		"submitted_at":      utcPtr(a.SubmittedAt),
		"scored_at":         utcPtr(a.ScoredAt),
		"archived_at":       utcPtr(a.ArchivedAt),
	}, nil
}

func encodeMaps(a *assessment.Assessment) (datatypes.JSON, datatypes.JSON, error) {
	answers := a.Answers
	if answers == nil {
		answers = map[int]assessment.Answer{}
	}
	rawAnswers, err := json.Marshal(answers)
	if err != nil {
		return nil, nil, fmt.Errorf("encode answers: %w", err)
	}
	// A JSON null rather than SQL NULL keeps the column scannable on every driver.
	rawScores := []byte("null")
	if a.DimensionScores != nil {
		rawScores, err = json.Marshal(a.DimensionScores)
		if err != nil {
			return nil, nil, fmt.Errorf("encode dimension scores: %w", err)
		}
	}
	return datatypes.JSON(rawAnswers), datatypes.JSON(rawScores), nil
}

func (r assessmentRow) toDomain() (*assessment.Assessment, error) {
	a := &assessment.Assessment{
		ID:               r.ID,
		OrganizationName: r.OrganizationName,
		Email:            r.Email,
		Industry:         r.Industry,
		CompanySize:      r.CompanySize,
		Type:             assessment.Type(r.AssessmentType),
		Tier:             assessment.Tier(r.SubscriptionTier),
		Status:           assessment.Status(r.Status),
		Answers:          map[int]assessment.Answer{},
		OverallScore:     r.OverallScore,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
		SubmittedAt:      utcPtr(r.SubmittedAt),
		ScoredAt:         utcPtr(r.ScoredAt),
		ArchivedAt:       utcPtr(r.ArchivedAt),
	}
	if len(r.Answers) > 0 {
		if err := json.Unmarshal(r.Answers, &a.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	if len(r.DimensionScores) > 0 && string(r.DimensionScores) != "null" {
		if err := json.Unmarshal(r.DimensionScores, &a.DimensionScores); err != nil {
			return nil, fmt.Errorf("decode dimension scores: %w", err)
		}
	}
	return a, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
