package assessment

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Answer scale bounds shared by every question.
const (
	ScaleMin = 1
	ScaleMax = 5
)

type Type string

const (
	TypeQuick Type = "QUICK"
	TypeFull  Type = "FULL"
)

type Tier string

const (
	TierFree       Tier = "FREE"
	TierPaid       Tier = "PAID"
	TierEnterprise Tier = "ENTERPRISE"
)

type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSubmitted  Status = "SUBMITTED"
	StatusScored     Status = "SCORED"
	StatusArchived   Status = "ARCHIVED"
)

func ParseType(raw string) (Type, bool) {
	switch t := Type(strings.ToUpper(strings.TrimSpace(raw))); t {
	case TypeQuick, TypeFull:
		return t, true
	default:
		return "", false
	}
}

func ParseTier(raw string) (Tier, bool) {
	switch t := Tier(strings.ToUpper(strings.TrimSpace(raw))); t {
	case TierFree, TierPaid, TierEnterprise:
		return t, true
	default:
		return "", false
	}
}

func ParseStatus(raw string) (Status, bool) {
	switch s := Status(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusDraft, StatusInProgress, StatusSubmitted, StatusScored, StatusArchived:
		return s, true
	default:
		return "", false
	}
}

// AllowsSingleShot reports whether a DRAFT assessment of this type may be
// submitted directly with its answers in the same request.
func (t Type) AllowsSingleShot() bool { return t == TypeQuick }

// AcceptsAnswers reports whether answers may still be recorded.
func (s Status) AcceptsAnswers() bool {
	return s == StatusDraft || s == StatusInProgress
}

// HasResults reports whether scores are populated.
func (s Status) HasResults() bool {
	return s == StatusScored || s == StatusArchived
}

// ValidValue reports whether v lies on the answer scale.
func ValidValue(v int) bool { return v >= ScaleMin && v <= ScaleMax }

type Answer struct {
	QuestionID int       `json:"question_id"`
	Value      int       `json:"value"`
	AnsweredAt time.Time `json:"answered_at"`
}

type Assessment struct {
	ID               uuid.UUID       `json:"id"`
	OrganizationName string          `json:"organization_name"`
	Email            string          `json:"email"`
	Industry         string          `json:"industry,omitempty"`
	CompanySize      string          `json:"company_size,omitempty"`
	Type             Type            `json:"assessment_type"`
	Tier             Tier            `json:"subscription_tier"`
	Status           Status          `json:"status"`
	Answers          map[int]Answer  `json:"answers"`
	DimensionScores  map[int]float64 `json:"dimension_scores,omitempty"`
	OverallScore     *float64        `json:"overall_score,omitempty"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	SubmittedAt      *time.Time      `json:"submitted_at,omitempty"`
	ScoredAt         *time.Time      `json:"scored_at,omitempty"`
	ArchivedAt       *time.Time      `json:"archived_at,omitempty"`
}

// Clone returns a deep copy. Store implementations hand out clones so that
// callers never share maps with persisted state.
func (a *Assessment) Clone() *Assessment {
	if a == nil {
		return nil
	}
	out := *a
	if a.Answers != nil {
		out.Answers = make(map[int]Answer, len(a.Answers))
		for k, v := range a.Answers {
			out.Answers[k] = v
		}
	}
	if a.DimensionScores != nil {
		out.DimensionScores = make(map[int]float64, len(a.DimensionScores))
		for k, v := range a.DimensionScores {
			out.DimensionScores[k] = v
		}
	}
	out.OverallScore = cloneFloat(a.OverallScore)
	out.SubmittedAt = cloneTime(a.SubmittedAt)
	out.ScoredAt = cloneTime(a.ScoredAt)
	out.ArchivedAt = cloneTime(a.ArchivedAt)
	return &out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
