package session

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/readiness-backend/internal/catalog"
	"github.com/yungbote/readiness-backend/internal/data/cache"
	"github.com/yungbote/readiness-backend/internal/data/store"
	"github.com/yungbote/readiness-backend/internal/domain/aggregates"
	"github.com/yungbote/readiness-backend/internal/domain/assessment"
	"github.com/yungbote/readiness-backend/internal/gatekeeper"
	"github.com/yungbote/readiness-backend/internal/observability"
	"github.com/yungbote/readiness-backend/internal/platform/logger"
	"github.com/yungbote/readiness-backend/internal/scoring"
)

type CreateInput struct {
	OrganizationName string
	Email            string
	Industry         string
	CompanySize      string
	Type             assessment.Type
	Tier             assessment.Tier
}

type AnswerInput struct {
	QuestionID int
	Value      int
}

// Results is the scored view of one assessment.
type Results struct {
	AssessmentID    uuid.UUID                 `json:"id"`
	Status          assessment.Status         `json:"status"`
	Version         int                       `json:"version"`
	DimensionScores map[int]float64           `json:"dimension_scores"`
	OverallScore    float64                   `json:"overall_score"`
	Dimensions      []scoring.DimensionResult `json:"dimensions"`
}

// ArchiveReport summarises one retention sweep.
type ArchiveReport struct {
	Candidates int
	Archived   int
	Skipped    int
	IDs        []uuid.UUID
}

type SessionService interface {
	Create(ctx context.Context, in CreateInput) (*assessment.Assessment, error)
	Get(ctx context.Context, id uuid.UUID) (*assessment.Assessment, error)
	VisibleQuestions(ctx context.Context, id uuid.UUID) ([]catalog.Question, error)
	RecordAnswer(ctx context.Context, id uuid.UUID, expectedVersion, questionID, value int) (*assessment.Assessment, error)
	Submit(ctx context.Context, id uuid.UUID, expectedVersion int, answers []AnswerInput) (*assessment.Assessment, error)
	Archive(ctx context.Context, id uuid.UUID, expectedVersion int) (*assessment.Assessment, error)
	Results(ctx context.Context, id uuid.UUID) (*Results, error)
	ArchiveScoredBefore(ctx context.Context, cutoff time.Time, limit int, dryRun bool) (ArchiveReport, error)
}

type sessionService struct {
	log     *logger.Logger
	catalog *catalog.Catalog
	store   store.Store
	results cache.ResultCache
	caching bool
	metrics *observability.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

func NewSessionService(log *logger.Logger, cat *catalog.Catalog, st store.Store, rc cache.ResultCache, metrics *observability.Metrics) SessionService {
	if rc == nil {
		rc = cache.Noop()
	}
	return &sessionService{
		log:     log.With("service", "SessionService"),
		catalog: cat,
		store:   st,
		results: rc,
		caching: !cache.IsNoop(rc),
		metrics: metrics,
		tracer:  otel.Tracer(observability.TracerName),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *sessionService) Create(ctx context.Context, in CreateInput) (out *assessment.Assessment, err error) {
	const op = "session.create"
	ctx, span := s.tracer.Start(ctx, op)
	defer func() { endSpan(span, err) }()

	org := strings.TrimSpace(in.OrganizationName)
	if org == "" {
		return nil, aggregates.NewError(aggregates.CodeValidation, op, "organization_name is required", nil)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, aggregates.NewError(aggregates.CodeValidation, op, err.Error(), nil)
	}
	tier := in.Tier
	if tier == "" {
		tier = assessment.TierFree
	}
	if err := gatekeeper.Check(in.Type, tier); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("assessment.type", string(in.Type)),
		attribute.String("assessment.tier", string(tier)),
	)

	now := s.now()
	created, err := s.store.Create(ctx, &assessment.Assessment{
		OrganizationName: org,
		Email:            email,
		Industry:         strings.TrimSpace(in.Industry),
		CompanySize:      strings.TrimSpace(in.CompanySize),
		Type:             in.Type,
		Tier:             tier,
		Status:           assessment.StatusDraft,
		Answers:          map[int]assessment.Answer{},
		Version:          0,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncAssessmentCreated(string(created.Type), string(created.Tier))
	s.log.Info("assessment created",
		"assessment_id", created.ID.String(),
		"type", created.Type,
		"tier", created.Tier,
	)
	return created, nil
}

func (s *sessionService) Get(ctx context.Context, id uuid.UUID) (out *assessment.Assessment, err error) {
	ctx, span := s.tracer.Start(ctx, "session.get", trace.WithAttributes(attribute.String("assessment.id", id.String())))
	defer func() { endSpan(span, err) }()
	return s.store.Get(ctx, id)
}

func (s *sessionService) VisibleQuestions(ctx context.Context, id uuid.UUID) (out []catalog.Question, err error) {
	ctx, span := s.tracer.Start(ctx, "session.visible_questions", trace.WithAttributes(attribute.String("assessment.id", id.String())))
	defer func() { endSpan(span, err) }()
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	visible, err := gatekeeper.Visible(s.catalog, a.Type, a.Tier)
	if err != nil {
		return nil, err
	}
	return visible.Questions(), nil
}

func (s *sessionService) RecordAnswer(ctx context.Context, id uuid.UUID, expectedVersion, questionID, value int) (out *assessment.Assessment, err error) {
	const op = "session.record_answer"
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("assessment.id", id.String()),
		attribute.Int("question.id", questionID),
	))
	defer func() { endSpan(span, err) }()

	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Status.AcceptsAnswers() {
		return nil, aggregates.Errorf(aggregates.CodeInvalidStateTransition, op, "assessment is %s; answers are closed", a.Status)
	}
	visible, err := gatekeeper.Visible(s.catalog, a.Type, a.Tier)
	if err != nil {
		return nil, err
	}
	if err := checkAnswer(op, visible, questionID, value); err != nil {
		return nil, err
	}
	if a.Version != expectedVersion {
		return nil, versionConflict(op, expectedVersion, a.Version)
	}

	now := s.now()
	next := a.Clone()
	next.Answers[questionID] = assessment.Answer{QuestionID: questionID, Value: value, AnsweredAt: now}
	if next.Status == assessment.StatusDraft {
		next.Status = assessment.StatusInProgress
	}
	next.UpdatedAt = now
	saved, err := s.store.CompareAndSwap(ctx, id, expectedVersion, next)
	if err != nil {
		return nil, err
	}
	s.metrics.AddAnswersRecorded(string(saved.Type), "single", 1)
	return saved, nil
}

func (s *sessionService) Submit(ctx context.Context, id uuid.UUID, expectedVersion int, answers []AnswerInput) (out *assessment.Assessment, err error) {
	const op = "session.submit"
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("assessment.id", id.String()),
		attribute.Int("answers.count", len(answers)),
	))
	defer func() { endSpan(span, err) }()

	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Status.AcceptsAnswers() {
		return nil, aggregates.Errorf(aggregates.CodeInvalidStateTransition, op, "assessment is %s and cannot be submitted", a.Status)
	}
	if a.Version != expectedVersion {
		return nil, versionConflict(op, expectedVersion, a.Version)
	}
	visible, err := gatekeeper.Visible(s.catalog, a.Type, a.Tier)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]struct{}, len(answers))
	for _, ans := range answers {
		if _, dup := seen[ans.QuestionID]; dup {
			return nil, aggregates.Errorf(aggregates.CodeValidation, op, "question %d answered more than once", ans.QuestionID)
		}
		seen[ans.QuestionID] = struct{}{}
		if err := checkAnswer(op, visible, ans.QuestionID, ans.Value); err != nil {
			return nil, err
		}
	}

	if len(answers) == 0 && len(a.Answers) == 0 {
		s.metrics.ObserveScoring(string(a.Type), string(aggregates.CodeInsufficientData), 0)
		return nil, aggregates.NewError(aggregates.CodeInsufficientData, op, "assessment has no answers to score", nil)
	}

	// Bulk answers on a DRAFT move it through IN_PROGRESS first, so only
	// single-shot types may go straight from an empty DRAFT to SUBMITTED.
	from := a.Status
	if from == assessment.StatusDraft && len(answers) > 0 {
		from = assessment.StatusInProgress
	}
	if !assessment.CanTransition(a.Type, from, assessment.StatusSubmitted) {
		return nil, aggregates.Errorf(aggregates.CodeInvalidStateTransition, op, "%s assessment cannot be submitted from %s without answers", a.Type, a.Status)
	}

	now := s.now()
	next := a.Clone()
	for _, ans := range answers {
		next.Answers[ans.QuestionID] = assessment.Answer{QuestionID: ans.QuestionID, Value: ans.Value, AnsweredAt: now}
	}
	next.Status = assessment.StatusSubmitted
	next.SubmittedAt = &now

	result, err := scoring.Score(next, s.catalog)
	if err != nil {
		s.metrics.ObserveScoring(string(a.Type), string(aggregates.CodeOf(err)), 0)
		return nil, err
	}
	overall := result.Overall
	next.Status = assessment.StatusScored
	next.DimensionScores = result.DimensionScores
	next.OverallScore = &overall
	next.ScoredAt = &now
	next.UpdatedAt = now

	saved, err := s.store.CompareAndSwap(ctx, id, expectedVersion, next)
	if err != nil {
		return nil, err
	}
	s.metrics.AddAnswersRecorded(string(saved.Type), "bulk", len(answers))
	s.metrics.ObserveScoring(string(saved.Type), "scored", overall)
	s.log.Info("assessment scored",
		"assessment_id", saved.ID.String(),
		"type", saved.Type,
		"answers", len(saved.Answers),
		"overall_score", overall,
	)
	s.warm(ctx, saved, result)
	return saved, nil
}

func (s *sessionService) Archive(ctx context.Context, id uuid.UUID, expectedVersion int) (out *assessment.Assessment, err error) {
	ctx, span := s.tracer.Start(ctx, "session.archive", trace.WithAttributes(attribute.String("assessment.id", id.String())))
	defer func() { endSpan(span, err) }()
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.archive(ctx, a, expectedVersion, "api")
}

func (s *sessionService) archive(ctx context.Context, a *assessment.Assessment, expectedVersion int, source string) (*assessment.Assessment, error) {
	const op = "session.archive"
	if !assessment.CanTransition(a.Type, a.Status, assessment.StatusArchived) {
		return nil, aggregates.Errorf(aggregates.CodeInvalidStateTransition, op, "only SCORED assessments can be archived; assessment is %s", a.Status)
	}
	if a.Version != expectedVersion {
		return nil, versionConflict(op, expectedVersion, a.Version)
	}
	now := s.now()
	next := a.Clone()
	next.Status = assessment.StatusArchived
	next.ArchivedAt = &now
	next.UpdatedAt = now
	saved, err := s.store.CompareAndSwap(ctx, a.ID, expectedVersion, next)
	if err != nil {
		return nil, err
	}
	if err := s.results.Delete(ctx, saved.ID); err != nil {
		s.log.Warn("results cache invalidation failed", "assessment_id", saved.ID.String(), "error", err)
	}
	s.metrics.IncArchived(source)
	return saved, nil
}

func (s *sessionService) Results(ctx context.Context, id uuid.UUID) (out *Results, err error) {
	const op = "session.results"
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("assessment.id", id.String())))
	defer func() { endSpan(span, err) }()

	entry, cerr := s.results.Get(ctx, id)
	switch {
	case cerr == nil && entry != nil:
		s.metrics.IncCacheLookup("hit")
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return resultsFromEntry(entry), nil
	case cerr == nil, errors.Is(cerr, cache.ErrMiss):
		s.metrics.IncCacheLookup("miss")
	default:
		s.metrics.IncCacheLookup("error")
		s.log.Warn("results cache read failed", "assessment_id", id.String(), "error", cerr)
	}

	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Status.HasResults() {
		return nil, aggregates.Errorf(aggregates.CodeScoringNotComplete, op, "assessment is %s; results are not available", a.Status)
	}
	built := s.buildEntry(a)
	s.fill(ctx, built)
	return resultsFromEntry(built), nil
}

func (s *sessionService) ArchiveScoredBefore(ctx context.Context, cutoff time.Time, limit int, dryRun bool) (report ArchiveReport, err error) {
	ctx, span := s.tracer.Start(ctx, "session.archive_scored_before", trace.WithAttributes(
		attribute.String("cutoff", cutoff.UTC().Format(time.RFC3339)),
		attribute.Bool("dry_run", dryRun),
	))
	defer func() { endSpan(span, err) }()

	candidates, err := s.store.ListByStatusBefore(ctx, assessment.StatusScored, cutoff, limit)
	if err != nil {
		return report, err
	}
	report.Candidates = len(candidates)
	for _, a := range candidates {
		if dryRun {
			report.IDs = append(report.IDs, a.ID)
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, aggregates.Wrap(aggregates.CodeStoreUnavailable, "session.archive_scored_before", err)
		}
		if _, err := s.archive(ctx, a, a.Version, "retention"); err != nil {
			// Another writer moved it first; leave it for the next sweep.
			if aggregates.IsCode(err, aggregates.CodeVersionConflict) || aggregates.IsCode(err, aggregates.CodeInvalidStateTransition) {
				report.Skipped++
				s.log.Warn("skipping assessment during retention sweep", "assessment_id", a.ID.String(), "error", err)
				continue
			}
			return report, err
		}
		report.Archived++
		report.IDs = append(report.IDs, a.ID)
	}
	s.log.Info("retention sweep finished",
		"candidates", report.Candidates,
		"archived", report.Archived,
		"skipped", report.Skipped,
		"dry_run", dryRun,
	)
	return report, nil
}

// buildEntry pairs the persisted scores with a recomputed per-dimension
// breakdown. Stored scores stay authoritative.
func (s *sessionService) buildEntry(a *assessment.Assessment) *cache.Entry {
	entry := &cache.Entry{
		AssessmentID: a.ID,
		Status:       a.Status,
		Version:      a.Version,
		CachedAt:     s.now(),
		Result: scoring.Result{
			DimensionScores: make(map[int]float64, len(a.DimensionScores)),
		},
	}
	for k, v := range a.DimensionScores {
		entry.Result.DimensionScores[k] = v
	}
	if a.OverallScore != nil {
		entry.Result.Overall = *a.OverallScore
	}
	breakdown, err := scoring.Score(a, s.catalog)
	if err != nil {
		s.log.Warn("results breakdown unavailable", "assessment_id", a.ID.String(), "error", err)
	}
	for _, d := range breakdown.Dimensions {
		if stored, ok := entry.Result.DimensionScores[d.DimensionID]; ok {
			d.Score = stored
		}
		entry.Result.Dimensions = append(entry.Result.Dimensions, d)
	}
	return entry
}

func (s *sessionService) warm(ctx context.Context, a *assessment.Assessment, result scoring.Result) {
	s.fill(ctx, &cache.Entry{
		AssessmentID: a.ID,
		Status:       a.Status,
		Version:      a.Version,
		Result:       result,
		CachedAt:     s.now(),
	})
}

// fill writes e, then re-reads the store and drops e if the assessment has
// moved past e.Version. Writers delete the key after their CAS, so a write
// racing an Archive is removed by one side or the other.
func (s *sessionService) fill(ctx context.Context, e *cache.Entry) {
	if !s.caching {
		return
	}
	id := e.AssessmentID.String()
	if err := s.results.Set(ctx, e); err != nil {
		s.log.Warn("results cache write failed", "assessment_id", id, "error", err)
		return
	}
	cur, err := s.store.Get(ctx, e.AssessmentID)
	if err == nil && cur.Version == e.Version {
		return
	}
	if err != nil {
		s.log.Warn("results cache check failed; dropping entry", "assessment_id", id, "error", err)
	}
	if err := s.results.Delete(ctx, e.AssessmentID); err != nil {
		s.log.Warn("results cache invalidation failed", "assessment_id", id, "error", err)
	}
}

func resultsFromEntry(e *cache.Entry) *Results {
	return &Results{
		AssessmentID:    e.AssessmentID,
		Status:          e.Status,
		Version:         e.Version,
		DimensionScores: e.Result.DimensionScores,
		OverallScore:    e.Result.Overall,
		Dimensions:      e.Result.Dimensions,
	}
}

func checkAnswer(op string, visible gatekeeper.VisibleSet, questionID, value int) error {
	if !visible.Contains(questionID) {
		return aggregates.Errorf(aggregates.CodeQuestionNotVisible, op, "question %d is not part of this assessment", questionID)
	}
	if !assessment.ValidValue(value) {
		return aggregates.Errorf(aggregates.CodeValidation, op, "value %d for question %d is outside %d..%d", value, questionID, assessment.ScaleMin, assessment.ScaleMax)
	}
	return nil
}

func versionConflict(op string, expected, current int) error {
	return aggregates.Errorf(aggregates.CodeVersionConflict, op, "expected version %d, current version %d", expected, current)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", errors.New("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", errors.New("email is malformed")
	}
	return email, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(aggregates.CodeOf(err)))
	}
	span.End()
}
