package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/readiness-backend/internal/catalog/catalogtest"
	"github.com/yungbote/readiness-backend/internal/data/cache"
	"github.com/yungbote/readiness-backend/internal/data/store"
	"github.com/yungbote/readiness-backend/internal/domain/aggregates"
	"github.com/yungbote/readiness-backend/internal/domain/assessment"
	"github.com/yungbote/readiness-backend/internal/platform/logger"
)

type spyCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]cache.Entry
	getErr  error
	gets    int
	sets    int
	deletes int
}

func newSpyCache() *spyCache {
	return &spyCache{entries: map[uuid.UUID]cache.Entry{}}
}

func (c *spyCache) Get(_ context.Context, id uuid.UUID) (*cache.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, c.getErr
	}
	e, ok := c.entries[id]
	if !ok {
		return nil, cache.ErrMiss
	}
	return &e, nil
}

func (c *spyCache) Set(_ context.Context, e *cache.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[e.AssessmentID] = *e
	return nil
}

func (c *spyCache) Delete(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.entries, id)
	return nil
}

type fixture struct {
	svc   *sessionService
	store *store.MemoryStore
	cache *spyCache
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := store.NewMemoryStore(nil)
	rc := newSpyCache()
	svc := NewSessionService(logger.Nop(), catalogtest.Uniform(7, 2), st, rc, nil).(*sessionService)
	return fixture{svc: svc, store: st, cache: rc}
}

func (f fixture) create(t *testing.T, typ assessment.Type, tier assessment.Tier) *assessment.Assessment {
	t.Helper()
	a, err := f.svc.Create(context.Background(), CreateInput{
		OrganizationName: "Acme",
		Email:            "ops@acme.test",
		Type:             typ,
		Tier:             tier,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return a
}

func quickAnswers(value int) []AnswerInput {
	out := make([]AnswerInput, 0, 7)
	for d := 1; d <= 7; d++ {
		out = append(out, AnswerInput{QuestionID: d*100 + 1, Value: value})
	}
	return out
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		in   CreateInput
		code aggregates.ErrorCode
	}{
		{"missing organization", CreateInput{OrganizationName: "  ", Email: "a@b.co", Type: assessment.TypeQuick}, aggregates.CodeValidation},
		{"missing email", CreateInput{OrganizationName: "Acme", Email: " ", Type: assessment.TypeQuick}, aggregates.CodeValidation},
		{"malformed email", CreateInput{OrganizationName: "Acme", Email: "not-an-email", Type: assessment.TypeQuick}, aggregates.CodeValidation},
		{"display name email", CreateInput{OrganizationName: "Acme", Email: "Ops <ops@acme.test>", Type: assessment.TypeQuick}, aggregates.CodeValidation},
		{"unknown type", CreateInput{OrganizationName: "Acme", Email: "a@b.co", Type: "LONG"}, aggregates.CodeValidation},
		{"full on free tier", CreateInput{OrganizationName: "Acme", Email: "a@b.co", Type: assessment.TypeFull, Tier: assessment.TierFree}, aggregates.CodeTierNotAllowed},
		{"full defaults to free", CreateInput{OrganizationName: "Acme", Email: "a@b.co", Type: assessment.TypeFull}, aggregates.CodeTierNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tc.in)
			if !aggregates.IsCode(err, tc.code) {
				t.Fatalf("want=%s got=%v", tc.code, err)
			}
		})
	}
}

func TestCreateStartsDraft(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, assessment.TypeQuick, "")
	if a.Status != assessment.StatusDraft || a.Version != 0 || a.Tier != assessment.TierFree {
		t.Fatalf("unexpected new assessment: status=%s version=%d tier=%s", a.Status, a.Version, a.Tier)
	}
	if a.ID == uuid.Nil {
		t.Fatalf("expected an id")
	}
	full := f.create(t, assessment.TypeFull, assessment.TierPaid)
	if full.Tier != assessment.TierPaid {
		t.Fatalf("tier: want=PAID got=%s", full.Tier)
	}
}

func TestRecordAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, assessment.TypeQuick, assessment.TierFree)

	got, err := f.svc.RecordAnswer(ctx, a.ID, 0, 101, 4)
	if err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if got.Status != assessment.StatusInProgress || got.Version != 1 || got.Answers[101].Value != 4 {
		t.Fatalf("unexpected state: status=%s version=%d answers=%v", got.Status, got.Version, got.Answers)
	}

	got, err = f.svc.RecordAnswer(ctx, a.ID, 1, 101, 2)
	if err != nil {
		t.Fatalf("RecordAnswer overwrite: %v", err)
	}
	if got.Version != 2 || got.Answers[101].Value != 2 || len(got.Answers) != 1 {
		t.Fatalf("overwrite: version=%d answers=%v", got.Version, got.Answers)
	}

	checks := []struct {
		name     string
		id       uuid.UUID
		version  int
		question int
		value    int
		code     aggregates.ErrorCode
	}{
		{"unknown assessment", uuid.New(), 2, 101, 3, aggregates.CodeNotFound},
		{"full-only question on quick", a.ID, 2, 102, 3, aggregates.CodeQuestionNotVisible},
		{"unknown question", a.ID, 2, 999, 3, aggregates.CodeQuestionNotVisible},
		{"value below scale", a.ID, 2, 201, 0, aggregates.CodeValidation},
		{"value above scale", a.ID, 2, 201, 6, aggregates.CodeValidation},
		{"stale version", a.ID, 1, 201, 3, aggregates.CodeVersionConflict},
		{"visibility before version", a.ID, 0, 102, 3, aggregates.CodeQuestionNotVisible},
	}
	for _, tc := range checks {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.RecordAnswer(ctx, tc.id, tc.version, tc.question, tc.value)
			if !aggregates.IsCode(err, tc.code) {
				t.Fatalf("want=%s got=%v", tc.code, err)
			}
		})
	}

	stored, err := f.store.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Version != 2 || len(stored.Answers) != 1 {
		t.Fatalf("rejected answers must not write: version=%d answers=%v", stored.Version, stored.Answers)
	}
}

func TestRecordAnswerConcurrentWritersOneWins(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, assessment.TypeQuick, assessment.TierFree)
	const n = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.RecordAnswer(context.Background(), a.ID, 0, 101, 1+i%5)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case aggregates.IsCode(err, aggregates.CodeVersionConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 || conflicts != n-1 {
		t.Fatalf("want one winner, got wins=%d conflicts=%d", wins, conflicts)
	}
}

func TestSubmitQuickFromDraftScores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, assessment.TypeQuick, assessment.TierFree)

	got, err := f.svc.Submit(ctx, a.ID, 0, quickAnswers(5))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.Status != assessment.StatusScored || got.Version != 1 {
		t.Fatalf("unexpected state: status=%s version=%d", got.Status, got.Version)
	}
	if got.OverallScore == nil || *got.OverallScore != 100 {
		t.Fatalf("overall: want=100 got=%v", got.OverallScore)
	}
	if len(got.DimensionScores) != 7 || got.DimensionScores[3] != 100 {
		t.Fatalf("dimension scores: %v", got.DimensionScores)
	}
	if got.SubmittedAt == nil || got.ScoredAt == nil {
		t.Fatalf("expected submitted and scored timestamps")
	}

	// Resubmission fails on state even with a stale version.
	if _, err := f.svc.Submit(ctx, a.ID, 0, nil); !aggregates.IsCode(err, aggregates.CodeInvalidStateTransition) {
		t.Fatalf("resubmit stale: want invalid_state_transition got=%v", err)
	}
	if _, err := f.svc.Submit(ctx, a.ID, 1, nil); !aggregates.IsCode(err, aggregates.CodeInvalidStateTransition) {
		t.Fatalf("resubmit current: want invalid_state_transition got=%v", err)
	}
	if _, err := f.svc.RecordAnswer(ctx, a.ID, 1, 101, 3); !aggregates.IsCode(err, aggregates.CodeInvalidStateTransition) {
		t.Fatalf("answer after scoring: want invalid_state_transition got=%v", err)
	}
}

func TestSubmitAllOnesScoresZero(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, assessment.TypeQuick, assessment.TierFree)
	got, err := f.svc.Submit(context.Background(), a.ID, 0, quickAnswers(1))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if *got.OverallScore != 0 {
		t.Fatalf("overall: want=0 got=%v", *got.OverallScore)
	}
}

func TestSubmitWithoutAnswersIsInsufficientData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, assessment.TypeQuick, assessment.TierFree)
	if _, err := f.svc.Submit(ctx, a.ID, 0, nil); !aggregates.IsCode(err, aggregates.CodeInsufficientData) {
		t.Fatalf("want insufficient_data got=%v", err)
	}
	stored, err := f.store.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != assessment.StatusDraft || stored.Version != 0 {
		t.Fatalf("failed submit must not write: status=%s version=%d", stored.Status, stored.Version)
	}
}

func TestSubmitFullFromDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, assessment.TypeFull, assessment.TierEnterprise)

	if _, err := f.svc.Submit(ctx, a.ID, 0, nil); !aggregates.IsCode(err, aggregates.CodeInsufficientData) {
		t.Fatalf("empty full submit: want insufficient_data got=%v", err)
	}
	if stored, err := f.store.Get(ctx, a.ID); err != nil || stored.Version != 0 || stored.Status != assessment.StatusDraft {
		t.Fatalf("empty full submit must not write: %+v err=%v", stored, err)
	}

	answers := []AnswerInput{{QuestionID: 101, Value: 5}, {QuestionID: 102, Value: 3}}
	got, err := f.svc.Submit(ctx, a.ID, 0, answers)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.Status != assessment.StatusScored {
		t.Fatalf("status: want=SCORED got=%s", got.Status)
	}
	// Dimension 1 scores (4+2)/8, the other six have visible but unanswered questions.
	if got.DimensionScores[1] != 75 || got.DimensionScores[2] != 0 {
		t.Fatalf("dimension scores: %v", got.DimensionScores)
	}
	if *got.OverallScore != 10.71 {
		t.Fatalf("overall: want=10.71 got=%v", *got.OverallScore)
	}
}

func TestSubmitValidatesEveryAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, assessment.TypeQuick, assessment.TierFree)

	cases := []struct {
		name    string
		version int
		answers []AnswerInput
		code    aggregates.ErrorCode
	}{
		{"duplicate question", 0, []AnswerInput{{101, 3}, {101, 4}}, aggregates.CodeValidation},
		{"invisible question", 0, []AnswerInput{{101, 3}, {102, 4}}, aggregates.CodeQuestionNotVisible},
		{"out of range", 0, []AnswerInput{{101, 3}, {201, 9}}, aggregates.CodeValidation},
		{"stale version", 3, quickAnswers(3), aggregates.CodeVersionConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Submit(ctx, a.ID, tc.version, tc.answers); !aggregates.IsCode(err, tc.code) {
				t.Fatalf("want=%s got=%v", tc.code, err)
			}
		})
	}
	stored, err := f.store.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(stored.Answers) != 0 || stored.Version != 0 {
		t.Fatalf("rejected submissions must not write: answers=%v version=%d", stored.Answers, stored.Version)
	}
}

func TestResultsRequireScoring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, assessment.TypeQuick, assessment.TierFree)
	if _, err := f.svc.Results(ctx, a.ID); !aggregates.IsCode(err, aggregates.CodeScoringNotComplete) {
		t.Fatalf("want scoring_not_complete got=%v", err)
	}
	if _, err := f.svc.Results(ctx, uuid.New()); !aggregates.IsCode(err, aggregates.CodeNotFound) {
		t.Fatalf("want not_found got=%v", err)
	}
}

func TestResultsCacheAside(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, assessment.TypeQuick, assessment.TierFree)
	if _, err := f.svc.Submit(ctx, a.ID, 0, quickAnswers(3)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if f.cache.sets != 1 {
		t.Fatalf("submit should warm the cache, sets=%d", f.cache.sets)
	}

	// Drop the warmed entry to exercise the store path.
	_ = f.cache.Delete(ctx, a.ID)
	res, err := f.svc.Results(ctx, a.ID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if res.OverallScore != 50 || res.Status != assessment.StatusScored || len(res.Dimensions) != 7 {
		t.Fatalf("unexpected results: %+v", res)
	}
	if d := res.Dimensions[0]; d.Answered != 1 || d.Visible != 1 || d.Score != 50 {
		t.Fatalf("unexpected breakdown: %+v", d)
	}
	if f.cache.sets != 2 {
		t.Fatalf("miss should populate the cache, sets=%d", f.cache.sets)
	}
	again, err := f.svc.Results(ctx, a.ID)
	if err != nil {
		t.Fatalf("Results (cached): %v", err)
	}
	if again.OverallScore != res.OverallScore || f.cache.sets != 2 {
		t.Fatalf("second read should be a hit: sets=%d", f.cache.sets)
	}
}

func TestResultsFallBackWhenCacheFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, assessment.TypeQuick, assessment.TierFree)
	if _, err := f.svc.Submit(ctx, a.ID, 0, quickAnswers(5)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	f.cache.getErr = errors.New("connection refused")
	res, err := f.svc.Results(ctx, a.ID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if res.OverallScore != 100 {
		t.Fatalf("overall: want=100 got=%v", res.OverallScore)
	}
}

func TestArchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, assessment.TypeQuick, assessment.TierFree)

	if _, err := f.svc.Archive(ctx, a.ID, 0); !aggregates.IsCode(err, aggregates.CodeInvalidStateTransition) {
		t.Fatalf("archive draft: want invalid_state_transition got=%v", err)
	}
	scored, err := f.svc.Submit(ctx, a.ID, 0, quickAnswers(4))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := f.svc.Archive(ctx, a.ID, 0); !aggregates.IsCode(err, aggregates.CodeVersionConflict) {
		t.Fatalf("archive stale: want version_conflict got=%v", err)
	}
	archived, err := f.svc.Archive(ctx, a.ID, scored.Version)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if archived.Status != assessment.StatusArchived || archived.Version != 2 || archived.ArchivedAt == nil {
		t.Fatalf("unexpected archive: status=%s version=%d", archived.Status, archived.Version)
	}
	if archived.OverallScore == nil || *archived.OverallScore != 75 {
		t.Fatalf("archive must keep scores: %v", archived.OverallScore)
	}
	if f.cache.deletes != 1 {
		t.Fatalf("archive should invalidate the cache, deletes=%d", f.cache.deletes)
	}
	res, err := f.svc.Results(ctx, a.ID)
	if err != nil {
		t.Fatalf("Results after archive: %v", err)
	}
	if res.Status != assessment.StatusArchived || res.OverallScore != 75 {
		t.Fatalf("unexpected archived results: %+v", res)
	}
	if _, err := f.svc.Archive(ctx, a.ID, 2); !aggregates.IsCode(err, aggregates.CodeInvalidStateTransition) {
		t.Fatalf("re-archive: want invalid_state_transition got=%v", err)
	}
}

func TestArchiveScoredBefore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := time.Now().UTC().Add(-72 * time.Hour)
	f.svc.now = func() time.Time { return past }

	var old []uuid.UUID
	for i := 0; i < 2; i++ {
		a := f.create(t, assessment.TypeQuick, assessment.TierFree)
		if _, err := f.svc.Submit(ctx, a.ID, 0, quickAnswers(3)); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		old = append(old, a.ID)
	}
	f.svc.now = func() time.Time { return time.Now().UTC() }
	recent := f.create(t, assessment.TypeQuick, assessment.TierFree)
	if _, err := f.svc.Submit(ctx, recent.ID, 0, quickAnswers(3)); err != nil {
		t.Fatalf("Submit recent: %v", err)
	}

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	dry, err := f.svc.ArchiveScoredBefore(ctx, cutoff, 0, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if dry.Candidates != 2 || dry.Archived != 0 || len(dry.IDs) != 2 {
		t.Fatalf("dry run report: %+v", dry)
	}

	report, err := f.svc.ArchiveScoredBefore(ctx, cutoff, 0, false)
	if err != nil {
		t.Fatalf("ArchiveScoredBefore: %v", err)
	}
	if report.Archived != 2 || report.Skipped != 0 {
		t.Fatalf("report: %+v", report)
	}
	for _, id := range old {
		a, err := f.store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if a.Status != assessment.StatusArchived {
			t.Fatalf("assessment %s: want ARCHIVED got=%s", id, a.Status)
		}
	}
	r, err := f.store.Get(ctx, recent.ID)
	if err != nil {
		t.Fatalf("Get recent: %v", err)
	}
	if r.Status != assessment.StatusScored {
		t.Fatalf("recent assessment must stay SCORED, got=%s", r.Status)
	}
}

func TestVisibleQuestions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	quick := f.create(t, assessment.TypeQuick, assessment.TierFree)
	full := f.create(t, assessment.TypeFull, assessment.TierPaid)

	qs, err := f.svc.VisibleQuestions(ctx, quick.ID)
	if err != nil {
		t.Fatalf("VisibleQuestions quick: %v", err)
	}
	if len(qs) != 7 {
		t.Fatalf("quick: want=7 got=%d", len(qs))
	}
	qs, err = f.svc.VisibleQuestions(ctx, full.ID)
	if err != nil {
		t.Fatalf("VisibleQuestions full: %v", err)
	}
	if len(qs) != 14 {
		t.Fatalf("full: want=14 got=%d", len(qs))
	}
}

// archivingCache archives the assessment right before the first Set lands,
// interleaving an Archive between Submit's CAS and its cache fill.
type archivingCache struct {
	*spyCache
	beforeSet func()
}

func (c *archivingCache) Set(ctx context.Context, e *cache.Entry) error {
	if hook := c.beforeSet; hook != nil {
		c.beforeSet = nil
		hook()
	}
	return c.spyCache.Set(ctx, e)
}

func TestSubmitDropsCacheEntryOvertakenByArchive(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(nil)
	rc := &archivingCache{spyCache: newSpyCache()}
	svc := NewSessionService(logger.Nop(), catalogtest.Uniform(7, 2), st, rc, nil).(*sessionService)
	f := fixture{svc: svc, store: st, cache: rc.spyCache}
	a := f.create(t, assessment.TypeQuick, assessment.TierFree)

	var archiveErr error
	rc.beforeSet = func() { _, archiveErr = svc.Archive(ctx, a.ID, 1) }
	if _, err := svc.Submit(ctx, a.ID, 0, quickAnswers(5)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if archiveErr != nil {
		t.Fatalf("Archive: %v", archiveErr)
	}
	if _, cached := rc.entries[a.ID]; cached {
		t.Fatalf("stale SCORED entry left in cache: %+v", rc.entries[a.ID])
	}

	res, err := svc.Results(ctx, a.ID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if res.Status != assessment.StatusArchived || res.Version != 2 {
		t.Fatalf("results: want=ARCHIVED/2 got=%s/%d", res.Status, res.Version)
	}
}

func TestNoopCacheSkipsFill(t *testing.T) {
	svc := NewSessionService(logger.Nop(), catalogtest.Uniform(7, 2), store.NewMemoryStore(nil), nil, nil).(*sessionService)
	if svc.caching {
		t.Fatalf("caching: want=false with the no-op cache")
	}
}
