package handlers

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/readiness-backend/internal/domain/aggregates"
	"github.com/yungbote/readiness-backend/internal/domain/assessment"
	"github.com/yungbote/readiness-backend/internal/http/response"
	"github.com/yungbote/readiness-backend/internal/platform/ctxutil"
	"github.com/yungbote/readiness-backend/internal/platform/logger"
	"github.com/yungbote/readiness-backend/internal/session"
)

type AssessmentHandler struct {
	log      *logger.Logger
	sessions session.SessionService
}

func NewAssessmentHandler(log *logger.Logger, sessions session.SessionService) *AssessmentHandler {
	return &AssessmentHandler{
		log:      log.With("handler", "AssessmentHandler"),
		sessions: sessions,
	}
}

type answerView struct {
	QuestionID int       `json:"question_id"`
	Value      int       `json:"value"`
	AnsweredAt time.Time `json:"answered_at"`
}

type assessmentView struct {
	ID               uuid.UUID         `json:"id"`
	OrganizationName string            `json:"organization_name"`
	Email            string            `json:"email"`
	Industry         string            `json:"industry,omitempty"`
	CompanySize      string            `json:"company_size,omitempty"`
	AssessmentType   assessment.Type   `json:"assessment_type"`
	SubscriptionTier assessment.Tier   `json:"subscription_tier"`
	Status           assessment.Status `json:"status"`
	Answers          []answerView      `json:"answers"`
	AnswersCount     int               `json:"answers_count"`
	DimensionScores  map[int]float64   `json:"dimension_scores,omitempty"`
	OverallScore     *float64          `json:"overall_score,omitempty"`
	Version          int               `json:"version"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	SubmittedAt      *time.Time        `json:"submitted_at,omitempty"`
	ScoredAt         *time.Time        `json:"scored_at,omitempty"`
	ArchivedAt       *time.Time        `json:"archived_at,omitempty"`
}

func toView(a *assessment.Assessment) assessmentView {
	answers := make([]answerView, 0, len(a.Answers))
	for _, ans := range a.Answers {
		answers = append(answers, answerView{QuestionID: ans.QuestionID, Value: ans.Value, AnsweredAt: ans.AnsweredAt})
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionID < answers[j].QuestionID })
	return assessmentView{
		ID:               a.ID,
		OrganizationName: a.OrganizationName,
		Email:            a.Email,
		Industry:         a.Industry,
		CompanySize:      a.CompanySize,
		AssessmentType:   a.Type,
		SubscriptionTier: a.Tier,
		Status:           a.Status,
		Answers:          answers,
		AnswersCount:     len(answers),
		DimensionScores:  a.DimensionScores,
		OverallScore:     a.OverallScore,
		Version:          a.Version,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
		SubmittedAt:      a.SubmittedAt,
		ScoredAt:         a.ScoredAt,
		ArchivedAt:       a.ArchivedAt,
	}
}

type createAssessmentRequest struct {
	OrganizationName string `json:"organization_name"`
	Email            string `json:"email"`
	Industry         string `json:"industry"`
	CompanySize      string `json:"company_size"`
	AssessmentType   string `json:"assessment_type"`
}

// POST /api/assessments
// Anonymous callers get the FREE tier; a verified identity brings its own.
func (h *AssessmentHandler) Create(c *gin.Context) {
	var req createAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, badRequest("http.create_assessment", "invalid request body", err))
		return
	}
	in := session.CreateInput{
		OrganizationName: req.OrganizationName,
		Email:            req.Email,
		Industry:         req.Industry,
		CompanySize:      req.CompanySize,
		Type:             assessment.Type(strings.ToUpper(strings.TrimSpace(req.AssessmentType))),
		Tier:             assessment.TierFree,
	}
	if id := ctxutil.GetIdentity(c.Request.Context()); id != nil {
		in.Tier = id.Tier
		if strings.TrimSpace(in.Email) == "" {
			in.Email = id.Email
		}
	}
	a, err := h.sessions.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, "create assessment failed", err)
		return
	}
	response.RespondCreated(c, toView(a))
}

// GET /api/assessments/:id
func (h *AssessmentHandler) Get(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	a, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get assessment failed", err)
		return
	}
	respondOK(c, toView(a))
}

// GET /api/assessments/:id/questions
func (h *AssessmentHandler) Questions(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	qs, err := h.sessions.VisibleQuestions(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "list visible questions failed", err)
		return
	}
	respondOK(c, gin.H{"id": id, "questions": qs})
}

type recordAnswerRequest struct {
	Value   *int `json:"value"`
	Version *int `json:"version"`
}

// PUT /api/assessments/:id/answers/:question_id
func (h *AssessmentHandler) RecordAnswer(c *gin.Context) {
	const op = "http.record_answer"
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	questionID, err := strconv.Atoi(c.Param("question_id"))
	if err != nil {
		respondErr(c, badRequest(op, "question_id must be an integer", err))
		return
	}
	var req recordAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, badRequest(op, "invalid request body", err))
		return
	}
	if req.Value == nil || req.Version == nil {
		respondErr(c, badRequest(op, "value and version are required", nil))
		return
	}
	a, err := h.sessions.RecordAnswer(c.Request.Context(), id, *req.Version, questionID, *req.Value)
	if err != nil {
		h.fail(c, "record answer failed", err)
		return
	}
	respondOK(c, toView(a))
}

type submitAnswer struct {
	QuestionID int `json:"question_id"`
	Value      int `json:"value"`
}

type submitRequest struct {
	Answers []submitAnswer `json:"answers"`
	Version *int           `json:"version"`
}

type submitResponse struct {
	ID              uuid.UUID         `json:"id"`
	AnswersCount    int               `json:"answers_count"`
	Status          assessment.Status `json:"status"`
	DimensionScores map[int]float64   `json:"dimension_scores"`
	OverallScore    *float64          `json:"overall_score"`
	Version         int               `json:"version"`
}

// POST /api/assessments/:id/submit
func (h *AssessmentHandler) Submit(c *gin.Context) {
	const op = "http.submit"
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, badRequest(op, "invalid request body", err))
		return
	}
	if req.Version == nil {
		respondErr(c, badRequest(op, "version is required", nil))
		return
	}
	answers := make([]session.AnswerInput, 0, len(req.Answers))
	for _, ans := range req.Answers {
		answers = append(answers, session.AnswerInput{QuestionID: ans.QuestionID, Value: ans.Value})
	}
	a, err := h.sessions.Submit(c.Request.Context(), id, *req.Version, answers)
	if err != nil {
		h.fail(c, "submit assessment failed", err)
		return
	}
	respondOK(c, submitResponse{
		ID:              a.ID,
		AnswersCount:    len(a.Answers),
		Status:          a.Status,
		DimensionScores: a.DimensionScores,
		OverallScore:    a.OverallScore,
		Version:         a.Version,
	})
}

// GET /api/assessments/:id/results
func (h *AssessmentHandler) Results(c *gin.Context) {
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	res, err := h.sessions.Results(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get results failed", err)
		return
	}
	respondOK(c, res)
}

type archiveRequest struct {
	Version *int `json:"version"`
}

// POST /api/assessments/:id/archive
func (h *AssessmentHandler) Archive(c *gin.Context) {
	const op = "http.archive"
	id, ok := assessmentID(c)
	if !ok {
		return
	}
	var req archiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, badRequest(op, "invalid request body", err))
		return
	}
	if req.Version == nil {
		respondErr(c, badRequest(op, "version is required", nil))
		return
	}
	a, err := h.sessions.Archive(c.Request.Context(), id, *req.Version)
	if err != nil {
		h.fail(c, "archive assessment failed", err)
		return
	}
	respondOK(c, toView(a))
}

// fail writes the error envelope; server-side failures are also logged.
func (h *AssessmentHandler) fail(c *gin.Context, msg string, err error) {
	switch aggregates.CodeOf(err) {
	case aggregates.CodeInternal, aggregates.CodeStoreUnavailable, "":
		h.log.Error(msg, "path", c.FullPath(), "error", err)
	}
	respondErr(c, err)
}

func assessmentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil || id == uuid.Nil {
		respondErr(c, badRequest("http.assessment_id", "invalid assessment id", err))
		return uuid.Nil, false
	}
	return id, true
}

func badRequest(op, msg string, cause error) error {
	return aggregates.NewError(aggregates.CodeValidation, op, msg, cause)
}
