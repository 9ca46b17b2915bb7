package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-quiz/internal/auth"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
	"github.com/mind-engage/mindengage-quiz/internal/store"
)

// POST /attempts  { "quiz_id": "..." }
func (a *API) CreateAttemptHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuizID string `json:"quiz_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "bad json")
		return
	}
	if strings.TrimSpace(req.QuizID) == "" {
		badRequest(w, "quiz_id required")
		return
	}
	sub := auth.SubjectFromContext(r.Context())
	att, err := a.store.StartAttempt(r.Context(), req.QuizID, sub)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	a.log.Debug("attempt started", "attempt_id", att.ID, "quiz_id", att.QuizID, "user_id", sub)
	writeJSON(w, http.StatusCreated, store.SessionOf(att))
}

type answerRequest struct {
	QuestionID  string          `json:"question_id"`
	Answer      json.RawMessage `json:"answer"`
	TimeSpentMs int64           `json:"time_spent_ms"`
}

// POST /attempts/{attemptID}/answers  { "question_id", "answer", "time_spent_ms" }
//
// The answer shape depends on the question kind, so the question is looked up
// before decoding.
func (a *API) SubmitAnswerHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	attemptID := chi.URLParam(r, "attemptID")
	sub := auth.SubjectFromContext(ctx)

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "bad json")
		return
	}
	if req.QuestionID == "" {
		badRequest(w, "question_id required")
		return
	}

	att, err := a.store.GetAttempt(ctx, sub, attemptID)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	def, err := a.store.GetQuiz(ctx, att.QuizID)
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	q, ok := def.Lookup(req.QuestionID)
	if !ok {
		writeError(w, r, a.log, store.ErrQuestionNotFound)
		return
	}
	ans, err := quiz.DecodeAnswer(q.Kind(), req.Answer)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	err = a.store.RecordAnswer(ctx, sub, quiz.Submission{
		AttemptID:   attemptID,
		QuestionID:  req.QuestionID,
		Answer:      ans,
		TimeSpentMs: req.TimeSpentMs,
	})
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /attempts/{attemptID}/complete
func (a *API) CompleteAttemptHandler(w http.ResponseWriter, r *http.Request) {
	sub := auth.SubjectFromContext(r.Context())
	att, err := a.store.CompleteAttempt(r.Context(), sub, chi.URLParam(r, "attemptID"))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	a.log.Info("attempt completed", "attempt_id", att.ID, "quiz_id", att.QuizID, "user_id", att.UserID)
	writeJSON(w, http.StatusOK, store.CompletionOf(att))
}

// GET /attempts/{attemptID}
func (a *API) GetAttemptHandler(w http.ResponseWriter, r *http.Request) {
	att, err := a.store.GetAttempt(r.Context(), a.ownerScope(r), chi.URLParam(r, "attemptID"))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, att)
}

// GET /attempts?quiz_id=...&user_id=...&limit=50
//
// Callers without attempt:view-all only ever see their own attempts.
func (a *API) ListAttemptsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := a.store.ListAttempts(r.Context(), a.ownerFilter(r, rbac.PermAttemptAll))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ownerScope is the user id attempt lookups are restricted to; empty means
// any owner.
func (a *API) ownerScope(r *http.Request) string {
	return a.rbac.AttemptScope(rbac.RoleFromContext(r.Context()), auth.SubjectFromContext(r.Context()))
}

// ownerFilter scopes a listing. Callers holding viewAll may pass user_id, or
// all=true for every user; everyone else gets their own attempts.
func (a *API) ownerFilter(r *http.Request, viewAll string) store.AttemptFilter {
	q := r.URL.Query()
	f := store.AttemptFilter{
		QuizID: strings.TrimSpace(q.Get("quiz_id")),
		UserID: strings.TrimSpace(q.Get("user_id")),
		Limit:  parseIntDefault(q.Get("limit"), 0),
	}
	sub := auth.SubjectFromContext(r.Context())
	switch {
	case a.rbac.OwnerScope(rbac.RoleFromContext(r.Context()), sub, viewAll) != "":
		f.UserID = sub
	case f.UserID == "" && q.Get("all") != "true":
		f.UserID = sub
	}
	return f
}
