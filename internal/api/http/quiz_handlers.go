package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

// POST /quizzes  body: quiz definition
func (a *API) UploadQuizHandler(w http.ResponseWriter, r *http.Request) {
	var def quiz.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		if errors.Is(err, quiz.ErrUnknownKind) {
			badRequest(w, err.Error())
			return
		}
		badRequest(w, "bad json")
		return
	}
	if err := a.store.PutQuiz(r.Context(), def); err != nil {
		writeError(w, r, a.log, err)
		return
	}
	a.log.Info("quiz stored", "quiz_id", def.ID, "questions", len(def.Questions))
	writeJSON(w, http.StatusCreated, map[string]any{"id": def.ID, "question_count": len(def.Questions)})
}

// GET /quizzes/{quizID}
//
// Correct answers are included: the attempt controller scores locally for
// instant feedback. The authoritative score is still computed server-side on
// completion.
func (a *API) GetQuizHandler(w http.ResponseWriter, r *http.Request) {
	def, err := a.store.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// GET /quizzes
func (a *API) ListQuizzesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := a.store.ListQuizzes(r.Context())
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
