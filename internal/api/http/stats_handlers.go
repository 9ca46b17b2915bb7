package http

import (
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
	"github.com/mind-engage/mindengage-quiz/internal/recommend"
	"github.com/mind-engage/mindengage-quiz/internal/stats"
)

type statsResponse struct {
	QuizID    string           `json:"quiz_id,omitempty"`
	QuizTitle string           `json:"quiz_title,omitempty"`
	Stats     stats.Stats      `json:"stats"`
	Report    recommend.Report `json:"report"`
}

// GET /stats?quiz_id=...&user_id=...
//
// Statistics are derived on every request from the attempt history; nothing
// is cached. Only stats:view-all may look at other users.
func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	f := a.ownerFilter(r, rbac.PermStatsAll)
	f.Limit = 0

	var (
		attempts []quiz.Attempt
		def      quiz.Definition
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		attempts, err = a.store.ListAttempts(ctx, f)
		return err
	})
	if f.QuizID != "" {
		g.Go(func() error {
			var err error
			def, err = a.store.GetQuiz(ctx, f.QuizID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		writeError(w, r, a.log, err)
		return
	}

	s := stats.Aggregate(attempts, f.QuizID, a.now())
	writeJSON(w, http.StatusOK, statsResponse{
		QuizID:    f.QuizID,
		QuizTitle: def.Title,
		Stats:     s,
		Report:    a.recommender.Recommend(s),
	})
}

// GET /events?after=0&limit=100
func (a *API) EventsHandler(w http.ResponseWriter, r *http.Request) {
	after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
	list, err := a.events.Since(r.Context(), after, parseIntDefault(r.URL.Query().Get("limit"), 100))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
