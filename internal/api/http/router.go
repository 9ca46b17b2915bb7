package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mind-engage/mindengage-quiz/internal/auth"
	"github.com/mind-engage/mindengage-quiz/internal/eventlog"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
	"github.com/mind-engage/mindengage-quiz/internal/recommend"
	"github.com/mind-engage/mindengage-quiz/internal/store"
)

// API holds the handler dependencies.
type API struct {
	store       store.Store
	auth        *auth.AuthService
	rbac        *rbac.Checker
	recommender *recommend.Engine
	events      *eventlog.Repo
	log         *slog.Logger
	now         func() time.Time
}

type Options struct {
	Store  store.Store
	Auth   *auth.AuthService
	Logger *slog.Logger
	// Events enables GET /events when set.
	Events      *eventlog.Repo
	Recommender *recommend.Engine
	Checker     *rbac.Checker

	// Login enables POST /auth/login when non-nil.
	Login *auth.LoginConfig
	// GuestLogin enables POST /auth/guest.
	GuestLogin   bool
	SecureCookie bool

	RequestTimeout time.Duration
	// Middlewares run before routing, e.g. CORS.
	Middlewares []func(http.Handler) http.Handler
	Now         func() time.Time
}

func NewAPI(o Options) *API {
	a := &API{
		store:       o.Store,
		auth:        o.Auth,
		rbac:        o.Checker,
		recommender: o.Recommender,
		events:      o.Events,
		log:         o.Logger,
		now:         o.Now,
	}
	if a.rbac == nil {
		a.rbac = rbac.NewChecker(nil)
	}
	if a.recommender == nil {
		a.recommender = recommend.New()
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.now == nil {
		a.now = func() time.Time { return time.Now().UTC() }
	}
	return a
}

// NewRouter mounts every route. JWT → role in context → RBAC.
func NewRouter(o Options) chi.Router {
	a := NewAPI(o)
	timeout := o.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(o.Middlewares...)

	if o.Login != nil {
		r.Post("/auth/login", auth.LoginHandler(a.auth, *o.Login))
	}
	if o.GuestLogin {
		r.Post("/auth/guest", auth.GuestLoginHandler(a.auth, o.SecureCookie))
	}

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(a.auth))

		pr.With(a.rbac.Require(rbac.PermQuizCreate)).Post("/quizzes", a.UploadQuizHandler)
		pr.With(a.rbac.Require(rbac.PermQuizView)).Get("/quizzes", a.ListQuizzesHandler)
		pr.With(a.rbac.Require(rbac.PermQuizView)).Get("/quizzes/{quizID}", a.GetQuizHandler)

		pr.With(a.rbac.Require(rbac.PermAttemptCreate)).Post("/attempts", a.CreateAttemptHandler)
		pr.With(a.rbac.Require(rbac.PermAttemptSave)).Post("/attempts/{attemptID}/answers", a.SubmitAnswerHandler)
		pr.With(a.rbac.Require(rbac.PermAttemptSubmit)).Post("/attempts/{attemptID}/complete", a.CompleteAttemptHandler)
		pr.With(a.rbac.RequireAny(rbac.PermAttemptOwn, rbac.PermAttemptAll)).Get("/attempts", a.ListAttemptsHandler)
		pr.With(a.rbac.RequireAny(rbac.PermAttemptOwn, rbac.PermAttemptAll)).Get("/attempts/{attemptID}", a.GetAttemptHandler)

		pr.With(a.rbac.RequireAny(rbac.PermStatsOwn, rbac.PermStatsAll)).Get("/stats", a.StatsHandler)

		if a.events != nil {
			pr.With(a.rbac.Require(rbac.PermEventsView)).Get("/events", a.EventsHandler)
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
