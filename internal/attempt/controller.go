package attempt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

var (
	ErrEmptyQuiz      = errors.New("quiz has no questions")
	ErrAlreadyStarted = errors.New("attempt already started")
	ErrNotStarted     = errors.New("attempt not started")
	ErrCompleted      = errors.New("attempt already completed")
	ErrNotAnswered    = errors.New("current question is not answered")
	ErrNotLast        = errors.New("submit is only allowed on the last question")
	ErrBusy           = errors.New("attempt has a start or completion in flight")
	ErrStartFailed    = errors.New("start attempt failed")
	// ErrCompletionUnverified is returned when the gateway could not complete
	// the attempt. The attempt is Completed locally anyway, with no score.
	ErrCompletionUnverified = errors.New("attempt completed without a verified score")
)

// AnswerRecord is the current value for one question of the attempt.
type AnswerRecord struct {
	QuestionID string
	Value      quiz.Answer
	TimeSpent  time.Duration
}

// State is a snapshot of the attempt owned by a Controller.
type State struct {
	Session        quiz.Session
	Cursor         int
	ConfirmPending bool
	// ScoreVerified is false when the attempt completed but the gateway did
	// not return a score.
	ScoreVerified bool
	Answers       map[string]AnswerRecord
	Feedback      map[string]grading.Feedback
}

type Option func(*Controller)

func WithClock(c Clock) Option { return func(ctl *Controller) { ctl.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(ctl *Controller) { ctl.log = l } }

// WithRecordHook receives every per-question write result, in order.
func WithRecordHook(fn func(RecordResult)) Option {
	return func(ctl *Controller) { ctl.onRecord = fn }
}

// Controller owns the lifecycle of a single quiz attempt. All mutation goes
// through its commands; per-question writes run in the background strictly
// one after another.
type Controller struct {
	mu       sync.Mutex
	def      quiz.Definition
	gw       Gateway
	clock    Clock
	log      *slog.Logger
	onRecord func(RecordResult)

	state     State
	busy      bool
	mountedAt time.Time
	dirty     map[string]bool

	// lastWrite is closed when the most recently queued write has finished.
	lastWrite chan struct{}
}

func NewController(def quiz.Definition, gw Gateway, opts ...Option) *Controller {
	c := &Controller{
		def:   def,
		gw:    gw,
		clock: systemClock{},
		log:   slog.Default(),
		state: State{
			Session:  quiz.Session{QuizID: def.ID, Status: quiz.StatusNotStarted},
			Answers:  map[string]AnswerRecord{},
			Feedback: map[string]grading.Feedback{},
		},
		dirty: map[string]bool{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start opens the attempt on the gateway. On failure the attempt stays
// NotStarted and the error is returned; nothing is retried.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.busy:
		c.mu.Unlock()
		return ErrBusy
	case c.state.Session.Status != quiz.StatusNotStarted:
		c.mu.Unlock()
		return ErrAlreadyStarted
	case len(c.def.Questions) == 0:
		c.mu.Unlock()
		return ErrEmptyQuiz
	}
	c.busy = true
	c.mu.Unlock()

	session, err := c.gw.StartQuizAttempt(ctx, c.def.ID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if err != nil {
		c.log.Error("start attempt", "quiz_id", c.def.ID, "err", err)
		return fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	if session.QuizID == "" {
		session.QuizID = c.def.ID
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = c.clock.Now().UTC()
	}
	session.Status = quiz.StatusInProgress
	session.Score = nil
	session.CompletedAt = nil
	c.state.Session = session
	c.state.Cursor = 0
	c.mountedAt = c.clock.Now()
	c.log.Debug("attempt started", "attempt_id", session.ID, "quiz_id", session.QuizID)
	return nil
}

// SetAnswer stores value for the current question, replacing any previous
// value. Feedback is recomputed on every call and cleared when the answer is
// empty or, for matching, incomplete.
func (c *Controller) SetAnswer(value quiz.Answer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkInProgress(); err != nil {
		return err
	}
	q := c.def.Questions[c.state.Cursor]
	id := q.QuestionID()
	prev, had := c.state.Answers[id]

	if quiz.IsEmpty(value) {
		value = nil
	}
	if !had || !quiz.Equal(prev.Value, value) {
		c.dirty[id] = true
	}
	prev.QuestionID = id
	prev.Value = value
	c.state.Answers[id] = prev

	if fb := grading.Evaluate(q, value); fb.Shown {
		c.state.Feedback[id] = fb
	} else {
		delete(c.state.Feedback, id)
	}
	if !grading.Answered(q, value) {
		c.state.ConfirmPending = false
	}
	return nil
}

// Next records the current answer in the background and advances. On the
// last question it enters the pending-confirmation state instead.
func (c *Controller) Next(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkInProgress(); err != nil {
		return err
	}
	if c.state.ConfirmPending {
		return nil
	}
	q := c.def.Questions[c.state.Cursor]
	rec := c.state.Answers[q.QuestionID()]
	if !grading.Answered(q, rec.Value) {
		return ErrNotAnswered
	}

	now := c.clock.Now()
	c.persistLocked(ctx, q.QuestionID(), now)

	if c.state.Cursor == len(c.def.Questions)-1 {
		c.state.ConfirmPending = true
		return nil
	}
	c.state.Cursor++
	c.mountedAt = now
	return nil
}

// Previous moves back one question, leaving answers and feedback alone. It
// also leaves the pending-confirmation state.
func (c *Controller) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkInProgress(); err != nil {
		return err
	}
	c.state.ConfirmPending = false
	if c.state.Cursor > 0 {
		c.state.Cursor--
		c.mountedAt = c.clock.Now()
	}
	return nil
}

// CancelSubmit leaves the pending-confirmation state and stays on the last
// question.
func (c *Controller) CancelSubmit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkInProgress(); err != nil {
		return err
	}
	c.state.ConfirmPending = false
	return nil
}

// ConfirmSubmit flushes any unsaved answers, waits for every queued write and
// then completes the attempt on the gateway.
//
// If completion fails, or ctx ends while earlier writes are still queued, the
// attempt is still marked Completed locally, with no score, and
// ErrCompletionUnverified is returned.
func (c *Controller) ConfirmSubmit(ctx context.Context) (quiz.Session, error) {
	c.mu.Lock()
	if err := c.checkInProgress(); err != nil {
		c.mu.Unlock()
		return quiz.Session{}, err
	}
	last := len(c.def.Questions) - 1
	if c.state.Cursor != last {
		c.mu.Unlock()
		return quiz.Session{}, ErrNotLast
	}
	q := c.def.Questions[last]
	if !grading.Answered(q, c.state.Answers[q.QuestionID()].Value) {
		c.mu.Unlock()
		return quiz.Session{}, ErrNotAnswered
	}

	now := c.clock.Now()
	for _, question := range c.def.Questions {
		id := question.QuestionID()
		if !c.dirty[id] {
			continue
		}
		if _, ok := c.state.Answers[id]; !ok {
			continue
		}
		c.persistLocked(ctx, id, now)
	}
	c.busy = true
	wait := c.lastWrite
	attemptID := c.state.Session.ID
	c.mu.Unlock()

	var (
		completion quiz.Completion
		err        error
	)
	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			err = fmt.Errorf("waiting for answer writes: %w", ctx.Err())
		}
	}
	if err == nil {
		completion, err = c.gw.CompleteQuizAttempt(ctx, attemptID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	c.state.ConfirmPending = false
	c.state.Session.Status = quiz.StatusCompleted
	if err != nil {
		completedAt := c.clock.Now().UTC()
		c.state.Session.CompletedAt = &completedAt
		c.state.Session.Score = nil
		c.state.ScoreVerified = false
		c.log.Warn("complete attempt failed; marked completed locally without score",
			"attempt_id", attemptID, "err", err)
		return c.state.Session, fmt.Errorf("%w: %w", ErrCompletionUnverified, err)
	}
	completedAt := completion.CompletedAt
	if completedAt.IsZero() {
		completedAt = c.clock.Now().UTC()
	}
	score := completion.Score
	c.state.Session.CompletedAt = &completedAt
	c.state.Session.Score = &score
	c.state.ScoreVerified = true
	c.log.Info("attempt completed", "attempt_id", attemptID, "score", score)
	return c.state.Session, nil
}

// Wait blocks until every queued per-question write has finished.
func (c *Controller) Wait() {
	c.mu.Lock()
	wait := c.lastWrite
	c.mu.Unlock()
	if wait != nil {
		<-wait
	}
}

// Current returns the question under the cursor and its index, or nil and -1
// when the quiz has no questions.
func (c *Controller) Current() (quiz.Question, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Cursor < 0 || c.state.Cursor >= len(c.def.Questions) {
		return nil, -1
	}
	return c.def.Questions[c.state.Cursor], c.state.Cursor
}

func (c *Controller) Definition() quiz.Definition { return c.def }

// State returns a copy of the attempt state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Answers = make(map[string]AnswerRecord, len(c.state.Answers))
	for k, v := range c.state.Answers {
		s.Answers[k] = v
	}
	s.Feedback = make(map[string]grading.Feedback, len(c.state.Feedback))
	for k, v := range c.state.Feedback {
		s.Feedback[k] = v
	}
	if c.state.Session.Score != nil {
		score := *c.state.Session.Score
		s.Session.Score = &score
	}
	return s
}

func (c *Controller) checkInProgress() error {
	switch {
	case c.busy:
		return ErrBusy
	case c.state.Session.Status == quiz.StatusNotStarted:
		return ErrNotStarted
	case c.state.Session.Status == quiz.StatusCompleted:
		return ErrCompleted
	}
	return nil
}

// persistLocked queues a best-effort write for questionID. The time spent is
// only sampled for the question under the cursor. Callers hold c.mu.
func (c *Controller) persistLocked(ctx context.Context, questionID string, now time.Time) {
	rec := c.state.Answers[questionID]
	if current := c.def.Questions[c.state.Cursor]; current.QuestionID() == questionID {
		rec.TimeSpent = now.Sub(c.mountedAt)
		if rec.TimeSpent < 0 {
			rec.TimeSpent = 0
		}
		c.state.Answers[questionID] = rec
	}
	c.dirty[questionID] = false

	sub := quiz.Submission{
		AttemptID:   c.state.Session.ID,
		QuestionID:  questionID,
		Answer:      rec.Value,
		TimeSpentMs: rec.TimeSpent.Milliseconds(),
	}
	prev := c.lastWrite
	done := make(chan struct{})
	c.lastWrite = done
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		c.report(c.record(ctx, sub))
	}()
}

// record performs one write. Its error is for logging only; navigation never
// depends on it.
func (c *Controller) record(ctx context.Context, sub quiz.Submission) RecordResult {
	return RecordResult{Submission: sub, Err: c.gw.SubmitAnswer(ctx, sub)}
}

func (c *Controller) report(res RecordResult) {
	if !res.OK() {
		c.log.Warn("record answer failed",
			"attempt_id", res.Submission.AttemptID,
			"question_id", res.Submission.QuestionID,
			"err", res.Err)
	}
	if c.onRecord != nil {
		c.onRecord(res)
	}
}
