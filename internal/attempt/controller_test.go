package attempt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

/* ---------------- fakes ---------------- */

type fakeGateway struct {
	mu sync.Mutex

	startErr    error
	submitErr   error
	completeErr error
	score       float64
	// zeroTimes drops the gateway's StartedAt/CompletedAt timestamps.
	zeroTimes bool

	// block, when set, holds every SubmitAnswer until it is closed.
	block chan struct{}

	submits       []quiz.Submission
	inflight      int
	maxInflight   int
	completeCalls int
	submitsAtDone int
}

func (f *fakeGateway) StartQuizAttempt(_ context.Context, quizID string) (quiz.Session, error) {
	if f.startErr != nil {
		return quiz.Session{}, f.startErr
	}
	if f.zeroTimes {
		return quiz.Session{ID: "att-1", QuizID: quizID}, nil
	}
	return quiz.Session{ID: "att-1", QuizID: quizID, StartedAt: time.Unix(100, 0).UTC()}, nil
}

func (f *fakeGateway) SubmitAnswer(_ context.Context, sub quiz.Submission) error {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight--
	f.submits = append(f.submits, sub)
	return f.submitErr
}

func (f *fakeGateway) CompleteQuizAttempt(_ context.Context, attemptID string) (quiz.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	f.submitsAtDone = len(f.submits)
	if f.completeErr != nil {
		return quiz.Completion{}, f.completeErr
	}
	if f.zeroTimes {
		return quiz.Completion{AttemptID: attemptID, Score: f.score}, nil
	}
	return quiz.Completion{AttemptID: attemptID, Score: f.score, CompletedAt: time.Unix(500, 0).UTC()}, nil
}

func (f *fakeGateway) FetchUserAttempts(context.Context, string) ([]quiz.Attempt, error) {
	return nil, nil
}

func (f *fakeGateway) recorded() []quiz.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]quiz.Submission(nil), f.submits...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

/* ---------------- fixtures ---------------- */

func sampleQuiz() quiz.Definition {
	yes := true
	return quiz.Definition{
		ID:    "geo",
		Title: "Geography",
		Questions: []quiz.Question{
			quiz.MultipleChoice{Base: quiz.Base{ID: "q1"}, Options: []string{"Berlin", "Paris"}, CorrectAnswer: quiz.LetterKey("b")},
			quiz.TrueFalse{Base: quiz.Base{ID: "q2"}, CorrectAnswer: &yes},
			quiz.FillInBlank{Base: quiz.Base{ID: "q3"}, CorrectAnswer: "Rome"},
			quiz.Matching{
				Base:           quiz.Base{ID: "q4"},
				ColumnA:        map[string]string{"1": "Spain", "2": "Portugal"},
				ColumnB:        map[string]string{"x": "Lisbon", "y": "Madrid"},
				CorrectMatches: []quiz.MatchPair{{Item: "1", Match: "y"}, {Item: "2", Match: "x"}},
			},
		},
	}
}

var correctAnswers = []quiz.Answer{
	quiz.Choice{Index: 1},
	quiz.Choice{Index: quiz.ChoiceTrue},
	quiz.Text{Value: " rome "},
	quiz.Matches{Pairs: []quiz.MatchPair{{Item: "2", Match: "x"}, {Item: "1", Match: "y"}}},
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStarted(t *testing.T, gw *fakeGateway, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	c := NewController(sampleQuiz(), gw, opts...)
	require.NoError(t, c.Start(context.Background()))
	return c
}

/* ---------------- tests ---------------- */

func TestStartFailureKeepsNotStarted(t *testing.T) {
	boom := errors.New("gateway down")
	c := NewController(sampleQuiz(), &fakeGateway{startErr: boom}, WithLogger(quietLogger()))

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStartFailed)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, quiz.StatusNotStarted, c.State().Session.Status)
	assert.ErrorIs(t, c.SetAnswer(quiz.Choice{Index: 0}), ErrNotStarted)
}

func TestStartRejectsEmptyQuizAndRestart(t *testing.T) {
	c := NewController(quiz.Definition{ID: "empty"}, &fakeGateway{}, WithLogger(quietLogger()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrEmptyQuiz)
	q, idx := c.Current()
	assert.Nil(t, q)
	assert.Equal(t, -1, idx)

	started := newStarted(t, &fakeGateway{})
	assert.ErrorIs(t, started.Start(context.Background()), ErrAlreadyStarted)
	st := started.State()
	assert.Equal(t, quiz.StatusInProgress, st.Session.Status)
	assert.Equal(t, "att-1", st.Session.ID)
	assert.Equal(t, 0, st.Cursor)
}

func TestSetAnswerGivesInstantFeedbackAndIsIdempotent(t *testing.T) {
	c := newStarted(t, &fakeGateway{})

	require.NoError(t, c.SetAnswer(quiz.Choice{Index: 0}))
	first := c.State()
	require.NoError(t, c.SetAnswer(quiz.Choice{Index: 0}))
	second := c.State()

	assert.Equal(t, first.Feedback, second.Feedback)
	assert.Equal(t, first.Answers, second.Answers)
	assert.Equal(t, grading.Feedback{Shown: true, Correct: false}, second.Feedback["q1"])

	require.NoError(t, c.SetAnswer(quiz.Choice{Index: 1}))
	assert.Equal(t, grading.Feedback{Shown: true, Correct: true}, c.State().Feedback["q1"])

	require.NoError(t, c.SetAnswer(nil))
	st := c.State()
	_, has := st.Feedback["q1"]
	assert.False(t, has)
	assert.Nil(t, st.Answers["q1"].Value)
}

func TestNextRequiresAnswerAndPreviousKeepsState(t *testing.T) {
	gw := &fakeGateway{}
	c := newStarted(t, gw)
	ctx := context.Background()

	assert.ErrorIs(t, c.Next(ctx), ErrNotAnswered)

	require.NoError(t, c.SetAnswer(correctAnswers[0]))
	require.NoError(t, c.Next(ctx))
	_, idx := c.Current()
	assert.Equal(t, 1, idx)

	require.NoError(t, c.SetAnswer(quiz.Choice{Index: quiz.ChoiceFalse}))
	require.NoError(t, c.Previous())
	_, idx = c.Current()
	assert.Equal(t, 0, idx)

	st := c.State()
	assert.Equal(t, correctAnswers[0], st.Answers["q1"].Value)
	assert.Equal(t, quiz.Choice{Index: quiz.ChoiceFalse}, st.Answers["q2"].Value)
	assert.Equal(t, grading.Feedback{Shown: true, Correct: false}, st.Feedback["q2"])

	// Previous at the first question is a no-op.
	require.NoError(t, c.Previous())
	_, idx = c.Current()
	assert.Equal(t, 0, idx)
}

func TestFillInBlankWhitespaceIsNotAnswered(t *testing.T) {
	c := newStarted(t, &fakeGateway{})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		require.NoError(t, c.SetAnswer(correctAnswers[i]))
		require.NoError(t, c.Next(ctx))
	}
	require.NoError(t, c.SetAnswer(quiz.Text{Value: "   "}))
	assert.ErrorIs(t, c.Next(ctx), ErrNotAnswered)
	_, has := c.State().Feedback["q3"]
	assert.False(t, has)
}

func TestMatchingFeedbackWaitsForEverySlot(t *testing.T) {
	c := newStarted(t, &fakeGateway{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, c.SetAnswer(correctAnswers[i]))
		require.NoError(t, c.Next(ctx))
	}

	require.NoError(t, c.SetAnswer(quiz.Matches{Pairs: []quiz.MatchPair{{Item: "1", Match: "y"}}}))
	_, has := c.State().Feedback["q4"]
	assert.False(t, has)
	assert.ErrorIs(t, c.Next(ctx), ErrNotAnswered)

	require.NoError(t, c.SetAnswer(correctAnswers[3]))
	assert.Equal(t, grading.Feedback{Shown: true, Correct: true}, c.State().Feedback["q4"])
}

func TestNextOnLastQuestionWaitsForConfirmation(t *testing.T) {
	c := newStarted(t, &fakeGateway{})
	ctx := context.Background()
	for _, a := range correctAnswers {
		require.NoError(t, c.SetAnswer(a))
		require.NoError(t, c.Next(ctx))
	}
	st := c.State()
	assert.True(t, st.ConfirmPending)
	assert.Equal(t, 3, st.Cursor)
	assert.Equal(t, quiz.StatusInProgress, st.Session.Status)

	require.NoError(t, c.CancelSubmit())
	assert.False(t, c.State().ConfirmPending)
	assert.Equal(t, 3, c.State().Cursor)
}

func TestSubmitFailureNeverBlocksNavigation(t *testing.T) {
	gw := &fakeGateway{submitErr: errors.New("write refused")}
	var (
		mu      sync.Mutex
		results []RecordResult
	)
	c := newStarted(t, gw, WithRecordHook(func(r RecordResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}))
	ctx := context.Background()

	require.NoError(t, c.SetAnswer(correctAnswers[0]))
	require.NoError(t, c.Next(ctx))
	require.NoError(t, c.SetAnswer(correctAnswers[1]))
	require.NoError(t, c.Next(ctx))
	c.Wait()

	_, idx := c.Current()
	assert.Equal(t, 2, idx)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.OK())
	}
}

func TestNextDoesNotWaitForWrites(t *testing.T) {
	gw := &fakeGateway{block: make(chan struct{})}
	c := newStarted(t, gw)
	ctx := context.Background()

	require.NoError(t, c.SetAnswer(correctAnswers[0]))
	require.NoError(t, c.Next(ctx))
	require.NoError(t, c.SetAnswer(correctAnswers[1]))
	require.NoError(t, c.Next(ctx))
	_, idx := c.Current()
	assert.Equal(t, 2, idx)
	assert.Empty(t, gw.recorded())

	close(gw.block)
	c.Wait()
	subs := gw.recorded()
	require.Len(t, subs, 2)
	assert.Equal(t, "q1", subs[0].QuestionID)
	assert.Equal(t, "q2", subs[1].QuestionID)
	assert.Equal(t, 1, gw.maxInflight)
}

func TestTimeSpentUsesClockAtTransitions(t *testing.T) {
	gw := &fakeGateway{}
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := newStarted(t, gw, WithClock(clock))
	ctx := context.Background()

	clock.Advance(7 * time.Second)
	require.NoError(t, c.SetAnswer(correctAnswers[0]))
	require.NoError(t, c.Next(ctx))
	clock.Advance(3 * time.Second)
	require.NoError(t, c.SetAnswer(correctAnswers[1]))
	require.NoError(t, c.Next(ctx))
	c.Wait()

	subs := gw.recorded()
	require.Len(t, subs, 2)
	assert.Equal(t, int64(7000), subs[0].TimeSpentMs)
	assert.Equal(t, int64(3000), subs[1].TimeSpentMs)
	assert.Equal(t, 7*time.Second, c.State().Answers["q1"].TimeSpent)
}

func TestConfirmSubmitFlushesPendingAnswersThenCompletes(t *testing.T) {
	gw := &fakeGateway{score: 100}
	c := newStarted(t, gw)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, c.SetAnswer(correctAnswers[i]))
		require.NoError(t, c.Next(ctx))
	}
	// Last answer is set but never sent through Next.
	require.NoError(t, c.SetAnswer(correctAnswers[3]))

	session, err := c.ConfirmSubmit(ctx)
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusCompleted, session.Status)
	require.NotNil(t, session.Score)
	assert.Equal(t, 100.0, *session.Score)
	assert.True(t, c.State().ScoreVerified)

	assert.Equal(t, 1, gw.completeCalls)
	assert.Equal(t, 4, gw.submitsAtDone)

	assert.ErrorIs(t, c.SetAnswer(quiz.Choice{Index: 0}), ErrCompleted)
	_, err = c.ConfirmSubmit(ctx)
	assert.ErrorIs(t, err, ErrCompleted)
}

func TestConfirmSubmitResendsAnswersChangedAfterLeaving(t *testing.T) {
	gw := &fakeGateway{score: 75}
	c := newStarted(t, gw)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, c.SetAnswer(correctAnswers[i]))
		require.NoError(t, c.Next(ctx))
	}
	// Go back to q3 and change it without pressing Next.
	require.NoError(t, c.Previous())
	require.NoError(t, c.SetAnswer(quiz.Text{Value: "Milan"}))
	require.NoError(t, c.Next(ctx))
	require.NoError(t, c.SetAnswer(correctAnswers[3]))
	require.NoError(t, c.Next(ctx))

	_, err := c.ConfirmSubmit(ctx)
	require.NoError(t, err)

	var lastQ3 quiz.Answer
	for _, s := range gw.recorded() {
		if s.QuestionID == "q3" {
			lastQ3 = s.Answer
		}
	}
	assert.Equal(t, quiz.Text{Value: "Milan"}, lastQ3)
}

func TestConfirmSubmitGates(t *testing.T) {
	c := newStarted(t, &fakeGateway{})
	ctx := context.Background()

	_, err := c.ConfirmSubmit(ctx)
	assert.ErrorIs(t, err, ErrNotLast)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.SetAnswer(correctAnswers[i]))
		require.NoError(t, c.Next(ctx))
	}
	_, err = c.ConfirmSubmit(ctx)
	assert.ErrorIs(t, err, ErrNotAnswered)
}

func TestCompletionFailureStillCompletesWithoutScore(t *testing.T) {
	boom := errors.New("timeout")
	gw := &fakeGateway{completeErr: boom}
	c := newStarted(t, gw)
	ctx := context.Background()
	for _, a := range correctAnswers {
		require.NoError(t, c.SetAnswer(a))
		require.NoError(t, c.Next(ctx))
	}

	session, err := c.ConfirmSubmit(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompletionUnverified)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, quiz.StatusCompleted, session.Status)
	assert.Nil(t, session.Score)
	assert.NotNil(t, session.CompletedAt)
	assert.False(t, c.State().ScoreVerified)
}

func TestConfirmSubmitGivesUpWhenContextEndsDuringWrites(t *testing.T) {
	gw := &fakeGateway{score: 100, block: make(chan struct{})}
	c := newStarted(t, gw)
	for _, a := range correctAnswers {
		require.NoError(t, c.SetAnswer(a))
		require.NoError(t, c.Next(context.Background()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	session, err := c.ConfirmSubmit(ctx)
	assert.ErrorIs(t, err, ErrCompletionUnverified)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, quiz.StatusCompleted, session.Status)
	assert.Nil(t, session.Score)
	assert.ErrorIs(t, c.SetAnswer(quiz.Choice{Index: 0}), ErrCompleted)

	close(gw.block)
	c.Wait()
	gw.mu.Lock()
	defer gw.mu.Unlock()
	assert.Zero(t, gw.completeCalls)
}

func TestMissingGatewayTimesFallBackToClock(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	gw := &fakeGateway{score: 50, zeroTimes: true}
	c := newStarted(t, gw, WithClock(clock))
	assert.Equal(t, time.Unix(1000, 0).UTC(), c.State().Session.StartedAt)

	ctx := context.Background()
	for _, a := range correctAnswers {
		require.NoError(t, c.SetAnswer(a))
		require.NoError(t, c.Next(ctx))
	}
	clock.Advance(time.Minute)
	session, err := c.ConfirmSubmit(ctx)
	require.NoError(t, err)
	require.NotNil(t, session.CompletedAt)
	assert.Equal(t, time.Unix(1060, 0).UTC(), *session.CompletedAt)

	failing := newStarted(t, &fakeGateway{completeErr: errors.New("down"), zeroTimes: true}, WithClock(clock))
	for _, a := range correctAnswers {
		require.NoError(t, failing.SetAnswer(a))
		require.NoError(t, failing.Next(ctx))
	}
	clock.Advance(time.Minute)
	session, err = failing.ConfirmSubmit(ctx)
	assert.ErrorIs(t, err, ErrCompletionUnverified)
	require.NotNil(t, session.CompletedAt)
	assert.Equal(t, time.Unix(1120, 0).UTC(), *session.CompletedAt)
}

func TestEndToEndReviewMatchesLiveFeedback(t *testing.T) {
	gw := &fakeGateway{score: 100}
	c := newStarted(t, gw)
	ctx := context.Background()

	live := map[string]bool{}
	for _, a := range correctAnswers {
		require.NoError(t, c.SetAnswer(a))
		q, _ := c.Current()
		fb := c.State().Feedback[q.QuestionID()]
		require.True(t, fb.Shown)
		live[q.QuestionID()] = fb.Correct
		require.NoError(t, c.Next(ctx))
	}

	session, err := c.ConfirmSubmit(ctx)
	require.NoError(t, err)
	assert.Equal(t, quiz.StatusCompleted, session.Status)
	require.NotNil(t, session.Score)
	assert.Equal(t, gw.score, *session.Score)

	review := c.Review()
	require.Len(t, review, 4)
	for _, item := range review {
		assert.Equal(t, live[item.Question.QuestionID()], item.Correct)
		assert.True(t, item.Correct)
	}
	assert.Equal(t, 4, CorrectCount(review))
	assert.Equal(t, "Paris", review[0].CorrectAnswer.Text)
}
