package attempt

import (
	"context"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

// Gateway is the remote persistence the controller talks to. Implementations
// must tolerate per-question submits arriving out of order.
type Gateway interface {
	StartQuizAttempt(ctx context.Context, quizID string) (quiz.Session, error)
	SubmitAnswer(ctx context.Context, sub quiz.Submission) error
	CompleteQuizAttempt(ctx context.Context, attemptID string) (quiz.Completion, error)
	FetchUserAttempts(ctx context.Context, quizID string) ([]quiz.Attempt, error)
}

// Clock supplies timestamps for time-on-question. The default uses
// time.Now, whose monotonic reading makes Sub immune to wall clock changes.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// RecordResult is the outcome of one best-effort per-question write.
type RecordResult struct {
	Submission quiz.Submission
	Err        error
}

func (r RecordResult) OK() bool { return r.Err == nil }
