// Package store persists quizzes, attempts and per-question answers. It is the
// server side of the attempt gateway.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAttemptCompleted = errors.New("attempt already completed")
	ErrQuestionNotFound = errors.New("question not found")
)

type QuizSummary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type AttemptFilter struct {
	UserID string // required for student views; empty lists everyone
	QuizID string // optional
	Limit  int
}

// Store is the persistence contract shared by the SQL and in-memory backends.
// Attempt-scoped calls take the caller's userID; an attempt owned by someone
// else is reported as ErrAttemptNotFound.
type Store interface {
	PutQuiz(ctx context.Context, def quiz.Definition) error
	GetQuiz(ctx context.Context, id string) (quiz.Definition, error)
	ListQuizzes(ctx context.Context) ([]QuizSummary, error)

	StartAttempt(ctx context.Context, quizID, userID string) (quiz.Attempt, error)
	// RecordAnswer upserts the answer for (attempt, question); the latest
	// write wins.
	RecordAnswer(ctx context.Context, userID string, sub quiz.Submission) error
	// CompleteAttempt grades the stored answers. Completing twice returns the
	// first result.
	CompleteAttempt(ctx context.Context, userID, attemptID string) (quiz.Attempt, error)
	GetAttempt(ctx context.Context, userID, attemptID string) (quiz.Attempt, error)
	ListAttempts(ctx context.Context, f AttemptFilter) ([]quiz.Attempt, error)
}

func clampLimit(n int) int {
	if n <= 0 || n > 500 {
		return 500
	}
	return n
}

type options struct {
	now func() time.Time
}

// Option configures a Store backend.
type Option func(*options)

// WithNow replaces the clock used for created/started/completed timestamps.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
