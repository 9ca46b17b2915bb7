package store

import (
	"context"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

// UserGateway exposes a Store as an attempt.Gateway for one user, for
// in-process runs that skip the HTTP layer.
type UserGateway struct {
	Store  Store
	UserID string
}

func (g UserGateway) StartQuizAttempt(ctx context.Context, quizID string) (quiz.Session, error) {
	a, err := g.Store.StartAttempt(ctx, quizID, g.UserID)
	if err != nil {
		return quiz.Session{}, err
	}
	return SessionOf(a), nil
}

func (g UserGateway) SubmitAnswer(ctx context.Context, sub quiz.Submission) error {
	return g.Store.RecordAnswer(ctx, g.UserID, sub)
}

func (g UserGateway) CompleteQuizAttempt(ctx context.Context, attemptID string) (quiz.Completion, error) {
	a, err := g.Store.CompleteAttempt(ctx, g.UserID, attemptID)
	if err != nil {
		return quiz.Completion{}, err
	}
	return CompletionOf(a), nil
}

func (g UserGateway) FetchUserAttempts(ctx context.Context, quizID string) ([]quiz.Attempt, error) {
	return g.Store.ListAttempts(ctx, AttemptFilter{UserID: g.UserID, QuizID: quizID})
}

func SessionOf(a quiz.Attempt) quiz.Session {
	return quiz.Session{
		ID:          a.ID,
		QuizID:      a.QuizID,
		Status:      a.Status,
		StartedAt:   a.CreatedAt,
		CompletedAt: a.CompletedAt,
		Score:       a.Score,
	}
}

func CompletionOf(a quiz.Attempt) quiz.Completion {
	c := quiz.Completion{AttemptID: a.ID}
	if a.Score != nil {
		c.Score = *a.Score
	}
	if a.CompletedAt != nil {
		c.CompletedAt = *a.CompletedAt
	}
	return c
}
