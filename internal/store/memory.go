package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

type storedQuiz struct {
	def       quiz.Definition
	createdAt time.Time
}

type storedAnswer struct {
	value       quiz.Answer
	timeSpentMs int64
}

type storedAttempt struct {
	quiz.Attempt
	answers map[string]storedAnswer
	seq     int
}

type memoryStore struct {
	mu       sync.RWMutex
	quizzes  map[string]storedQuiz
	attempts map[string]*storedAttempt
	seq      int
	now      func() time.Time
}

// NewInMemoryStore returns a process-local Store, used by offline runs and
// tests.
func NewInMemoryStore(opts ...Option) Store {
	return &memoryStore{
		quizzes:  map[string]storedQuiz{},
		attempts: map[string]*storedAttempt{},
		now:      buildOptions(opts).now,
	}
}

func (m *memoryStore) PutQuiz(_ context.Context, def quiz.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	created := m.now()
	if prev, ok := m.quizzes[def.ID]; ok {
		created = prev.createdAt
	}
	m.quizzes[def.ID] = storedQuiz{def: def, createdAt: created}
	return nil
}

func (m *memoryStore) GetQuiz(_ context.Context, id string) (quiz.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return quiz.Definition{}, ErrQuizNotFound
	}
	return q.def, nil
}

func (m *memoryStore) ListQuizzes(_ context.Context) ([]QuizSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]QuizSummary, 0, len(m.quizzes))
	for _, q := range m.quizzes {
		out = append(out, QuizSummary{
			ID:            q.def.ID,
			Title:         q.def.Title,
			Description:   q.def.Description,
			QuestionCount: len(q.def.Questions),
			CreatedAt:     q.createdAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) StartAttempt(_ context.Context, quizID, userID string) (quiz.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[quizID]; !ok {
		return quiz.Attempt{}, ErrQuizNotFound
	}
	a := &storedAttempt{
		Attempt: quiz.Attempt{
			ID:        uuid.NewString(),
			QuizID:    quizID,
			UserID:    userID,
			Status:    quiz.StatusInProgress,
			CreatedAt: m.now(),
		},
		answers: map[string]storedAnswer{},
	}
	m.seq++
	a.seq = m.seq
	m.attempts[a.ID] = a
	return a.Attempt, nil
}

func (m *memoryStore) RecordAnswer(_ context.Context, userID string, sub quiz.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.ownedLocked(userID, sub.AttemptID)
	if err != nil {
		return err
	}
	if a.Completed() {
		return ErrAttemptCompleted
	}
	if _, ok := m.quizzes[a.QuizID].def.Lookup(sub.QuestionID); !ok {
		return ErrQuestionNotFound
	}
	a.answers[sub.QuestionID] = storedAnswer{value: sub.Answer, timeSpentMs: max(sub.TimeSpentMs, 0)}
	a.TimeSpentMs = 0
	for _, ans := range a.answers {
		a.TimeSpentMs += ans.timeSpentMs
	}
	return nil
}

func (m *memoryStore) CompleteAttempt(_ context.Context, userID, attemptID string) (quiz.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.ownedLocked(userID, attemptID)
	if err != nil {
		return quiz.Attempt{}, err
	}
	if a.Completed() {
		return copyAttempt(a.Attempt), nil
	}
	sheet := make(map[string]quiz.Answer, len(a.answers))
	for id, ans := range a.answers {
		sheet[id] = ans.value
	}
	score := grading.Score(m.quizzes[a.QuizID].def, sheet)
	done := m.now()
	a.Status = quiz.StatusCompleted
	a.Score = &score
	a.CompletedAt = &done
	return copyAttempt(a.Attempt), nil
}

func (m *memoryStore) GetAttempt(_ context.Context, userID, attemptID string) (quiz.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, err := m.ownedLocked(userID, attemptID)
	if err != nil {
		return quiz.Attempt{}, err
	}
	return copyAttempt(a.Attempt), nil
}

func (m *memoryStore) ListAttempts(_ context.Context, f AttemptFilter) ([]quiz.Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := []*storedAttempt{}
	for _, a := range m.attempts {
		if f.UserID != "" && a.UserID != f.UserID {
			continue
		}
		if f.QuizID != "" && a.QuizID != f.QuizID {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].seq < matched[j].seq
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	out := make([]quiz.Attempt, 0, len(matched))
	for _, a := range matched {
		out = append(out, copyAttempt(a.Attempt))
	}
	if limit := clampLimit(f.Limit); len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memoryStore) ownedLocked(userID, attemptID string) (*storedAttempt, error) {
	a, ok := m.attempts[attemptID]
	if !ok || (userID != "" && a.UserID != userID) {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

func copyAttempt(a quiz.Attempt) quiz.Attempt {
	if a.Score != nil {
		s := *a.Score
		a.Score = &s
	}
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		a.CompletedAt = &t
	}
	return a
}
