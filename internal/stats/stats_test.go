package stats

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

var now = time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

func completed(quizID string, score float64, at time.Time) quiz.Attempt {
	done := at.Add(10 * time.Minute)
	return quiz.Attempt{
		ID:          at.Format(time.RFC3339),
		QuizID:      quizID,
		Status:      quiz.StatusCompleted,
		Score:       &score,
		CreatedAt:   at,
		CompletedAt: &done,
		TimeSpentMs: 60_000,
	}
}

func inProgress(quizID string, at time.Time) quiz.Attempt {
	return quiz.Attempt{ID: "p" + at.Format(time.RFC3339), QuizID: quizID, Status: quiz.StatusInProgress, CreatedAt: at}
}

func TestAggregateAscendingScores(t *testing.T) {
	var attempts []quiz.Attempt
	for i, score := range []float64{60, 70, 80, 90, 100} {
		attempts = append(attempts, completed("q", score, now.Add(time.Duration(i-10)*24*time.Hour)))
	}

	s := Aggregate(attempts, "", now)
	assert.False(t, s.Empty)
	assert.Equal(t, 80.0, s.AverageScore)
	assert.Equal(t, 40.0, s.Trend)
	assert.Equal(t, 100.0, s.CompletionRate)
	assert.Equal(t, 100.0, s.BestScore)
	assert.Equal(t, 60.0, s.WorstScore)
	assert.InDelta(t, 100-math.Sqrt(200), s.Consistency, 1e-9)
}

func TestAggregateTrendUsesLastFiveChronologically(t *testing.T) {
	scores := []float64{10, 50, 60, 70, 80, 95}
	var attempts []quiz.Attempt
	for i, score := range scores {
		attempts = append(attempts, completed("q", score, now.Add(-time.Duration(len(scores)-i)*time.Hour)))
	}
	// Input order must not matter.
	attempts[0], attempts[5] = attempts[5], attempts[0]

	s := Aggregate(attempts, "", now)
	assert.Equal(t, 45.0, s.Trend)
}

func TestAggregateCompletionRate(t *testing.T) {
	attempts := []quiz.Attempt{
		completed("q", 80, now.Add(-3*time.Hour)),
		completed("q", 90, now.Add(-2*time.Hour)),
		completed("q", 70, now.Add(-1*time.Hour)),
		inProgress("q", now.Add(-30*time.Minute)),
	}
	s := Aggregate(attempts, "", now)
	assert.Equal(t, 75.0, s.CompletionRate)
	assert.Equal(t, 4, s.TotalAttempts)
	assert.Equal(t, 3, s.CompletedAttempts)
}

func TestAggregateGradeDistribution(t *testing.T) {
	var attempts []quiz.Attempt
	for i, score := range []float64{95, 82, 71, 55} {
		attempts = append(attempts, completed("q", score, now.Add(-time.Duration(i+1)*time.Hour)))
	}
	s := Aggregate(attempts, "", now)
	assert.Equal(t, GradeDistribution{Excellent: 1, Good: 1, Average: 1, NeedsImprovement: 1}, s.GradeDistribution)
}

func TestAggregateBucketBoundaries(t *testing.T) {
	d := distribution([]float64{90, 89.99, 80, 79.99, 70, 69.99})
	assert.Equal(t, GradeDistribution{Excellent: 1, Good: 2, Average: 2, NeedsImprovement: 1}, d)
}

func TestAggregateFiltersByQuiz(t *testing.T) {
	attempts := []quiz.Attempt{
		completed("a", 100, now.Add(-2*time.Hour)),
		completed("b", 40, now.Add(-1*time.Hour)),
	}
	s := Aggregate(attempts, "b", now)
	assert.Equal(t, 1, s.TotalAttempts)
	assert.Equal(t, 40.0, s.AverageScore)
	assert.Equal(t, 0.0, s.Trend)
}

func TestAggregateWeeklyProgress(t *testing.T) {
	attempts := []quiz.Attempt{
		completed("q", 50, now.Add(-10*24*time.Hour)),
		completed("q", 80, now.Add(-2*24*time.Hour)),
		completed("q", 90, now.Add(-1*time.Hour)),
		inProgress("q", now.Add(-10*time.Minute)),
	}
	s := Aggregate(attempts, "", now)
	assert.Equal(t, WeeklyProgress{Attempts: 3, AverageScore: 85, TimeSpentMs: 120_000}, s.WeeklyProgress)
}

func TestAggregateEmptyIsNoData(t *testing.T) {
	s := Aggregate(nil, "", now)
	assert.Equal(t, Stats{Empty: true}, s)

	s = Aggregate([]quiz.Attempt{completed("a", 90, now)}, "missing", now)
	assert.True(t, s.Empty)
}

func TestAggregateOnlyUnfinished(t *testing.T) {
	s := Aggregate([]quiz.Attempt{inProgress("q", now.Add(-time.Hour))}, "", now)
	require.False(t, s.Empty)
	assert.Equal(t, 0.0, s.CompletionRate)
	assert.Equal(t, 0.0, s.AverageScore)
	assert.Equal(t, 0.0, s.Consistency)
	assert.Equal(t, 1, s.WeeklyProgress.Attempts)
}

func TestAggregateIsRecomputedPerCall(t *testing.T) {
	attempts := []quiz.Attempt{completed("q", 60, now.Add(-2*time.Hour))}
	first := Aggregate(attempts, "", now)
	attempts = append(attempts, completed("q", 100, now.Add(-time.Hour)))
	second := Aggregate(attempts, "", now)

	assert.Equal(t, 60.0, first.AverageScore)
	assert.Equal(t, 80.0, second.AverageScore)
	assert.Equal(t, 40.0, second.Trend)
}
