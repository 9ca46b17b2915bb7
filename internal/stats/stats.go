package stats

import (
	"math"
	"sort"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

const (
	// TrendWindow is how many of the latest completed attempts the trend spans.
	TrendWindow = 5
	// WeeklyWindow is the trailing window used for weekly progress.
	WeeklyWindow = 7 * 24 * time.Hour

	ExcellentMin = 90.0
	GoodMin      = 80.0
	AverageMin   = 70.0
)

type WeeklyProgress struct {
	Attempts     int     `json:"attempts"`
	AverageScore float64 `json:"average_score"`
	TimeSpentMs  int64   `json:"time_spent_ms"`
}

type GradeDistribution struct {
	Excellent        int `json:"excellent"`
	Good             int `json:"good"`
	Average          int `json:"average"`
	NeedsImprovement int `json:"needs_improvement"`
}

// Stats is an immutable snapshot derived from a list of attempts.
type Stats struct {
	// Empty is true when no attempt matched; every other field is zero.
	Empty bool `json:"empty"`

	TotalAttempts     int               `json:"total_attempts"`
	CompletedAttempts int               `json:"completed_attempts"`
	AverageScore      float64           `json:"average_score"`
	BestScore         float64           `json:"best_score"`
	WorstScore        float64           `json:"worst_score"`
	Consistency       float64           `json:"consistency"`
	Trend             float64           `json:"trend"`
	CompletionRate    float64           `json:"completion_rate"`
	TotalTimeSpentMs  int64             `json:"total_time_spent_ms"`
	WeeklyProgress    WeeklyProgress    `json:"weekly_progress"`
	GradeDistribution GradeDistribution `json:"grade_distribution"`
}

// Aggregate computes Stats from scratch. quizID filters the attempts when
// non-empty; now anchors the weekly window.
func Aggregate(attempts []quiz.Attempt, quizID string, now time.Time) Stats {
	filtered := make([]quiz.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if quizID != "" && a.QuizID != quizID {
			continue
		}
		filtered = append(filtered, a)
	}
	if len(filtered) == 0 {
		return Stats{Empty: true}
	}

	completed := make([]quiz.Attempt, 0, len(filtered))
	var totalTime int64
	for _, a := range filtered {
		totalTime += a.TimeSpentMs
		if a.Completed() {
			completed = append(completed, a)
		}
	}
	sortChronologically(completed)

	scores := make([]float64, len(completed))
	for i, a := range completed {
		scores[i] = scoreOf(a)
	}

	s := Stats{
		TotalAttempts:     len(filtered),
		CompletedAttempts: len(completed),
		TotalTimeSpentMs:  totalTime,
		CompletionRate:    float64(len(completed)) / float64(len(filtered)) * 100,
		WeeklyProgress:    weekly(filtered, now),
		GradeDistribution: distribution(scores),
	}
	if len(scores) == 0 {
		return s
	}

	s.AverageScore = mean(scores)
	s.BestScore, s.WorstScore = scores[0], scores[0]
	for _, v := range scores[1:] {
		s.BestScore = math.Max(s.BestScore, v)
		s.WorstScore = math.Min(s.WorstScore, v)
	}
	s.Consistency = math.Max(0, 100-stddev(scores, s.AverageScore))
	s.Trend = trend(scores)
	return s
}

// trend is the latest score minus the oldest score among the last
// TrendWindow completed attempts. scores is chronological.
func trend(scores []float64) float64 {
	if len(scores) < 2 {
		return 0
	}
	window := scores
	if len(window) > TrendWindow {
		window = window[len(window)-TrendWindow:]
	}
	return window[len(window)-1] - window[0]
}

func weekly(attempts []quiz.Attempt, now time.Time) WeeklyProgress {
	cutoff := now.Add(-WeeklyWindow)
	var (
		w      WeeklyProgress
		scores []float64
	)
	for _, a := range attempts {
		if a.CreatedAt.Before(cutoff) || a.CreatedAt.After(now) {
			continue
		}
		w.Attempts++
		w.TimeSpentMs += a.TimeSpentMs
		if a.Completed() {
			scores = append(scores, scoreOf(a))
		}
	}
	if len(scores) > 0 {
		w.AverageScore = mean(scores)
	}
	return w
}

func distribution(scores []float64) GradeDistribution {
	var d GradeDistribution
	for _, v := range scores {
		switch {
		case v >= ExcellentMin:
			d.Excellent++
		case v >= GoodMin:
			d.Good++
		case v >= AverageMin:
			d.Average++
		default:
			d.NeedsImprovement++
		}
	}
	return d
}

// sortChronologically orders by completion time, falling back to creation
// time, keeping input order for ties.
func sortChronologically(attempts []quiz.Attempt) {
	sort.SliceStable(attempts, func(i, j int) bool {
		return when(attempts[i]).Before(when(attempts[j]))
	})
}

func when(a quiz.Attempt) time.Time {
	if a.CompletedAt != nil {
		return *a.CompletedAt
	}
	return a.CreatedAt
}

func scoreOf(a quiz.Attempt) float64 {
	if a.Score == nil {
		return 0
	}
	return *a.Score
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation.
func stddev(xs []float64, mu float64) float64 {
	var sq float64
	for _, x := range xs {
		sq += (x - mu) * (x - mu)
	}
	return math.Sqrt(sq / float64(len(xs)))
}
