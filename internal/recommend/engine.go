// Package recommend turns a statistics snapshot into strengths, weaknesses and
// study recommendations using fixed, named thresholds.
package recommend

import (
	"fmt"

	"github.com/mind-engage/mindengage-quiz/internal/stats"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Area is the dimension a strength or weakness is about.
type Area string

const (
	AreaAccuracy    Area = "accuracy"
	AreaConsistency Area = "consistency"
	AreaCompletion  Area = "completion"
	AreaTrend       Area = "trend"
)

// Thresholds holds the classification cut-offs. Strength bounds are
// inclusive (>=) except StrongTrend which is strict (>); weakness bounds are
// strict (<).
type Thresholds struct {
	StrongAverage     float64
	StrongConsistency float64
	StrongCompletion  float64
	StrongTrend       float64

	WeakAverage     float64
	WeakConsistency float64
	WeakCompletion  float64
	WeakTrend       float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		StrongAverage:     85,
		StrongConsistency: 80,
		StrongCompletion:  90,
		StrongTrend:       10,

		WeakAverage:     70,
		WeakConsistency: 60,
		WeakCompletion:  70,
		WeakTrend:       -10,
	}
}

type Strength struct {
	Area        Area   `json:"area"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Weakness struct {
	Area        Area     `json:"area"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

type Recommendation struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type Report struct {
	Strengths       []Strength       `json:"strengths"`
	Weaknesses      []Weakness       `json:"weaknesses"`
	Recommendations []Recommendation `json:"recommendations"`
}

type Engine struct {
	t Thresholds
}

type Option func(*Engine)

// WithThresholds replaces the default cut-offs.
func WithThresholds(t Thresholds) Option { return func(e *Engine) { e.t = t } }

func New(opts ...Option) *Engine {
	e := &Engine{t: DefaultThresholds()}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Thresholds() Thresholds { return e.t }

// Recommend classifies s. Weakness recommendations come first, high severity
// before medium, then ones that build on strengths. A snapshot with no data
// yields a single getting-started recommendation.
func (e *Engine) Recommend(s stats.Stats) Report {
	r := Report{Strengths: []Strength{}, Weaknesses: []Weakness{}, Recommendations: []Recommendation{}}
	if s.Empty {
		r.Recommendations = append(r.Recommendations, Recommendation{
			Type:        "get_started",
			Title:       "Take your first quiz",
			Description: "Complete a quiz to start tracking your performance.",
			Icon:        "play",
		})
		return r
	}

	t := e.t
	hasScores := s.CompletedAttempts > 0

	if hasScores && s.AverageScore >= t.StrongAverage {
		r.Strengths = append(r.Strengths, Strength{
			Area:        AreaAccuracy,
			Title:       "High accuracy",
			Description: fmt.Sprintf("Your average score is %.1f%%.", s.AverageScore),
		})
	}
	if hasScores && s.Consistency >= t.StrongConsistency {
		r.Strengths = append(r.Strengths, Strength{
			Area:        AreaConsistency,
			Title:       "Consistent performance",
			Description: fmt.Sprintf("Your consistency rating is %.1f.", s.Consistency),
		})
	}
	if s.CompletionRate >= t.StrongCompletion {
		r.Strengths = append(r.Strengths, Strength{
			Area:        AreaCompletion,
			Title:       "Strong follow-through",
			Description: fmt.Sprintf("You finish %.0f%% of the quizzes you start.", s.CompletionRate),
		})
	}
	if s.Trend > t.StrongTrend {
		r.Strengths = append(r.Strengths, Strength{
			Area:        AreaTrend,
			Title:       "Improving",
			Description: fmt.Sprintf("Your recent scores went up by %.1f points.", s.Trend),
		})
	}

	if hasScores && s.AverageScore < t.WeakAverage {
		r.Weaknesses = append(r.Weaknesses, Weakness{
			Area:        AreaAccuracy,
			Title:       "Low accuracy",
			Description: fmt.Sprintf("Your average score is %.1f%%.", s.AverageScore),
			Severity:    SeverityHigh,
		})
	}
	if s.Trend < t.WeakTrend {
		r.Weaknesses = append(r.Weaknesses, Weakness{
			Area:        AreaTrend,
			Title:       "Declining scores",
			Description: fmt.Sprintf("Your recent scores dropped by %.1f points.", -s.Trend),
			Severity:    SeverityHigh,
		})
	}
	if hasScores && s.Consistency < t.WeakConsistency {
		r.Weaknesses = append(r.Weaknesses, Weakness{
			Area:        AreaConsistency,
			Title:       "Inconsistent results",
			Description: fmt.Sprintf("Your consistency rating is %.1f.", s.Consistency),
			Severity:    SeverityMedium,
		})
	}
	if s.CompletionRate < t.WeakCompletion {
		r.Weaknesses = append(r.Weaknesses, Weakness{
			Area:        AreaCompletion,
			Title:       "Unfinished attempts",
			Description: fmt.Sprintf("Only %.0f%% of started quizzes were completed.", s.CompletionRate),
			Severity:    SeverityMedium,
		})
	}

	for _, w := range r.Weaknesses {
		r.Recommendations = append(r.Recommendations, remedy(w.Area))
	}
	for _, st := range r.Strengths {
		if rec, ok := extend(st.Area); ok {
			r.Recommendations = append(r.Recommendations, rec)
		}
	}
	if len(r.Recommendations) == 0 {
		r.Recommendations = append(r.Recommendations, Recommendation{
			Type:        "practice",
			Title:       "Keep practicing",
			Description: "Regular attempts will sharpen both accuracy and consistency.",
			Icon:        "repeat",
		})
	}
	return r
}

func remedy(a Area) Recommendation {
	switch a {
	case AreaAccuracy:
		return Recommendation{
			Type:        "review",
			Title:       "Review the fundamentals",
			Description: "Go back over the questions you missed and study the correct answers before retrying.",
			Icon:        "book",
		}
	case AreaTrend:
		return Recommendation{
			Type:        "review",
			Title:       "Revisit recent material",
			Description: "Your latest attempts scored lower than earlier ones. Slow down and review recent topics.",
			Icon:        "trending-down",
		}
	case AreaConsistency:
		return Recommendation{
			Type:        "practice",
			Title:       "Build a routine",
			Description: "Short, regular practice sessions help even out your scores.",
			Icon:        "calendar",
		}
	case AreaCompletion:
		return Recommendation{
			Type:        "habit",
			Title:       "Finish what you start",
			Description: "Try to complete each quiz in one sitting, even when unsure of an answer.",
			Icon:        "flag",
		}
	}
	panic(fmt.Sprintf("recommend: unhandled area %q", a))
}

func extend(a Area) (Recommendation, bool) {
	switch a {
	case AreaAccuracy:
		return Recommendation{
			Type:        "challenge",
			Title:       "Try harder quizzes",
			Description: "You are scoring well. Move on to more challenging material.",
			Icon:        "trophy",
		}, true
	case AreaTrend:
		return Recommendation{
			Type:        "momentum",
			Title:       "Keep the momentum",
			Description: "Your scores are rising. Keep up the current study pace.",
			Icon:        "trending-up",
		}, true
	case AreaConsistency, AreaCompletion:
		return Recommendation{}, false
	}
	panic(fmt.Sprintf("recommend: unhandled area %q", a))
}
