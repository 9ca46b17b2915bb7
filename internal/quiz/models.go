package quiz

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindMultipleChoice Kind = "multiple_choice"
	KindTrueFalse      Kind = "true_false"
	KindFillInBlank    Kind = "fill_in_blank"
	KindMatching       Kind = "matching"
)

// Kinds lists every question variant.
var Kinds = []Kind{KindMultipleChoice, KindTrueFalse, KindFillInBlank, KindMatching}

var (
	ErrEmptyDefinitionID = errors.New("quiz id is required")
	ErrDuplicateQuestion = errors.New("duplicate question id")
	ErrMissingQuestionID = errors.New("question id is required")
)

// Question is a closed sum type: MultipleChoice, TrueFalse, FillInBlank or
// Matching. Only this package can add variants.
type Question interface {
	QuestionID() string
	Kind() Kind
	Prompt() string
	question()
}

type Base struct {
	ID   string `json:"id"`
	Text string `json:"question"`
}

func (b Base) QuestionID() string { return b.ID }
func (b Base) Prompt() string     { return b.Text }

type MultipleChoice struct {
	Base
	Options       []string  `json:"options"`
	CorrectAnswer ChoiceKey `json:"correct_answer"`
}

type TrueFalse struct {
	Base
	// nil when the definition carries no usable answer.
	CorrectAnswer *bool `json:"correct_answer"`
}

type FillInBlank struct {
	Base
	CorrectAnswer string `json:"correct_answer"`
}

type Matching struct {
	Base
	ColumnA        map[string]string `json:"column_a"`
	ColumnB        map[string]string `json:"column_b"`
	CorrectMatches []MatchPair       `json:"correct_matches"`
}

type MatchPair struct {
	Item  string `json:"item"`
	Match string `json:"match"`
}

func (MultipleChoice) Kind() Kind { return KindMultipleChoice }
func (TrueFalse) Kind() Kind      { return KindTrueFalse }
func (FillInBlank) Kind() Kind    { return KindFillInBlank }
func (Matching) Kind() Kind       { return KindMatching }

func (MultipleChoice) question() {}
func (TrueFalse) question()      {}
func (FillInBlank) question()    {}
func (Matching) question()       {}

// Definition is an ordered quiz. Question order drives navigation.
type Definition struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
}

func (d Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return ErrEmptyDefinitionID
	}
	seen := make(map[string]struct{}, len(d.Questions))
	for idx, q := range d.Questions {
		if q == nil || strings.TrimSpace(q.QuestionID()) == "" {
			return fmt.Errorf("question %d: %w", idx, ErrMissingQuestionID)
		}
		if _, dup := seen[q.QuestionID()]; dup {
			return fmt.Errorf("question %q: %w", q.QuestionID(), ErrDuplicateQuestion)
		}
		seen[q.QuestionID()] = struct{}{}
	}
	return nil
}

// Lookup returns the question with the given id.
func (d Definition) Lookup(questionID string) (Question, bool) {
	for _, q := range d.Questions {
		if q.QuestionID() == questionID {
			return q, true
		}
	}
	return nil, false
}

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Session is the server's view of one attempt.
type Session struct {
	ID          string     `json:"id"`
	QuizID      string     `json:"quiz_id"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Score is server-assigned on completion, 0..100.
	Score *float64 `json:"score,omitempty"`
}

// Attempt is a historical attempt as returned by FetchUserAttempts.
type Attempt struct {
	ID          string     `json:"id"`
	QuizID      string     `json:"quiz_id"`
	UserID      string     `json:"user_id,omitempty"`
	Status      Status     `json:"status"`
	Score       *float64   `json:"score,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	TimeSpentMs int64      `json:"time_spent_ms"`
}

func (a Attempt) Completed() bool { return a.Status == StatusCompleted }

// Submission is one per-question write.
type Submission struct {
	AttemptID   string `json:"attempt_id"`
	QuestionID  string `json:"question_id"`
	Answer      Answer `json:"-"`
	TimeSpentMs int64  `json:"time_spent_ms"`
}

// Completion is what the gateway returns when an attempt is closed.
type Completion struct {
	AttemptID   string    `json:"attempt_id"`
	Score       float64   `json:"score"`
	CompletedAt time.Time `json:"completed_at"`
}
