package grading

import (
	"math"
	"sort"
	"strings"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

// IsCorrect reports whether answer is the right answer for q. It never
// panics: a missing answer, an answer of the wrong shape, or a question with
// broken correctness data is simply wrong.
func IsCorrect(q quiz.Question, answer quiz.Answer) bool {
	switch v := q.(type) {
	case quiz.MultipleChoice:
		return multipleChoiceCorrect(v, answer)
	case quiz.TrueFalse:
		return trueFalseCorrect(v, answer)
	case quiz.FillInBlank:
		return fillInBlankCorrect(v, answer)
	case quiz.Matching:
		return matchingCorrect(v, answer)
	}
	// nil question; quiz.Question is sealed so no other variant reaches here.
	return false
}

func multipleChoiceCorrect(q quiz.MultipleChoice, answer quiz.Answer) bool {
	choice, ok := answer.(quiz.Choice)
	if !ok {
		return false
	}
	want, ok := q.CorrectAnswer.Index()
	if !ok {
		return false
	}
	return choice.Index == want
}

func trueFalseCorrect(q quiz.TrueFalse, answer quiz.Answer) bool {
	choice, ok := answer.(quiz.Choice)
	if !ok || q.CorrectAnswer == nil {
		return false
	}
	var got bool
	switch choice.Index {
	case quiz.ChoiceTrue:
		got = true
	case quiz.ChoiceFalse:
		got = false
	default:
		return false
	}
	return got == *q.CorrectAnswer
}

func fillInBlankCorrect(q quiz.FillInBlank, answer quiz.Answer) bool {
	text, ok := answer.(quiz.Text)
	if !ok {
		return false
	}
	got := normalize(text.Value)
	want := normalize(q.CorrectAnswer)
	if got == "" || want == "" {
		return false
	}
	return got == want
}

// matchingCorrect is a set comparison: same number of pairs and every
// canonical pair present, in any order.
func matchingCorrect(q quiz.Matching, answer quiz.Answer) bool {
	matches, ok := answer.(quiz.Matches)
	if !ok || len(q.CorrectMatches) == 0 {
		return false
	}
	submitted := quiz.PairSet(matches.Pairs)
	if len(matches.Pairs) != len(q.CorrectMatches) || len(submitted) != len(matches.Pairs) {
		return false
	}
	for _, p := range q.CorrectMatches {
		if _, ok := submitted[p]; !ok {
			return false
		}
	}
	return true
}

// Answered is the readiness gate: choice questions need a selection, fill in
// the blank needs non-blank text, matching needs exactly one match for every
// item in column A.
func Answered(q quiz.Question, answer quiz.Answer) bool {
	switch v := q.(type) {
	case quiz.MultipleChoice, quiz.TrueFalse:
		_, ok := answer.(quiz.Choice)
		return ok
	case quiz.FillInBlank:
		text, ok := answer.(quiz.Text)
		return ok && strings.TrimSpace(text.Value) != ""
	case quiz.Matching:
		matches, ok := answer.(quiz.Matches)
		if !ok || len(v.ColumnA) == 0 || len(matches.Pairs) != len(v.ColumnA) {
			return false
		}
		counts := make(map[string]int, len(v.ColumnA))
		for _, p := range matches.Pairs {
			if _, known := v.ColumnA[p.Item]; !known || p.Match == "" {
				return false
			}
			counts[p.Item]++
		}
		for item := range v.ColumnA {
			if counts[item] != 1 {
				return false
			}
		}
		return true
	}
	return false
}

// Score grades a full answer sheet (question id -> answer) as a percentage
// of correct questions, rounded to two decimals. An empty quiz scores 0.
func Score(def quiz.Definition, answers map[string]quiz.Answer) float64 {
	if len(def.Questions) == 0 {
		return 0
	}
	correct := 0
	for _, q := range def.Questions {
		if IsCorrect(q, answers[q.QuestionID()]) {
			correct++
		}
	}
	pct := float64(correct) / float64(len(def.Questions)) * 100
	return math.Round(pct*100) / 100
}

// DisplayRow is one line of a matching answer table.
type DisplayRow struct {
	Item  string `json:"item"`
	Match string `json:"match"`
}

// Display is the canonical answer shown on review.
type Display struct {
	Kind  quiz.Kind    `json:"kind"`
	Text  string       `json:"text,omitempty"`
	Table []DisplayRow `json:"table,omitempty"`
}

func CorrectAnswerDisplay(q quiz.Question) Display {
	switch v := q.(type) {
	case quiz.MultipleChoice:
		d := Display{Kind: v.Kind()}
		if idx, ok := v.CorrectAnswer.Index(); ok && idx < len(v.Options) {
			d.Text = v.Options[idx]
		}
		return d
	case quiz.TrueFalse:
		d := Display{Kind: v.Kind()}
		if v.CorrectAnswer != nil {
			d.Text = boolLabel(*v.CorrectAnswer)
		}
		return d
	case quiz.FillInBlank:
		return Display{Kind: v.Kind(), Text: v.CorrectAnswer}
	case quiz.Matching:
		d := Display{Kind: v.Kind(), Table: make([]DisplayRow, 0, len(v.CorrectMatches))}
		for _, p := range v.CorrectMatches {
			d.Table = append(d.Table, DisplayRow{
				Item:  labelOr(v.ColumnA, p.Item),
				Match: labelOr(v.ColumnB, p.Match),
			})
		}
		return d
	}
	return Display{}
}

// Feedback is the live feedback for one question; Correct is only
// meaningful when Shown is true.
type Feedback struct {
	Shown   bool `json:"shown"`
	Correct bool `json:"correct"`
}

// Evaluate returns the instant feedback for an answer. Feedback is hidden
// until the question counts as answered, so partial matching never reveals
// correctness.
func Evaluate(q quiz.Question, answer quiz.Answer) Feedback {
	if quiz.IsEmpty(answer) || !Answered(q, answer) {
		return Feedback{}
	}
	return Feedback{Shown: true, Correct: IsCorrect(q, answer)}
}

func boolLabel(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func labelOr(column map[string]string, key string) string {
	if text, ok := column[key]; ok && text != "" {
		return text
	}
	return key
}

// SortedItems returns column keys in stable order for rendering.
func SortedItems(column map[string]string) []string {
	keys := make([]string, 0, len(column))
	for k := range column {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
