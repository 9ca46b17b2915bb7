package attempt

import (
	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

// ReviewItem is the post-attempt view of one question.
type ReviewItem struct {
	Question      quiz.Question
	Answer        quiz.Answer
	Answered      bool
	Correct       bool
	CorrectAnswer grading.Display
}

// Review grades every question with the same rules used for live feedback.
func (c *Controller) Review() []ReviewItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]ReviewItem, 0, len(c.def.Questions))
	for _, q := range c.def.Questions {
		value := c.state.Answers[q.QuestionID()].Value
		items = append(items, ReviewItem{
			Question:      q,
			Answer:        value,
			Answered:      grading.Answered(q, value),
			Correct:       grading.IsCorrect(q, value),
			CorrectAnswer: grading.CorrectAnswerDisplay(q),
		})
	}
	return items
}

// CorrectCount is the number of correct items in a review.
func CorrectCount(items []ReviewItem) int {
	n := 0
	for _, it := range items {
		if it.Correct {
			n++
		}
	}
	return n
}
