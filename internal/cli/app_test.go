package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quiz/internal/cli"
	"github.com/mind-engage/mindengage-quiz/internal/logging"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/store"
)

const quizJSON = `{
  "id": "mixed",
  "title": "Mixed bag",
  "questions": [
    {"type": "multiple_choice", "id": "q1", "question": "Capital of France?", "options": ["Berlin", "Paris", "Rome", "Madrid"], "correct_answer": "B"},
    {"type": "true_false", "id": "q2", "question": "Water boils at 100C at sea level.", "correct_answer": true},
    {"type": "fill_in_blank", "id": "q3", "question": "The largest planet is ____.", "correct_answer": "Jupiter"},
    {"type": "matching", "id": "q4", "question": "Match the pairs.",
     "column_a": {"1": "Dog", "2": "Cat"}, "column_b": {"a": "Meow", "b": "Woof"},
     "correct_matches": [{"item": "1", "match": "b"}, {"item": "2", "match": "a"}]}
  ]
}`

func setup(t *testing.T) (quiz.Definition, store.Store) {
	t.Helper()
	var def quiz.Definition
	require.NoError(t, json.Unmarshal([]byte(quizJSON), &def))
	s := store.NewInMemoryStore()
	require.NoError(t, s.PutQuiz(context.Background(), def))
	return def, s
}

func run(t *testing.T, def quiz.Definition, s store.Store, input string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := &cli.App{
		Def:     def,
		Gateway: store.UserGateway{Store: s, UserID: "ana"},
		In:      strings.NewReader(input),
		Out:     &out,
		Log:     logging.Discard(),
	}
	err := app.Run(context.Background())
	return out.String(), err
}

func TestRunAllCorrect(t *testing.T) {
	def, s := setup(t)
	out, err := run(t, def, s, "b\nt\n jupiter \n1=b, 2=a\ny\n")
	require.NoError(t, err)

	assert.Contains(t, out, "Q1/4: Capital of France?")
	assert.Equal(t, 4, strings.Count(out, "Correct!"))
	assert.Contains(t, out, "Final score: 100.00%")
	assert.Contains(t, out, "Review (4/4 correct)")
	assert.Contains(t, out, "attempts:        1 (1 completed, 100%)")

	attempts, err := s.ListAttempts(context.Background(), store.AttemptFilter{UserID: "ana"})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.NotNil(t, attempts[0].Score)
	assert.Equal(t, 100.0, *attempts[0].Score)
}

func TestRunRetriesAndNavigation(t *testing.T) {
	def, s := setup(t)
	input := strings.Join([]string{
		"z",       // invalid letter
		"3",       // Rome, wrong
		"p",       // back to q1
		"",        // keep Rome
		"f",       // wrong
		"",        // empty fill-in is not an answer
		"Saturn",  // wrong
		"1=b",     // incomplete matching
		"1=b,2=a", // correct
		"n",       // cancel submit
		"p",       // back to q3
		"Jupiter", // fix q3
		"",        // keep q4
		"y",
	}, "\n") + "\n"
	out, err := run(t, def, s, input)
	require.NoError(t, err)

	assert.Contains(t, out, "Invalid input: enter a letter A-D or a number 1-4")
	assert.Contains(t, out, "Wrong. Correct answer: Paris")
	assert.Contains(t, out, "Wrong. Correct answer: True")
	assert.Contains(t, out, "Please answer the question before moving on.")
	assert.Contains(t, out, "Not submitted.")
	assert.Contains(t, out, "(current answer: Rome; press enter to keep it)")
	assert.Contains(t, out, "Final score: 50.00%")
	assert.Contains(t, out, "Review (2/4 correct)")
	assert.Contains(t, out, "answer: Paris")
	assert.Contains(t, out, "Needs attention")
}

func TestRunInputClosed(t *testing.T) {
	def, s := setup(t)
	_, err := run(t, def, s, "b\n")
	assert.ErrorIs(t, err, cli.ErrInputClosed)
}

func TestRunStartFailure(t *testing.T) {
	def, _ := setup(t)
	out, err := run(t, def, store.NewInMemoryStore(), "")
	require.Error(t, err)
	assert.Contains(t, out, "Could not start the quiz")
}

func TestParseAnswer(t *testing.T) {
	def, _ := setup(t)
	mc, tf, fill, match := def.Questions[0], def.Questions[1], def.Questions[2], def.Questions[3]

	cases := []struct {
		name string
		q    quiz.Question
		in   string
		want quiz.Answer
	}{
		{"letter", mc, "c", quiz.Choice{Index: 2}},
		{"number", mc, "4", quiz.Choice{Index: 3}},
		{"true", tf, "True", quiz.Choice{Index: quiz.ChoiceTrue}},
		{"false", tf, "f", quiz.Choice{Index: quiz.ChoiceFalse}},
		{"text", fill, " Mars ", quiz.Text{Value: "Mars"}},
		{"pairs", match, "2=a , 1=b", quiz.Matches{Pairs: []quiz.MatchPair{{Item: "2", Match: "a"}, {Item: "1", Match: "b"}}}},
		{"empty", mc, "  ", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := cli.ParseAnswer(tc.q, tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, in := range []string{"e", "0", "5"} {
		_, err := cli.ParseAnswer(mc, in)
		assert.Error(t, err, in)
	}
	_, err := cli.ParseAnswer(tf, "maybe")
	assert.Error(t, err)
	_, err = cli.ParseAnswer(match, "1=b,1=a")
	assert.Error(t, err)
	_, err = cli.ParseAnswer(match, "3=a")
	assert.Error(t, err)
	_, err = cli.ParseAnswer(match, "1:a")
	assert.Error(t, err)
}

func TestStatsUseHistory(t *testing.T) {
	def, s := setup(t)
	_, err := run(t, def, s, "b\nt\njupiter\n1=b,2=a\ny\n")
	require.NoError(t, err)
	out, err := run(t, def, s, "a\nf\nmars\n1=a,2=b\ny\n")
	require.NoError(t, err)

	assert.Contains(t, out, "Final score: 0.00%")
	assert.Contains(t, out, "attempts:        2 (2 completed, 100%)")
	assert.Contains(t, out, "average score:   50.00 (best 100.00, worst 0.00)")
	assert.Contains(t, out, "trend:           -100.00")
}
