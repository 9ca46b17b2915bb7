package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/attempt"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/recommend"
	"github.com/mind-engage/mindengage-quiz/internal/stats"
)

var ErrInputClosed = errors.New("input closed before the quiz was submitted")

// App runs one quiz attempt in a terminal and then prints the review,
// statistics and recommendations.
type App struct {
	Def         quiz.Definition
	Gateway     attempt.Gateway
	In          io.Reader
	Out         io.Writer
	Log         *slog.Logger
	Recommender *recommend.Engine
	Now         func() time.Time
}

func (a *App) Run(ctx context.Context) error {
	if a.Recommender == nil {
		a.Recommender = recommend.New()
	}
	if a.Now == nil {
		a.Now = time.Now
	}
	opts := []attempt.Option{}
	if a.Log != nil {
		opts = append(opts, attempt.WithLogger(a.Log))
	}
	ctl := attempt.NewController(a.Def, a.Gateway, opts...)
	reader := bufio.NewReader(a.In)

	fmt.Fprintf(a.Out, "%s\n", a.Def.Title)
	if a.Def.Description != "" {
		fmt.Fprintf(a.Out, "%s\n", a.Def.Description)
	}
	if err := ctl.Start(ctx); err != nil {
		fmt.Fprintf(a.Out, "\nCould not start the quiz: %v\n", err)
		return err
	}
	fmt.Fprintln(a.Out, "\nType your answer and press enter. 'p' goes back to the previous question.")

	session, err := a.loop(ctx, ctl, reader)
	if err != nil && !errors.Is(err, attempt.ErrCompletionUnverified) {
		return err
	}

	fmt.Fprintln(a.Out)
	if session.Score != nil {
		fmt.Fprintf(a.Out, "Final score: %.2f%%\n", *session.Score)
	} else {
		fmt.Fprintln(a.Out, "Quiz submitted, but the score could not be confirmed by the server.")
	}
	printReview(a.Out, ctl.Review())

	history, ferr := a.Gateway.FetchUserAttempts(ctx, a.Def.ID)
	if ferr != nil {
		fmt.Fprintf(a.Out, "\n! Could not load your attempt history: %v\n", ferr)
		history = nil
	}
	s := stats.Aggregate(history, a.Def.ID, a.Now())
	printStats(a.Out, s)
	printReport(a.Out, a.Recommender.Recommend(s))
	return nil
}

func (a *App) loop(ctx context.Context, ctl *attempt.Controller, reader *bufio.Reader) (quiz.Session, error) {
	for {
		st := ctl.State()
		if st.ConfirmPending {
			fmt.Fprint(a.Out, "\nSubmit your answers? [y/N] ")
			line, err := readLine(reader)
			if err != nil {
				return quiz.Session{}, err
			}
			switch strings.ToLower(line) {
			case "y", "yes":
				return ctl.ConfirmSubmit(ctx)
			case "p":
				_ = ctl.Previous()
			default:
				_ = ctl.CancelSubmit()
				fmt.Fprintln(a.Out, "Not submitted. You can change your last answer or press 'p' to go back.")
			}
			continue
		}

		q, idx := ctl.Current()
		printQuestion(a.Out, idx+1, len(a.Def.Questions), q, st.Answers[q.QuestionID()].Value)
		line, err := readLine(reader)
		if err != nil {
			return quiz.Session{}, err
		}
		if line == "p" {
			_ = ctl.Previous()
			continue
		}
		if line != "" || st.Answers[q.QuestionID()].Value == nil {
			ans, perr := ParseAnswer(q, line)
			if perr != nil {
				fmt.Fprintf(a.Out, "Invalid input: %v\n", perr)
				continue
			}
			if err := ctl.SetAnswer(ans); err != nil {
				return quiz.Session{}, err
			}
			if fb, ok := ctl.State().Feedback[q.QuestionID()]; ok {
				printFeedback(a.Out, q, fb)
			}
		}
		if err := ctl.Next(ctx); err != nil {
			if errors.Is(err, attempt.ErrNotAnswered) {
				fmt.Fprintln(a.Out, "Please answer the question before moving on.")
				continue
			}
			return quiz.Session{}, err
		}
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		if errors.Is(err, io.EOF) {
			return "", ErrInputClosed
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ParseAnswer reads terminal input for q. Choices accept a letter or a
// 1-based number, true/false accepts t/f, matching accepts "1=b, 2=a".
// Empty input yields a nil answer.
func ParseAnswer(q quiz.Question, in string) (quiz.Answer, error) {
	in = strings.TrimSpace(in)
	if in == "" {
		return nil, nil
	}
	switch v := q.(type) {
	case quiz.MultipleChoice:
		return parseChoice(in, len(v.Options))
	case quiz.TrueFalse:
		switch strings.ToLower(in) {
		case "t", "true", "1":
			return quiz.Choice{Index: quiz.ChoiceTrue}, nil
		case "f", "false", "2":
			return quiz.Choice{Index: quiz.ChoiceFalse}, nil
		}
		return nil, errors.New("enter t or f")
	case quiz.FillInBlank:
		return quiz.Text{Value: in}, nil
	case quiz.Matching:
		return parseMatches(in, v)
	}
	return nil, fmt.Errorf("unsupported question %T", q)
}

func parseChoice(in string, n int) (quiz.Answer, error) {
	if n < 1 {
		return nil, errors.New("question has no options")
	}
	if len(in) == 1 {
		c := strings.ToUpper(in)[0]
		if c >= 'A' && int(c-'A') < n {
			return quiz.Choice{Index: int(c - 'A')}, nil
		}
	}
	if i, err := strconv.Atoi(in); err == nil && i >= 1 && i <= n {
		return quiz.Choice{Index: i - 1}, nil
	}
	return nil, fmt.Errorf("enter a letter A-%c or a number 1-%d", 'A'+rune(n-1), n)
}

func parseMatches(in string, q quiz.Matching) (quiz.Answer, error) {
	var pairs []quiz.MatchPair
	seen := map[string]bool{}
	for _, part := range strings.Split(in, ",") {
		item, match, ok := strings.Cut(strings.TrimSpace(part), "=")
		item, match = strings.TrimSpace(item), strings.TrimSpace(match)
		if !ok || item == "" || match == "" {
			return nil, errors.New("use item=match pairs separated by commas, e.g. 1=b, 2=a")
		}
		if _, ok := q.ColumnA[item]; !ok {
			return nil, fmt.Errorf("unknown item %q", item)
		}
		if _, ok := q.ColumnB[match]; !ok {
			return nil, fmt.Errorf("unknown match %q", match)
		}
		if seen[item] {
			return nil, fmt.Errorf("item %q matched twice", item)
		}
		seen[item] = true
		pairs = append(pairs, quiz.MatchPair{Item: item, Match: match})
	}
	return quiz.Matches{Pairs: pairs}, nil
}

func printQuestion(out io.Writer, number, total int, q quiz.Question, current quiz.Answer) {
	fmt.Fprintf(out, "\nQ%d/%d: %s\n", number, total, q.Prompt())
	switch v := q.(type) {
	case quiz.MultipleChoice:
		for i, opt := range v.Options {
			fmt.Fprintf(out, "  %c. %s\n", 'A'+rune(i), opt)
		}
	case quiz.TrueFalse:
		fmt.Fprintln(out, "  t. True\n  f. False")
	case quiz.FillInBlank:
	case quiz.Matching:
		for _, k := range grading.SortedItems(v.ColumnA) {
			fmt.Fprintf(out, "  %s. %s\n", k, v.ColumnA[k])
		}
		fmt.Fprintln(out, "  --")
		for _, k := range grading.SortedItems(v.ColumnB) {
			fmt.Fprintf(out, "  %s. %s\n", k, v.ColumnB[k])
		}
	}
	if current != nil {
		fmt.Fprintf(out, "(current answer: %s; press enter to keep it)\n", describe(q, current))
	}
	fmt.Fprint(out, "> ")
}

func printFeedback(out io.Writer, q quiz.Question, fb grading.Feedback) {
	if fb.Correct {
		fmt.Fprintln(out, "Correct!")
		return
	}
	fmt.Fprintf(out, "Wrong. Correct answer: %s\n", displayText(grading.CorrectAnswerDisplay(q)))
}

func displayText(d grading.Display) string {
	if len(d.Table) == 0 {
		return d.Text
	}
	parts := make([]string, 0, len(d.Table))
	for _, row := range d.Table {
		parts = append(parts, row.Item+" -> "+row.Match)
	}
	return strings.Join(parts, "; ")
}

func describe(q quiz.Question, a quiz.Answer) string {
	switch v := a.(type) {
	case quiz.Choice:
		if mc, ok := q.(quiz.MultipleChoice); ok && v.Index >= 0 && v.Index < len(mc.Options) {
			return mc.Options[v.Index]
		}
		if _, ok := q.(quiz.TrueFalse); ok {
			if v.Index == quiz.ChoiceTrue {
				return "True"
			}
			return "False"
		}
		return strconv.Itoa(v.Index + 1)
	case quiz.Text:
		return strconv.Quote(v.Value)
	case quiz.Matches:
		parts := make([]string, 0, len(v.Pairs))
		for _, p := range v.Pairs {
			parts = append(parts, p.Item+"="+p.Match)
		}
		return strings.Join(parts, ", ")
	}
	return "-"
}

func printReview(out io.Writer, items []attempt.ReviewItem) {
	fmt.Fprintf(out, "\nReview (%d/%d correct)\n", attempt.CorrectCount(items), len(items))
	for i, it := range items {
		mark := "x"
		if it.Correct {
			mark = "ok"
		}
		fmt.Fprintf(out, "  %d. [%s] %s\n", i+1, mark, it.Question.Prompt())
		if !it.Correct {
			fmt.Fprintf(out, "       answer: %s\n", displayText(it.CorrectAnswer))
		}
	}
}

func printStats(out io.Writer, s stats.Stats) {
	fmt.Fprintln(out, "\nYour statistics")
	if s.Empty {
		fmt.Fprintln(out, "  No data yet.")
		return
	}
	fmt.Fprintf(out, "  attempts:        %d (%d completed, %.0f%%)\n", s.TotalAttempts, s.CompletedAttempts, s.CompletionRate)
	fmt.Fprintf(out, "  average score:   %.2f (best %.2f, worst %.2f)\n", s.AverageScore, s.BestScore, s.WorstScore)
	fmt.Fprintf(out, "  consistency:     %.1f\n", s.Consistency)
	fmt.Fprintf(out, "  trend:           %+.2f\n", s.Trend)
	fmt.Fprintf(out, "  last 7 days:     %d attempts, avg %.2f, %s\n",
		s.WeeklyProgress.Attempts, s.WeeklyProgress.AverageScore,
		(time.Duration(s.WeeklyProgress.TimeSpentMs) * time.Millisecond).Round(time.Second))
	d := s.GradeDistribution
	fmt.Fprintf(out, "  grades:          excellent %d, good %d, average %d, needs improvement %d\n",
		d.Excellent, d.Good, d.Average, d.NeedsImprovement)
}

func printReport(out io.Writer, r recommend.Report) {
	if len(r.Strengths) > 0 {
		fmt.Fprintln(out, "\nStrengths")
		for _, s := range r.Strengths {
			fmt.Fprintf(out, "  + %s: %s\n", s.Title, s.Description)
		}
	}
	if len(r.Weaknesses) > 0 {
		fmt.Fprintln(out, "\nNeeds attention")
		for _, w := range r.Weaknesses {
			fmt.Fprintf(out, "  - [%s] %s: %s\n", w.Severity, w.Title, w.Description)
		}
	}
	fmt.Fprintln(out, "\nRecommendations")
	for _, rec := range r.Recommendations {
		fmt.Fprintf(out, "  * %s: %s\n", rec.Title, rec.Description)
	}
}
