package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-quiz/internal/eventlog"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

// SQLStore works on both sqlite and postgres; queries use $n placeholders,
// which both drivers accept.
type SQLStore struct {
	db     *sql.DB
	events *eventlog.Repo
	now    func() time.Time
}

func NewSQLStore(db *sql.DB, events *eventlog.Repo, opts ...Option) *SQLStore {
	if events == nil {
		events = eventlog.NewRepo(db, "")
	}
	return &SQLStore{db: db, events: events, now: buildOptions(opts).now}
}

func (s *SQLStore) PutQuiz(ctx context.Context, def quiz.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	qj, err := quiz.EncodeQuestions(def.Questions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO quizzes (id,title,description,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, description=EXCLUDED.description, questions_json=EXCLUDED.questions_json`,
		def.ID, def.Title, def.Description, string(qj), s.now().UnixMilli())
	return err
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (quiz.Definition, error) {
	return getQuiz(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getQuiz(ctx context.Context, q queryer, id string) (quiz.Definition, error) {
	row := q.QueryRowContext(ctx, `SELECT id,title,description,questions_json FROM quizzes WHERE id=$1`, id)
	var (
		def   quiz.Definition
		qjson string
	)
	if err := row.Scan(&def.ID, &def.Title, &def.Description, &qjson); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.Definition{}, ErrQuizNotFound
		}
		return quiz.Definition{}, err
	}
	qs, err := quiz.DecodeQuestions([]byte(qjson))
	if err != nil {
		return quiz.Definition{}, fmt.Errorf("quiz %s: %w", id, err)
	}
	def.Questions = qs
	return def, nil
}

func (s *SQLStore) ListQuizzes(ctx context.Context) ([]QuizSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,title,description,questions_json,created_at FROM quizzes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []QuizSummary{}
	for rows.Next() {
		var (
			qs      QuizSummary
			qjson   string
			created int64
		)
		if err := rows.Scan(&qs.ID, &qs.Title, &qs.Description, &qjson, &created); err != nil {
			return nil, err
		}
		var raws []json.RawMessage
		if err := json.Unmarshal([]byte(qjson), &raws); err == nil {
			qs.QuestionCount = len(raws)
		}
		qs.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, qs)
	}
	return out, rows.Err()
}

func (s *SQLStore) StartAttempt(ctx context.Context, quizID, userID string) (quiz.Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return quiz.Attempt{}, err
	}
	defer tx.Rollback()

	var exist int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM quizzes WHERE id=$1`, quizID).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.Attempt{}, ErrQuizNotFound
		}
		return quiz.Attempt{}, err
	}

	a := quiz.Attempt{
		ID:        uuid.NewString(),
		QuizID:    quizID,
		UserID:    userID,
		Status:    quiz.StatusInProgress,
		CreatedAt: s.now().Truncate(time.Millisecond),
	}
	// seq orders attempts started in the same millisecond.
	if _, err := tx.ExecContext(ctx, `INSERT INTO attempts (id,quiz_id,user_id,status,started_at,time_spent_ms,seq)
		VALUES ($1,$2,$3,$4,$5,0,(SELECT COALESCE(MAX(seq),0)+1 FROM attempts))`,
		a.ID, a.QuizID, a.UserID, string(a.Status), a.CreatedAt.UnixMilli()); err != nil {
		return quiz.Attempt{}, err
	}
	if err := s.events.Append(ctx, tx, eventlog.TypeAttemptStarted, a.ID,
		map[string]any{"quiz_id": quizID, "user_id": userID}); err != nil {
		return quiz.Attempt{}, err
	}
	return a, tx.Commit()
}

func (s *SQLStore) RecordAnswer(ctx context.Context, userID string, sub quiz.Submission) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	a, err := getAttempt(ctx, tx, userID, sub.AttemptID)
	if err != nil {
		return err
	}
	if a.Completed() {
		return ErrAttemptCompleted
	}
	def, err := getQuiz(ctx, tx, a.QuizID)
	if err != nil {
		return err
	}
	if _, ok := def.Lookup(sub.QuestionID); !ok {
		return ErrQuestionNotFound
	}
	raw, err := quiz.EncodeAnswer(sub.Answer)
	if err != nil {
		return err
	}
	spent := max(sub.TimeSpentMs, 0)

	if _, err := tx.ExecContext(ctx, `INSERT INTO answers (attempt_id,question_id,answer_json,time_spent_ms,updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET answer_json=EXCLUDED.answer_json, time_spent_ms=EXCLUDED.time_spent_ms, updated_at=EXCLUDED.updated_at`,
		sub.AttemptID, sub.QuestionID, string(raw), spent, s.now().UnixMilli()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE attempts SET time_spent_ms=(SELECT COALESCE(SUM(time_spent_ms),0) FROM answers WHERE attempt_id=$1) WHERE id=$1`,
		sub.AttemptID); err != nil {
		return err
	}
	if err := s.events.Append(ctx, tx, eventlog.TypeAnswerRecorded, sub.AttemptID,
		map[string]any{"question_id": sub.QuestionID, "time_spent_ms": spent}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) CompleteAttempt(ctx context.Context, userID, attemptID string) (quiz.Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return quiz.Attempt{}, err
	}
	defer tx.Rollback()

	a, err := getAttempt(ctx, tx, userID, attemptID)
	if err != nil {
		return quiz.Attempt{}, err
	}
	if a.Completed() {
		return a, nil
	}
	// load the full definition with keys for grading
	def, err := getQuiz(ctx, tx, a.QuizID)
	if err != nil {
		return quiz.Attempt{}, err
	}
	sheet, err := loadAnswers(ctx, tx, def, attemptID)
	if err != nil {
		return quiz.Attempt{}, err
	}

	score := grading.Score(def, sheet)
	done := s.now().Truncate(time.Millisecond)
	if _, err := tx.ExecContext(ctx, `UPDATE attempts SET status=$1, score=$2, completed_at=$3 WHERE id=$4`,
		string(quiz.StatusCompleted), score, done.UnixMilli(), attemptID); err != nil {
		return quiz.Attempt{}, err
	}
	if err := s.events.Append(ctx, tx, eventlog.TypeAttemptCompleted, attemptID,
		map[string]any{"quiz_id": a.QuizID, "user_id": a.UserID, "score": score}); err != nil {
		return quiz.Attempt{}, err
	}
	if err := tx.Commit(); err != nil {
		return quiz.Attempt{}, err
	}
	a.Status = quiz.StatusCompleted
	a.Score = &score
	a.CompletedAt = &done
	return a, nil
}

func loadAnswers(ctx context.Context, tx *sql.Tx, def quiz.Definition, attemptID string) (map[string]quiz.Answer, error) {
	rows, err := tx.QueryContext(ctx, `SELECT question_id, answer_json FROM answers WHERE attempt_id=$1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sheet := map[string]quiz.Answer{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		q, ok := def.Lookup(id)
		if !ok {
			continue
		}
		// an undecodable stored answer grades as unanswered
		if ans, err := quiz.DecodeAnswer(q.Kind(), json.RawMessage(raw)); err == nil {
			sheet[id] = ans
		}
	}
	return sheet, rows.Err()
}

func (s *SQLStore) GetAttempt(ctx context.Context, userID, attemptID string) (quiz.Attempt, error) {
	return getAttempt(ctx, s.db, userID, attemptID)
}

const attemptColumns = `id,quiz_id,user_id,status,score,started_at,completed_at,time_spent_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(r rowScanner) (quiz.Attempt, error) {
	var (
		a         quiz.Attempt
		status    string
		score     sql.NullFloat64
		started   int64
		completed sql.NullInt64
	)
	if err := r.Scan(&a.ID, &a.QuizID, &a.UserID, &status, &score, &started, &completed, &a.TimeSpentMs); err != nil {
		return quiz.Attempt{}, err
	}
	a.Status = quiz.Status(status)
	a.CreatedAt = time.UnixMilli(started).UTC()
	if score.Valid {
		v := score.Float64
		a.Score = &v
	}
	if completed.Valid {
		t := time.UnixMilli(completed.Int64).UTC()
		a.CompletedAt = &t
	}
	return a, nil
}

func getAttempt(ctx context.Context, q queryer, userID, attemptID string) (quiz.Attempt, error) {
	a, err := scanAttempt(q.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id=$1`, attemptID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.Attempt{}, ErrAttemptNotFound
		}
		return quiz.Attempt{}, err
	}
	if userID != "" && a.UserID != userID {
		return quiz.Attempt{}, ErrAttemptNotFound
	}
	return a, nil
}

// ListAttempts returns the most recent attempts matching f, oldest first.
func (s *SQLStore) ListAttempts(ctx context.Context, f AttemptFilter) ([]quiz.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+attemptColumns+` FROM attempts
		WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR quiz_id = $2)
		ORDER BY started_at DESC, seq DESC LIMIT $3`,
		f.UserID, f.QuizID, clampLimit(f.Limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []quiz.Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
