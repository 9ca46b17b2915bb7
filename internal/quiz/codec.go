package quiz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var ErrUnknownKind = errors.New("unknown question type")

type wireQuestion struct {
	Type           Kind              `json:"type"`
	ID             string            `json:"id"`
	Question       string            `json:"question"`
	Options        []string          `json:"options,omitempty"`
	CorrectAnswer  json.RawMessage   `json:"correct_answer,omitempty"`
	ColumnA        map[string]string `json:"column_a,omitempty"`
	ColumnB        map[string]string `json:"column_b,omitempty"`
	CorrectMatches []MatchPair       `json:"correct_matches,omitempty"`
}

type wireDefinition struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Questions   []json.RawMessage `json:"questions"`
}

func (d *Definition) UnmarshalJSON(data []byte) error {
	var w wireDefinition
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	questions := make([]Question, 0, len(w.Questions))
	for idx, raw := range w.Questions {
		q, err := DecodeQuestion(raw)
		if err != nil {
			return fmt.Errorf("question %d: %w", idx, err)
		}
		questions = append(questions, q)
	}
	*d = Definition{ID: w.ID, Title: w.Title, Description: w.Description, Questions: questions}
	return nil
}

func (d Definition) MarshalJSON() ([]byte, error) {
	out := struct {
		ID          string         `json:"id"`
		Title       string         `json:"title"`
		Description string         `json:"description,omitempty"`
		Questions   []wireQuestion `json:"questions"`
	}{ID: d.ID, Title: d.Title, Description: d.Description, Questions: make([]wireQuestion, 0, len(d.Questions))}
	for _, q := range d.Questions {
		w, err := encodeQuestion(q)
		if err != nil {
			return nil, err
		}
		out.Questions = append(out.Questions, w)
	}
	return json.Marshal(out)
}

// DecodeQuestion reads one tagged question. Unknown types are rejected;
// malformed correctness data is kept as "no answer" so grading degrades to
// false instead of failing the whole quiz.
func DecodeQuestion(raw []byte) (Question, error) {
	var w wireQuestion
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	base := Base{ID: w.ID, Text: w.Question}
	switch w.Type {
	case KindMultipleChoice:
		return MultipleChoice{Base: base, Options: w.Options, CorrectAnswer: decodeChoiceKey(w.CorrectAnswer)}, nil
	case KindTrueFalse:
		return TrueFalse{Base: base, CorrectAnswer: decodeBool(w.CorrectAnswer)}, nil
	case KindFillInBlank:
		var s string
		_ = json.Unmarshal(w.CorrectAnswer, &s)
		return FillInBlank{Base: base, CorrectAnswer: s}, nil
	case KindMatching:
		return Matching{Base: base, ColumnA: w.ColumnA, ColumnB: w.ColumnB, CorrectMatches: w.CorrectMatches}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, w.Type)
	}
}

// EncodeQuestions renders questions as a JSON array of tagged objects.
func EncodeQuestions(qs []Question) ([]byte, error) {
	out := make([]wireQuestion, 0, len(qs))
	for _, q := range qs {
		w, err := encodeQuestion(q)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return json.Marshal(out)
}

// DecodeQuestions is the inverse of EncodeQuestions.
func DecodeQuestions(data []byte) ([]Question, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	qs := make([]Question, 0, len(raws))
	for idx, raw := range raws {
		q, err := DecodeQuestion(raw)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", idx, err)
		}
		qs = append(qs, q)
	}
	return qs, nil
}

func encodeQuestion(q Question) (wireQuestion, error) {
	w := wireQuestion{Type: q.Kind(), ID: q.QuestionID(), Question: q.Prompt()}
	var err error
	switch v := q.(type) {
	case MultipleChoice:
		w.Options = v.Options
		w.CorrectAnswer, err = v.CorrectAnswer.MarshalJSON()
	case TrueFalse:
		if v.CorrectAnswer != nil {
			w.CorrectAnswer, err = json.Marshal(*v.CorrectAnswer)
		}
	case FillInBlank:
		w.CorrectAnswer, err = json.Marshal(v.CorrectAnswer)
	case Matching:
		w.ColumnA = v.ColumnA
		w.ColumnB = v.ColumnB
		w.CorrectMatches = v.CorrectMatches
	default:
		return wireQuestion{}, fmt.Errorf("%w: %T", ErrUnknownKind, q)
	}
	return w, err
}

func (k ChoiceKey) MarshalJSON() ([]byte, error) {
	switch {
	case !k.isSet:
		return []byte("null"), nil
	case k.isText:
		return json.Marshal(k.letter)
	default:
		return json.Marshal(k.index)
	}
}

func (k *ChoiceKey) UnmarshalJSON(data []byte) error {
	*k = decodeChoiceKey(data)
	return nil
}

func decodeChoiceKey(raw json.RawMessage) ChoiceKey {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ChoiceKey{}
	}
	var idx int
	if err := json.Unmarshal(raw, &idx); err == nil {
		return IndexKey(idx)
	}
	var letter string
	if err := json.Unmarshal(raw, &letter); err == nil {
		return LetterKey(letter)
	}
	return ChoiceKey{}
}

func decodeBool(raw json.RawMessage) *bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return &b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseBool(s); err == nil {
			return &parsed
		}
	}
	return nil
}

// EncodeAnswer renders an answer in its wire form: a number for choices, a
// string for text and a pair list for matching. nil encodes as null.
func EncodeAnswer(a Answer) (json.RawMessage, error) {
	switch v := a.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case Choice:
		return json.Marshal(v.Index)
	case Text:
		return json.Marshal(v.Value)
	case Matches:
		pairs := v.Pairs
		if pairs == nil {
			pairs = []MatchPair{}
		}
		return json.Marshal(pairs)
	}
	return nil, fmt.Errorf("unsupported answer %T", a)
}

// DecodeAnswer parses a wire answer for a question of the given kind.
func DecodeAnswer(kind Kind, raw json.RawMessage) (Answer, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch kind {
	case KindMultipleChoice, KindTrueFalse:
		var idx int
		if err := json.Unmarshal(raw, &idx); err != nil {
			return nil, fmt.Errorf("%s answer must be an option index: %w", kind, err)
		}
		return Choice{Index: idx}, nil
	case KindFillInBlank:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%s answer must be a string: %w", kind, err)
		}
		return Text{Value: s}, nil
	case KindMatching:
		var pairs []MatchPair
		if err := json.Unmarshal(raw, &pairs); err != nil {
			return nil, fmt.Errorf("%s answer must be a list of pairs: %w", kind, err)
		}
		return Matches{Pairs: pairs}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
