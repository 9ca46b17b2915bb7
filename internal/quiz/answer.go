package quiz

import (
	"strings"
)

// ChoiceKey is a multiple-choice correct answer encoded either as a 0-based
// index or as a letter a-d.
type ChoiceKey struct {
	index  int
	letter string
	isSet  bool
	isText bool
}

func IndexKey(i int) ChoiceKey { return ChoiceKey{index: i, isSet: true} }
func LetterKey(letter string) ChoiceKey { return ChoiceKey{letter: letter, isSet: true, isText: true} }

var letterIndex = map[string]int{"a": 0, "b": 1, "c": 2, "d": 3}

// Index resolves the key to an option index. ok is false when the key is
// missing or is not a letter a-d.
func (k ChoiceKey) Index() (int, bool) {
	if !k.isSet {
		return 0, false
	}
	if !k.isText {
		return k.index, k.index >= 0
	}
	idx, ok := letterIndex[strings.ToLower(strings.TrimSpace(k.letter))]
	return idx, ok
}

// Answer is the raw value a user gave for one question: Choice, Text or
// Matches. A nil Answer means "no answer".
type Answer interface {
	answer()
}

// Choice is a selected option index. True/false questions use 0=true, 1=false.
type Choice struct {
	Index int
}

type Text struct {
	Value string
}

type Matches struct {
	Pairs []MatchPair
}

func (Choice) answer()  {}
func (Text) answer()    {}
func (Matches) answer() {}

const (
	ChoiceTrue  = 0
	ChoiceFalse = 1
)

// IsEmpty reports whether a counts as no answer at all.
func IsEmpty(a Answer) bool {
	switch v := a.(type) {
	case nil:
		return true
	case Choice:
		return false
	case Text:
		return strings.TrimSpace(v.Value) == ""
	case Matches:
		return len(v.Pairs) == 0
	}
	return true
}

// Equal compares two answers by value. Matching pairs compare as sets.
func Equal(a, b Answer) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case Choice:
		y, ok := b.(Choice)
		return ok && x.Index == y.Index
	case Text:
		y, ok := b.(Text)
		return ok && x.Value == y.Value
	case Matches:
		y, ok := b.(Matches)
		if !ok {
			return false
		}
		xs, ys := PairSet(x.Pairs), PairSet(y.Pairs)
		if len(xs) != len(ys) || len(x.Pairs) != len(y.Pairs) {
			return false
		}
		for p := range xs {
			if _, ok := ys[p]; !ok {
				return false
			}
		}
		return true
	}
	return false
}

// PairSet collapses pairs into a set.
func PairSet(pairs []MatchPair) map[MatchPair]struct{} {
	set := make(map[MatchPair]struct{}, len(pairs))
	for _, p := range pairs {
		set[p] = struct{}{}
	}
	return set
}
