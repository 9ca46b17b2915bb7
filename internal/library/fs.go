// Package library keeps quiz definitions as JSON files in a directory, one
// file per quiz.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

const ext = ".json"

var ErrBadID = errors.New("quiz id cannot be used as a file name")

type Dir struct{ base string }

func NewDir(base string) (*Dir, error) {
	if base == "" {
		base = "./quizzes"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &Dir{base: base}, nil
}

func (d *Dir) path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("%w: %q", ErrBadID, id)
	}
	return filepath.Join(d.base, id+ext), nil
}

// Save validates def and writes it to <id>.json, replacing any earlier file.
func (d *Dir) Save(def quiz.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	dst, err := d.path(def.ID)
	if err != nil {
		return err
	}
	buf, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return err
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

func (d *Dir) Get(id string) (quiz.Definition, error) {
	p, err := d.path(id)
	if err != nil {
		return quiz.Definition{}, err
	}
	return LoadFile(p)
}

// All loads every quiz in the directory, ordered by file name. A file that
// fails to parse aborts the load.
func (d *Dir) All() ([]quiz.Definition, error) {
	matches, err := filepath.Glob(filepath.Join(d.base, "*"+ext))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	out := make([]quiz.Definition, 0, len(matches))
	for _, p := range matches {
		def, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

// LoadFile reads and validates one quiz definition. A file without an id
// takes its base name.
func LoadFile(path string) (quiz.Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return quiz.Definition{}, err
	}
	var def quiz.Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return quiz.Definition{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if def.ID == "" {
		def.ID = strings.TrimSuffix(filepath.Base(path), ext)
	}
	if err := def.Validate(); err != nil {
		return quiz.Definition{}, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Putter receives seeded quizzes, usually a store.Store.
type Putter interface {
	PutQuiz(ctx context.Context, def quiz.Definition) error
}

// Seed loads every quiz in the directory into dst and returns how many were
// written.
func (d *Dir) Seed(ctx context.Context, dst Putter) (int, error) {
	defs, err := d.All()
	if err != nil {
		return 0, err
	}
	for i, def := range defs {
		if err := dst.PutQuiz(ctx, def); err != nil {
			return i, fmt.Errorf("seed %s: %w", def.ID, err)
		}
	}
	return len(defs), nil
}
