package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Difficulty is the difficulty label attached to a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the known difficulty labels, easiest first.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// ParseDifficulty maps a label onto a known Difficulty, ignoring case and surrounding space.
func ParseDifficulty(s string) (Difficulty, error) {
	for _, d := range Difficulties {
		if strings.EqualFold(strings.TrimSpace(s), string(d)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// CognitiveLevel is a Bloom's taxonomy level.
type CognitiveLevel string

const (
	CognitiveRemembering   CognitiveLevel = "remembering"
	CognitiveUnderstanding CognitiveLevel = "understanding"
	CognitiveApplying      CognitiveLevel = "applying"
	CognitiveAnalyzing     CognitiveLevel = "analyzing"
	CognitiveEvaluating    CognitiveLevel = "evaluating"
	CognitiveCreating      CognitiveLevel = "creating"
)

// CognitiveLevels lists the known cognitive levels in taxonomy order.
var CognitiveLevels = []CognitiveLevel{
	CognitiveRemembering,
	CognitiveUnderstanding,
	CognitiveApplying,
	CognitiveAnalyzing,
	CognitiveEvaluating,
	CognitiveCreating,
}

// ParseCognitiveLevel maps a label onto a known CognitiveLevel, ignoring case and surrounding space.
func ParseCognitiveLevel(s string) (CognitiveLevel, error) {
	for _, c := range CognitiveLevels {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown cognitive level %q", s)
}

// Marks is the mark value of a question. Zero means the value is missing.
//
// Question files and vector store payloads disagree on whether marks are numbers
// or strings, so Marks decodes from either form.
type Marks int

// String returns the canonical string form, or "" when marks are missing.
func (m Marks) String() string {
	if m <= 0 {
		return ""
	}
	return strconv.Itoa(int(m))
}

// ParseMarks converts a decoded payload value into Marks. Unrecognised values yield zero.
// Numeric strings are read by value, so "03" and " 3 " both give 3.
func ParseMarks(v any) Marks {
	switch t := v.(type) {
	case int:
		return Marks(t)
	case int64:
		return Marks(t)
	case float64:
		return marksFromFloat(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return Marks(n)
		}
		if f, err := t.Float64(); err == nil {
			return marksFromFloat(f)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return Marks(n)
		}
	case Marks:
		return t
	}
	return 0
}

func marksFromFloat(f float64) Marks {
	if f != math.Trunc(f) {
		return 0
	}
	return Marks(int(f))
}

func (m *Marks) UnmarshalJSON(data []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	*m = ParseMarks(v)
	return nil
}

// Question is a single question record as produced by upstream generation.
type Question struct {
	Text           string         `json:"question"`
	Topic          string         `json:"topic"`
	Subtopic       string         `json:"subtopic"`
	Marks          Marks          `json:"marks"`
	Difficulty     Difficulty     `json:"difficulty"`
	CognitiveLevel CognitiveLevel `json:"cognitive_level"`
	QuestionType   string         `json:"question_type,omitempty"`
	Time           string         `json:"time,omitempty"`
}

// UnmarshalJSON accepts the generator's "difficulty_level" key as an alias of "difficulty".
func (q *Question) UnmarshalJSON(data []byte) error {
	type plain Question
	var aux struct {
		plain
		DifficultyLevel Difficulty `json:"difficulty_level"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*q = Question(aux.plain)
	if q.Difficulty == "" {
		q.Difficulty = aux.DifficultyLevel
	}
	return nil
}

// Bank groups question records by mark bucket key (e.g. "1_mark").
// The key is organisational only; retrieval reads Question.Marks.
type Bank map[string][]Question

// Keys returns the bucket keys in sorted order.
func (b Bank) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of questions across all buckets.
func (b Bank) Len() int {
	n := 0
	for _, qs := range b {
		n += len(qs)
	}
	return n
}

// Entry is an indexed question together with its embedding vector.
type Entry struct {
	ID       string
	Bucket   string
	Question Question
	Vector   []float64
}

// Candidate is a read-only copy of an indexed question returned by a similarity search.
type Candidate struct {
	ID       string   `json:"id"`
	Question Question `json:"question"`
	Score    float64  `json:"score"`
}
