package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarks_DecodesNumbersAndStrings(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Marks
	}{
		{"number", `3`, 3},
		{"string", `"5"`, 5},
		{"padded string", `" 2 "`, 2},
		{"float with no fraction", `1.0`, 1},
		{"fractional", `2.5`, 0},
		{"word", `"three"`, 0},
		{"null", `null`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Marks
			require.NoError(t, json.Unmarshal([]byte(tt.in), &m))
			assert.Equal(t, tt.want, m)
		})
	}
}

func TestMarks_StringIsEmptyWhenMissing(t *testing.T) {
	assert.Equal(t, "", Marks(0).String())
	assert.Equal(t, "3", Marks(3).String())
}

func TestParseMarks_PayloadValues(t *testing.T) {
	assert.Equal(t, Marks(3), ParseMarks(float64(3)))
	assert.Equal(t, Marks(3), ParseMarks("3"))
	assert.Equal(t, Marks(4), ParseMarks(int64(4)))
	assert.Equal(t, Marks(0), ParseMarks(nil))
	assert.Equal(t, Marks(0), ParseMarks([]int{1}))
}

func TestParseMarks_NumericStringsCompareByValue(t *testing.T) {
	assert.Equal(t, Marks(3), ParseMarks("03"))
	assert.Equal(t, Marks(3), ParseMarks(" 3 "))
	assert.Equal(t, "3", ParseMarks("03").String())
	assert.Equal(t, Marks(0), ParseMarks("3 marks"))
}

func TestQuestion_AcceptsDifficultyLevelAlias(t *testing.T) {
	raw := `{"question":"Define overfitting.","topic":"ML","subtopic":"x","marks":"1","difficulty_level":"easy","cognitive_level":"remembering","question_type":"mcq","time":"1 min"}`

	var q Question
	require.NoError(t, json.Unmarshal([]byte(raw), &q))

	assert.Equal(t, "Define overfitting.", q.Text)
	assert.Equal(t, Marks(1), q.Marks)
	assert.Equal(t, DifficultyEasy, q.Difficulty)
	assert.Equal(t, CognitiveRemembering, q.CognitiveLevel)
	assert.Equal(t, "mcq", q.QuestionType)
}

func TestQuestion_DifficultyWinsOverAlias(t *testing.T) {
	var q Question
	require.NoError(t, json.Unmarshal([]byte(`{"difficulty":"hard","difficulty_level":"easy"}`), &q))
	assert.Equal(t, DifficultyHard, q.Difficulty)
}

func TestBank_KeysSortedAndLen(t *testing.T) {
	b := Bank{
		"3_mark": {{Text: "a"}, {Text: "b"}},
		"1_mark": {{Text: "c"}},
	}
	assert.Equal(t, []string{"1_mark", "3_mark"}, b.Keys())
	assert.Equal(t, 3, b.Len())
}

func TestParseEnums(t *testing.T) {
	d, err := ParseDifficulty(" Medium ")
	require.NoError(t, err)
	assert.Equal(t, DifficultyMedium, d)

	c, err := ParseCognitiveLevel("APPLYING")
	require.NoError(t, err)
	assert.Equal(t, CognitiveApplying, c)

	_, err = ParseDifficulty("trivial")
	assert.Error(t, err)
	_, err = ParseCognitiveLevel("memorising")
	assert.Error(t, err)
}

func TestProfile_Validate(t *testing.T) {
	ok := Profile{Query: "sorting", Marks: 3, Difficulty: "medium", Cognitive: "applying"}
	require.NoError(t, ok.Validate())

	tests := []struct {
		name string
		mod  func(p *Profile)
	}{
		{"empty query", func(p *Profile) { p.Query = "  " }},
		{"zero marks", func(p *Profile) { p.Marks = 0 }},
		{"unknown difficulty", func(p *Profile) { p.Difficulty = "extreme" }},
		{"unknown cognitive", func(p *Profile) { p.Cognitive = "guessing" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ok
			tt.mod(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidProfile))
		})
	}
}
