package retrieval

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qbank/internal/domain"
)

func cand(id string, marks domain.Marks, diff, cog string) domain.Candidate {
	return domain.Candidate{
		ID: id,
		Question: domain.Question{
			Text:           "question " + id,
			Marks:          marks,
			Difficulty:     domain.Difficulty(diff),
			CognitiveLevel: domain.CognitiveLevel(cog),
		},
	}
}

func ids(cs []domain.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

var target = domain.Profile{Query: "text classification", Marks: 3, Difficulty: "medium", Cognitive: "applying"}

func TestApply_ExactTierOnly(t *testing.T) {
	cs := []domain.Candidate{
		cand("a", 3, "hard", "applying"),
		cand("b", 3, "medium", "applying"),
		cand("c", 3, "medium", "remembering"),
		cand("d", 3, "medium", "applying"),
		cand("e", 1, "medium", "applying"),
	}

	res := Apply(cs, target)

	assert.Equal(t, TierExact, res.Tier)
	assert.Equal(t, []string{"b", "d"}, ids(res.Candidates))
}

func TestApply_RelaxDifficulty(t *testing.T) {
	cs := []domain.Candidate{
		cand("a", 3, "hard", "applying"),
		cand("b", 3, "easy", "remembering"),
		cand("c", 2, "hard", "applying"),
		cand("d", 3, "easy", "applying"),
	}

	res := Apply(cs, target)

	assert.Equal(t, TierRelaxDifficulty, res.Tier)
	assert.Equal(t, []string{"a", "d"}, ids(res.Candidates))
}

func TestApply_RelaxCognitive(t *testing.T) {
	cs := []domain.Candidate{
		cand("a", 3, "hard", "creating"),
		cand("b", 3, "medium", "remembering"),
		cand("c", 5, "medium", "applying"),
		cand("d", 3, "medium", "evaluating"),
	}

	res := Apply(cs, target)

	assert.Equal(t, TierRelaxCognitive, res.Tier)
	assert.Equal(t, []string{"b", "d"}, ids(res.Candidates))
}

func TestApply_MarksOnly(t *testing.T) {
	cs := []domain.Candidate{
		cand("a", 1, "medium", "applying"),
		cand("b", 3, "hard", "creating"),
		cand("c", 3, "easy", "remembering"),
	}

	res := Apply(cs, target)

	assert.Equal(t, TierMarksOnly, res.Tier)
	assert.Equal(t, []string{"b", "c"}, ids(res.Candidates))
}

func TestApply_FallbackReturnsAllInOrder(t *testing.T) {
	cs := []domain.Candidate{
		cand("a", 1, "medium", "applying"),
		cand("b", 5, "medium", "applying"),
		cand("c", 2, "hard", "creating"),
	}

	res := Apply(cs, target)

	assert.Equal(t, TierFallback, res.Tier)
	assert.Equal(t, []string{"a", "b", "c"}, ids(res.Candidates))
}

func TestApply_FallbackCap(t *testing.T) {
	cs := []domain.Candidate{
		cand("a", 1, "", ""),
		cand("b", 2, "", ""),
		cand("c", 5, "", ""),
		cand("d", 1, "", ""),
	}

	capped := Filter{FallbackCap: 3}.Apply(cs, target)
	assert.Equal(t, TierFallback, capped.Tier)
	assert.Equal(t, []string{"a", "b", "c"}, ids(capped.Candidates))

	wide := Filter{FallbackCap: 10}.Apply(cs, target)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(wide.Candidates))
}

func TestApply_CapDoesNotTrimMatchingTiers(t *testing.T) {
	cs := []domain.Candidate{
		cand("a", 3, "", ""),
		cand("b", 3, "", ""),
		cand("c", 3, "", ""),
	}
	res := Filter{FallbackCap: 1}.Apply(cs, target)
	assert.Equal(t, TierMarksOnly, res.Tier)
	assert.Len(t, res.Candidates, 3)
}

func TestApply_Empty(t *testing.T) {
	res := Apply(nil, target)
	assert.Equal(t, TierNone, res.Tier)
	assert.NotNil(t, res.Candidates)
	assert.Empty(t, res.Candidates)

	res = Filter{FallbackCap: 3}.Apply([]domain.Candidate{}, domain.Profile{})
	assert.Empty(t, res.Candidates)
}

func TestApply_CaseInsensitive(t *testing.T) {
	cs := []domain.Candidate{
		cand("a", 3, "MEDIUM", "Applying"),
		cand("b", 3, "hard", "applying"),
	}
	p := target
	p.Difficulty = "Medium"

	res := Apply(cs, p)

	assert.Equal(t, TierExact, res.Tier)
	assert.Equal(t, []string{"a"}, ids(res.Candidates))
}

func TestApply_MarksStoredAsString(t *testing.T) {
	var cs []domain.Candidate
	raw := `[
		{"id":"a","question":{"question":"q1","marks":"3","difficulty":"medium","cognitive_level":"applying"}},
		{"id":"b","question":{"question":"q2","marks":3,"difficulty":"medium","cognitive_level":"applying"}},
		{"id":"c","question":{"question":"q3","marks":"2","difficulty":"medium","cognitive_level":"applying"}}
	]`
	require.NoError(t, json.Unmarshal([]byte(raw), &cs))

	res := Apply(cs, target)

	assert.Equal(t, TierExact, res.Tier)
	assert.Equal(t, []string{"a", "b"}, ids(res.Candidates))
}

func TestApply_MissingMetadataNeverMatches(t *testing.T) {
	cs := []domain.Candidate{
		cand("no-marks", 0, "medium", "applying"),
		cand("no-difficulty", 3, "", "remembering"),
		cand("no-cognitive", 3, "hard", ""),
	}

	res := Apply(cs, target)

	// Only the marks condition can hold, and only for entries that carry marks.
	assert.Equal(t, TierMarksOnly, res.Tier)
	assert.Equal(t, []string{"no-difficulty", "no-cognitive"}, ids(res.Candidates))
}

func TestApply_MissingTargetFieldsDoNotMatchMissingMetadata(t *testing.T) {
	cs := []domain.Candidate{cand("a", 3, "", "")}
	p := domain.Profile{Query: "x", Marks: 3}

	res := Apply(cs, p)

	assert.Equal(t, TierMarksOnly, res.Tier)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	cs := []domain.Candidate{
		cand("a", 1, "easy", "remembering"),
		cand("b", 3, "medium", "applying"),
		cand("c", 2, "hard", "creating"),
	}
	before := append([]domain.Candidate(nil), cs...)

	res := Apply(cs, target)
	res.Candidates[0].ID = "changed"

	assert.Equal(t, before, cs)

	fb := Apply(cs, domain.Profile{Marks: 9})
	fb.Candidates[0].ID = "changed"
	assert.Equal(t, before, cs)
}

func TestApply_Idempotent(t *testing.T) {
	cs := []domain.Candidate{
		cand("a", 3, "hard", "applying"),
		cand("b", 3, "easy", "applying"),
		cand("c", 1, "medium", "applying"),
	}
	first := Apply(cs, target)
	second := Apply(cs, target)
	assert.Equal(t, first, second)
}

func TestTier_String(t *testing.T) {
	assert.Equal(t, "exact", TierExact.String())
	assert.Equal(t, "relax-difficulty", TierRelaxDifficulty.String())
	assert.Equal(t, "fallback", TierFallback.String())
	assert.Equal(t, "unknown", Tier(99).String())

	data, err := json.Marshal(Result{Tier: TierMarksOnly, Candidates: []domain.Candidate{}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tier":"marks-only"`)
}

// Randomised checks of the ordering and tier invariants.
func TestApply_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	diffs := []string{"easy", "medium", "hard", ""}
	cogs := []string{"remembering", "understanding", "applying", "evaluating", ""}

	for round := 0; round < 500; round++ {
		n := rng.Intn(12)
		cs := make([]domain.Candidate, n)
		for i := range cs {
			cs[i] = cand(
				fmt.Sprintf("r%d-%d", round, i),
				domain.Marks(rng.Intn(4)),
				diffs[rng.Intn(len(diffs))],
				cogs[rng.Intn(len(cogs))],
			)
		}
		p := domain.Profile{
			Query:      "q",
			Marks:      domain.Marks(1 + rng.Intn(3)),
			Difficulty: domain.Difficulty(diffs[rng.Intn(3)]),
			Cognitive:  domain.CognitiveLevel(cogs[rng.Intn(4)]),
		}
		f := Filter{FallbackCap: rng.Intn(4)}

		res := f.Apply(cs, p)

		assert.LessOrEqual(t, len(res.Candidates), len(cs))
		assertSubsequence(t, cs, res.Candidates)

		if n == 0 {
			assert.Equal(t, TierNone, res.Tier)
			continue
		}

		var exact []string
		anyMarks := false
		for _, c := range cs {
			if sameMarks(c.Question, p) {
				anyMarks = true
				if sameDifficulty(c.Question, p) && sameCognitive(c.Question, p) {
					exact = append(exact, c.ID)
				}
			}
		}
		switch {
		case len(exact) > 0:
			assert.Equal(t, TierExact, res.Tier)
			assert.Equal(t, exact, ids(res.Candidates))
		case !anyMarks:
			assert.Equal(t, TierFallback, res.Tier)
			want := len(cs)
			if f.FallbackCap > 0 && f.FallbackCap < want {
				want = f.FallbackCap
			}
			assert.Equal(t, ids(cs[:want]), ids(res.Candidates))
		default:
			assert.Contains(t, []Tier{TierRelaxDifficulty, TierRelaxCognitive, TierMarksOnly}, res.Tier)
			for _, c := range res.Candidates {
				assert.True(t, sameMarks(c.Question, p))
			}
		}
	}
}

func assertSubsequence(t *testing.T, all, sub []domain.Candidate) {
	t.Helper()
	j := 0
	for i := 0; i < len(all) && j < len(sub); i++ {
		if all[i].ID == sub[j].ID {
			j++
		}
	}
	assert.Equal(t, len(sub), j, "result is not an ordered subsequence of the input")
}
