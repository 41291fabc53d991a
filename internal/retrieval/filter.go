// Package retrieval selects, from a similarity-ranked candidate list, the questions
// that best fit a marks/difficulty/cognitive-level profile.
//
// Constraints are relaxed in a fixed order until some tier matches:
//
//  1. exact: marks, difficulty and cognitive level
//  2. relax difficulty: marks and cognitive level
//  3. relax cognitive: marks and difficulty
//  4. marks only
//  5. fallback: the candidates themselves, optionally capped
//
// Every tier scans the full candidate list and keeps its order.
package retrieval

import (
	"strings"

	"qbank/internal/domain"
)

// Result is the outcome of filtering one candidate list.
type Result struct {
	Tier       Tier               `json:"tier"`
	Candidates []domain.Candidate `json:"candidates"`
}

// Filter applies the relaxation ladder. The zero value returns every candidate on fallback.
type Filter struct {
	// FallbackCap limits the fallback tier to the first N candidates when positive.
	FallbackCap int
}

type rung struct {
	tier  Tier
	match func(q domain.Question, p domain.Profile) bool
}

var ladder = []rung{
	{TierExact, func(q domain.Question, p domain.Profile) bool {
		return sameMarks(q, p) && sameDifficulty(q, p) && sameCognitive(q, p)
	}},
	{TierRelaxDifficulty, func(q domain.Question, p domain.Profile) bool {
		return sameMarks(q, p) && sameCognitive(q, p)
	}},
	{TierRelaxCognitive, func(q domain.Question, p domain.Profile) bool {
		return sameMarks(q, p) && sameDifficulty(q, p)
	}},
	{TierMarksOnly, sameMarks},
}

// Apply filters candidates against the profile. It never mutates candidates and
// always returns a freshly allocated slice.
func (f Filter) Apply(candidates []domain.Candidate, p domain.Profile) Result {
	if len(candidates) == 0 {
		return Result{Tier: TierNone, Candidates: []domain.Candidate{}}
	}
	for _, r := range ladder {
		var out []domain.Candidate
		for _, c := range candidates {
			if r.match(c.Question, p) {
				out = append(out, c)
			}
		}
		if len(out) > 0 {
			return Result{Tier: r.tier, Candidates: out}
		}
	}
	n := len(candidates)
	if f.FallbackCap > 0 && f.FallbackCap < n {
		n = f.FallbackCap
	}
	out := make([]domain.Candidate, n)
	copy(out, candidates[:n])
	return Result{Tier: TierFallback, Candidates: out}
}

// Apply filters with an uncapped fallback.
func Apply(candidates []domain.Candidate, p domain.Profile) Result {
	return Filter{}.Apply(candidates, p)
}

// Marks compare on their string form; a missing value never matches.
func sameMarks(q domain.Question, p domain.Profile) bool {
	return sameText(q.Marks.String(), p.Marks.String())
}

func sameDifficulty(q domain.Question, p domain.Profile) bool {
	return sameText(string(q.Difficulty), string(p.Difficulty))
}

func sameCognitive(q domain.Question, p domain.Profile) bool {
	return sameText(string(q.CognitiveLevel), string(p.Cognitive))
}

func sameText(have, want string) bool {
	have = strings.TrimSpace(have)
	if have == "" {
		return false
	}
	return strings.EqualFold(have, strings.TrimSpace(want))
}
