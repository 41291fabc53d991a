package retrieval

// Tier identifies which relaxation step produced a filter result.
type Tier int

const (
	// TierNone means there were no candidates to filter.
	TierNone Tier = iota
	// TierExact matches marks, difficulty and cognitive level.
	TierExact
	// TierRelaxDifficulty matches marks and cognitive level.
	TierRelaxDifficulty
	// TierRelaxCognitive matches marks and difficulty.
	TierRelaxCognitive
	// TierMarksOnly matches marks.
	TierMarksOnly
	// TierFallback returns the candidates unfiltered.
	TierFallback
)

var tierNames = map[Tier]string{
	TierNone:            "none",
	TierExact:           "exact",
	TierRelaxDifficulty: "relax-difficulty",
	TierRelaxCognitive:  "relax-cognitive",
	TierMarksOnly:       "marks-only",
	TierFallback:        "fallback",
}

func (t Tier) String() string {
	if s, ok := tierNames[t]; ok {
		return s
	}
	return "unknown"
}

// MarshalText renders the tier name in JSON output.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }
