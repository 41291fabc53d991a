package service

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"qbank/internal/domain"
)

var unicodeWordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// lexicalSearch ranks the loaded questions by token overlap with query.
// Used when the embedder cannot place the query in its vector space.
func (s *QuestionService) lexicalSearch(query string, topK int) []domain.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qset := toTokenSet(query)
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(s.entries))
	for i, e := range s.entries {
		scores[i] = pair{i, overlapOchiai(qset, e.Question.Text)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]domain.Candidate, 0, topK)
	for _, p := range scores[:topK] {
		e := s.entries[p.idx]
		out = append(out, domain.Candidate{ID: e.ID, Question: e.Question, Score: p.score})
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// overlapOchiai returns |A∩B| / sqrt(|A||B|) over the distinct tokens of query and text.
func overlapOchiai(qset map[string]struct{}, text string) float64 {
	seen := toTokenSet(text)
	if len(qset) == 0 || len(seen) == 0 {
		return 0
	}
	inter := 0
	for t := range seen {
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(seen)))
}
