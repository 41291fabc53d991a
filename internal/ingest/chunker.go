package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"qbank/internal/domain"
)

// SentenceChunker splits a document into windows of whole sentences with overlap.
type SentenceChunker struct {
	sentencesPerPassage int
	overlapSentences    int
	splitter            *regexp.Regexp
}

func NewSentenceChunker(sentencesPerPassage, overlapSentences int) *SentenceChunker {
	if sentencesPerPassage <= 0 {
		sentencesPerPassage = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	if overlapSentences >= sentencesPerPassage {
		overlapSentences = sentencesPerPassage - 1
	}
	return &SentenceChunker{
		sentencesPerPassage: sentencesPerPassage,
		overlapSentences:    overlapSentences,
		splitter:            regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}
}

// Chunk returns the passages of document in reading order. Topics are left empty.
func (c *SentenceChunker) Chunk(document domain.Document) []domain.Passage {
	content := document.Content
	var sentences []string
	last := 0
	for _, loc := range c.splitter.FindAllStringIndex(content, -1) {
		sentences = append(sentences, content[loc[0]:loc[1]])
		last = loc[1]
	}
	// Trailing text without terminal punctuation is still a sentence.
	if tail := strings.TrimSpace(content[last:]); tail != "" {
		sentences = append(sentences, tail)
	}
	if len(sentences) == 0 {
		return nil
	}
	for i := range sentences {
		sentences[i] = strings.Join(strings.Fields(sentences[i]), " ")
	}

	var passages []domain.Passage
	for i, idx := 0, 0; i < len(sentences); idx++ {
		end := min(i+c.sentencesPerPassage, len(sentences))
		passages = append(passages, domain.Passage{
			DocumentID: document.ID,
			ID:         document.ID + ":" + strconv.Itoa(idx),
			Index:      idx,
			Text:       strings.Join(sentences[i:end], " "),
		})
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
	}
	return passages
}
