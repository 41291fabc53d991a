package ingest

import (
	"sort"
	"strings"

	"qbank/internal/domain"
)

// GeneralTopic is assigned when no keyword matches.
const GeneralTopic = "General"

// TopicDetector tags text with the first topic whose keyword it contains.
// Topics are tried in name order so the result does not depend on map iteration.
type TopicDetector struct {
	topics   []string
	keywords map[string][]string
}

func NewTopicDetector(keywords map[string][]string) *TopicDetector {
	d := &TopicDetector{keywords: make(map[string][]string, len(keywords))}
	for topic, kws := range keywords {
		lowered := make([]string, 0, len(kws))
		for _, kw := range kws {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				lowered = append(lowered, kw)
			}
		}
		d.topics = append(d.topics, topic)
		d.keywords[topic] = lowered
	}
	sort.Strings(d.topics)
	return d
}

func (d *TopicDetector) Detect(text string) string {
	lower := strings.ToLower(text)
	for _, topic := range d.topics {
		for _, kw := range d.keywords[topic] {
			if strings.Contains(lower, kw) {
				return topic
			}
		}
	}
	return GeneralTopic
}

// Passages chunks every document and tags each passage with its detected topic.
func Passages(docs []domain.Document, chunker *SentenceChunker, detector *TopicDetector) []domain.Passage {
	var out []domain.Passage
	for _, doc := range docs {
		for _, p := range chunker.Chunk(doc) {
			p.Topic = detector.Detect(p.Text)
			out = append(out, p)
		}
	}
	return out
}
