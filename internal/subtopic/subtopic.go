// Package subtopic reduces noisy subtopic labels to a short canonical form.
//
// Labels usually come from a generative model and arrive wrapped in prose
// ("The subtopic for this question would be: **Graph Theory**"). Extraction
// runs an ordered list of rules; the first rule that matches wins.
package subtopic

import (
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"qbank/internal/domain"
)

// General is returned when no rule can find a label.
const General = "General"

// maxShortWords is the longest input kept verbatim by the short rule.
const maxShortWords = 4

type rule struct {
	name    string
	extract func(text string) (string, bool)
}

var (
	boldRe   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	quotedRe = regexp.MustCompile(`"([^"]+)"`)
	phraseRe = regexp.MustCompile(`subtopic (is|would be|for this question would be)[:\s]*([A-Za-z \-/()]+)`)
)

var rules = []rule{
	{name: "bold", extract: submatch(boldRe, 1)},
	{name: "quoted", extract: submatch(quotedRe, 1)},
	{name: "phrase", extract: submatch(phraseRe, 2)},
	{name: "short", extract: func(text string) (string, bool) {
		// Kept as-is, untrimmed.
		return text, len(strings.Fields(text)) <= maxShortWords
	}},
}

func submatch(re *regexp.Regexp, group int) func(string) (string, bool) {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		return strings.TrimSpace(m[group]), true
	}
}

// Extract returns the canonical subtopic label for raw. It never fails.
func Extract(raw string) string {
	label, _ := Match(raw)
	return label
}

// Match is Extract that also reports the name of the rule that produced the label,
// or "fallback" when none matched.
func Match(raw string) (label, ruleName string) {
	for _, r := range rules {
		if out, ok := r.extract(raw); ok {
			return out, r.name
		}
	}
	return General, "fallback"
}

// NormalizeBank rewrites the subtopic of every record in place and returns how many labels changed.
func NormalizeBank(bank domain.Bank) int {
	changed := 0
	for _, key := range bank.Keys() {
		questions := bank[key]
		for i := range questions {
			original := questions[i].Subtopic
			label, ruleName := Match(original)
			if label != original {
				changed++
			}
			questions[i].Subtopic = label
			log.WithFields(log.Fields{
				"bucket": key,
				"index":  i,
				"rule":   ruleName,
			}).Debugf("subtopic %q -> %q", original, label)
		}
	}
	return changed
}
