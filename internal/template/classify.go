package template

import (
	"slices"
	"strings"

	"github.com/MrWong99/sitereport/internal/textfold"
)

// Score is the classification score of one template.
type Score struct {
	TemplateID string
	Priority   int
	// Matched lists the distinct keywords found, in declared order.
	Matched []string
}

// Classifier picks the best template for a transcript by keyword counting.
// It is safe for concurrent use.
type Classifier struct {
	reg     *Registry
	entries []classEntry
}

type classEntry struct {
	def    Definition
	folded []string
}

// NewClassifier precomputes folded keywords for every keyword-bearing
// template in reg.
func NewClassifier(reg *Registry) *Classifier {
	c := &Classifier{reg: reg}
	for _, d := range reg.All() {
		if len(d.Keywords) == 0 {
			continue
		}
		c.entries = append(c.entries, classEntry{def: d, folded: textfold.FoldAll(d.Keywords)})
	}
	return c
}

// Classify returns the ID of the template whose keywords best match
// transcript. Matching is case- and accent-insensitive substring search; the
// score is the number of distinct keywords found. Ties go to the lower
// priority value. When nothing matches, the registry default is returned.
// Classify never fails.
func (c *Classifier) Classify(transcript string) string {
	best, bestScore := "", 0
	for _, s := range c.Scores(transcript) {
		n := len(s.Matched)
		if n == 0 {
			continue
		}
		// Scores are ordered by priority, so the first template reaching a
		// score keeps it on ties.
		if n > bestScore {
			best, bestScore = s.TemplateID, n
		}
	}
	if best == "" {
		return c.reg.Default().ID
	}
	return best
}

// Scores returns the per-template scores for transcript, ordered by
// priority then ID. The default template is not scored.
func (c *Classifier) Scores(transcript string) []Score {
	text := textfold.Fold(transcript)
	scores := make([]Score, 0, len(c.entries))
	for _, e := range c.entries {
		s := Score{TemplateID: e.def.ID, Priority: e.def.Priority}
		var seen []string
		for i, kw := range e.folded {
			if kw == "" || slices.Contains(seen, kw) {
				continue
			}
			if strings.Contains(text, kw) {
				seen = append(seen, kw)
				s.Matched = append(s.Matched, e.def.Keywords[i])
			}
		}
		scores = append(scores, s)
	}
	return scores
}
