package risk

import "strings"

// Match is the outcome of a classification together with the phrase that
// decided it. Keyword is empty when nothing matched.
type Match struct {
	Tier    Tier
	Keyword string
}

// Classifier maps free text onto a Tier using literal substring containment.
// Higher tiers are checked first and the first hit wins; there is no scoring,
// negation handling, case folding, or width folding. A phrase embedded in a
// longer word still matches.
type Classifier struct {
	keywords KeywordSet
}

// NewClassifier builds a classifier over keywords.
func NewClassifier(keywords KeywordSet) *Classifier {
	return &Classifier{keywords: keywords}
}

// NewDefaultClassifier builds a classifier over the built-in table.
func NewDefaultClassifier() *Classifier {
	return NewClassifier(DefaultKeywords())
}

// Classify returns the tier for text. It is total: empty or whitespace-only
// input yields TierNone.
func (c *Classifier) Classify(text string) Tier {
	return c.Match(text).Tier
}

// Match classifies text and reports the deciding keyword. Go strings hold
// UTF-8, which is self-synchronizing, so a byte-level substring hit is always
// a code-point aligned hit for valid input.
func (c *Classifier) Match(text string) Match {
	if c == nil || strings.TrimSpace(text) == "" {
		return Match{Tier: TierNone}
	}
	for tier := TierAcute; tier > TierNone; tier-- {
		for _, kw := range c.keywords.tiers[tier] {
			if strings.Contains(text, kw) {
				return Match{Tier: tier, Keyword: kw}
			}
		}
	}
	return Match{Tier: TierNone}
}

var defaultClassifier = NewDefaultClassifier()

// Classify classifies text against the built-in keyword table.
func Classify(text string) Tier {
	return defaultClassifier.Classify(text)
}
