package risk

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeywordSet maps tiers 2..5 onto literal phrases. Tier 1 has no keywords; it
// is the fallback. A KeywordSet is never mutated after construction.
type KeywordSet struct {
	tiers map[Tier][]string
}

var defaultKeywords = map[Tier][]string{
	TierAcute:    {"死にたい", "自殺", "消えたい", "殺す", "自傷", "リスカ", "おわりにする"},
	TierSevere:   {"学校に行けない", "不登校", "いじめ", "暴力", "虐待", "殴られる", "限界", "眠れない"},
	TierDistress: {"辛い", "苦しい", "やめたい", "不安", "逃げたい", "孤独", "独りぼっち"},
	TierMild:     {"悩んでいる", "困っている", "イライラ", "集中できない", "やる気が出ない"},
}

// DefaultKeywords returns the built-in Japanese keyword table.
func DefaultKeywords() KeywordSet {
	ks, err := NewKeywordSet(defaultKeywords)
	if err != nil {
		panic(fmt.Sprintf("risk: invalid built-in keywords: %v", err))
	}
	return ks
}

// NewKeywordSet copies tiers into an immutable KeywordSet. Only tiers 2..5 may
// carry phrases and phrases must be non-empty.
func NewKeywordSet(tiers map[Tier][]string) (KeywordSet, error) {
	out := make(map[Tier][]string, len(tiers))
	for tier, phrases := range tiers {
		if tier <= TierNone || tier > TierAcute {
			if tier == TierNone && len(phrases) == 0 {
				continue
			}
			return KeywordSet{}, fmt.Errorf("risk: tier %d cannot carry keywords", tier)
		}
		copied := make([]string, 0, len(phrases))
		for _, p := range phrases {
			if strings.TrimSpace(p) == "" {
				return KeywordSet{}, fmt.Errorf("risk: empty keyword in tier %d", tier)
			}
			copied = append(copied, p)
		}
		out[tier] = copied
	}
	return KeywordSet{tiers: out}, nil
}

// Keywords returns a copy of the phrases configured for tier.
func (k KeywordSet) Keywords(tier Tier) []string {
	phrases := k.tiers[tier]
	out := make([]string, len(phrases))
	copy(out, phrases)
	return out
}

// Len is the total number of phrases across all tiers.
func (k KeywordSet) Len() int {
	n := 0
	for _, phrases := range k.tiers {
		n += len(phrases)
	}
	return n
}

// keywordFile is the on-disk layout accepted by LoadKeywordsFile:
//
//	tiers:
//	  5: ["死にたい", "自殺"]
//	  4: ["いじめ"]
type keywordFile struct {
	Tiers map[int][]string `yaml:"tiers"`
}

// LoadKeywordsFile reads a YAML keyword table. It is meant to be called once at
// process start; the result replaces the built-in table entirely.
func LoadKeywordsFile(path string) (KeywordSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return KeywordSet{}, fmt.Errorf("risk: read keywords file: %w", err)
	}
	return ParseKeywordsYAML(data)
}

// ParseKeywordsYAML decodes a keyword table in the LoadKeywordsFile layout.
func ParseKeywordsYAML(data []byte) (KeywordSet, error) {
	var file keywordFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return KeywordSet{}, fmt.Errorf("risk: decode keywords: %w", err)
	}
	if len(file.Tiers) == 0 {
		return KeywordSet{}, fmt.Errorf("risk: keywords file defines no tiers")
	}
	tiers := make(map[Tier][]string, len(file.Tiers))
	for tier, phrases := range file.Tiers {
		tiers[Tier(tier)] = phrases
	}
	return NewKeywordSet(tiers)
}
