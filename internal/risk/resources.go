package risk

// Crisis-resource advisories shown verbatim whenever a turn is elevated.
const (
	HotlineResource   = "⚠️ 一人で抱え込まないでください。24時間子供SOSダイヤル: 0120-0-78310"
	CounselorResource = "学校のスクールカウンセラーや保健室の先生にも、いつでも相談できます。"
)

// Resources returns the fixed advisory strings in display order.
func Resources() []string {
	return []string{HotlineResource, CounselorResource}
}

// ResourcesFor returns the advisories for tier, or nil below the threshold.
func ResourcesFor(tier Tier) []string {
	if !tier.Elevated() {
		return nil
	}
	return Resources()
}
