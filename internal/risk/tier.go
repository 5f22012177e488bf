package risk

import "strconv"

// Tier is the severity of a single message, 1 (nothing detected) to 5 (acute).
type Tier int

const (
	TierNone     Tier = 1
	TierMild     Tier = 2
	TierDistress Tier = 3
	TierSevere   Tier = 4
	TierAcute    Tier = 5
)

// EscalationThreshold is the lowest tier that triggers the safety clause and
// the crisis-resource disclosure.
const EscalationThreshold = TierSevere

// Elevated reports whether t is at or above the escalation threshold.
func (t Tier) Elevated() bool {
	return t >= EscalationThreshold
}

// Valid reports whether t is inside 1..5.
func (t Tier) Valid() bool {
	return t >= TierNone && t <= TierAcute
}

func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierMild:
		return "mild"
	case TierDistress:
		return "distress"
	case TierSevere:
		return "severe"
	case TierAcute:
		return "acute"
	default:
		return "tier(" + strconv.Itoa(int(t)) + ")"
	}
}

// Label is the numeric form used for metric labels and JSON-free log fields.
func (t Tier) Label() string {
	return strconv.Itoa(int(t))
}
