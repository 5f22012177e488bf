package conversation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/counsel-room/internal/risk"
)

func TestBuildInstructionElevatedOmitsNeedClause(t *testing.T) {
	for _, tier := range []risk.Tier{risk.TierSevere, risk.TierAcute} {
		for _, need := range []NeedCategory{NeedListening, NeedSolution, NeedCoReflection} {
			got := BuildInstruction(tier, need)
			assert.Contains(t, got, escalationClause)
			for _, clause := range needClauses {
				assert.NotContains(t, got, clause)
			}
		}
	}
}

func TestBuildInstructionUsesNeedClauseBelowThreshold(t *testing.T) {
	for tier := risk.TierNone; tier < risk.EscalationThreshold; tier++ {
		got := BuildInstruction(tier, NeedSolution)
		assert.Contains(t, got, needClauses[NeedSolution], "tier %d", tier)
		assert.NotContains(t, got, escalationClause, "tier %d", tier)
		assert.Contains(t, got, fmt.Sprintf("現在のリスクレベル：%d", tier))
	}

	got := BuildInstruction(risk.TierMild, NeedSolution)
	assert.Contains(t, got, needClauses[NeedSolution])
	assert.NotContains(t, got, escalationClause)
	assert.Contains(t, got, "現在のリスクレベル：2")

	got = BuildInstruction(risk.TierNone, "")
	assert.Contains(t, got, needClauses[NeedListening])
}

func TestBuildInstructionEndsWithResponseShape(t *testing.T) {
	for tier := risk.TierNone; tier <= risk.TierAcute; tier++ {
		got := BuildInstruction(tier, NeedCoReflection)
		assert.True(t, strings.HasSuffix(got, responseShapeClause), "tier %d", tier)
		assert.True(t, strings.HasPrefix(got, "あなたは、経験豊富なスクールカウンセラーです。"))
	}
}
