package conversation

import (
	"fmt"
	"strings"

	"github.com/wolfman30/counsel-room/internal/risk"
)

const counselorPreamble = `あなたは、経験豊富なスクールカウンセラーです。来談者中心療法とマイクロカウンセリングの技法を使います。
【指針】
1. 感情の反射：言葉の裏にある感情を汲み取り、言語化を助けます。
2. 評価しない：良い・悪いという判断をせず、ありのままを受け止めます。
3. 診断や断定はせず、相談者を傷つける可能性のある助言はしません。
現在のリスクレベル：%d（1〜5）`

const escalationClause = `【安全確保】
リスクレベルが4以上です。相談者の安全を最優先にしてください。気持ちを受け止めたうえで、一人で抱え込まずに信頼できる大人や専門機関へ連絡するよう、やさしく促してください。
紹介できる窓口：24時間子供SOSダイヤル（0120-0-78310）、学校のスクールカウンセラー、保健室の先生。`

var needClauses = map[NeedCategory]string{
	NeedListening: `【対応方針：傾聴】
相談者はまず話を聴いてほしいと感じています。助言は控え、気持ちを言い換えて返し、受け止めていることを伝えてください。`,
	NeedSolution: `【対応方針：解決】
相談者は具体的な手立てを求めています。気持ちを受け止めたうえで、今日からできる小さな一歩を一つか二つ提案してください。`,
	NeedCoReflection: `【対応方針：一緒に考える】
相談者は一緒に考えてほしいと感じています。答えを押し付けず、問いかけを通じて選択肢を一緒に探してください。`,
}

const responseShapeClause = `【形式: JSONのみ】
次の形のJSONオブジェクトだけを返してください。
{"analysis": "心理分析", "needs": "相談者が求めている関わり", "reply": "カウンセラーとしての返答"}`

// BuildInstruction composes the system instruction for one turn. An elevated
// tier replaces the need clause with the safety-escalation clause.
func BuildInstruction(tier risk.Tier, need NeedCategory) string {
	parts := []string{fmt.Sprintf(counselorPreamble, int(tier))}
	if tier.Elevated() {
		parts = append(parts, escalationClause)
	} else {
		parts = append(parts, needClauses[need.normalize()])
	}
	parts = append(parts, responseShapeClause)
	return strings.Join(parts, "\n\n")
}
