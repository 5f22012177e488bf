package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Fixed user-facing strings substituted when a reply cannot be produced.
const (
	GenerationFailureMessage = "エラーが発生しました。時間を置いて再度お試しください。"
	RateLimitedMessage       = "ただいま混み合っています。少し時間を置いてから、もう一度お試しください。"
	ReplyMissingFallback     = "うまく聞き取れませんでした。もう一度教えてもらえますか？"
	ParseFailureFallback     = "ごめんなさい、うまくお返事できませんでした。もう一度話しかけてもらえますか？"
)

var errNoJSONObject = errors.New("conversation: model output contained no JSON object")

// StructuredReply is the decoded model output for one turn.
type StructuredReply struct {
	Analysis string
	Needs    string
	Reply    string
	// HasReply is false when the model omitted the reply field or left it
	// blank; Reply then holds ReplyMissingFallback.
	HasReply bool
}

type structuredReplyJSON struct {
	Analysis *string `json:"analysis"`
	Needs    *string `json:"needs"`
	Reply    *string `json:"reply"`
}

// ParseReply decodes the model's JSON reply. Markdown code fences and text
// around the outermost object are tolerated; anything else is an error.
func ParseReply(raw string) (StructuredReply, error) {
	content := strings.TrimSpace(raw)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return StructuredReply{}, errNoJSONObject
	}

	var decoded structuredReplyJSON
	if err := json.Unmarshal([]byte(content[start:end+1]), &decoded); err != nil {
		return StructuredReply{}, fmt.Errorf("conversation: decode structured reply: %w", err)
	}

	out := StructuredReply{
		Analysis: deref(decoded.Analysis),
		Needs:    deref(decoded.Needs),
		Reply:    ReplyMissingFallback,
	}
	if reply := strings.TrimSpace(deref(decoded.Reply)); reply != "" {
		out.Reply = reply
		out.HasReply = true
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
