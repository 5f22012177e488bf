package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ReflectionMinMessages is the transcript length that must be exceeded before
// a reflection note can be written.
const ReflectionMinMessages = 6

// reflectionTimeout bounds the reflection call, which has no caller-side
// budget of its own.
const reflectionTimeout = 60 * time.Second

// ErrReflectionUnavailable is returned when the transcript is still too short.
var ErrReflectionUnavailable = errors.New("conversation: reflection needs a longer conversation")

const reflectionPrompt = `以下は相談者とカウンセラーの対話履歴です。これを元に、相談者の気持ちを整理する温かいメッセージを作成してください。
相談者を評価したり診断したりせず、話してくれたことへの感謝と、気持ちの整理、これからへのささやかな励ましを含めてください。

対話履歴:
%s`

// ReflectionAvailable reports whether transcript is long enough to reflect on.
func ReflectionAvailable(transcript []Message) bool {
	return len(transcript) > ReflectionMinMessages
}

// Reflector writes the end-of-session note that organizes the student's
// feelings.
type Reflector struct {
	client  LLMClient
	model   string
	timeout time.Duration
}

func NewReflector(client LLMClient, model string) *Reflector {
	return &Reflector{client: client, model: model, timeout: reflectionTimeout}
}

func (r *Reflector) Reflect(ctx context.Context, transcript []Message) (string, error) {
	if !ReflectionAvailable(transcript) {
		return "", ErrReflectionUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.Complete(ctx, LLMRequest{
		Model:       r.model,
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: strings.Replace(reflectionPrompt, "%s", formatTranscript(transcript), 1)}},
		MaxTokens:   1024,
		Temperature: 0.7,
		Purpose:     "reflection",
	})
	if err != nil {
		return "", fmt.Errorf("conversation: reflection failed: %w", err)
	}
	note := strings.TrimSpace(resp.Text)
	if note == "" {
		return "", errors.New("conversation: reflection was empty")
	}
	return note, nil
}

func formatTranscript(transcript []Message) string {
	var b strings.Builder
	for _, msg := range transcript {
		speaker := "相談者"
		if msg.Role == RoleAssistant {
			speaker = "カウンセラー"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, msg.Content)
	}
	return b.String()
}
