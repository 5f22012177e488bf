package conversation

import "fmt"

// Transcript roles. These are the only roles a Session transcript carries.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a session transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

var (
	transcriptToChat = map[string]string{
		RoleUser:      ChatRoleUser,
		RoleAssistant: ChatRoleModel,
	}
	chatToTranscript = map[string]string{
		ChatRoleUser:  RoleUser,
		ChatRoleModel: RoleAssistant,
	}
)

// ToChatRole maps a transcript role onto the collaborator vocabulary.
func ToChatRole(role string) (string, error) {
	if mapped, ok := transcriptToChat[role]; ok {
		return mapped, nil
	}
	return "", fmt.Errorf("conversation: unknown transcript role %q", role)
}

// FromChatRole maps a collaborator role back onto the transcript vocabulary.
// System turns have no transcript representation.
func FromChatRole(role string) (string, error) {
	if mapped, ok := chatToTranscript[role]; ok {
		return mapped, nil
	}
	return "", fmt.Errorf("conversation: chat role %q has no transcript role", role)
}

// toChatMessages converts a transcript into collaborator messages.
func toChatMessages(transcript []Message) ([]ChatMessage, error) {
	out := make([]ChatMessage, 0, len(transcript))
	for _, msg := range transcript {
		role, err := ToChatRole(msg.Role)
		if err != nil {
			return nil, err
		}
		out = append(out, ChatMessage{Role: role, Content: msg.Content})
	}
	return out, nil
}

func cloneTranscript(transcript []Message) []Message {
	out := make([]Message, len(transcript), len(transcript)+2)
	copy(out, transcript)
	return out
}
