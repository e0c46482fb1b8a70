package prompt

import "chatd/pkg/types"

// Role is a chat role as rendered into the model prompt.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one role-tagged entry of the prompt context. It is built
// from persisted messages and never written back to storage.
type ChatMessage struct {
	Role    Role
	Content string
}

// Assistant reports whether the message is an assistant turn. Exposed as a
// method so chat templates can branch on it.
func (m ChatMessage) Assistant() bool { return m.Role == RoleAssistant }

// FromStored converts a persisted message into its prompt representation.
// The stored "bot" role renders as "assistant", which is what chat templates
// expect.
func FromStored(m types.Message) ChatMessage {
	var role Role
	switch m.Role {
	case types.RoleSystem:
		role = RoleSystem
	case types.RoleBot:
		role = RoleAssistant
	default:
		role = RoleUser
	}
	return ChatMessage{Role: role, Content: m.Text}
}
