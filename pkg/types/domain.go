package types

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a persisted message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleBot    Role = "bot"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleBot:
		return true
	}
	return false
}

// Conversation is a persisted conversation owned by a single user.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title,omitempty"`
}

// Message is a persisted message belonging to a conversation.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           Role      `json:"role"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}
