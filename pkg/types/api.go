package types

import "github.com/google/uuid"

// CreateConversationRequest starts a new conversation with an initial user message.
type CreateConversationRequest struct {
	// First user message of the conversation.
	Message string `json:"message"`
}

// CreateMessageRequest appends a user message to an existing conversation.
type CreateMessageRequest struct {
	Text string `json:"text"`
}

// ConversationsResponse wraps the list returned by GET /conversations.
type ConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

// MessagesResponse wraps the list returned by GET /conversations/{id}/messages.
type MessagesResponse struct {
	Messages []Message `json:"messages"`
}

// MessagePart is one streamed fragment of the assistant reply, sent as an SSE
// "message_part" event while generation is in progress.
type MessagePart struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
	Text           string    `json:"message_part"`
}

// StreamError is the SSE "error" event payload for a failed generation.
type StreamError struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Reason         string    `json:"reason"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
