package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"chatd/internal/assistant"
	"chatd/internal/prompt"
	"chatd/pkg/types"
)

// messagePartRetry is the SSE retry hint attached to streamed fragments.
const messagePartRetry = 100 * time.Millisecond

// sseWriter emits server-sent events on a flushable response.
type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	return &sseWriter{w: w, f: f}, nil
}

// event writes one named event with a JSON payload and flushes it.
func (s *sseWriter) event(name string, retry time.Duration, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if retry > 0 {
		if _, err := fmt.Fprintf(s.w, "retry: %d\n", retry.Milliseconds()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

// streamReply persists the user's message, submits an inference task for the
// updated conversation, and relays the generated reply as SSE. The bot
// message id is fixed up front so every fragment names the message it will
// become; the accumulated text is persisted under that id when the stream
// ends.
func (s *Server) streamReply(w http.ResponseWriter, r *http.Request, userID, convID uuid.UUID, text string) {
	userMsg, err := s.store.AppendMessage(r.Context(), userID, convID, types.RoleUser, text)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	history, err := s.store.Messages(r.Context(), userID, convID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	window, err := prompt.Assemble(history, s.budget)
	if err != nil {
		if prompt.IsBudgetError(err) {
			incrementRejected("context_budget")
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The task lives until the caller goes away or the server shuts down.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	task, chunks, err := assistant.NewTask(ctx, window)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.queue.Submit(ctx, task); err != nil {
		if errors.Is(err, assistant.ErrQueueClosed) {
			incrementRejected("queue_closed")
			writeJSONError(w, http.StatusServiceUnavailable, "server is shutting down")
			return
		}
		// Submit only otherwise fails when the caller gave up while queued.
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log := s.log.With().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("conversation_id", convID.String()).
		Logger()
	start := time.Now()

	if err := sse.event("new_message", 0, userMsg); err != nil {
		return
	}

	botID := uuid.New()
	var botText string
	var genErr error
	for c := range chunks {
		if c.Err != nil {
			genErr = c.Err
			_ = sse.event("error", 0, types.StreamError{
				ConversationID: convID,
				Reason:         c.Err.Error(),
			})
			continue
		}
		botText += c.Text
		if err := sse.event("message_part", messagePartRetry, types.MessagePart{
			ConversationID: convID,
			MessageID:      botID,
			Text:           c.Text,
		}); err != nil {
			// Caller went away mid-stream; the task context will follow.
			cancel()
			for range chunks {
			}
			break
		}
	}

	outcome := "ok"
	switch {
	case ctx.Err() != nil:
		outcome = "disconnected"
	case genErr != nil:
		outcome = "error"
	}

	// Persist what was generated, unless the caller is gone. A partial reply
	// after a mid-generation failure is still part of the conversation.
	if r.Context().Err() == nil && (genErr == nil || botText != "") {
		if _, err := s.store.AppendMessageWithID(r.Context(), userID, convID, botID, types.RoleBot, botText); err != nil {
			log.Error().Err(err).Msg("failed to persist assistant message")
		}
	}
	log.Info().
		Str("outcome", outcome).
		Int("reply_bytes", len(botText)).
		Dur("dur", time.Since(start)).
		Msg("reply stream end")
}
