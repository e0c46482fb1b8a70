package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"chatd/internal/assistant"
	"chatd/pkg/types"
)

// ConversationStore is the persistence surface the HTTP layer needs.
type ConversationStore interface {
	ListConversations(ctx context.Context, userID uuid.UUID) ([]types.Conversation, error)
	CreateConversation(ctx context.Context, userID uuid.UUID) (types.Conversation, error)
	Messages(ctx context.Context, userID, convID uuid.UUID) ([]types.Message, error)
	AppendMessage(ctx context.Context, userID, convID uuid.UUID, role types.Role, text string) (types.Message, error)
	AppendMessageWithID(ctx context.Context, userID, convID, msgID uuid.UUID, role types.Role, text string) (types.Message, error)
}

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// Server wires the conversation store and the inference queue into HTTP
// handlers. Replies to POSTed messages are streamed back as SSE.
type Server struct {
	store  ConversationStore
	queue  *assistant.Queue
	budget int
	log    zerolog.Logger

	// ReadyFn gates /readyz. Nil means always ready, which is correct for
	// the normal startup order: the model is loaded before the listener.
	ReadyFn func() bool
}

func NewServer(st ConversationStore, q *assistant.Queue, contextBudget int, log zerolog.Logger) *Server {
	return &Server{store: st, queue: q, budget: contextBudget, log: log}
}

// NewMux builds the chi router for the server.
func NewMux(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", userIDHeader},
	}))
	r.Use(MetricsMiddleware)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", s.handleListConversations)
		r.Post("/", s.handleCreateConversation)
		r.Get("/{id}/messages", s.handleListMessages)
		r.Post("/{id}/messages", s.handleCreateMessage)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.ReadyFn == nil || s.ReadyFn() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	convs, err := s.store.ListConversations(r.Context(), userID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if convs == nil {
		convs = []types.Conversation{}
	}
	writeJSON(w, types.ConversationsResponse{Conversations: convs})
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req types.CreateConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSONError(w, http.StatusBadRequest, "message is required")
		return
	}
	conv, err := s.store.CreateConversation(r.Context(), userID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}
	s.streamReply(w, r, userID, conv.ID, req.Message)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	convID, ok := conversationID(w, r)
	if !ok {
		return
	}
	msgs, err := s.store.Messages(r.Context(), userID, convID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if msgs == nil {
		msgs = []types.Message{}
	}
	writeJSON(w, types.MessagesResponse{Messages: msgs})
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUser(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	convID, ok := conversationID(w, r)
	if !ok {
		return
	}
	var req types.CreateMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSONError(w, http.StatusBadRequest, "text is required")
		return
	}
	s.streamReply(w, r, userID, convID, req.Text)
}

// conversationID parses the {id} route param. A malformed id maps to 404 like
// an unknown one so callers cannot probe which ids exist.
func conversationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "conversation not found")
		return uuid.Nil, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
