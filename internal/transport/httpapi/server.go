// Package httpapi exposes the question-answering service over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/campuskit/parentassist/internal/domain"
)

// Answerer runs the question-answering pipeline.
type Answerer interface {
	Answer(ctx context.Context, question, language string) (domain.Answer, error)
}

// Conversations is the conversation CRUD contract.
type Conversations interface {
	Create(ctx context.Context, title string) (domain.Conversation, error)
	Get(ctx context.Context, id string) (domain.Conversation, error)
	List(ctx context.Context) ([]domain.Conversation, error)
	AppendMessage(ctx context.Context, id string, msg domain.Message) (domain.Conversation, error)
	Delete(ctx context.Context, id string) error
}

// Pinger checks store connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API.
type Server struct {
	answerer      Answerer
	conversations Conversations
	pinger        Pinger
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server.
func NewServer(answerer Answerer, conversations Conversations, pinger Pinger, logger *zap.Logger) *Server {
	s := &Server{
		answerer:      answerer,
		conversations: conversations,
		pinger:        pinger,
		logger:        logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest),
		sentinelHandler(domain.ErrConversationNotFound, http.StatusNotFound),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway),
		sentinelHandler(domain.ErrCompletionFailed, http.StatusBadGateway),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable),
	}
	return s
}

// Register mounts all API routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/ask", s.Ask)
	r.Route("/api/conversations", func(r chi.Router) {
		r.Post("/", s.CreateConversation)
		r.Get("/", s.ListConversations)
		r.Get("/{id}", s.GetConversation)
		r.Post("/{id}/messages", s.AppendMessage)
		r.Delete("/{id}", s.DeleteConversation)
	})
	r.Get("/healthz", s.Health)
}

type askRequest struct {
	Question string `json:"question"`
	Language string `json:"language"`
}

type askResponse struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Translated string `json:"translated"`
}

// Ask handles POST /ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "Question is required")
		return
	}

	ans, err := s.answerer.Answer(r.Context(), req.Question, req.Language)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Question:   ans.Question,
		Answer:     ans.Answer,
		Translated: ans.Translated,
	})
}

type createConversationRequest struct {
	Title string `json:"title"`
}

// CreateConversation handles POST /api/conversations.
func (s *Server) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	conv, err := s.conversations.Create(r.Context(), req.Title)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, conversationToResponse(conv))
}

// ListConversations handles GET /api/conversations.
func (s *Server) ListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.conversations.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]conversationResponse, len(convs))
	for i, c := range convs {
		items[i] = conversationToResponse(c)
	}

	writeJSON(w, http.StatusOK, map[string]any{"conversations": items})
}

// GetConversation handles GET /api/conversations/{id}.
func (s *Server) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.conversations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conversationToResponse(conv))
}

type appendMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AppendMessage handles POST /api/conversations/{id}/messages.
func (s *Server) AppendMessage(w http.ResponseWriter, r *http.Request) {
	var req appendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if !domain.ValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "Role must be user or assistant")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "Content is required")
		return
	}

	conv, err := s.conversations.AppendMessage(r.Context(), chi.URLParam(r, "id"), domain.Message{
		Role:    req.Role,
		Content: req.Content,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conversationToResponse(conv))
}

// DeleteConversation handles DELETE /api/conversations/{id}.
func (s *Server) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.conversations.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(r.Context()); err != nil {
		s.logger.Warn("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, details string) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"details": details,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrConversationNotFound,
		domain.ErrEmbeddingUnavailable,
		domain.ErrCompletionFailed,
		domain.ErrStoreUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

type messageResponse struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type conversationResponse struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Messages  []messageResponse `json:"messages"`
	CreatedAt string            `json:"createdAt"`
}

func conversationToResponse(c domain.Conversation) conversationResponse {
	msgs := make([]messageResponse, len(c.Messages))
	for i, m := range c.Messages {
		msgs[i] = messageResponse{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		}
	}
	return conversationResponse{
		ID:        c.ID,
		Title:     c.Title,
		Messages:  msgs,
		CreatedAt: c.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}
