// Package tcpserver exposes the question-answering service over a
// request-per-connection TCP protocol: the client sends one JSON object,
// the server replies with one JSON object and closes the connection.
package tcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/parentassist/internal/domain"
)

// Answerer runs the question-answering pipeline.
type Answerer interface {
	Answer(ctx context.Context, question, language string) (domain.Answer, error)
}

// request is the single JSON object a client sends per connection.
type request struct {
	Text           string `json:"text"`
	UserID         string `json:"userId"`
	TargetLanguage string `json:"targetLanguage"`
}

// response is the reply on success.
type response struct {
	Response   string `json:"response"`
	Translated string `json:"translated"`
	Timestamp  string `json:"timestamp"`
}

// errorResponse is the reply on failure.
type errorResponse struct {
	Error string `json:"error"`
}

// Server accepts TCP connections and answers one question per connection.
type Server struct {
	addr        string
	answerer    Answerer
	logger      *zap.Logger
	readTimeout time.Duration
}

// New creates a TCP server listening on addr (e.g. ":3001").
func New(addr string, answerer Answerer, logger *zap.Logger, readTimeout time.Duration) *Server {
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	return &Server{
		addr:        addr,
		answerer:    answerer,
		logger:      logger,
		readTimeout: readTimeout,
	}
}

// ListenAndServe accepts connections until ctx is canceled, then closes the
// listener and waits for in-flight connections to finish.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	s.logger.Info("TCP server listening", zap.String("addr", s.addr))

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			wg.Wait()
			return fmt.Errorf("accept: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}

	wg.Wait()
	return nil
}

// handleConn serves one request/response exchange and closes the connection.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	logger := s.logger.With(zap.String("remote", conn.RemoteAddr().String()))

	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))

	var req request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		logger.Warn("Malformed TCP request", zap.Error(err))
		s.writeReply(conn, errorResponse{Error: "invalid request: expected a JSON object"})
		return
	}

	if req.Text == "" {
		s.writeReply(conn, errorResponse{Error: "text is required"})
		return
	}

	ans, err := s.answerer.Answer(ctx, req.Text, req.TargetLanguage)
	if err != nil {
		logger.Warn("Failed to answer TCP request",
			zap.String("user_id", req.UserID),
			zap.Error(err))
		s.writeReply(conn, errorResponse{Error: safeMessage(err)})
		return
	}

	s.writeReply(conn, response{
		Response:   ans.Answer,
		Translated: ans.Translated,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) writeReply(conn net.Conn, v any) {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := json.NewEncoder(conn).Encode(v); err != nil {
		s.logger.Warn("Failed to write TCP reply", zap.Error(err))
	}
}

// safeMessage maps pipeline errors to client-facing text without exposing internals.
func safeMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "text is required"
	case errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrCompletionFailed):
		return "the assistant is temporarily unavailable, please try again"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "the service is temporarily unavailable, please try again"
	default:
		return "internal error"
	}
}
