package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"personahub/pkg/domain"
	"personahub/services/chat/internal/analytics"
	"personahub/services/chat/internal/upstream"
)

// Streamer runs one upstream chat turn, emitting reply fragments.
type Streamer interface {
	Stream(ctx context.Context, req upstream.Request, emit func(upstream.Fragment)) error
}

// Config wires required dependencies for the relay server.
type Config struct {
	Upstream  Streamer
	Analytics *analytics.Publisher
	Logger    *slog.Logger
}

// Server relays browser WebSocket conversations to the upstream chat API.
// Streamed replies are forwarded as chunk frames; the client side is
// responsible for reassembling them.
type Server struct {
	upstream  Streamer
	analytics *analytics.Publisher
	logger    *slog.Logger
	mux       *http.ServeMux
	upgrader  websocket.Upgrader
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		upstream:  cfg.Upstream,
		analytics: cfg.Analytics,
		logger:    logger,
		mux:       http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Personas are embedded on arbitrary sites.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/ws/", s.handleWS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// conversation is the per-connection relay state.
type conversation struct {
	clientID       string
	apiKey         string
	conversationID string
}

// /ws/{clientId}
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimPrefix(r.URL.Path, "/ws/")
	if clientID == "" || strings.Contains(clientID, "/") {
		http.NotFound(w, r)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "client_id", clientID, "err", err)
		return
	}
	defer conn.Close()

	s.logger.Info("chat client connected", "client_id", clientID)
	conv := &conversation{clientID: clientID}
	for {
		var frame domain.ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("chat client dropped", "client_id", clientID, "err", err)
			} else {
				s.logger.Info("chat client disconnected", "client_id", clientID)
			}
			return
		}
		s.handleFrame(r.Context(), conn, conv, frame)
	}
}

func (s *Server) handleFrame(ctx context.Context, conn *websocket.Conn, conv *conversation, frame domain.ClientFrame) {
	if frame.APIKey != "" {
		conv.apiKey = frame.APIKey
	}
	switch {
	case frame.Type == domain.FrameInit:
		// Handshake only carries the key.
	case frame.Reset:
		ended := conv.conversationID
		conv.conversationID = ""
		s.analytics.Publish(ctx, analytics.Event{
			Kind:           analytics.KindReset,
			ClientID:       conv.clientID,
			ConversationID: ended,
		})
	case frame.Query != "":
		if frame.ConversationID != "" {
			conv.conversationID = frame.ConversationID
		}
		s.relayQuery(ctx, conn, conv, frame.Query)
	}
}

func (s *Server) relayQuery(ctx context.Context, conn *websocket.Conn, conv *conversation, query string) {
	if conv.apiKey == "" {
		s.writeError(conn, "no API key configured for this conversation")
		return
	}
	s.analytics.Publish(ctx, analytics.Event{
		Kind:           analytics.KindQuery,
		ClientID:       conv.clientID,
		ConversationID: conv.conversationID,
		Query:          query,
	})

	req := upstream.Request{
		APIKey:         conv.apiKey,
		Query:          query,
		ConversationID: conv.conversationID,
		User:           conv.clientID,
	}
	err := s.upstream.Stream(ctx, req, func(f upstream.Fragment) {
		if f.ConversationID != "" {
			conv.conversationID = f.ConversationID
		}
		if f.Content == "" {
			return
		}
		out := domain.ServerFrame{
			Type:           domain.FrameChunk,
			Content:        f.Content,
			ConversationID: conv.conversationID,
		}
		if werr := conn.WriteJSON(out); werr != nil {
			s.logger.Warn("write chunk failed", "client_id", conv.clientID, "err", werr)
		}
	})
	if err != nil {
		s.logger.Warn("upstream stream failed", "client_id", conv.clientID, "err", err)
		s.analytics.Publish(ctx, analytics.Event{
			Kind:           analytics.KindError,
			ClientID:       conv.clientID,
			ConversationID: conv.conversationID,
		})
		s.writeError(conn, userFacingError(err))
	}
}

func (s *Server) writeError(conn *websocket.Conn, msg string) {
	frame := domain.ServerFrame{Type: domain.FrameError, Content: msg}
	if err := conn.WriteJSON(frame); err != nil {
		s.logger.Warn("write error frame failed", "err", err)
	}
}

func userFacingError(err error) string {
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return "The configured API key was rejected by the chat provider."
		case http.StatusNotFound:
			return "The chat provider endpoint was not found."
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return "The chat service is temporarily unavailable. Please try again."
}
