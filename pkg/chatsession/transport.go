package chatsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"personahub/pkg/domain"
)

// State is the connection lifecycle of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshaking
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrNotReady means the session has no open connection to send on.
	ErrNotReady = errors.New("chat session not ready")
	// ErrEmptyQuery means the query was blank after trimming.
	ErrEmptyQuery = errors.New("empty query")
	// ErrNoAPIKey means the persona carries no API key, so no upstream
	// conversation is possible and the session stays inert.
	ErrNoAPIKey = errors.New("persona has no api key")
)

const disconnectNotice = "Connection to the chat service was lost. Please reload to reconnect."

// Session is one client-side chat conversation with a persona: a WebSocket
// to the relay, the transcript, and an aggregator that coalesces streamed
// chunks into complete bot messages.
type Session struct {
	serverURL string
	persona   domain.Persona
	clientID  string
	logger    *slog.Logger
	dialer    *websocket.Dialer
	notify    func(domain.ChatMessage)
	window    time.Duration

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	conversationID string
	messages       []domain.ChatMessage
	agg            *Aggregator
}

type Option func(*Session)

// WithFinalizeWindow overrides how long the aggregator waits after the last
// chunk before emitting the buffered reply.
func WithFinalizeWindow(d time.Duration) Option {
	return func(s *Session) { s.window = d }
}

// WithNotify registers a callback invoked for every message appended to the
// transcript.
func WithNotify(fn func(domain.ChatMessage)) Option {
	return func(s *Session) { s.notify = fn }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(s *Session) { s.dialer = d }
}

func WithClientID(id string) Option {
	return func(s *Session) { s.clientID = id }
}

func New(serverURL string, persona domain.Persona, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		serverURL: serverURL,
		persona:   persona,
		clientID:  uuid.NewString(),
		logger:    logger,
		dialer:    websocket.DefaultDialer,
		window:    defaultFinalizeWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.agg = NewAggregator(s.window, func(content string) {
		s.append(domain.NewChatMessage(domain.SenderBot, content))
	})
	if persona.WelcomeText != "" {
		s.messages = []domain.ChatMessage{domain.NewChatMessage(domain.SenderBot, persona.WelcomeText)}
	}
	return s
}

// Connect dials the relay and performs the init handshake. A persona
// without an API key cannot chat, so the session is left inert.
func (s *Session) Connect(ctx context.Context) error {
	if s.persona.APIKey == "" {
		s.logger.Info("persona has no api key, chat disabled", "unique_id", s.persona.UniqueID)
		return ErrNoAPIKey
	}

	s.mu.Lock()
	if s.state == StateReady || s.state == StateConnecting || s.state == StateHandshaking {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	endpoint, err := s.endpoint()
	if err != nil {
		s.setState(StateDisconnected)
		return err
	}
	conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		s.setState(StateDisconnected)
		return fmt.Errorf("dial chat relay: %w", err)
	}
	s.setState(StateHandshaking)

	init := domain.ClientFrame{Type: domain.FrameInit, APIKey: s.persona.APIKey}
	if err := conn.WriteJSON(init); err != nil {
		conn.Close()
		s.setState(StateDisconnected)
		return fmt.Errorf("send init frame: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.state = StateReady
	s.mu.Unlock()

	go s.readLoop(conn)
	return nil
}

// Send transmits a user query and records it in the transcript.
func (s *Session) Send(query string) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}
	s.mu.Lock()
	if s.state != StateReady || s.conn == nil {
		s.mu.Unlock()
		return ErrNotReady
	}
	frame := domain.ClientFrame{
		Query:          query,
		ConversationID: s.conversationID,
		APIKey:         s.persona.APIKey,
	}
	err := s.conn.WriteJSON(frame)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("send query: %w", err)
	}
	s.append(domain.NewChatMessage(domain.SenderUser, query))
	return nil
}

// Reset clears the conversation back to the welcome message, discards any
// half-aggregated reply and tells the relay to drop upstream state.
func (s *Session) Reset() error {
	s.agg.Reset()

	s.mu.Lock()
	s.conversationID = ""
	s.messages = nil
	if s.persona.WelcomeText != "" {
		s.messages = []domain.ChatMessage{domain.NewChatMessage(domain.SenderBot, s.persona.WelcomeText)}
	}
	conn := s.conn
	ready := s.state == StateReady
	var err error
	if ready && conn != nil {
		err = conn.WriteJSON(domain.ClientFrame{Reset: true, APIKey: s.persona.APIKey})
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("send reset frame: %w", err)
	}
	return nil
}

// Close shuts the connection down cleanly. It is safe to call on an inert
// or already-closed session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	if s.conn == nil {
		return nil
	}
	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]domain.ChatMessage, len(s.messages))
	copy(cp, s.messages)
	return cp
}

func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		var frame domain.ServerFrame
		if err := conn.ReadJSON(&frame); err != nil {
			s.handleDisconnect(err)
			return
		}
		s.handleFrame(frame)
	}
}

func (s *Session) handleFrame(frame domain.ServerFrame) {
	if frame.ConversationID != "" {
		s.mu.Lock()
		s.conversationID = frame.ConversationID
		s.mu.Unlock()
	}
	switch frame.Type {
	case domain.FrameChunk:
		s.agg.Append(frame.Content)
	case domain.FrameMessage:
		s.append(domain.NewChatMessage(domain.SenderBot, frame.Content))
	case domain.FrameError:
		msg := domain.NewChatMessage(domain.SenderBot, frame.Content)
		msg.Error = true
		s.append(msg)
	default:
		s.logger.Warn("unknown frame type", "type", frame.Type)
	}
}

func (s *Session) handleDisconnect(err error) {
	s.mu.Lock()
	closed := s.state == StateClosed
	s.state = StateClosed
	s.conn = nil
	s.mu.Unlock()
	if closed {
		return
	}
	// 1000 and 1001 are deliberate shutdowns, anything else is a fault the
	// user should see.
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.logger.Info("chat connection closed", "reason", err)
		return
	}
	s.logger.Warn("chat connection lost", "error", err)
	msg := domain.NewChatMessage(domain.SenderSystem, disconnectNotice)
	msg.Error = true
	s.append(msg)
}

func (s *Session) append(msg domain.ChatMessage) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	notify := s.notify
	s.mu.Unlock()
	if notify != nil {
		notify(msg)
	}
}

func (s *Session) endpoint() (string, error) {
	u, err := url.Parse(s.serverURL)
	if err != nil {
		return "", fmt.Errorf("parse chat server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported chat server scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + s.clientID
	return u.String(), nil
}
