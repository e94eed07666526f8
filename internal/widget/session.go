package widget

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"livechat-app/internal/availability"
	"livechat-app/internal/models"
)

// State is the widget's visibility state. Minimized differs from Closed in
// one way only: the realtime connection stays alive, so inbound messages
// keep arriving and counting as unread.
type State string

const (
	StateClosed    State = "closed"
	StateOpen      State = "open"
	StateMinimized State = "minimized"
)

// ErrOutsideWorkingHours rejects an open attempt while support is offline.
// The session is left untouched; the embed shows its offline notice.
var ErrOutsideWorkingHours = errors.New("support is outside working hours")

// EventKind enumerates what the rendering layer can observe on a session.
type EventKind string

const (
	EventStateChanged    EventKind = "state-changed"
	EventMessageAppended EventKind = "message-appended"
	EventUnreadChanged   EventKind = "unread-changed"
	EventTypingChanged   EventKind = "typing-changed"
)

type Event struct {
	Kind    EventKind
	State   State
	Message *models.ChatMessage
	Unread  int
	Typing  bool
}

// Session is the state machine behind one embedded widget instance. All
// transitions funnel through it; the rendering layer observes events and
// never flips visibility on its own.
type Session struct {
	cfg      *models.WidgetSettings
	dialer   Dialer
	fallback FallbackSender
	now      func() time.Time
	observer func(Event)

	mu             sync.Mutex
	state          State
	customerID     string
	conversationID string
	conn           Conn
	messages       []models.ChatMessage
	unread         int
	typing         bool
}

type Option func(*Session)

// WithClock overrides the wall clock, used by the working-hours gate.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithObserver registers the rendering layer's event callback. Called
// synchronously under the session lock; observers must not call back in.
func WithObserver(fn func(Event)) Option {
	return func(s *Session) { s.observer = fn }
}

func NewSession(cfg *models.WidgetSettings, customerID string, dialer Dialer, fallback FallbackSender, opts ...Option) *Session {
	s := &Session{
		cfg:        cfg,
		dialer:     dialer,
		fallback:   fallback,
		now:        time.Now,
		state:      StateClosed,
		customerID: customerID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules the auto-open transition when the shop configured one.
func (s *Session) Start(ctx context.Context) {
	if !s.cfg.AutoOpen {
		return
	}
	time.AfterFunc(3*time.Second, func() {
		if err := s.Open(ctx); err != nil {
			log.Printf("[WIDGET] Auto-open skipped: %v", err)
		}
	})
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) CustomerID() string { return s.customerID }

func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

func (s *Session) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

func (s *Session) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// Messages returns a copy of the append-only transcript.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Connected reports whether a realtime handle is held. True while Open or
// Minimized with a live connection, never while Closed.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Open transitions to Open from Closed or Minimized. The working-hours
// gate runs on every call, re-opening from Minimized included. On entry
// the unread counter resets and a connection is established if none is
// held; establishing is idempotent.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateOpen {
		s.mu.Unlock()
		return nil
	}

	if !availability.IsAvailable(s.cfg.WorkingHours, s.now()) {
		s.mu.Unlock()
		return ErrOutsideWorkingHours
	}

	s.state = StateOpen
	if s.unread != 0 {
		s.unread = 0
		s.emitLocked(Event{Kind: EventUnreadChanged, Unread: 0})
	}
	s.emitLocked(Event{Kind: EventStateChanged, State: StateOpen})

	needConnect := s.conn == nil && s.dialer != nil
	s.mu.Unlock()

	if needConnect {
		s.connect(ctx)
	}
	return nil
}

// Close tears the connection down. The transcript survives for the
// lifetime of the session.
func (s *Session) Close() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	if s.state != StateClosed {
		s.state = StateClosed
		s.emitLocked(Event{Kind: EventStateChanged, State: StateClosed})
	}
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			log.Printf("[WIDGET] Close transport: %v", err)
		}
	}
}

// Minimize hides the window but keeps the connection, so messages keep
// flowing into the transcript and the unread badge. No-op unless Open.
func (s *Session) Minimize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return
	}
	s.state = StateMinimized
	s.emitLocked(Event{Kind: EventStateChanged, State: StateMinimized})
}

// Toggle mirrors the launcher button: open when hidden, close when open.
func (s *Session) Toggle(ctx context.Context) error {
	if s.State() == StateOpen {
		s.Close()
		return nil
	}
	return s.Open(ctx)
}

// Send appends the message optimistically, then delivers it over the
// realtime connection or, without one, the HTTP fallback. A delivery
// failure is logged and does not remove the appended message.
func (s *Session) Send(ctx context.Context, content string, msgType models.MessageType, fileName string, fileSize int64) {
	msg := models.ChatMessage{
		Shop:       s.cfg.Shop,
		CustomerID: s.customerID,
		Sender:     models.SenderCustomer,
		Type:       msgType,
		Content:    content,
		FileName:   fileName,
		FileSize:   fileSize,
		Timestamp:  s.now(),
	}
	s.append(msg)

	out := OutboundMessage{
		Shop:           s.cfg.Shop,
		CustomerID:     s.customerID,
		ConversationID: s.ConversationID(),
		Message:        content,
		Type:           string(msgType),
		FileName:       fileName,
		FileSize:       fileSize,
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Send(ctx, out); err != nil {
			log.Printf("[WIDGET] Realtime send failed: %v", err)
		}
		return
	}
	if s.fallback == nil {
		return
	}
	if err := s.fallback.SendMessage(ctx, out); err != nil {
		log.Printf("[WIDGET] Fallback send failed: %v", err)
	}
}

func (s *Session) connect(ctx context.Context) {
	conn, err := s.dialer.Connect(ctx, s.cfg.Shop, s.customerID)
	if err != nil {
		// No retry here; the next Open transition dials again.
		log.Printf("[WIDGET] Realtime connect failed, falling back to HTTP: %v", err)
		return
	}

	s.mu.Lock()
	if s.state == StateClosed {
		// Closed while dialing.
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()

	go s.consume(conn)
}

func (s *Session) consume(conn Conn) {
	for ev := range conn.Events() {
		switch ev.Name {
		case models.EventNewMessage:
			if ev.Message != nil {
				s.handleInbound(*ev.Message)
			}
		case models.EventTypingIndicator:
			if ev.Typing != nil {
				s.setTyping(ev.Typing.Typing)
			}
		case models.EventDisconnect:
			s.dropConn(conn)
			return
		}
	}
	s.dropConn(conn)
}

// dropConn clears the handle when the server side went away. Visibility
// state is untouched and no redial happens until the next Open.
func (s *Session) dropConn(conn Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	conn.Close()
}

func (s *Session) handleInbound(msg models.ChatMessage) {
	s.mu.Lock()
	if s.conversationID == "" && !msg.ConversationID.IsZero() {
		s.conversationID = msg.ConversationID.Hex()
	}
	if s.typing {
		s.typing = false
		s.emitLocked(Event{Kind: EventTypingChanged, Typing: false})
	}
	s.mu.Unlock()

	s.append(msg)
}

func (s *Session) append(msg models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, msg)
	s.emitLocked(Event{Kind: EventMessageAppended, Message: &msg})

	if s.state != StateOpen {
		s.unread++
		s.emitLocked(Event{Kind: EventUnreadChanged, Unread: s.unread})
	}
}

func (s *Session) setTyping(typing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.typing == typing {
		return
	}
	s.typing = typing
	s.emitLocked(Event{Kind: EventTypingChanged, Typing: typing})
}

func (s *Session) emitLocked(ev Event) {
	if s.observer != nil {
		s.observer(ev)
	}
}
