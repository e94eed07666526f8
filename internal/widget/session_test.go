package widget

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"livechat-app/internal/models"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   []OutboundMessage
	events chan TransportEvent
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan TransportEvent, 16)}
}

func (c *fakeConn) Send(ctx context.Context, msg OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Events() <-chan TransportEvent { return c.events }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

type fakeDialer struct {
	conn  *fakeConn
	err   error
	dials int
}

func (d *fakeDialer) Connect(ctx context.Context, shop, customerID string) (Conn, error) {
	d.dials++
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

type fakeFallback struct {
	mu   sync.Mutex
	sent []OutboundMessage
}

func (f *fakeFallback) SendMessage(ctx context.Context, msg OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeFallback) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func alwaysOpenSettings() *models.WidgetSettings {
	return models.DefaultWidgetSettings("demo-shop.myshopify.com")
}

func closedSettings() *models.WidgetSettings {
	settings := alwaysOpenSettings()
	settings.WorkingHours = models.WorkingHoursPolicy{
		Enabled:  true,
		Timezone: "UTC",
		Days: map[string]models.DaySchedule{
			"monday": {Enabled: true, Start: "09:00", End: "17:00"},
		},
	}
	return settings
}

// Saturday, well outside the monday-only schedule.
func offHours() time.Time {
	return time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func agentMessage(content string) models.ChatMessage {
	return models.ChatMessage{
		Sender:    models.SenderAgent,
		Type:      models.MessageText,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func TestOpenRejectedOutsideWorkingHours(t *testing.T) {
	dialer := &fakeDialer{conn: newFakeConn()}
	s := NewSession(closedSettings(), "cust_1", dialer, nil, WithClock(offHours))

	err := s.Open(context.Background())
	if !errors.Is(err, ErrOutsideWorkingHours) {
		t.Fatalf("Open error = %v, want ErrOutsideWorkingHours", err)
	}
	if s.State() != StateClosed {
		t.Errorf("state = %v, want closed", s.State())
	}
	if dialer.dials != 0 {
		t.Errorf("dialed %d times, want no connection attempt", dialer.dials)
	}
}

func TestGateRunsOnEveryOpenIncludingFromMinimized(t *testing.T) {
	settings := closedSettings()
	// Monday noon, inside the schedule.
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	dialer := &fakeDialer{conn: newFakeConn()}
	s := NewSession(settings, "cust_1", dialer, nil, WithClock(clock))

	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("first open: %v", err)
	}
	s.Minimize()

	// The clock moves past closing time while minimized.
	mu.Lock()
	now = time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)
	mu.Unlock()

	if err := s.Open(context.Background()); !errors.Is(err, ErrOutsideWorkingHours) {
		t.Fatalf("re-open error = %v, want ErrOutsideWorkingHours", err)
	}
	if s.State() != StateMinimized {
		t.Errorf("state = %v, want minimized (rejected open must not change state)", s.State())
	}
}

func TestOpenAndMinimizedNeverBothTrue(t *testing.T) {
	s := NewSession(alwaysOpenSettings(), "cust_1", &fakeDialer{conn: newFakeConn()}, nil)

	check := func(step string) {
		state := s.State()
		isOpen := state == StateOpen
		isMinimized := state == StateMinimized
		if isOpen && isMinimized {
			t.Fatalf("%s: open and minimized simultaneously", step)
		}
	}

	check("initial")
	s.Open(context.Background())
	check("after open")
	s.Minimize()
	check("after minimize")
	s.Open(context.Background())
	check("after re-open")
	s.Close()
	check("after close")
}

func TestUnreadAccounting(t *testing.T) {
	conn := newFakeConn()
	s := NewSession(alwaysOpenSettings(), "cust_1", &fakeDialer{conn: conn}, nil)

	if err := s.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.Minimize()

	for i := 0; i < 3; i++ {
		conn.events <- TransportEvent{Name: models.EventNewMessage, Message: ptr(agentMessage("hi"))}
	}
	waitFor(t, func() bool { return s.UnreadCount() == 3 })

	if err := s.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := s.UnreadCount(); got != 0 {
		t.Errorf("unread after open = %d, want 0", got)
	}

	// While open, inbound messages are presumed seen.
	conn.events <- TransportEvent{Name: models.EventNewMessage, Message: ptr(agentMessage("still there?"))}
	waitFor(t, func() bool { return len(s.Messages()) == 4 })
	if got := s.UnreadCount(); got != 0 {
		t.Errorf("unread while open = %d, want 0", got)
	}
}

func TestTransportLifecycle(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conn: conn}
	s := NewSession(alwaysOpenSettings(), "cust_1", dialer, nil)

	if err := s.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !s.Connected() {
		t.Fatal("no transport handle after open")
	}

	s.Minimize()
	if !s.Connected() {
		t.Error("minimize dropped the transport handle")
	}

	s.Close()
	if s.Connected() {
		t.Error("transport handle survived close")
	}
	if !conn.closed {
		t.Error("underlying connection not closed")
	}

	// Open while already open never dials twice.
	conn2 := newFakeConn()
	dialer.conn = conn2
	s.Open(context.Background())
	s.Open(context.Background())
	if dialer.dials != 2 {
		t.Errorf("dials = %d, want 2 (one per open-from-closed)", dialer.dials)
	}
}

func TestTranscriptAppendOnlyOrdering(t *testing.T) {
	conn := newFakeConn()
	s := NewSession(alwaysOpenSettings(), "cust_1", &fakeDialer{conn: conn}, nil)
	s.Open(context.Background())

	s.Send(context.Background(), "first", models.MessageText, "", 0)
	conn.events <- TransportEvent{Name: models.EventNewMessage, Message: ptr(agentMessage("second"))}
	waitFor(t, func() bool { return len(s.Messages()) == 2 })
	s.Send(context.Background(), "third", models.MessageText, "", 0)

	got := s.Messages()
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("log length = %d, want %d", len(got), len(want))
	}
	for i, content := range want {
		if got[i].Content != content {
			t.Errorf("log[%d] = %q, want %q", i, got[i].Content, content)
		}
	}
}

func TestSendFallsBackToHTTPWithoutHandle(t *testing.T) {
	fallback := &fakeFallback{}
	dialer := &fakeDialer{err: errors.New("realtime unreachable")}
	s := NewSession(alwaysOpenSettings(), "cust_1", dialer, fallback)

	if err := s.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	s.Send(context.Background(), "Hello", models.MessageText, "", 0)

	// Optimistic append happens regardless of delivery.
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Content != "Hello" {
		t.Fatalf("transcript = %v, want the optimistic entry", msgs)
	}

	waitFor(t, func() bool { return fallback.count() == 1 })
	sent := fallback.sent[0]
	if sent.Message != "Hello" || sent.Type != "text" {
		t.Errorf("fallback payload = %+v, want content Hello type text", sent)
	}
}

func TestTypingIndicatorIsEphemeral(t *testing.T) {
	conn := newFakeConn()
	s := NewSession(alwaysOpenSettings(), "cust_1", &fakeDialer{conn: conn}, nil)
	s.Open(context.Background())

	conn.events <- TransportEvent{Name: models.EventTypingIndicator, Typing: &models.TypingEvent{Typing: true}}
	waitFor(t, func() bool { return s.Typing() })

	conn.events <- TransportEvent{Name: models.EventTypingIndicator, Typing: &models.TypingEvent{Typing: false}}
	waitFor(t, func() bool { return !s.Typing() })

	if len(s.Messages()) != 0 {
		t.Error("typing events must not create transcript entries")
	}

	// A real message clears a pending indicator on its own.
	conn.events <- TransportEvent{Name: models.EventTypingIndicator, Typing: &models.TypingEvent{Typing: true}}
	waitFor(t, func() bool { return s.Typing() })
	conn.events <- TransportEvent{Name: models.EventNewMessage, Message: ptr(agentMessage("here now"))}
	waitFor(t, func() bool { return !s.Typing() && len(s.Messages()) == 1 })
}

func TestCloseKeepsTranscript(t *testing.T) {
	conn := newFakeConn()
	s := NewSession(alwaysOpenSettings(), "cust_1", &fakeDialer{conn: conn}, nil)
	s.Open(context.Background())
	s.Send(context.Background(), "keep me", models.MessageText, "", 0)

	s.Close()
	if len(s.Messages()) != 1 {
		t.Error("close wiped the transcript")
	}
}

func ptr(msg models.ChatMessage) *models.ChatMessage { return &msg }
