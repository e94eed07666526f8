package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"livechat-app/internal/models"
)

// OutboundMessage is the send-message wire payload. Field names are the
// widget's wire contract with the backend.
type OutboundMessage struct {
	Shop           string `json:"shop"`
	CustomerID     string `json:"customerId"`
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message"`
	Type           string `json:"type"`
	FileName       string `json:"fileName,omitempty"`
	FileSize       int64  `json:"fileSize,omitempty"`
}

// TransportEvent is one inbound realtime event.
type TransportEvent struct {
	Name    string
	Message *models.ChatMessage
	Typing  *models.TypingEvent
}

// Dialer opens realtime connections. The session dials once per Open
// transition and never retries on its own.
type Dialer interface {
	Connect(ctx context.Context, shop, customerID string) (Conn, error)
}

type Conn interface {
	Send(ctx context.Context, msg OutboundMessage) error
	Events() <-chan TransportEvent
	Close() error
}

// FallbackSender delivers a message when no realtime handle is held.
type FallbackSender interface {
	SendMessage(ctx context.Context, msg OutboundMessage) error
}

// WebsocketDialer dials the chat service's widget endpoint.
type WebsocketDialer struct {
	BaseURL string // e.g. "wss://chat.example.com"
}

func (d *WebsocketDialer) Connect(ctx context.Context, shop, customerID string) (Conn, error) {
	u, err := url.Parse(d.BaseURL + "/ws/widget")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("shop", shop)
	q.Set("customerId", customerID)
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}

	conn := &wsConn{
		ws:     ws,
		events: make(chan TransportEvent, 64),
	}
	go conn.readLoop()
	return conn, nil
}

type wsConn struct {
	ws     *websocket.Conn
	events chan TransportEvent
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (c *wsConn) readLoop() {
	defer close(c.events)
	for {
		var env envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			return
		}

		switch env.Event {
		case models.EventNewMessage:
			var msg models.ChatMessage
			if err := json.Unmarshal(env.Data, &msg); err == nil {
				c.events <- TransportEvent{Name: env.Event, Message: &msg}
			}
		case models.EventTypingIndicator:
			var typing models.TypingEvent
			if err := json.Unmarshal(env.Data, &typing); err == nil {
				c.events <- TransportEvent{Name: env.Event, Typing: &typing}
			}
		case models.EventDisconnect:
			c.events <- TransportEvent{Name: env.Event}
			return
		}
	}
}

func (c *wsConn) Send(ctx context.Context, msg OutboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.ws.WriteJSON(envelope{Event: models.EventSendMessage, Data: data})
}

func (c *wsConn) Events() <-chan TransportEvent {
	return c.events
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

// HTTPFallback posts the message one-shot to the customer messages
// endpoint.
type HTTPFallback struct {
	BaseURL string
	Client  *http.Client
}

func (f *HTTPFallback) SendMessage(ctx context.Context, msg OutboundMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.BaseURL+"/api/customer/messages", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("message endpoint returned %d", resp.StatusCode)
	}
	return nil
}
