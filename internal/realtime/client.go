package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"livechat-app/internal/models"
)

const (
	RoleCustomer = "customer"
	RoleAgent    = "agent"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Widgets embed on arbitrary storefront domains.
		return true
	},
}

type Client struct {
	ID         string
	Role       string
	Name       string
	Shop       string
	CustomerID string
	Conn       *websocket.Conn
	Room       *Room
	Send       chan []byte
	hub        *Hub
	ctx        context.Context
	cancel     context.CancelFunc
}

// Envelope is the wire frame for every websocket event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func encodeEvent(event string, v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil
	}
	return frame
}

// SendMessagePayload is the widget's outbound send-message frame.
type SendMessagePayload struct {
	Shop           string `json:"shop"`
	CustomerID     string `json:"customerId"`
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
	Type           string `json:"type"`
	FileName       string `json:"fileName,omitempty"`
	FileSize       int64  `json:"fileSize,omitempty"`
}

// ServeClient upgrades the request and attaches the connection to its
// room. Blocks until the connection drops.
func (h *Hub) ServeClient(w http.ResponseWriter, r *http.Request, role, name, shop, customerID string) error {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		ID:         uuid.New().String(),
		Role:       role,
		Name:       name,
		Shop:       shop,
		CustomerID: customerID,
		Conn:       ws,
		Send:       make(chan []byte, 256),
		hub:        h,
		ctx:        ctx,
		cancel:     cancel,
	}

	room := h.GetOrCreateRoom(RoomKey(shop, customerID))
	client.Room = room
	room.Register <- client

	go client.writePump()
	client.readPump()

	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.Room.Unregister <- c
		c.Conn.Close()
		c.Room.Broadcast <- &RoomMessage{
			Data:      encodeEvent(models.EventDisconnect, map[string]string{"id": c.ID, "role": c.Role}),
			ExceptIDs: map[string]bool{c.ID: true},
		}
	}()

	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var envelope Envelope
		if err := c.Conn.ReadJSON(&envelope); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[HUB] Websocket error: %v", err)
			}
			break
		}
		c.handleEvent(&envelope)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case frame, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("[HUB] Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleEvent(envelope *Envelope) {
	switch envelope.Event {
	case models.EventSendMessage:
		c.handleSendMessage(envelope.Data)
	case models.EventTypingIndicator:
		c.handleTyping(envelope.Data)
	}
}

func (c *Client) handleSendMessage(data json.RawMessage) {
	// Agent replies go through the dashboard REST endpoint; their socket
	// carries only typing and inbound events.
	if c.Role != RoleCustomer {
		return
	}

	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Message == "" {
		return
	}

	msgType := models.MessageType(payload.Type)
	if msgType != models.MessageFile {
		msgType = models.MessageText
	}

	message := &models.ChatMessage{
		Shop:       c.Shop,
		CustomerID: c.CustomerID,
		Sender:     models.SenderCustomer,
		Type:       msgType,
		Content:    payload.Message,
		FileName:   payload.FileName,
		FileSize:   payload.FileSize,
		Timestamp:  time.Now(),
	}

	// Persist asynchronously, broadcast right away.
	if !enqueueSave(c.hub.saveQueue, message, saveEnqueueTimeout) {
		log.Printf("[HUB] Save queue saturated, message lost for room %s: %q",
			RoomKey(c.Shop, c.CustomerID), payload.Message)
	}

	c.Room.Broadcast <- &RoomMessage{
		Data:      encodeEvent(models.EventNewMessage, message),
		ExceptIDs: map[string]bool{c.ID: true},
	}
}

func (c *Client) handleTyping(data json.RawMessage) {
	var typing models.TypingEvent
	if err := json.Unmarshal(data, &typing); err != nil {
		return
	}

	c.Room.Broadcast <- &RoomMessage{
		Data:      encodeEvent(models.EventTypingIndicator, typing),
		ExceptIDs: map[string]bool{c.ID: true},
	}
}
