package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"livechat-app/internal/models"
	"livechat-app/internal/services"
)

// Hub owns one Room per customer thread. Rooms are keyed "<shop>:<customerID>"
// so a customer's widget connection and any agents watching that thread
// share a broadcast domain.
type Hub struct {
	rooms     map[string]*Room
	mu        sync.RWMutex
	redis     *redis.Client
	chat      *services.ChatService
	saveQueue chan *models.ChatMessage
}

const (
	saveWorkers        = 4
	saveEnqueueTimeout = 2 * time.Second
)

func NewHub(rdb *redis.Client, chat *services.ChatService) *Hub {
	h := &Hub{
		rooms:     make(map[string]*Room),
		redis:     rdb,
		chat:      chat,
		saveQueue: make(chan *models.ChatMessage, 1000),
	}
	for i := 0; i < saveWorkers; i++ {
		go h.saveWorker()
	}
	return h
}

func (h *Hub) saveWorker() {
	for msg := range h.saveQueue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := h.chat.SaveCustomerMessage(ctx, msg); err != nil {
			log.Printf("[HUB] Failed to save message: %v", err)
		}
		cancel()
	}
}

// enqueueSave blocks briefly when the persistence queue is saturated:
// the message was already broadcast, so dropping it immediately would
// leave peers with a message that never reaches the log.
func enqueueSave(queue chan<- *models.ChatMessage, msg *models.ChatMessage, timeout time.Duration) bool {
	select {
	case queue <- msg:
		return true
	case <-time.After(timeout):
		return false
	}
}

func RoomKey(shop, customerID string) string {
	return shop + ":" + customerID
}

// StartEventBridge forwards agent and bot replies published on the chat
// events channel into the sender's widget room. Customer messages are not
// re-broadcast here: connected widgets already saw their own send, and the
// dashboard side consumes the same channel through its reconciler.
func (h *Hub) StartEventBridge(ctx context.Context) {
	go func() {
		pubsub := h.redis.Subscribe(ctx, models.ChatEventsChannel)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case msg := <-ch:
				var event models.ChatEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Printf("[HUB] Bad event payload: %v", err)
					continue
				}
				if event.Event != models.EventNewMessage || event.Message == nil {
					continue
				}
				if event.Message.Sender == models.SenderCustomer {
					continue
				}

				h.mu.RLock()
				room, ok := h.rooms[RoomKey(event.Shop, event.CustomerID)]
				h.mu.RUnlock()
				if !ok {
					continue
				}
				room.Broadcast <- &RoomMessage{
					Data: encodeEvent(models.EventNewMessage, event.Message),
				}
			case <-ctx.Done():
				log.Println("[HUB] Stopping event bridge")
				return
			}
		}
	}()
}

func (h *Hub) GetOrCreateRoom(key string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[key]; ok {
		return room
	}

	ctx, cancel := context.WithCancel(context.Background())
	room := &Room{
		Key:        key,
		Clients:    make(map[string]*Client),
		Broadcast:  make(chan *RoomMessage, 256),
		Register:   make(chan *Client, 16),
		Unregister: make(chan *Client, 16),
		ctx:        ctx,
		cancel:     cancel,
		redis:      h.redis,
	}
	h.rooms[key] = room

	go room.run()

	return room
}

// RoomMessage is a pre-encoded frame plus an optional exclusion set.
type RoomMessage struct {
	Data      []byte
	ExceptIDs map[string]bool
}

type Room struct {
	Key        string
	Clients    map[string]*Client
	mu         sync.RWMutex
	Broadcast  chan *RoomMessage
	Register   chan *Client
	Unregister chan *Client
	ctx        context.Context
	cancel     context.CancelFunc
	redis      *redis.Client
}

func (room *Room) run() {
	for {
		select {
		case <-room.ctx.Done():
			return

		case client := <-room.Register:
			room.mu.Lock()
			room.Clients[client.ID] = client
			room.mu.Unlock()
			room.addPresence(client)

		case client := <-room.Unregister:
			room.mu.Lock()
			if _, ok := room.Clients[client.ID]; ok {
				delete(room.Clients, client.ID)
				close(client.Send)
			}
			room.mu.Unlock()
			room.removePresence(client)

		case message := <-room.Broadcast:
			room.mu.RLock()
			clients := make([]*Client, 0, len(room.Clients))
			for _, client := range room.Clients {
				clients = append(clients, client)
			}
			room.mu.RUnlock()

			for _, client := range clients {
				if message.ExceptIDs != nil && message.ExceptIDs[client.ID] {
					continue
				}
				select {
				case client.Send <- message.Data:
				default:
					log.Printf("[HUB] Client %s send buffer full, disconnecting", client.ID)
					room.Unregister <- client
				}
			}
		}
	}
}

type presenceInfo struct {
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
}

func (room *Room) presenceKey() string {
	return fmt.Sprintf("chat:room:%s:online", room.Key)
}

func (room *Room) addPresence(client *Client) {
	if room.redis == nil {
		return
	}
	ctx := context.Background()
	data, err := json.Marshal(presenceInfo{Role: client.Role, Name: client.Name})
	if err != nil {
		return
	}
	if err := room.redis.HSet(ctx, room.presenceKey(), client.ID, data).Err(); err != nil {
		log.Printf("[HUB] Failed to record presence: %v", err)
		return
	}
	room.redis.Expire(ctx, room.presenceKey(), 24*time.Hour)
}

func (room *Room) removePresence(client *Client) {
	if room.redis == nil {
		return
	}
	if err := room.redis.HDel(context.Background(), room.presenceKey(), client.ID).Err(); err != nil {
		log.Printf("[HUB] Failed to clear presence: %v", err)
	}
}
