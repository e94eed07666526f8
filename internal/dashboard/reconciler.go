package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"livechat-app/internal/models"
	"livechat-app/internal/services"
)

// ConversationSource is the backend of record the reconciler reads from
// and writes through. ChatService satisfies it.
type ConversationSource interface {
	ListConversations(ctx context.Context, shop string, includeArchived bool) ([]models.Conversation, error)
	GetConversation(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error)
	UpdateConversation(ctx context.Context, id primitive.ObjectID, patch services.ConversationPatch) error
}

// Reconciler keeps the agent dashboard's in-memory projection of its
// shop's conversations. Push events trigger a refetch of the affected
// record rather than a delta patch; a full refetch wins every conflict.
type Reconciler struct {
	shop   string
	source ConversationSource
	redis  *redis.Client

	mu       sync.Mutex
	records  map[string]models.Conversation
	selected string
}

func NewReconciler(shop string, source ConversationSource, rdb *redis.Client) *Reconciler {
	return &Reconciler{
		shop:    shop,
		source:  source,
		redis:   rdb,
		records: make(map[string]models.Conversation),
	}
}

// Load replaces the whole projection from the backend.
func (r *Reconciler) Load(ctx context.Context) error {
	records, err := r.source.ListConversations(ctx, r.shop, false)
	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[string]models.Conversation, len(records))
	for _, rec := range records {
		r.records[rec.ID.Hex()] = rec
	}
	if _, ok := r.records[r.selected]; !ok {
		r.selected = ""
	}
	return nil
}

func (r *Reconciler) Select(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; ok {
		r.selected = id
	}
}

// View is the merged model the chat UI consumes.
type View struct {
	Chats       []models.Conversation
	Selected    *models.Conversation
	TotalUnread int
}

// ViewModel returns active chats newest-first plus the selection and the
// aggregate unread badge.
func (r *Reconciler) ViewModel() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	view := View{Chats: make([]models.Conversation, 0, len(r.records))}
	for _, rec := range r.records {
		view.Chats = append(view.Chats, rec)
		view.TotalUnread += rec.UnreadCount
	}
	sort.Slice(view.Chats, func(i, j int) bool {
		return view.Chats[i].LastMessageAt.After(view.Chats[j].LastMessageAt)
	})

	if rec, ok := r.records[r.selected]; ok {
		selected := rec
		view.Selected = &selected
	}
	return view
}

// EditSubject applies the rename locally first, then persists it. A failed
// persist surfaces the error but leaves the optimistic edit in place; the
// next refetch of that record overwrites it with the backend's truth.
func (r *Reconciler) EditSubject(ctx context.Context, id, subject string) error {
	r.mu.Lock()
	rec, ok := r.records[id]
	if ok {
		rec.Subject = subject
		r.records[id] = rec
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown conversation %s", id)
	}

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	if err := r.source.UpdateConversation(ctx, objectID, services.ConversationPatch{Subject: &subject}); err != nil {
		return fmt.Errorf("persist subject: %w", err)
	}
	return nil
}

// Refetch pulls one record from the backend and merges it in. Archived
// records leave the active projection.
func (r *Reconciler) Refetch(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	rec, err := r.source.GetConversation(ctx, objectID)
	if err != nil {
		return fmt.Errorf("refetch conversation %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.Status.Archived() {
		delete(r.records, id)
		if r.selected == id {
			r.selected = ""
		}
		return nil
	}
	r.records[id] = *rec
	return nil
}

// Start consumes push events for this shop until the context ends.
func (r *Reconciler) Start(ctx context.Context) {
	go func() {
		pubsub := r.redis.Subscribe(ctx, models.ChatEventsChannel)
		defer pubsub.Close()

		log.Printf("[DASHBOARD] Subscribed to %s for shop %s", models.ChatEventsChannel, r.shop)

		ch := pubsub.Channel()
		for {
			select {
			case msg := <-ch:
				var event models.ChatEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Printf("[DASHBOARD] Bad event payload: %v", err)
					continue
				}
				r.HandleEvent(ctx, event)
			case <-ctx.Done():
				log.Println("[DASHBOARD] Stopping reconciler")
				return
			}
		}
	}()
}

// HandleEvent reacts to one push event. Anything touching a conversation
// is answered with a refetch of that conversation.
func (r *Reconciler) HandleEvent(ctx context.Context, event models.ChatEvent) {
	if event.Shop != r.shop {
		return
	}
	switch event.Event {
	case models.EventNewMessage, models.EventNewConversation:
		if err := r.Refetch(ctx, event.ConversationID); err != nil {
			log.Printf("[DASHBOARD] Refetch failed: %v", err)
		}
	}
}
