package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"livechat-app/internal/availability"
	"livechat-app/internal/models"
)

type ChatRepository interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversationByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error)
	GetActiveConversationByCustomer(ctx context.Context, shop, customerID string) (*models.Conversation, error)
	GetActiveConversations(ctx context.Context, shop string) ([]models.Conversation, error)
	GetAllConversations(ctx context.Context, shop string) ([]models.Conversation, error)
	UpdateConversation(ctx context.Context, id primitive.ObjectID, fields bson.M) error
	TouchLastMessage(ctx context.Context, id primitive.ObjectID, summary string, at time.Time, fromCustomer bool) error
	ResetUnread(ctx context.Context, id primitive.ObjectID) error
	ResolveIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
	AddMessage(ctx context.Context, msg *models.ChatMessage) error
	GetMessagesByConversation(ctx context.Context, conversationID primitive.ObjectID) ([]models.ChatMessage, error)
}

type AgentDirectory interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Agent, error)
}

type WidgetSettingsSource interface {
	GetByShop(ctx context.Context, shop string) (*models.WidgetSettings, error)
}

type ChatService struct {
	repo     ChatRepository
	agents   AgentDirectory
	widgets  WidgetSettingsSource
	redis    *redis.Client
	notifier *Notifier
}

func NewChatService(repo ChatRepository, agents AgentDirectory, widgets WidgetSettingsSource, rdb *redis.Client, notifier *Notifier) *ChatService {
	return &ChatService{
		repo:     repo,
		agents:   agents,
		widgets:  widgets,
		redis:    rdb,
		notifier: notifier,
	}
}

// SaveCustomerMessage persists an inbound widget message, creating the
// conversation on first contact, then publishes the event and fans out
// notifications.
func (s *ChatService) SaveCustomerMessage(ctx context.Context, msg *models.ChatMessage) (*models.Conversation, error) {
	if msg.Shop == "" || msg.CustomerID == "" {
		return nil, errors.New("shop and customer_id are required")
	}

	conv, err := s.repo.GetActiveConversationByCustomer(ctx, msg.Shop, msg.CustomerID)
	created := false
	if errors.Is(err, mongo.ErrNoDocuments) {
		conv = &models.Conversation{
			Shop:       msg.Shop,
			CustomerID: msg.CustomerID,
			Subject:    subjectFromMessage(msg),
		}
		if err := s.repo.CreateConversation(ctx, conv); err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		created = true
	} else if err != nil {
		return nil, err
	}

	msg.ConversationID = conv.ID
	msg.Sender = models.SenderCustomer
	if err := s.repo.AddMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	if err := s.repo.TouchLastMessage(ctx, conv.ID, messageSummary(msg), msg.Timestamp, true); err != nil {
		log.Printf("[CHAT] Failed to update conversation summary: %v", err)
	}

	if created {
		s.publishEvent(ctx, models.EventNewConversation, conv, nil)
	}
	s.publishEvent(ctx, models.EventNewMessage, conv, msg)

	s.notify(ctx, conv, msg)

	return conv, nil
}

// SaveAgentReply persists an agent message on an existing conversation and
// publishes it to the widget side. Replying flips a pending conversation
// back to open.
func (s *ChatService) SaveAgentReply(ctx context.Context, conversationID primitive.ObjectID, agentID string, msg *models.ChatMessage) (*models.Conversation, error) {
	conv, err := s.repo.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Status.Archived() {
		return nil, errors.New("conversation is archived")
	}

	msg.ConversationID = conv.ID
	msg.Shop = conv.Shop
	msg.CustomerID = conv.CustomerID
	msg.Sender = models.SenderAgent
	if err := s.repo.AddMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save reply: %w", err)
	}

	fields := bson.M{}
	if conv.AgentID == "" {
		fields["agent_id"] = agentID
	}
	if conv.Status == models.StatusPending {
		fields["status"] = models.StatusOpen
	}
	if len(fields) > 0 {
		if err := s.repo.UpdateConversation(ctx, conv.ID, fields); err != nil {
			log.Printf("[CHAT] Failed to update conversation on reply: %v", err)
		}
	}
	if err := s.repo.TouchLastMessage(ctx, conv.ID, messageSummary(msg), msg.Timestamp, false); err != nil {
		log.Printf("[CHAT] Failed to update conversation summary: %v", err)
	}

	s.publishEvent(ctx, models.EventNewMessage, conv, msg)
	return conv, nil
}

func (s *ChatService) GetTranscript(ctx context.Context, shop, customerID string) ([]models.ChatMessage, error) {
	conv, err := s.repo.GetActiveConversationByCustomer(ctx, shop, customerID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []models.ChatMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.repo.GetMessagesByConversation(ctx, conv.ID)
}

func (s *ChatService) GetMessages(ctx context.Context, conversationID primitive.ObjectID) ([]models.ChatMessage, error) {
	return s.repo.GetMessagesByConversation(ctx, conversationID)
}

func (s *ChatService) GetConversation(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	return s.repo.GetConversationByID(ctx, id)
}

func (s *ChatService) ListConversations(ctx context.Context, shop string, includeArchived bool) ([]models.Conversation, error) {
	if includeArchived {
		return s.repo.GetAllConversations(ctx, shop)
	}
	return s.repo.GetActiveConversations(ctx, shop)
}

type ConversationPatch struct {
	Subject  *string                      `json:"subject"`
	Status   *models.ConversationStatus   `json:"status"`
	Priority *models.ConversationPriority `json:"priority"`
	AgentID  *string                      `json:"agent_id"`
}

func (s *ChatService) UpdateConversation(ctx context.Context, id primitive.ObjectID, patch ConversationPatch) error {
	fields := bson.M{}
	if patch.Subject != nil {
		fields["subject"] = *patch.Subject
	}
	if patch.Status != nil {
		switch *patch.Status {
		case models.StatusOpen, models.StatusPending, models.StatusResolved, models.StatusClosed:
			fields["status"] = *patch.Status
		default:
			return fmt.Errorf("unknown status %q", *patch.Status)
		}
	}
	if patch.Priority != nil {
		fields["priority"] = *patch.Priority
	}
	if patch.AgentID != nil {
		fields["agent_id"] = *patch.AgentID
	}
	if len(fields) == 0 {
		return errors.New("nothing to update")
	}
	return s.repo.UpdateConversation(ctx, id, fields)
}

func (s *ChatService) MarkConversationRead(ctx context.Context, id primitive.ObjectID) error {
	return s.repo.ResetUnread(ctx, id)
}

// StartIdleSweeper archives conversations idle past the configured window.
// Runs until the context is cancelled.
func (s *ChatService) StartIdleSweeper(ctx context.Context, idleWindow time.Duration) {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := s.repo.ResolveIdleBefore(ctx, time.Now().Add(-idleWindow))
				if err != nil {
					log.Printf("[SWEEPER] Failed to resolve idle conversations: %v", err)
				} else if n > 0 {
					log.Printf("[SWEEPER] Auto-resolved %d idle conversations", n)
				}
			case <-ctx.Done():
				log.Println("[SWEEPER] Stopping idle sweeper")
				return
			}
		}
	}()
}

func (s *ChatService) publishEvent(ctx context.Context, event string, conv *models.Conversation, msg *models.ChatMessage) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(models.ChatEvent{
		Event:          event,
		Shop:           conv.Shop,
		CustomerID:     conv.CustomerID,
		ConversationID: conv.ID.Hex(),
		Message:        msg,
	})
	if err != nil {
		return
	}
	if err := s.redis.Publish(ctx, models.ChatEventsChannel, payload).Err(); err != nil {
		log.Printf("[CHAT] Failed to publish %s event: %v", event, err)
	}
}

func (s *ChatService) notify(ctx context.Context, conv *models.Conversation, msg *models.ChatMessage) {
	if s.notifier == nil {
		return
	}

	withinHours := true
	if s.widgets != nil {
		if settings, err := s.widgets.GetByShop(ctx, conv.Shop); err == nil {
			withinHours = availability.IsAvailable(settings.WorkingHours, time.Now())
		}
	}

	var agent *models.Agent
	if s.agents != nil && conv.AgentID != "" {
		if agentID, err := primitive.ObjectIDFromHex(conv.AgentID); err == nil {
			agent, _ = s.agents.GetByID(ctx, agentID)
		}
	}

	s.notifier.NotifyCustomerMessage(ctx, conv, msg, agent, withinHours)
}

func subjectFromMessage(msg *models.ChatMessage) string {
	if msg.Type == models.MessageFile {
		return "File from customer"
	}
	subject := msg.Content
	// Truncate on a rune boundary so multi-byte content stays valid UTF-8.
	if runes := []rune(subject); len(runes) > 60 {
		subject = string(runes[:60]) + "..."
	}
	return subject
}

func messageSummary(msg *models.ChatMessage) string {
	if msg.Type == models.MessageFile {
		return "[file] " + msg.FileName
	}
	return msg.Content
}
