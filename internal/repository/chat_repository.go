package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"livechat-app/internal/models"
)

type ChatRepository struct {
	conversationsCol *mongo.Collection
	messagesCol      *mongo.Collection
}

func NewChatRepository(db *mongo.Database) *ChatRepository {
	return &ChatRepository{
		conversationsCol: db.Collection("conversations"),
		messagesCol:      db.Collection("chat_messages"),
	}
}

// Conversations

func (r *ChatRepository) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	conv.ID = primitive.NewObjectID()
	conv.Status = models.StatusOpen
	if conv.Priority == "" {
		conv.Priority = models.PriorityNormal
	}
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = time.Now()
	_, err := r.conversationsCol.InsertOne(ctx, conv)
	return err
}

func (r *ChatRepository) GetConversationByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.conversationsCol.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetActiveConversationByCustomer returns the customer's current
// non-archived conversation, or mongo.ErrNoDocuments.
func (r *ChatRepository) GetActiveConversationByCustomer(ctx context.Context, shop, customerID string) (*models.Conversation, error) {
	filter := bson.M{
		"shop":        shop,
		"customer_id": customerID,
		"status":      bson.M{"$in": []models.ConversationStatus{models.StatusOpen, models.StatusPending}},
	}
	var conv models.Conversation
	err := r.conversationsCol.FindOne(ctx, filter).Decode(&conv)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ChatRepository) GetActiveConversations(ctx context.Context, shop string) ([]models.Conversation, error) {
	filter := bson.M{
		"shop":   shop,
		"status": bson.M{"$in": []models.ConversationStatus{models.StatusOpen, models.StatusPending}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}})
	cursor, err := r.conversationsCol.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var result []models.Conversation
	err = cursor.All(ctx, &result)
	return result, err
}

func (r *ChatRepository) GetAllConversations(ctx context.Context, shop string) ([]models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}})
	cursor, err := r.conversationsCol.Find(ctx, bson.M{"shop": shop}, opts)
	if err != nil {
		return nil, err
	}
	var result []models.Conversation
	err = cursor.All(ctx, &result)
	return result, err
}

func (r *ChatRepository) UpdateConversation(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	fields["updated_at"] = time.Now()
	_, err := r.conversationsCol.UpdateByID(ctx, id, bson.M{"$set": fields})
	return err
}

// TouchLastMessage bumps the conversation summary and, when the message
// came from the customer, its unread counter.
func (r *ChatRepository) TouchLastMessage(ctx context.Context, id primitive.ObjectID, summary string, at time.Time, fromCustomer bool) error {
	update := bson.M{
		"$set": bson.M{
			"last_message":    summary,
			"last_message_at": at,
			"updated_at":      time.Now(),
		},
	}
	if fromCustomer {
		update["$inc"] = bson.M{"unread_count": 1}
	}
	_, err := r.conversationsCol.UpdateByID(ctx, id, update)
	return err
}

func (r *ChatRepository) ResetUnread(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.conversationsCol.UpdateByID(ctx, id, bson.M{"$set": bson.M{"unread_count": 0}})
	return err
}

// ResolveIdleBefore archives open conversations whose last activity is
// older than the cutoff. Returns the number archived.
func (r *ChatRepository) ResolveIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"status":          bson.M{"$in": []models.ConversationStatus{models.StatusOpen, models.StatusPending}},
		"last_message_at": bson.M{"$lt": cutoff},
	}
	res, err := r.conversationsCol.UpdateMany(ctx, filter, bson.M{
		"$set": bson.M{
			"status":     models.StatusResolved,
			"updated_at": time.Now(),
		},
	})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Messages

func (r *ChatRepository) AddMessage(ctx context.Context, msg *models.ChatMessage) error {
	msg.ID = primitive.NewObjectID()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	_, err := r.messagesCol.InsertOne(ctx, msg)
	return err
}

func (r *ChatRepository) GetMessagesByConversation(ctx context.Context, conversationID primitive.ObjectID) ([]models.ChatMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := r.messagesCol.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	var result []models.ChatMessage
	err = cursor.All(ctx, &result)
	return result, err
}
