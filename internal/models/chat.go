package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ConversationStatus string

const (
	StatusOpen     ConversationStatus = "open"
	StatusPending  ConversationStatus = "pending"
	StatusResolved ConversationStatus = "resolved"
	StatusClosed   ConversationStatus = "closed"
)

// Archived reports whether the conversation has left the agent's active list.
func (s ConversationStatus) Archived() bool {
	return s == StatusResolved || s == StatusClosed
}

type ConversationPriority string

const (
	PriorityLow    ConversationPriority = "low"
	PriorityNormal ConversationPriority = "normal"
	PriorityHigh   ConversationPriority = "high"
	PriorityUrgent ConversationPriority = "urgent"
)

type MessageType string

const (
	MessageText MessageType = "text"
	MessageFile MessageType = "file"
)

type SenderRole string

const (
	SenderCustomer SenderRole = "customer"
	SenderAgent    SenderRole = "agent"
	SenderBot      SenderRole = "bot"
)

type Conversation struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Shop       string               `bson:"shop" json:"shop"`
	CustomerID string               `bson:"customer_id" json:"customer_id"`
	Subject    string               `bson:"subject" json:"subject"`
	Status     ConversationStatus   `bson:"status" json:"status"`
	Priority   ConversationPriority `bson:"priority" json:"priority"`
	AgentID    string               `bson:"agent_id,omitempty" json:"agent_id"`

	LastMessage   string    `bson:"last_message" json:"last_message"`
	LastMessageAt time.Time `bson:"last_message_at" json:"last_message_at"`
	UnreadCount   int       `bson:"unread_count" json:"unread_count"`

	Metadata map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

type ChatMessage struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID primitive.ObjectID `bson:"conversation_id" json:"conversation_id"`
	Shop           string             `bson:"shop" json:"shop"`
	CustomerID     string             `bson:"customer_id" json:"customer_id"`
	Sender         SenderRole         `bson:"sender" json:"sender"`
	Type           MessageType        `bson:"type" json:"type"`
	Content        string             `bson:"content" json:"content"`
	FileName       string             `bson:"file_name,omitempty" json:"file_name,omitempty"`
	FileSize       int64              `bson:"file_size,omitempty" json:"file_size,omitempty"`
	Timestamp      time.Time          `bson:"timestamp" json:"timestamp"`
}
