package models

// Wire event names shared by the websocket layer and the redis event
// channel. These are the widget's wire contract; renaming them breaks
// deployed embeds.
const (
	EventNewMessage      = "new-message"
	EventTypingIndicator = "typing-indicator"
	EventSendMessage     = "send-message"
	EventDisconnect      = "disconnect"
	EventNewConversation = "new-conversation"
)

// ChatEventsChannel is the redis pub/sub channel carrying chat events to
// dashboard processes.
const ChatEventsChannel = "chat_events"

type ChatEvent struct {
	Event          string       `json:"event"`
	Shop           string       `json:"shop"`
	CustomerID     string       `json:"customer_id"`
	ConversationID string       `json:"conversation_id"`
	Message        *ChatMessage `json:"message,omitempty"`
}

type TypingEvent struct {
	Typing bool `json:"typing"`
}
