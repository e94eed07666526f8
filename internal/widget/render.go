package widget

import (
	"livechat-app/internal/models"
)

type Alignment string

const (
	AlignRight Alignment = "right" // customer, accent background
	AlignLeft  Alignment = "left"  // agent and bot, neutral background
)

// TranscriptEntry is the view model for one rendered message row.
type TranscriptEntry struct {
	Alignment Alignment
	Accent    bool
	Body      string
	IsFile    bool
	FileURL   string
	FileName  string
	TimeLabel string // localized hour:minute
}

// RenderTranscript maps the message log onto view models, in log order.
func RenderTranscript(messages []models.ChatMessage) []TranscriptEntry {
	entries := make([]TranscriptEntry, 0, len(messages))
	for _, msg := range messages {
		entries = append(entries, renderMessage(msg))
	}
	return entries
}

func renderMessage(msg models.ChatMessage) TranscriptEntry {
	entry := TranscriptEntry{
		TimeLabel: msg.Timestamp.Local().Format("15:04"),
	}

	if msg.Sender == models.SenderCustomer {
		entry.Alignment = AlignRight
		entry.Accent = true
	} else {
		entry.Alignment = AlignLeft
	}

	if msg.Type == models.MessageFile {
		entry.IsFile = true
		entry.FileURL = msg.Content
		entry.FileName = msg.FileName
	} else {
		entry.Body = msg.Content
	}

	return entry
}
