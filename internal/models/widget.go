package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WidgetSettings is the per-shop configuration served to the embeddable
// widget. The widget treats it as immutable; the dashboard edits it.
type WidgetSettings struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Shop     string             `bson:"shop" json:"shop" validate:"required"`
	IsActive bool               `bson:"is_active" json:"is_active"`

	HeaderTitle     string `bson:"header_title" json:"header_title"`
	PrimaryColor    string `bson:"primary_color" json:"primary_color"`
	Position        string `bson:"position" json:"position" validate:"omitempty,oneof=bottom-right bottom-left"`
	WelcomeMessage  string `bson:"welcome_message" json:"welcome_message"`
	PlaceholderText string `bson:"placeholder_text" json:"placeholder_text"`
	ShowAvatar      bool   `bson:"show_avatar" json:"show_avatar"`
	AutoOpen        bool   `bson:"auto_open" json:"auto_open"`

	FileUpload   FileUploadPolicy   `bson:"file_upload" json:"file_upload"`
	WorkingHours WorkingHoursPolicy `bson:"working_hours" json:"working_hours"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

type FileUploadPolicy struct {
	Enabled      bool     `bson:"enabled" json:"enabled"`
	MaxSizeMB    int64    `bson:"max_size_mb" json:"max_size_mb"`
	AllowedTypes []string `bson:"allowed_types" json:"allowed_types"`
}

func (p FileUploadPolicy) AllowsType(contentType string) bool {
	if len(p.AllowedTypes) == 0 {
		return true
	}
	for _, t := range p.AllowedTypes {
		if t == contentType {
			return true
		}
	}
	return false
}

// WorkingHoursPolicy gates live support by local wall-clock time. Day keys
// are lowercase English weekday names ("monday" .. "sunday").
type WorkingHoursPolicy struct {
	Enabled  bool                   `bson:"enabled" json:"enabled"`
	Timezone string                 `bson:"timezone" json:"timezone"`
	Days     map[string]DaySchedule `bson:"days" json:"days"`
}

type DaySchedule struct {
	Enabled bool   `bson:"enabled" json:"enabled"`
	Start   string `bson:"start" json:"start"` // "HH:MM", 24h
	End     string `bson:"end" json:"end"`
}

func DefaultWidgetSettings(shop string) *WidgetSettings {
	return &WidgetSettings{
		Shop:            shop,
		IsActive:        true,
		HeaderTitle:     "Chat with us",
		PrimaryColor:    "#4F46E5",
		Position:        "bottom-right",
		WelcomeMessage:  "Hi there! How can we help you today?",
		PlaceholderText: "Type your message...",
		ShowAvatar:      true,
		FileUpload: FileUploadPolicy{
			Enabled:      true,
			MaxSizeMB:    10,
			AllowedTypes: []string{"image/png", "image/jpeg", "image/gif", "application/pdf"},
		},
	}
}
