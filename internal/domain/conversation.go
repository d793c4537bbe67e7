package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ImageRef describes an uploaded image attached to a user turn.
// InlineData is only populated between upload and the next chat request.
type ImageRef struct {
	Path       string
	MIMEType   string
	InlineData []byte
}

type Turn struct {
	Role       Role
	Text       string
	Attachment *ImageRef
}

func UserTurn(text string, img *ImageRef) Turn {
	return Turn{Role: RoleUser, Text: text, Attachment: img}
}

func ModelTurn(text string) Turn {
	return Turn{Role: RoleModel, Text: text}
}

type Conversation struct {
	ID        uuid.UUID
	UserID    int64
	Title     string
	Turns     []Turn
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConversationSummary is a conversation without its turns, for listings.
type ConversationSummary struct {
	ID        uuid.UUID
	Title     string
	TurnCount int
	UpdatedAt time.Time
}

type ChatUser struct {
	TelegramID           int64
	ActiveConversationID *uuid.UUID
}
