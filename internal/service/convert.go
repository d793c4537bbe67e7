package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/set-night/dispatchbot/internal/domain"
	"github.com/set-night/dispatchbot/internal/repository"
)

// pgTimestamptzToTime converts pgtype.Timestamptz to time.Time.
func pgTimestamptzToTime(ts pgtype.Timestamptz) time.Time {
	if ts.Valid {
		return ts.Time
	}
	return time.Time{}
}

// pgUUIDToPtr converts a nullable pgtype.UUID to *uuid.UUID.
func pgUUIDToPtr(id pgtype.UUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	u := uuid.UUID(id.Bytes)
	return &u
}

// uuidToPgUUID converts *uuid.UUID to a nullable pgtype.UUID.
func uuidToPgUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: *id, Valid: true}
}

func rowToTurn(row repository.Turn) domain.Turn {
	t := domain.Turn{Role: domain.Role(row.Role), Text: row.Text}
	if row.ImagePath != nil {
		img := &domain.ImageRef{Path: *row.ImagePath}
		if row.ImageMime != nil {
			img.MIMEType = *row.ImageMime
		}
		t.Attachment = img
	}
	return t
}

// turnToParams drops inline image bytes: only the path is stored.
func turnToParams(conversationID uuid.UUID, seq int32, t domain.Turn) repository.InsertTurnParams {
	p := repository.InsertTurnParams{
		ConversationID: conversationID,
		Seq:            seq,
		Role:           string(t.Role),
		Text:           t.Text,
	}
	if t.Attachment != nil && t.Attachment.Path != "" {
		path, mime := t.Attachment.Path, t.Attachment.MIMEType
		p.ImagePath = &path
		p.ImageMime = &mime
	}
	return p
}
