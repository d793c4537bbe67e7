package domain

import (
	"context"
	"iter"

	"github.com/google/uuid"
)

// ChatInput is one user message sent to a chat session: text plus an
// optional inline image.
type ChatInput struct {
	Text  string
	Image *ImageRef
}

// ChatTransport opens streaming chat sessions on top of a fixed history
// snapshot. The transport never mutates the history it is given.
type ChatTransport interface {
	StartSession(ctx context.Context, history []Turn) (ChatSession, error)
}

// ChatSession streams the reply to one input. The sequence ends when the
// reply is complete; a non-nil error ends it early.
type ChatSession interface {
	SendStreaming(ctx context.Context, input ChatInput) iter.Seq2[string, error]
}

type WeatherSource interface {
	GetWeather(ctx context.Context, location string) (*WeatherReport, error)
}

type TrainSource interface {
	GetTrains(ctx context.Context, departure, destination string) ([]Train, error)
}

type NewsSource interface {
	GetNews(ctx context.Context, query string) ([]Article, error)
}

// HistoryGateway is the boundary to durable chat history. AppendTurns is
// not idempotent: callers submit a completed turn at most once.
type HistoryGateway interface {
	AppendTurns(ctx context.Context, conversationID uuid.UUID, turns ...Turn) error
	Invalidate(ctx context.Context, conversationID uuid.UUID) error
}
