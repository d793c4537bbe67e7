package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/dispatchbot/internal/config"
	"github.com/set-night/dispatchbot/internal/domain"
	"github.com/set-night/dispatchbot/internal/repository"
)

// HistoryService stores conversations in Postgres and serves reads through
// a ViewCache. It is the dispatcher's HistoryGateway.
type HistoryService struct {
	db      *pgxpool.Pool
	queries *repository.Queries
	cache   *ViewCache
}

func NewHistoryService(db *pgxpool.Pool, queries *repository.Queries, cache *ViewCache) *HistoryService {
	return &HistoryService{db: db, queries: queries, cache: cache}
}

var _ domain.HistoryGateway = (*HistoryService)(nil)

func (s *HistoryService) LoadUser(ctx context.Context, telegramID int64) (*domain.ChatUser, error) {
	row, err := s.queries.UpsertChatUser(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("upsert chat user: %w", err)
	}
	return &domain.ChatUser{
		TelegramID:           row.TelegramID,
		ActiveConversationID: pgUUIDToPtr(row.ActiveConversationID),
	}, nil
}

// CreateConversation starts an empty conversation titled after the first
// message and makes it the user's active one.
func (s *HistoryService) CreateConversation(ctx context.Context, userID int64, firstText string) (*domain.Conversation, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	q := s.queries.WithTx(tx)
	row, err := q.CreateConversation(ctx, uuid.New(), userID, conversationTitle(firstText))
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	if err := q.SetActiveConversation(ctx, userID, uuidToPgUUID(&row.ID)); err != nil {
		return nil, fmt.Errorf("set active conversation: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	conv := domain.Conversation{
		ID:        row.ID,
		UserID:    row.UserID,
		Title:     row.Title,
		CreatedAt: pgTimestamptzToTime(row.CreatedAt),
		UpdatedAt: pgTimestamptzToTime(row.UpdatedAt),
	}
	s.cache.Set(conv)
	return &conv, nil
}

// GetConversation returns the conversation with all turns, from the cache
// when it is still fresh.
func (s *HistoryService) GetConversation(ctx context.Context, id uuid.UUID, userID int64) (*domain.Conversation, error) {
	if conv, ok := s.cache.Get(id); ok && conv.UserID == userID {
		return &conv, nil
	}
	gen := s.cache.Generation(id)

	row, err := s.queries.GetConversation(ctx, id, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	rows, err := s.queries.GetConversationTurns(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get turns: %w", err)
	}
	turns := make([]domain.Turn, len(rows))
	for i, r := range rows {
		turns[i] = rowToTurn(r)
	}

	conv := domain.Conversation{
		ID:        row.ID,
		UserID:    row.UserID,
		Title:     row.Title,
		Turns:     turns,
		CreatedAt: pgTimestamptzToTime(row.CreatedAt),
		UpdatedAt: pgTimestamptzToTime(row.UpdatedAt),
	}
	if !s.cache.SetIfCurrent(conv, gen) {
		slog.Debug("conversation changed during read, not cached", "conversation_id", id)
	}
	return &conv, nil
}

func (s *HistoryService) ListConversations(ctx context.Context, userID int64, limit, offset int) ([]domain.ConversationSummary, error) {
	rows, err := s.queries.ListConversationsByUser(ctx, userID, int32(limit), int32(offset))
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := make([]domain.ConversationSummary, len(rows))
	for i, r := range rows {
		out[i] = domain.ConversationSummary{
			ID:        r.ID,
			Title:     r.Title,
			TurnCount: int(r.TurnCount),
			UpdatedAt: pgTimestamptzToTime(r.UpdatedAt),
		}
	}
	return out, nil
}

func (s *HistoryService) CountConversations(ctx context.Context, userID int64) (int64, error) {
	return s.queries.CountConversationsByUser(ctx, userID)
}

func (s *HistoryService) SwitchTo(ctx context.Context, userID int64, id uuid.UUID) error {
	if _, err := s.queries.GetConversation(ctx, id, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrConversationNotFound
		}
		return fmt.Errorf("get conversation: %w", err)
	}
	return s.queries.SetActiveConversation(ctx, userID, uuidToPgUUID(&id))
}

// ClearActive detaches the user's active conversation so the next message
// starts a new one.
func (s *HistoryService) ClearActive(ctx context.Context, userID int64) error {
	return s.queries.SetActiveConversation(ctx, userID, uuidToPgUUID(nil))
}

// AppendTurns writes all turns in one transaction, in order, after the
// conversation's current last turn.
func (s *HistoryService) AppendTurns(ctx context.Context, conversationID uuid.UUID, turns ...domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	for _, t := range turns {
		if strings.TrimSpace(t.Text) == "" {
			return fmt.Errorf("%w: %s turn has no text", domain.ErrEmptyAnswer, t.Role)
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	q := s.queries.WithTx(tx)
	if err := q.LockConversation(ctx, conversationID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrConversationNotFound
		}
		return fmt.Errorf("lock conversation: %w", err)
	}

	seq, err := q.NextTurnSeq(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("next turn seq: %w", err)
	}
	for i, t := range turns {
		if err := q.InsertTurn(ctx, turnToParams(conversationID, seq+int32(i), t)); err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
	}
	if err := q.TouchConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.Debug("turns appended", "conversation_id", conversationID, "count", len(turns))
	return nil
}

func (s *HistoryService) Invalidate(_ context.Context, conversationID uuid.UUID) error {
	s.cache.Invalidate(conversationID)
	return nil
}

func conversationTitle(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= config.ConversationTitleLen {
		return text
	}
	return string([]rune(text)[:config.ConversationTitleLen])
}
