package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

type ChatUser struct {
	TelegramID           int64
	ActiveConversationID pgtype.UUID
}

type Conversation struct {
	ID        uuid.UUID
	UserID    int64
	Title     string
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

type ConversationSummary struct {
	ID        uuid.UUID
	Title     string
	TurnCount int64
	UpdatedAt pgtype.Timestamptz
}

type Turn struct {
	Seq       int32
	Role      string
	Text      string
	ImagePath *string
	ImageMime *string
}

const upsertChatUser = `
INSERT INTO chat_users (telegram_id) VALUES ($1)
ON CONFLICT (telegram_id) DO UPDATE SET telegram_id = EXCLUDED.telegram_id
RETURNING telegram_id, active_conversation_id`

func (q *Queries) UpsertChatUser(ctx context.Context, telegramID int64) (ChatUser, error) {
	var u ChatUser
	err := q.db.QueryRow(ctx, upsertChatUser, telegramID).Scan(&u.TelegramID, &u.ActiveConversationID)
	return u, err
}

const setActiveConversation = `UPDATE chat_users SET active_conversation_id = $2 WHERE telegram_id = $1`

func (q *Queries) SetActiveConversation(ctx context.Context, telegramID int64, conversationID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, setActiveConversation, telegramID, conversationID)
	return err
}

const createConversation = `
INSERT INTO conversations (id, user_id, title) VALUES ($1, $2, $3)
RETURNING id, user_id, title, created_at, updated_at`

func (q *Queries) CreateConversation(ctx context.Context, id uuid.UUID, userID int64, title string) (Conversation, error) {
	var c Conversation
	err := q.db.QueryRow(ctx, createConversation, id, userID, title).
		Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const getConversation = `
SELECT id, user_id, title, created_at, updated_at FROM conversations
WHERE id = $1 AND user_id = $2`

func (q *Queries) GetConversation(ctx context.Context, id uuid.UUID, userID int64) (Conversation, error) {
	var c Conversation
	err := q.db.QueryRow(ctx, getConversation, id, userID).
		Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const lockConversation = `SELECT id FROM conversations WHERE id = $1 FOR UPDATE`

// LockConversation serializes appends to one conversation for the rest of
// the transaction.
func (q *Queries) LockConversation(ctx context.Context, id uuid.UUID) error {
	var locked uuid.UUID
	return q.db.QueryRow(ctx, lockConversation, id).Scan(&locked)
}

const listConversationsByUser = `
SELECT c.id, c.title, count(t.id), c.updated_at
FROM conversations c
LEFT JOIN turns t ON t.conversation_id = c.id
WHERE c.user_id = $1
GROUP BY c.id
ORDER BY c.updated_at DESC
LIMIT $2 OFFSET $3`

func (q *Queries) ListConversationsByUser(ctx context.Context, userID int64, limit, offset int32) ([]ConversationSummary, error) {
	rows, err := q.db.Query(ctx, listConversationsByUser, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ConversationSummary, error) {
		var s ConversationSummary
		err := row.Scan(&s.ID, &s.Title, &s.TurnCount, &s.UpdatedAt)
		return s, err
	})
}

const countConversationsByUser = `SELECT count(*) FROM conversations WHERE user_id = $1`

func (q *Queries) CountConversationsByUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countConversationsByUser, userID).Scan(&n)
	return n, err
}

const nextTurnSeq = `SELECT coalesce(max(seq), 0) + 1 FROM turns WHERE conversation_id = $1`

func (q *Queries) NextTurnSeq(ctx context.Context, conversationID uuid.UUID) (int32, error) {
	var seq int32
	err := q.db.QueryRow(ctx, nextTurnSeq, conversationID).Scan(&seq)
	return seq, err
}

const insertTurn = `
INSERT INTO turns (conversation_id, seq, role, text, image_path, image_mime)
VALUES ($1, $2, $3, $4, $5, $6)`

type InsertTurnParams struct {
	ConversationID uuid.UUID
	Seq            int32
	Role           string
	Text           string
	ImagePath      *string
	ImageMime      *string
}

func (q *Queries) InsertTurn(ctx context.Context, arg InsertTurnParams) error {
	_, err := q.db.Exec(ctx, insertTurn,
		arg.ConversationID, arg.Seq, arg.Role, arg.Text, arg.ImagePath, arg.ImageMime)
	return err
}

const touchConversation = `UPDATE conversations SET updated_at = now() WHERE id = $1`

func (q *Queries) TouchConversation(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, touchConversation, id)
	return err
}

const getConversationTurns = `
SELECT seq, role, text, image_path, image_mime FROM turns
WHERE conversation_id = $1
ORDER BY seq`

func (q *Queries) GetConversationTurns(ctx context.Context, conversationID uuid.UUID) ([]Turn, error) {
	rows, err := q.db.Query(ctx, getConversationTurns, conversationID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Turn, error) {
		var t Turn
		err := row.Scan(&t.Seq, &t.Role, &t.Text, &t.ImagePath, &t.ImageMime)
		return t, err
	})
}
