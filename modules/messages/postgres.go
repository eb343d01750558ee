package messages

import (
	"context"
	"fmt"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createMessagesTable = `
CREATE TABLE IF NOT EXISTS messages (
	id         BIGSERIAL PRIMARY KEY,
	room_id    BIGINT NOT NULL,
	user_id    BIGINT NOT NULL,
	text       VARCHAR(5000) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages (room_id, created_at DESC, id DESC);
`

const insertMessage = `
INSERT INTO messages (room_id, user_id, text)
VALUES ($1, $2, $3)
RETURNING id, created_at`

const selectRecent = `
SELECT id, room_id, user_id, text, created_at
FROM messages
WHERE room_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`

// PostgresStore keeps messages in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store on pool. Call EnsureSchema before use.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the messages table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createMessagesTable); err != nil {
		return fmt.Errorf("failed to create messages schema: %w", err)
	}
	return nil
}

// Append inserts a message row; the database assigns id and timestamp.
func (s *PostgresStore) Append(ctx context.Context, roomID domain.RoomID, userID domain.UserID, text string) (*domain.Message, error) {
	text, err := validateAppend(roomID, userID, text)
	if err != nil {
		return nil, err
	}

	msg := domain.Message{RoomID: roomID, UserID: userID, Text: text}
	if err := s.pool.QueryRow(ctx, insertMessage, int64(roomID), int64(userID), text).
		Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return &msg, nil
}

// Recent returns the newest messages of a room.
func (s *PostgresStore) Recent(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error) {
	limit, err := normalizeLimit(roomID, limit)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, selectRecent, int64(roomID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByPos[MessageRecord])
	if err != nil {
		return nil, fmt.Errorf("failed to scan recent messages: %w", err)
	}

	result := make([]domain.Message, 0, len(records))
	for _, r := range records {
		result = append(result, r.toDomain())
	}
	return result, nil
}

// Ping checks the pool.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
