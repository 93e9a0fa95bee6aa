package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/claimwise/internal/db"
)

// SQLiteStore keeps conversations in the conversation_messages table.
type SQLiteStore struct {
	db          *db.DB
	maxMessages int
}

// NewSQLiteStore returns a store on database that keeps at most
// maxMessages messages per user (0 keeps everything).
func NewSQLiteStore(database *db.DB, maxMessages int) *SQLiteStore {
	return &SQLiteStore{db: database, maxMessages: maxMessages}
}

func (s *SQLiteStore) Append(ctx context.Context, userID string, msgs ...Message) error {
	if strings.TrimSpace(userID) == "" {
		return ErrNoUser
	}
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning history transaction: %w", err)
	}
	defer tx.Rollback()

	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM conversation_messages WHERE user_id = ?", userID,
	).Scan(&last); err != nil {
		return fmt.Errorf("reading history sequence: %w", err)
	}
	seq := last.Int64

	for _, m := range msgs {
		seq++
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		meta, err := json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling message metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_messages (id, seq, user_id, role, content, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, seq, userID, string(m.Role), m.Content, string(meta), db.FormatTime(m.CreatedAt),
		); err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
	}

	if s.maxMessages > 0 {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM conversation_messages WHERE user_id = ? AND seq <= ?",
			userID, seq-int64(s.maxMessages),
		); err != nil {
			return fmt.Errorf("trimming history: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) List(ctx context.Context, userID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, metadata, created_at
		FROM conversation_messages WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var (
			m          Message
			role, meta string
			ts         string
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &meta, &ts); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt = db.ParseTime(ts)
		if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
			m.Metadata = nil
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM conversation_messages WHERE user_id = ?", userID)
	if err != nil {
		return false, fmt.Errorf("clearing history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT user_id FROM conversation_messages ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	users := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Close is a no-op; whoever opened the database closes it.
func (s *SQLiteStore) Close() error {
	return nil
}
