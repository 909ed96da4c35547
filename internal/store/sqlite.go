package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/fvnks/konecte-chatbridge/internal/models"
)

// SQLiteStore is the single-node durable DataStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chatbridge.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chatbridge.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	// _txlock=immediate makes every transaction take the write lock up
	// front, serializing concurrent appends instead of failing them late.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_key TEXT NOT NULL,
		sender_role TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		body TEXT NOT NULL,
		status TEXT NOT NULL,
		seq INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_conv_seq ON messages(conversation_key, seq);
	CREATE INDEX IF NOT EXISTS idx_messages_conv_created ON messages(conversation_key, created_at);

	CREATE TABLE IF NOT EXISTS outbound_queue (
		id TEXT PRIMARY KEY,
		target_address TEXT NOT NULL,
		origin_user_id TEXT NOT NULL,
		origin_phone TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		claimed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_outbound_target ON outbound_queue(target_address, claimed_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// insertMessageTx appends msg inside tx, assigning id, seq and created_at.
func insertMessageTx(ctx context.Context, tx *sql.Tx, msg *models.Message) (*models.Message, error) {
	stored := *msg
	if stored.ID == "" {
		stored.ID = ulid.Make().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_key = ?
	`, stored.ConversationKey).Scan(&stored.Seq)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_key, sender_role, sender_id, body, status, seq, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, stored.ID, stored.ConversationKey, string(stored.SenderRole), stored.SenderID,
		stored.Text, string(stored.Status), stored.Seq, stored.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// AppendMessage appends a single message to its conversation log.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stored, err := insertMessageTx(ctx, tx, msg)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return stored, nil
}

// AppendWithOutbound appends the message and enqueues its outbound twin in
// one transaction.
func (s *SQLiteStore) AppendWithOutbound(ctx context.Context, msg *models.Message, out *models.PendingOutboundMessage) (*models.Message, *models.PendingOutboundMessage, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	stored, err := insertMessageTx(ctx, tx, msg)
	if err != nil {
		return nil, nil, err
	}

	queued := *out
	if queued.ID == uuid.Nil {
		queued.ID = uuid.New()
	}
	if queued.CreatedAt.IsZero() {
		queued.CreatedAt = stored.CreatedAt
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outbound_queue (id, target_address, origin_user_id, origin_phone, body, created_at, claimed_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL)
	`, queued.ID.String(), queued.TargetChannelAddress, queued.OriginUserID,
		queued.OriginPhone, queued.Text, queued.CreatedAt)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return stored, &queued, nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	msg := &models.Message{}
	var role, status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_key, sender_role, sender_id, body, status, seq, created_at
		FROM messages WHERE id = ?
	`, id).Scan(
		&msg.ID,
		&msg.ConversationKey,
		&role,
		&msg.SenderID,
		&msg.Text,
		&status,
		&msg.Seq,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	msg.SenderRole = models.SenderRole(role)
	msg.Status = models.MessageStatus(status)
	return msg, nil
}

// ListMessages returns the conversation ordered by created_at, then seq.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationKey string, limit int) ([]models.Message, error) {
	query := `
		SELECT id, conversation_key, sender_role, sender_id, body, status, seq, created_at
		FROM messages
		WHERE conversation_key = ?
		ORDER BY created_at ASC, seq ASC
	`
	args := []interface{}{conversationKey}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		var role, status string
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationKey,
			&role,
			&msg.SenderID,
			&msg.Text,
			&status,
			&msg.Seq,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		msg.SenderRole = models.SenderRole(role)
		msg.Status = models.MessageStatus(status)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// UpdateMessageStatus transitions the message's status with a
// compare-and-set UPDATE; losing the race yields ErrConflict.
func (s *SQLiteStore) UpdateMessageStatus(ctx context.Context, id string, from, to models.MessageStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET status = ? WHERE id = ? AND status = ?
	`, string(to), id, string(from))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := s.GetMessage(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// ClaimOutbound atomically marks one queue entry claimed.
func (s *SQLiteStore) ClaimOutbound(ctx context.Context, id uuid.UUID) (*models.PendingOutboundMessage, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbound_queue SET claimed_at = ? WHERE id = ? AND claimed_at IS NULL
	`, now, id.String())
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		entry, err := s.GetOutbound(ctx, id)
		if err != nil {
			return nil, err
		}
		if entry.ClaimedAt != nil {
			return nil, ErrAlreadyClaimed
		}
		return nil, ErrNotFound
	}
	return s.GetOutbound(ctx, id)
}

// ClaimOutboundFor claims every unclaimed entry for the target address in
// one transaction and returns them in enqueue order.
func (s *SQLiteStore) ClaimOutboundFor(ctx context.Context, targetAddress string) ([]models.PendingOutboundMessage, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	rows, err := tx.QueryContext(ctx, `
		SELECT id, target_address, origin_user_id, origin_phone, body, created_at
		FROM outbound_queue
		WHERE target_address = ? AND claimed_at IS NULL
		ORDER BY created_at ASC, id ASC
	`, targetAddress)
	if err != nil {
		return nil, err
	}

	var claimed []models.PendingOutboundMessage
	for rows.Next() {
		var entry models.PendingOutboundMessage
		var idStr string
		err := rows.Scan(
			&idStr,
			&entry.TargetChannelAddress,
			&entry.OriginUserID,
			&entry.OriginPhone,
			&entry.Text,
			&entry.CreatedAt,
		)
		if err != nil {
			rows.Close()
			return nil, err
		}
		entry.ID, err = uuid.Parse(idStr)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ts := now
		entry.ClaimedAt = &ts
		claimed = append(claimed, entry)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE outbound_queue SET claimed_at = ? WHERE target_address = ? AND claimed_at IS NULL
	`, now, targetAddress)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return claimed, nil
}

// GetOutbound retrieves a queue entry by ID.
func (s *SQLiteStore) GetOutbound(ctx context.Context, id uuid.UUID) (*models.PendingOutboundMessage, error) {
	entry := &models.PendingOutboundMessage{}
	var idStr string
	var claimedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, target_address, origin_user_id, origin_phone, body, created_at, claimed_at
		FROM outbound_queue WHERE id = ?
	`, id.String()).Scan(
		&idStr,
		&entry.TargetChannelAddress,
		&entry.OriginUserID,
		&entry.OriginPhone,
		&entry.Text,
		&entry.CreatedAt,
		&claimedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	entry.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	if claimedAt.Valid {
		t := claimedAt.Time
		entry.ClaimedAt = &t
	}
	return entry, nil
}
