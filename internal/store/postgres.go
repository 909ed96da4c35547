package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/fvnks/konecte-chatbridge/internal/models"
)

// PostgresStore is the production DataStore backed by a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// RunMigrations creates the schema on a fresh database.
func RunMigrations(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_key TEXT NOT NULL,
		sender_role TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		body TEXT NOT NULL,
		status TEXT NOT NULL,
		seq BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (conversation_key, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conv_created ON messages(conversation_key, created_at);

	CREATE TABLE IF NOT EXISTS outbound_queue (
		id UUID PRIMARY KEY,
		target_address TEXT NOT NULL,
		origin_user_id TEXT NOT NULL,
		origin_phone TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		claimed_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_outbound_target ON outbound_queue(target_address) WHERE claimed_at IS NULL;
	`

	_, err = conn.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// insertMessagePgTx appends msg inside tx. The advisory xact lock on the
// conversation key serializes concurrent appenders to the same thread;
// it is released automatically at commit or rollback.
func insertMessagePgTx(ctx context.Context, tx pgx.Tx, msg *models.Message) (*models.Message, error) {
	stored := *msg
	if stored.ID == "" {
		stored.ID = ulid.Make().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, stored.ConversationKey); err != nil {
		return nil, err
	}

	err := tx.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_key, sender_role, sender_id, body, status, seq, created_at)
		VALUES ($1, $2, $3, $4, $5, $6,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_key = $2),
			$7)
		RETURNING seq
	`, stored.ID, stored.ConversationKey, string(stored.SenderRole), stored.SenderID,
		stored.Text, string(stored.Status), stored.CreatedAt).Scan(&stored.Seq)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// AppendMessage appends a single message to its conversation log.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	stored, err := insertMessagePgTx(ctx, tx, msg)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return stored, nil
}

// AppendWithOutbound appends the message and enqueues its outbound twin in
// one transaction.
func (s *PostgresStore) AppendWithOutbound(ctx context.Context, msg *models.Message, out *models.PendingOutboundMessage) (*models.Message, *models.PendingOutboundMessage, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	stored, err := insertMessagePgTx(ctx, tx, msg)
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

	_, err = tx.Exec(ctx, `
		INSERT INTO outbound_queue (id, target_address, origin_user_id, origin_phone, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, queued.ID, queued.TargetChannelAddress, queued.OriginUserID,
		queued.OriginPhone, queued.Text, queued.CreatedAt)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return stored, &queued, nil
}

// GetMessage retrieves a message by ID.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	msg := &models.Message{}
	var role, status string
	err := s.pool.QueryRow(ctx, `
		SELECT id, conversation_key, sender_role, sender_id, body, status, seq, created_at
		FROM messages WHERE id = $1
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
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	msg.SenderRole = models.SenderRole(role)
	msg.Status = models.MessageStatus(status)
	return msg, nil
}

// ListMessages returns the conversation ordered by created_at, then seq.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationKey string, limit int) ([]models.Message, error) {
	query := `
		SELECT id, conversation_key, sender_role, sender_id, body, status, seq, created_at
		FROM messages
		WHERE conversation_key = $1
		ORDER BY created_at ASC, seq ASC
	`
	args := []interface{}{conversationKey}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
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
func (s *PostgresStore) UpdateMessageStatus(ctx context.Context, id string, from, to models.MessageStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET status = $1 WHERE id = $2 AND status = $3
	`, string(to), id, string(from))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetMessage(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// ClaimOutbound atomically marks one queue entry claimed.
func (s *PostgresStore) ClaimOutbound(ctx context.Context, id uuid.UUID) (*models.PendingOutboundMessage, error) {
	entry := &models.PendingOutboundMessage{}
	var claimedAt time.Time
	err := s.pool.QueryRow(ctx, `
		UPDATE outbound_queue SET claimed_at = now()
		WHERE id = $1 AND claimed_at IS NULL
		RETURNING id, target_address, origin_user_id, origin_phone, body, created_at, claimed_at
	`, id).Scan(
		&entry.ID,
		&entry.TargetChannelAddress,
		&entry.OriginUserID,
		&entry.OriginPhone,
		&entry.Text,
		&entry.CreatedAt,
		&claimedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			existing, getErr := s.GetOutbound(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			if existing.ClaimedAt != nil {
				return nil, ErrAlreadyClaimed
			}
			return nil, ErrNotFound
		}
		return nil, err
	}
	entry.ClaimedAt = &claimedAt
	return entry, nil
}

// ClaimOutboundFor claims every unclaimed entry for the target address in
// one statement and returns them in enqueue order.
func (s *PostgresStore) ClaimOutboundFor(ctx context.Context, targetAddress string) ([]models.PendingOutboundMessage, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE outbound_queue SET claimed_at = now()
		WHERE target_address = $1 AND claimed_at IS NULL
		RETURNING id, target_address, origin_user_id, origin_phone, body, created_at, claimed_at
	`, targetAddress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claimed []models.PendingOutboundMessage
	for rows.Next() {
		var entry models.PendingOutboundMessage
		var claimedAt time.Time
		err := rows.Scan(
			&entry.ID,
			&entry.TargetChannelAddress,
			&entry.OriginUserID,
			&entry.OriginPhone,
			&entry.Text,
			&entry.CreatedAt,
			&claimedAt,
		)
		if err != nil {
			return nil, err
		}
		entry.ClaimedAt = &claimedAt
		claimed = append(claimed, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// RETURNING order is unspecified; restore enqueue order for the agent.
	sortOutboundByEnqueue(claimed)
	return claimed, nil
}

// GetOutbound retrieves a queue entry by ID.
func (s *PostgresStore) GetOutbound(ctx context.Context, id uuid.UUID) (*models.PendingOutboundMessage, error) {
	entry := &models.PendingOutboundMessage{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, target_address, origin_user_id, origin_phone, body, created_at, claimed_at
		FROM outbound_queue WHERE id = $1
	`, id).Scan(
		&entry.ID,
		&entry.TargetChannelAddress,
		&entry.OriginUserID,
		&entry.OriginPhone,
		&entry.Text,
		&entry.CreatedAt,
		&entry.ClaimedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}
