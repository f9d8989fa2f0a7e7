// Package database persists the outbound message queue and the sync
// operation queue in sqlite so a restart resumes delivery where it stopped.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"chatsync/internal/migrations"
	"chatsync/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(migrations.GetInitialSchema()); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) SaveOutboundMessage(ctx context.Context, m *models.QueuedOutboundMessage) error {
	query := `
		INSERT OR REPLACE INTO outbound_messages (
			local_id, session_id, sender_id, original_text, translated_text,
			original_lang, created_at, status, local_seq, retry_count,
			queued_at, sent_at, server_id, last_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var serverID *string
	if m.ServerID != "" {
		serverID = &m.ServerID
	}

	_, err := d.db.ExecContext(ctx, query,
		m.LocalID,
		m.Message.SessionID,
		m.Message.SenderID,
		m.Message.OriginalText,
		m.Message.TranslatedText,
		m.Message.OriginalLang,
		m.Message.CreatedAt,
		m.Status,
		m.LocalSeq,
		m.RetryCount,
		m.QueuedAt,
		m.SentAt,
		serverID,
		m.LastError,
	)
	if err != nil {
		return fmt.Errorf("failed to save outbound message: %w", err)
	}
	return nil
}

func (d *Database) DeleteOutboundMessage(ctx context.Context, localID string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM outbound_messages WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("failed to delete outbound message: %w", err)
	}
	return nil
}

// ListOutboundMessages returns every queued message ordered by local sequence
// number.
func (d *Database) ListOutboundMessages(ctx context.Context) ([]*models.QueuedOutboundMessage, error) {
	query := `
		SELECT local_id, session_id, sender_id, original_text, translated_text,
		       original_lang, created_at, status, local_seq, retry_count,
		       queued_at, sent_at, server_id, last_error
		FROM outbound_messages
		ORDER BY local_seq
	`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbound messages: %w", err)
	}
	defer rows.Close()

	var out []*models.QueuedOutboundMessage
	for rows.Next() {
		m := &models.QueuedOutboundMessage{}
		var serverID *string
		err := rows.Scan(
			&m.LocalID,
			&m.Message.SessionID,
			&m.Message.SenderID,
			&m.Message.OriginalText,
			&m.Message.TranslatedText,
			&m.Message.OriginalLang,
			&m.Message.CreatedAt,
			&m.Status,
			&m.LocalSeq,
			&m.RetryCount,
			&m.QueuedAt,
			&m.SentAt,
			&serverID,
			&m.LastError,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbound message: %w", err)
		}
		m.Message.ID = m.LocalID
		if serverID != nil {
			m.ServerID = *serverID
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (d *Database) SaveSyncOperation(ctx context.Context, op *models.QueuedSyncOperation) error {
	query := `
		INSERT OR REPLACE INTO sync_operations (
			op_id, kind, message_id, user_id, emoji, new_text, previous_text,
			op_timestamp, local_seq, retry_count, queued_at, last_attempt_at, last_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.ExecContext(ctx, query,
		op.OpID,
		op.Operation.Kind,
		op.Operation.MessageID,
		op.Operation.UserID,
		op.Operation.Emoji,
		op.Operation.NewText,
		op.Operation.PreviousText,
		op.Operation.Timestamp,
		op.LocalSeq,
		op.RetryCount,
		op.QueuedAt,
		op.LastAttemptAt,
		op.LastError,
	)
	if err != nil {
		return fmt.Errorf("failed to save sync operation: %w", err)
	}
	return nil
}

func (d *Database) DeleteSyncOperation(ctx context.Context, opID string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM sync_operations WHERE op_id = ?`, opID)
	if err != nil {
		return fmt.Errorf("failed to delete sync operation: %w", err)
	}
	return nil
}

// ListSyncOperations returns every queued operation ordered by local sequence
// number.
func (d *Database) ListSyncOperations(ctx context.Context) ([]*models.QueuedSyncOperation, error) {
	query := `
		SELECT op_id, kind, message_id, user_id, emoji, new_text, previous_text,
		       op_timestamp, local_seq, retry_count, queued_at, last_attempt_at, last_error
		FROM sync_operations
		ORDER BY local_seq
	`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync operations: %w", err)
	}
	defer rows.Close()

	var out []*models.QueuedSyncOperation
	for rows.Next() {
		op := &models.QueuedSyncOperation{}
		err := rows.Scan(
			&op.OpID,
			&op.Operation.Kind,
			&op.Operation.MessageID,
			&op.Operation.UserID,
			&op.Operation.Emoji,
			&op.Operation.NewText,
			&op.Operation.PreviousText,
			&op.Operation.Timestamp,
			&op.LocalSeq,
			&op.RetryCount,
			&op.QueuedAt,
			&op.LastAttemptAt,
			&op.LastError,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync operation: %w", err)
		}
		out = append(out, op)
	}
	return out, rows.Err()
}
