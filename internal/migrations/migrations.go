package migrations

// Schema revisions are applied in order by the database layer. Each statement
// set must be safe to re-run on an already-migrated database.

const initialSchema = `
CREATE TABLE IF NOT EXISTS outbound_messages (
	local_id        TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL,
	sender_id       TEXT NOT NULL,
	original_text   TEXT NOT NULL,
	translated_text TEXT,
	original_lang   TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL,
	status          TEXT NOT NULL,
	local_seq       INTEGER NOT NULL,
	retry_count     INTEGER NOT NULL DEFAULT 0,
	queued_at       TIMESTAMP NOT NULL,
	sent_at         TIMESTAMP,
	server_id       TEXT,
	last_error      TEXT
);

CREATE INDEX IF NOT EXISTS idx_outbound_status_seq
	ON outbound_messages(status, local_seq);

CREATE TABLE IF NOT EXISTS sync_operations (
	op_id           TEXT PRIMARY KEY,
	kind            TEXT NOT NULL,
	message_id      TEXT NOT NULL,
	user_id         TEXT,
	emoji           TEXT,
	new_text        TEXT,
	previous_text   TEXT,
	op_timestamp    TIMESTAMP NOT NULL,
	local_seq       INTEGER NOT NULL,
	retry_count     INTEGER NOT NULL DEFAULT 0,
	queued_at       TIMESTAMP NOT NULL,
	last_attempt_at TIMESTAMP,
	last_error      TEXT
);

CREATE INDEX IF NOT EXISTS idx_sync_operations_seq
	ON sync_operations(local_seq);
`

// GetInitialSchema returns the initial database schema.
func GetInitialSchema() string {
	return initialSchema
}
