package models

import "time"

// QueuedOutboundMessage wraps a locally-authored message while it is being
// driven to the backend. LocalSeq fixes the send order and is distinct from
// the server-assigned sequence number.
type QueuedOutboundMessage struct {
	LocalID    string        `json:"localId" db:"local_id"`
	Message    Message       `json:"message"`
	Status     MessageStatus `json:"status" db:"status"`
	LocalSeq   int64         `json:"localSeq" db:"local_seq"`
	RetryCount int           `json:"retryCount" db:"retry_count"`
	QueuedAt   time.Time     `json:"queuedAt" db:"queued_at"`
	SentAt     *time.Time    `json:"sentAt,omitempty" db:"sent_at"`
	ServerID   string        `json:"serverId,omitempty" db:"server_id"`
	LastError  *string       `json:"lastError,omitempty" db:"last_error"`
}

type OperationKind string

const (
	OpAddReaction    OperationKind = "add_reaction"
	OpRemoveReaction OperationKind = "remove_reaction"
	OpEditMessage    OperationKind = "edit_message"
	OpDeleteMessage  OperationKind = "delete_message"
)

// SyncOperation is one side-effect operation against an existing message.
// Fields are populated per kind: reactions carry UserID and Emoji, edits carry
// NewText and PreviousText, deletes carry only the message id.
type SyncOperation struct {
	Kind         OperationKind `json:"kind" db:"kind"`
	MessageID    string        `json:"messageId" db:"message_id"`
	UserID       string        `json:"userId,omitempty" db:"user_id"`
	Emoji        string        `json:"emoji,omitempty" db:"emoji"`
	NewText      string        `json:"newText,omitempty" db:"new_text"`
	PreviousText string        `json:"previousText,omitempty" db:"previous_text"`
	Timestamp    time.Time     `json:"timestamp" db:"created_at"`
}

// QueuedSyncOperation wraps a SyncOperation with queue bookkeeping.
type QueuedSyncOperation struct {
	OpID          string        `json:"opId" db:"op_id"`
	Operation     SyncOperation `json:"operation"`
	LocalSeq      int64         `json:"localSeq" db:"local_seq"`
	RetryCount    int           `json:"retryCount" db:"retry_count"`
	QueuedAt      time.Time     `json:"queuedAt" db:"queued_at"`
	LastAttemptAt *time.Time    `json:"lastAttemptAt,omitempty" db:"last_attempt_at"`
	LastError     *string       `json:"lastError,omitempty" db:"last_error"`
}
