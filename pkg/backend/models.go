package backend

import "time"

// MessageRecord is the backend's message row. The sequence number is assigned
// by the backend and orders the session globally.
type MessageRecord struct {
	ID             string     `json:"id"`
	SessionID      string     `json:"session_id"`
	SenderID       string     `json:"sender_id"`
	OriginalText   string     `json:"original_text"`
	TranslatedText *string    `json:"translated_text,omitempty"`
	OriginalLang   string     `json:"original_lang"`
	CreatedAt      time.Time  `json:"created_at"`
	Sequence       int64      `json:"sequence"`
	Edited         bool       `json:"edited"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	Deleted        bool       `json:"deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`

	// Populated on bulk reads, where reactions are joined client-side.
	Reactions []ReactionRecord `json:"reactions,omitempty"`
}

// ReactionRecord is one reaction row. Reactions are rows, not embedded
// documents; aggregation per emoji happens client-side.
type ReactionRecord struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// EventType identifies a change-feed event.
type EventType string

const (
	EventMessageInsert  EventType = "message_insert"
	EventMessageUpdate  EventType = "message_update"
	EventReactionInsert EventType = "reaction_insert"
	EventReactionDelete EventType = "reaction_delete"
)

// ChangeEvent is one event on the session's change feed. Exactly one of
// Message or Reaction is set, according to Type.
type ChangeEvent struct {
	Type      EventType       `json:"type"`
	SessionID string          `json:"session_id"`
	Message   *MessageRecord  `json:"message,omitempty"`
	Reaction  *ReactionRecord `json:"reaction,omitempty"`
}

type saveMessageRequest struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	SenderID       string    `json:"sender_id"`
	OriginalText   string    `json:"original_text"`
	TranslatedText *string   `json:"translated_text,omitempty"`
	OriginalLang   string    `json:"original_lang"`
	CreatedAt      time.Time `json:"created_at"`
}

type editMessageRequest struct {
	OriginalText string `json:"original_text"`
}

type addReactionRequest struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	Emoji     string `json:"emoji"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type subscribeRequest struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
}
