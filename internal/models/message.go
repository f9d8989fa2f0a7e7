package models

import (
	"time"
)

type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSending   MessageStatus = "sending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDisplayed MessageStatus = "displayed"
	MessageStatusFailed    MessageStatus = "failed"
)

// statusRank orders delivery states so a message never moves backwards.
// Failed is a retry point, not a terminal rank, so failed -> pending is allowed.
var statusRank = map[MessageStatus]int{
	MessageStatusPending:   0,
	MessageStatusSending:   1,
	MessageStatusFailed:    2,
	MessageStatusSent:      3,
	MessageStatusDisplayed: 4,
}

// CanTransition reports whether a message status may move from current to next.
func CanTransition(current, next MessageStatus) bool {
	if current == next {
		return false
	}
	if current == MessageStatusFailed && next == MessageStatusPending {
		return true
	}
	curRank, ok := statusRank[current]
	if !ok {
		return false
	}
	nextRank, ok := statusRank[next]
	if !ok {
		return false
	}
	return nextRank > curRank
}

// Message is one unit of conversation, owned by its session. Messages are never
// physically removed; deletion clears text and sets the deleted flag.
type Message struct {
	ID             string                       `json:"id"`
	SessionID      string                       `json:"sessionId"`
	SenderID       string                       `json:"senderId"`
	OriginalText   string                       `json:"originalText"`
	TranslatedText *string                      `json:"translatedText,omitempty"`
	OriginalLang   string                       `json:"originalLang"`
	CreatedAt      time.Time                    `json:"createdAt"`
	Sequence       int64                        `json:"sequence"`
	Edited         bool                         `json:"edited"`
	EditedAt       *time.Time                   `json:"editedAt,omitempty"`
	Deleted        bool                         `json:"deleted"`
	DeletedAt      *time.Time                   `json:"deletedAt,omitempty"`
	Reactions      map[string]ReactionAggregate `json:"reactions,omitempty"`
}

// ReactionAggregate is the per-emoji rollup of reaction rows on a message.
// Count always equals len(UserIDs); an aggregate with count zero is deleted,
// never retained empty. HasReacted is derived from UserIDs and is never stored
// independently of it.
type ReactionAggregate struct {
	Emoji      string   `json:"emoji"`
	Count      int      `json:"count"`
	UserIDs    []string `json:"userIds"`
	HasReacted bool     `json:"hasReacted"`
}

// CloneReactions returns a deep copy of a reaction map so that snapshots
// handed to subscribers never alias queue-owned state.
func CloneReactions(reactions map[string]ReactionAggregate) map[string]ReactionAggregate {
	if reactions == nil {
		return nil
	}
	out := make(map[string]ReactionAggregate, len(reactions))
	for emoji, agg := range reactions {
		users := make([]string, len(agg.UserIDs))
		copy(users, agg.UserIDs)
		agg.UserIDs = users
		out[emoji] = agg
	}
	return out
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	m.Reactions = CloneReactions(m.Reactions)
	if m.TranslatedText != nil {
		t := *m.TranslatedText
		m.TranslatedText = &t
	}
	if m.EditedAt != nil {
		t := *m.EditedAt
		m.EditedAt = &t
	}
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		m.DeletedAt = &t
	}
	return m
}

// DisplayMessage is the local projection of a message exposed to presentation
// code. LocalID identifies the message before a server id exists; DisplayOrder
// is assigned once and never reassigned.
type DisplayMessage struct {
	Message

	LocalID      string        `json:"localId"`
	Status       MessageStatus `json:"status"`
	RetryCount   int           `json:"retryCount"`
	DisplayOrder int64         `json:"displayOrder"`
	DeliveredAt  *time.Time    `json:"deliveredAt,omitempty"`
}
