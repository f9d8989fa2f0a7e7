package syncengine

import (
	"chatsync/internal/models"
	"chatsync/pkg/backend"
)

// recordToMessage converts a backend row into the local model, aggregating
// reaction rows per emoji. The hasReacted flag is left to the display queue,
// which derives it from the user set.
func recordToMessage(rec backend.MessageRecord) models.Message {
	msg := models.Message{
		ID:             rec.ID,
		SessionID:      rec.SessionID,
		SenderID:       rec.SenderID,
		OriginalText:   rec.OriginalText,
		TranslatedText: rec.TranslatedText,
		OriginalLang:   rec.OriginalLang,
		CreatedAt:      rec.CreatedAt,
		Sequence:       rec.Sequence,
		Edited:         rec.Edited,
		EditedAt:       rec.EditedAt,
		Deleted:        rec.Deleted,
		DeletedAt:      rec.DeletedAt,
	}

	if len(rec.Reactions) > 0 {
		msg.Reactions = make(map[string]models.ReactionAggregate)
		for _, row := range rec.Reactions {
			agg := msg.Reactions[row.Emoji]
			agg.Emoji = row.Emoji
			agg.UserIDs = append(agg.UserIDs, row.UserID)
			agg.Count = len(agg.UserIDs)
			msg.Reactions[row.Emoji] = agg
		}
	}

	return msg
}

// messageToRecord converts a locally-authored message into the backend's row
// shape for saving.
func messageToRecord(msg models.Message) *backend.MessageRecord {
	return &backend.MessageRecord{
		ID:             msg.ID,
		SessionID:      msg.SessionID,
		SenderID:       msg.SenderID,
		OriginalText:   msg.OriginalText,
		TranslatedText: msg.TranslatedText,
		OriginalLang:   msg.OriginalLang,
		CreatedAt:      msg.CreatedAt,
	}
}
