package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatsync/internal/models"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func queuedMessage(localID string, seq int64) *models.QueuedOutboundMessage {
	translated := "hola"
	return &models.QueuedOutboundMessage{
		LocalID: localID,
		Message: models.Message{
			ID:             localID,
			SessionID:      "session-1",
			SenderID:       "alice",
			OriginalText:   "hello",
			TranslatedText: &translated,
			OriginalLang:   "en",
			CreatedAt:      time.Now().UTC().Truncate(time.Second),
		},
		Status:   models.MessageStatusPending,
		LocalSeq: seq,
		QueuedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestNewRejectsInvalidPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestOutboundMessageRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	msg := queuedMessage("local-1", 1)
	msg.RetryCount = 2
	lastErr := "connection refused"
	msg.LastError = &lastErr
	require.NoError(t, db.SaveOutboundMessage(ctx, msg))

	list, err := db.ListOutboundMessages(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got := list[0]
	assert.Equal(t, "local-1", got.LocalID)
	assert.Equal(t, "local-1", got.Message.ID)
	assert.Equal(t, "session-1", got.Message.SessionID)
	assert.Equal(t, "alice", got.Message.SenderID)
	assert.Equal(t, "hello", got.Message.OriginalText)
	require.NotNil(t, got.Message.TranslatedText)
	assert.Equal(t, "hola", *got.Message.TranslatedText)
	assert.Equal(t, models.MessageStatusPending, got.Status)
	assert.Equal(t, int64(1), got.LocalSeq)
	assert.Equal(t, 2, got.RetryCount)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "connection refused", *got.LastError)
}

func TestSaveOutboundMessageUpserts(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	msg := queuedMessage("local-1", 1)
	require.NoError(t, db.SaveOutboundMessage(ctx, msg))

	msg.Status = models.MessageStatusSent
	msg.ServerID = "srv-9"
	sentAt := time.Now().UTC().Truncate(time.Second)
	msg.SentAt = &sentAt
	require.NoError(t, db.SaveOutboundMessage(ctx, msg))

	list, err := db.ListOutboundMessages(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.MessageStatusSent, list[0].Status)
	assert.Equal(t, "srv-9", list[0].ServerID)
	require.NotNil(t, list[0].SentAt)
}

func TestListOutboundMessagesOrdersByLocalSeq(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.SaveOutboundMessage(ctx, queuedMessage("local-b", 2)))
	require.NoError(t, db.SaveOutboundMessage(ctx, queuedMessage("local-c", 3)))
	require.NoError(t, db.SaveOutboundMessage(ctx, queuedMessage("local-a", 1)))

	list, err := db.ListOutboundMessages(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "local-a", list[0].LocalID)
	assert.Equal(t, "local-b", list[1].LocalID)
	assert.Equal(t, "local-c", list[2].LocalID)
}

func TestDeleteOutboundMessage(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.SaveOutboundMessage(ctx, queuedMessage("local-1", 1)))
	require.NoError(t, db.DeleteOutboundMessage(ctx, "local-1"))

	list, err := db.ListOutboundMessages(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDeleteOutboundMessageMissingIsNoOp(t *testing.T) {
	db := newTestDatabase(t)
	assert.NoError(t, db.DeleteOutboundMessage(context.Background(), "nope"))
}

func TestSyncOperationRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	attemptAt := time.Now().UTC().Truncate(time.Second)
	lastErr := "rate limited"
	op := &models.QueuedSyncOperation{
		OpID: "op-1",
		Operation: models.SyncOperation{
			Kind:      models.OpAddReaction,
			MessageID: "msg-1",
			UserID:    "alice",
			Emoji:     "👍",
			Timestamp: time.Now().UTC().Truncate(time.Second),
		},
		LocalSeq:      1,
		RetryCount:    1,
		QueuedAt:      time.Now().UTC().Truncate(time.Second),
		LastAttemptAt: &attemptAt,
		LastError:     &lastErr,
	}
	require.NoError(t, db.SaveSyncOperation(ctx, op))

	list, err := db.ListSyncOperations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got := list[0]
	assert.Equal(t, "op-1", got.OpID)
	assert.Equal(t, models.OpAddReaction, got.Operation.Kind)
	assert.Equal(t, "msg-1", got.Operation.MessageID)
	assert.Equal(t, "alice", got.Operation.UserID)
	assert.Equal(t, "👍", got.Operation.Emoji)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.LastAttemptAt)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "rate limited", *got.LastError)
}

func TestListSyncOperationsOrdersByLocalSeq(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	for i, id := range []string{"op-c", "op-a", "op-b"} {
		seqs := []int64{3, 1, 2}
		op := &models.QueuedSyncOperation{
			OpID: id,
			Operation: models.SyncOperation{
				Kind:      models.OpEditMessage,
				MessageID: "msg-1",
				NewText:   "edited",
				Timestamp: time.Now(),
			},
			LocalSeq: seqs[i],
			QueuedAt: time.Now(),
		}
		require.NoError(t, db.SaveSyncOperation(ctx, op))
	}

	list, err := db.ListSyncOperations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "op-a", list[0].OpID)
	assert.Equal(t, "op-b", list[1].OpID)
	assert.Equal(t, "op-c", list[2].OpID)
}

func TestDeleteSyncOperation(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	op := &models.QueuedSyncOperation{
		OpID: "op-1",
		Operation: models.SyncOperation{
			Kind:      models.OpDeleteMessage,
			MessageID: "msg-1",
			Timestamp: time.Now(),
		},
		LocalSeq: 1,
		QueuedAt: time.Now(),
	}
	require.NoError(t, db.SaveSyncOperation(ctx, op))
	require.NoError(t, db.DeleteSyncOperation(ctx, "op-1"))

	list, err := db.ListSyncOperations(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReopenPreservesQueues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "persist.db")

	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, db.SaveOutboundMessage(context.Background(), queuedMessage("local-1", 1)))
	require.NoError(t, db.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	list, err := reopened.ListOutboundMessages(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "local-1", list[0].LocalID)
}
