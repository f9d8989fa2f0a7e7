package syncengine

import (
	"context"

	"chatsync/internal/models"
	"chatsync/pkg/backend"
)

// QueueStore persists queued outbound messages and sync operations so a
// restart resumes delivery where it stopped.
type QueueStore interface {
	SaveOutboundMessage(ctx context.Context, m *models.QueuedOutboundMessage) error
	DeleteOutboundMessage(ctx context.Context, localID string) error
	ListOutboundMessages(ctx context.Context) ([]*models.QueuedOutboundMessage, error)

	SaveSyncOperation(ctx context.Context, op *models.QueuedSyncOperation) error
	DeleteSyncOperation(ctx context.Context, opID string) error
	ListSyncOperations(ctx context.Context) ([]*models.QueuedSyncOperation, error)
}

// Callbacks are the collaborator hooks exposed to outer layers. All fields are
// optional.
type Callbacks struct {
	// OnDelivered fires once per message after the backend accepts it.
	OnDelivered func(localID string, record *backend.MessageRecord)
	// OnFailed fires when a message exhausts its retry budget.
	OnFailed func(localID string, err error)
	// OnOperationFailed fires when a side-effect operation is dropped after
	// exhausting retries. The optimistic local change is not rolled back.
	OnOperationFailed func(op models.SyncOperation, err error)
	// OnEditAcknowledged fires after the backend accepts an edit, signalling
	// the re-translation pipeline.
	OnEditAcknowledged func(messageID, newText string)
}

// HealthChecker is the probe used by the connectivity monitor.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
