package syncengine

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"chatsync/internal/constants"
	apperrors "chatsync/internal/errors"
	"chatsync/internal/metrics"
	"chatsync/internal/models"
	"chatsync/internal/retry"
	"chatsync/pkg/backend"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// OperationQueue applies the outbound-queue pattern to side-effect operations:
// reactions, edits, and deletes. Operations are applied optimistically to the
// display queue by the caller before they are enqueued here. An operation that
// exhausts its retries is dropped from the queue and logged; the optimistic
// local change is not rolled back.
type OperationQueue struct {
	store     QueueStore
	client    backend.Client
	executor  *retry.Executor
	logger    *apperrors.Logger
	callbacks Callbacks

	mu      sync.Mutex
	items   map[string]*models.QueuedSyncOperation
	nextSeq int64
	runCtx  context.Context

	processing atomic.Bool
	opTimeout  time.Duration
}

func NewOperationQueue(store QueueStore, client backend.Client, executor *retry.Executor, callbacks Callbacks, logger *logrus.Logger) *OperationQueue {
	return &OperationQueue{
		store:     store,
		client:    client,
		executor:  executor,
		logger:    apperrors.WrapLogger(logger),
		callbacks: callbacks,
		items:     make(map[string]*models.QueuedSyncOperation),
		nextSeq:   1,
		runCtx:    context.Background(),
		opTimeout: constants.DefaultOperationTimeout,
	}
}

// BindRunContext sets the context that drives internally-triggered processing
// passes, decoupling them from the enqueueing caller's request context.
func (q *OperationQueue) BindRunContext(ctx context.Context) {
	q.mu.Lock()
	q.runCtx = ctx
	q.mu.Unlock()
}

func (q *OperationQueue) runContext() context.Context {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.runCtx
}

// Restore loads persisted operations after a restart.
func (q *OperationQueue) Restore(ctx context.Context) error {
	items, err := q.store.ListSyncOperations(ctx)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range items {
		q.items[item.OpID] = item
		if item.LocalSeq >= q.nextSeq {
			q.nextSeq = item.LocalSeq + 1
		}
	}
	return nil
}

// Enqueue queues one side-effect operation and triggers processing.
func (q *OperationQueue) Enqueue(ctx context.Context, op models.SyncOperation) (*models.QueuedSyncOperation, error) {
	if op.Timestamp.IsZero() {
		op.Timestamp = time.Now()
	}

	q.mu.Lock()
	item := &models.QueuedSyncOperation{
		OpID:      uuid.NewString(),
		Operation: op,
		LocalSeq:  q.nextSeq,
		QueuedAt:  time.Now(),
	}
	q.nextSeq++
	q.items[item.OpID] = item
	q.mu.Unlock()

	if err := q.store.SaveSyncOperation(ctx, item); err != nil {
		q.logger.LogError(err, "Failed to persist sync operation", logrus.Fields{
			"op_id": item.OpID,
			"kind":  op.Kind,
		})
	}
	metrics.IncrementCounter("sync_ops_enqueued", map[string]string{"kind": string(op.Kind)}, "Side-effect operations queued")

	go q.ProcessQueue(q.runContext())
	return item, nil
}

// Len returns the number of queued operations.
func (q *OperationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *OperationQueue) snapshot() []*models.QueuedSyncOperation {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*models.QueuedSyncOperation, 0, len(q.items))
	for _, item := range q.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocalSeq < out[j].LocalSeq })
	return out
}

// ProcessQueue drives queued operations in local sequence order. Guarded
// against overlapping passes like the outbound queue.
func (q *OperationQueue) ProcessQueue(ctx context.Context) {
	if !q.processing.CompareAndSwap(false, true) {
		return
	}
	defer q.processing.Store(false)

	for _, item := range q.snapshot() {
		if ctx.Err() != nil {
			return
		}
		q.apply(ctx, item)
	}
}

func (q *OperationQueue) apply(ctx context.Context, item *models.QueuedSyncOperation) {
	op := item.Operation

	result := q.executor.Execute(ctx, categoryFor(op.Kind), func(ctx context.Context) error {
		opCtx, cancel := context.WithTimeout(ctx, q.opTimeout)
		defer cancel()
		return q.call(opCtx, op)
	})

	now := time.Now()
	q.mu.Lock()
	item.RetryCount += len(result.Attempts)
	item.LastAttemptAt = &now
	if result.Err != nil {
		errText := result.Err.Error()
		item.LastError = &errText
	}
	q.mu.Unlock()

	if result.Success {
		q.remove(ctx, item)
		metrics.IncrementCounter("sync_ops_applied", map[string]string{"kind": string(op.Kind)}, "Side-effect operations applied to the backend")

		if op.Kind == models.OpEditMessage && q.callbacks.OnEditAcknowledged != nil {
			q.callbacks.OnEditAcknowledged(op.MessageID, op.NewText)
		}
		return
	}

	// Cancellation interrupts the pass; it is not a verdict on the operation.
	// The durable row stays put and the next pass picks it up.
	if result.Cancelled {
		return
	}

	// Circuit-open means the operation was never attempted; keep it queued
	// for a later pass.
	if result.CircuitBreakerTriggered {
		if err := q.store.SaveSyncOperation(ctx, item); err != nil {
			q.logger.LogError(err, "Failed to persist deferred operation", logrus.Fields{"op_id": item.OpID})
		}
		return
	}

	// Terminal failure: drop the operation. The optimistic local change
	// stays in place; the failure is surfaced through the callback and logs.
	q.remove(ctx, item)
	q.logger.LogError(result.Err, "Sync operation dropped after exhausting retries", logrus.Fields{
		"op_id":      item.OpID,
		"kind":       op.Kind,
		"message_id": op.MessageID,
		"attempts":   len(result.Attempts),
	})
	metrics.IncrementCounter("sync_ops_dropped", map[string]string{"kind": string(op.Kind)}, "Side-effect operations dropped after retry exhaustion")

	if q.callbacks.OnOperationFailed != nil {
		q.callbacks.OnOperationFailed(op, result.Err)
	}
}

func (q *OperationQueue) call(ctx context.Context, op models.SyncOperation) error {
	switch op.Kind {
	case models.OpAddReaction:
		return q.client.AddReaction(ctx, op.MessageID, op.UserID, op.Emoji)
	case models.OpRemoveReaction:
		return q.client.RemoveReaction(ctx, op.MessageID, op.UserID, op.Emoji)
	case models.OpEditMessage:
		return q.client.EditMessage(ctx, op.MessageID, op.NewText)
	case models.OpDeleteMessage:
		return q.client.DeleteMessage(ctx, op.MessageID)
	default:
		return apperrors.New(apperrors.ErrCodeInvalidInput, "unknown operation kind").
			WithContext("kind", string(op.Kind))
	}
}

func (q *OperationQueue) remove(ctx context.Context, item *models.QueuedSyncOperation) {
	q.mu.Lock()
	delete(q.items, item.OpID)
	q.mu.Unlock()

	if err := q.store.DeleteSyncOperation(ctx, item.OpID); err != nil {
		q.logger.LogError(err, "Failed to remove operation from store", logrus.Fields{"op_id": item.OpID})
	}
}

func categoryFor(kind models.OperationKind) retry.Category {
	switch kind {
	case models.OpEditMessage:
		return retry.CategoryEdit
	case models.OpDeleteMessage:
		return retry.CategoryDelete
	default:
		return retry.CategoryReaction
	}
}
