package syncengine

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"chatsync/internal/constants"
	"chatsync/internal/display"
	apperrors "chatsync/internal/errors"
	"chatsync/internal/metrics"
	"chatsync/internal/models"
	"chatsync/internal/retry"
	"chatsync/pkg/backend"

	"github.com/sirupsen/logrus"
)

// OutboundQueue makes locally-authored messages durable against connectivity
// loss and drives them to the backend in original send order. Send order
// follows the local sequence number: a message is not sent before its
// predecessor has at least been attempted, but a predecessor's failure does
// not block it. Each in-order handoff uses an explicit per-message completion
// signal rather than polling.
type OutboundQueue struct {
	store     QueueStore
	client    backend.Client
	executor  *retry.Executor
	displayq  *display.Queue
	logger    *apperrors.Logger
	callbacks Callbacks

	mu      sync.Mutex
	items   map[string]*models.QueuedOutboundMessage
	nextSeq int64
	runCtx  context.Context

	processing  atomic.Bool
	connected   atomic.Bool
	sendTimeout time.Duration
	graceDelay  time.Duration
}

// NewOutboundQueue creates the queue. graceDelay is how long a sent message
// lingers before removal, allowing delivery-confirmation UI.
func NewOutboundQueue(store QueueStore, client backend.Client, executor *retry.Executor, displayq *display.Queue, graceDelay time.Duration, callbacks Callbacks, logger *logrus.Logger) *OutboundQueue {
	if graceDelay <= 0 {
		graceDelay = constants.DefaultSentRetention
	}
	return &OutboundQueue{
		store:       store,
		client:      client,
		executor:    executor,
		displayq:    displayq,
		logger:      apperrors.WrapLogger(logger),
		callbacks:   callbacks,
		items:       make(map[string]*models.QueuedOutboundMessage),
		nextSeq:     1,
		runCtx:      context.Background(),
		sendTimeout: constants.DefaultSendTimeout,
		graceDelay:  graceDelay,
	}
}

// BindRunContext sets the context that drives internally-triggered processing
// passes. API callers' contexts end with their requests; background delivery
// must outlive them.
func (q *OutboundQueue) BindRunContext(ctx context.Context) {
	q.mu.Lock()
	q.runCtx = ctx
	q.mu.Unlock()
}

func (q *OutboundQueue) runContext() context.Context {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.runCtx
}

// Restore loads persisted queue state after a restart. Messages caught
// mid-send are reset to pending so they are re-attempted.
func (q *OutboundQueue) Restore(ctx context.Context) error {
	items, err := q.store.ListOutboundMessages(ctx)
	if err != nil {
		return err
	}

	q.mu.Lock()
	for _, item := range items {
		if item.Status == models.MessageStatusSending {
			item.Status = models.MessageStatusPending
		}
		q.items[item.LocalID] = item
		if item.LocalSeq >= q.nextSeq {
			q.nextSeq = item.LocalSeq + 1
		}
	}
	q.mu.Unlock()

	// Restored messages must be visible again; delivery updates their status
	// through the display queue by id.
	for _, item := range items {
		q.displayq.Add(item.Message, item.Status)
		if item.RetryCount > 0 {
			q.displayq.SetRetryCount(item.LocalID, item.RetryCount)
		}
	}

	if len(items) > 0 {
		q.logger.WithFields(logrus.Fields{
			"restored": len(items),
		}).Info("Restored outbound queue from store")
	}
	return nil
}

// SetConnected records connectivity state. A transition to connected triggers
// queue processing.
func (q *OutboundQueue) SetConnected(connected bool) {
	was := q.connected.Swap(connected)
	if connected && !was {
		go q.ProcessQueue(q.runContext())
	}
}

// Enqueue stores a message as pending under the next local sequence number
// and, if currently connected, triggers queue processing.
func (q *OutboundQueue) Enqueue(ctx context.Context, msg models.Message) (*models.QueuedOutboundMessage, error) {
	q.mu.Lock()
	item := &models.QueuedOutboundMessage{
		LocalID:  msg.ID,
		Message:  msg.Clone(),
		Status:   models.MessageStatusPending,
		LocalSeq: q.nextSeq,
		QueuedAt: time.Now(),
	}
	q.nextSeq++
	q.items[item.LocalID] = item
	q.mu.Unlock()

	if err := q.store.SaveOutboundMessage(ctx, item); err != nil {
		q.logger.LogError(err, "Failed to persist queued message", logrus.Fields{
			"local_id": item.LocalID,
		})
	}
	metrics.IncrementCounter("outbound_enqueued", nil, "Messages placed on the outbound queue")

	if q.connected.Load() {
		go q.ProcessQueue(q.runContext())
	}
	return item, nil
}

// RetryMessage moves a failed message back to pending and triggers
// processing. Unknown ids are ignored.
func (q *OutboundQueue) RetryMessage(ctx context.Context, localID string) {
	q.mu.Lock()
	item, ok := q.items[localID]
	if !ok || item.Status != models.MessageStatusFailed {
		q.mu.Unlock()
		return
	}
	item.Status = models.MessageStatusPending
	item.LastError = nil
	q.mu.Unlock()

	q.displayq.UpdateStatus(localID, models.MessageStatusPending)
	if err := q.store.SaveOutboundMessage(ctx, item); err != nil {
		q.logger.LogError(err, "Failed to persist retried message", logrus.Fields{
			"local_id": localID,
		})
	}

	go q.ProcessQueue(q.runContext())
}

// Pending returns a copy of the queue's unsent items sorted by local
// sequence.
func (q *OutboundQueue) Pending() []models.QueuedOutboundMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.QueuedOutboundMessage, 0, len(q.items))
	for _, item := range q.items {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocalSeq < out[j].LocalSeq })
	return out
}

// selectable returns items eligible for this processing pass in send order.
func (q *OutboundQueue) selectable(includeFailed bool) []*models.QueuedOutboundMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*models.QueuedOutboundMessage
	for _, item := range q.items {
		if item.Status == models.MessageStatusPending || (includeFailed && item.Status == models.MessageStatusFailed) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocalSeq < out[j].LocalSeq })
	return out
}

// ProcessQueue drives all pending and failed messages to the backend in local
// sequence order. A re-entrancy guard prevents overlapping passes; a second
// call while a pass runs returns immediately.
func (q *OutboundQueue) ProcessQueue(ctx context.Context) {
	if !q.processing.CompareAndSwap(false, true) {
		return
	}
	defer q.processing.Store(false)

	includeFailed := true
	for {
		batch := q.selectable(includeFailed)
		if len(batch) == 0 {
			return
		}
		includeFailed = false

		var wg sync.WaitGroup
		var prevAttempted chan struct{}
		for _, item := range batch {
			attempted := make(chan struct{})
			wg.Add(1)
			go q.deliver(ctx, item, prevAttempted, attempted, &wg)
			prevAttempted = attempted
		}
		wg.Wait()

		if ctx.Err() != nil {
			return
		}
	}
}

// deliver sends one message through the retry engine. It waits for the
// previous message's first attempt before starting, and closes its own signal
// once its first attempt completes.
func (q *OutboundQueue) deliver(ctx context.Context, item *models.QueuedOutboundMessage, prevAttempted <-chan struct{}, attempted chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	var once sync.Once
	signalAttempted := func() { once.Do(func() { close(attempted) }) }
	defer signalAttempted()

	if prevAttempted != nil {
		select {
		case <-prevAttempted:
		case <-ctx.Done():
			return
		}
	}
	if ctx.Err() != nil {
		return
	}

	q.mu.Lock()
	wasFailed := item.Status == models.MessageStatusFailed
	item.Status = models.MessageStatusSending
	q.mu.Unlock()
	if wasFailed {
		// Automatic re-drives pass through pending so the display status can
		// advance; failed does not transition to sending directly.
		q.displayq.UpdateStatus(item.LocalID, models.MessageStatusPending)
	}
	q.displayq.UpdateStatus(item.LocalID, models.MessageStatusSending)

	var saved *backend.MessageRecord
	result := q.executor.Execute(ctx, retry.CategorySend, func(ctx context.Context) error {
		sendCtx, cancel := context.WithTimeout(ctx, q.sendTimeout)
		defer cancel()

		rec, err := q.client.SaveMessage(sendCtx, messageToRecord(item.Message))
		signalAttempted()
		if err != nil {
			return err
		}
		saved = rec
		return nil
	})

	if result.Success {
		q.markSent(ctx, item, saved)
		return
	}
	// Cancellation mid-send is not a delivery failure. The message stays
	// queued; a restart resets it from sending to pending.
	if result.Cancelled {
		return
	}
	q.markFailed(ctx, item, result)
}

func (q *OutboundQueue) markSent(ctx context.Context, item *models.QueuedOutboundMessage, saved *backend.MessageRecord) {
	now := time.Now()

	q.mu.Lock()
	item.Status = models.MessageStatusSent
	item.SentAt = &now
	item.ServerID = saved.ID
	item.LastError = nil
	q.mu.Unlock()

	q.displayq.MarkSent(item.LocalID, saved.Sequence)
	if err := q.store.SaveOutboundMessage(ctx, item); err != nil {
		q.logger.LogError(err, "Failed to persist sent message", logrus.Fields{
			"local_id": item.LocalID,
		})
	}
	metrics.IncrementCounter("outbound_delivered", nil, "Messages accepted by the backend")

	if q.callbacks.OnDelivered != nil {
		q.callbacks.OnDelivered(item.LocalID, saved)
	}

	// Sent messages linger for the grace window so delivery-confirmation UI
	// can observe them, then leave the queue.
	localID := item.LocalID
	time.AfterFunc(q.graceDelay, func() {
		q.mu.Lock()
		delete(q.items, localID)
		q.mu.Unlock()
		if err := q.store.DeleteOutboundMessage(context.Background(), localID); err != nil {
			q.logger.LogError(err, "Failed to remove delivered message from store", logrus.Fields{
				"local_id": localID,
			})
		}
	})
}

func (q *OutboundQueue) markFailed(ctx context.Context, item *models.QueuedOutboundMessage, result retry.Result) {
	errText := ""
	if result.Err != nil {
		errText = result.Err.Error()
	}

	q.mu.Lock()
	item.Status = models.MessageStatusFailed
	item.RetryCount += len(result.Attempts)
	item.LastError = &errText
	retryCount := item.RetryCount
	q.mu.Unlock()

	q.displayq.UpdateStatus(item.LocalID, models.MessageStatusFailed)
	q.displayq.SetRetryCount(item.LocalID, retryCount)
	if err := q.store.SaveOutboundMessage(ctx, item); err != nil {
		q.logger.LogError(err, "Failed to persist failed message", logrus.Fields{
			"local_id": item.LocalID,
		})
	}

	fields := logrus.Fields{
		"local_id":        item.LocalID,
		"attempts":        len(result.Attempts),
		"circuit_tripped": result.CircuitBreakerTriggered,
	}
	q.logger.LogRetryableError(result.Err, "Message delivery failed", fields)
	metrics.IncrementCounter("outbound_failed", nil, "Messages that failed delivery")

	if q.callbacks.OnFailed != nil {
		q.callbacks.OnFailed(item.LocalID, result.Err)
	}
}
