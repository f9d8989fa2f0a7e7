package syncengine

import (
	"context"
	"sync"
	"time"

	"chatsync/internal/constants"
	"chatsync/internal/display"
	apperrors "chatsync/internal/errors"
	"chatsync/internal/models"
	"chatsync/internal/privacy"
	"chatsync/internal/retry"
	"chatsync/internal/tracing"
	"chatsync/internal/validation"
	"chatsync/pkg/backend"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Options configures a session engine.
type Options struct {
	SessionID string
	UserID    string

	MaxDisplayMessages   int
	SentRetention        time.Duration
	ConnectivityInterval time.Duration
	ProbeTimeout         time.Duration

	Callbacks Callbacks
}

func (o *Options) applyDefaults() {
	if o.MaxDisplayMessages <= 0 {
		o.MaxDisplayMessages = constants.DefaultMaxDisplayMessages
	}
	if o.SentRetention <= 0 {
		o.SentRetention = constants.DefaultSentRetention
	}
	if o.ConnectivityInterval <= 0 {
		o.ConnectivityInterval = constants.DefaultConnectivityCheckInterval
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = constants.DefaultConnectivityProbeTimeout
	}
}

// Engine is the per-session facade over the display queue, the outbound
// message queue, the side-effect operation queue, the inbound reconciler,
// and the connectivity monitor. One engine serves one chat session for one
// local user.
type Engine struct {
	sessionID string
	userID    string

	displayq   *display.Queue
	outbound   *OutboundQueue
	operations *OperationQueue
	reconciler *Reconciler
	monitor    *ConnectivityMonitor
	logger     *apperrors.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewEngine(store QueueStore, client backend.Client, feed backend.FeedSubscriber, executor *retry.Executor, opts Options, logger *logrus.Logger) (*Engine, error) {
	if err := validation.ValidateSessionID(opts.SessionID); err != nil {
		return nil, err
	}
	if err := validation.ValidateUserID(opts.UserID); err != nil {
		return nil, err
	}
	opts.applyDefaults()

	displayq := display.NewQueue(opts.MaxDisplayMessages, opts.UserID, logger)

	e := &Engine{
		sessionID: opts.SessionID,
		userID:    opts.UserID,
		displayq:  displayq,
		logger:    apperrors.WrapLogger(logger),
	}

	e.outbound = NewOutboundQueue(store, client, executor, displayq, opts.SentRetention, opts.Callbacks, logger)
	e.operations = NewOperationQueue(store, client, executor, opts.Callbacks, logger)
	e.reconciler = NewReconciler(client, feed, executor, displayq, opts.SessionID, opts.UserID, logger)
	e.monitor = NewConnectivityMonitor(client, opts.ConnectivityInterval, opts.ProbeTimeout, nil, logger)

	return e, nil
}

// Start restores persisted queues, begins connectivity probing, and joins
// the session feed. Safe to call once per engine.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return apperrors.New(apperrors.ErrCodeInternalError, "engine already started")
	}
	e.running = true
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	// Background processing must run on the engine's lifetime, not on
	// whichever request context happened to enqueue the work.
	e.outbound.BindRunContext(runCtx)
	e.operations.BindRunContext(runCtx)

	if err := e.outbound.Restore(runCtx); err != nil {
		return apperrors.NewDatabaseError("restore outbound queue", err)
	}
	if err := e.operations.Restore(runCtx); err != nil {
		return apperrors.NewDatabaseError("restore operation queue", err)
	}

	e.monitor.onChange = func(connected bool) {
		e.outbound.SetConnected(connected)
		if connected {
			go e.operations.ProcessQueue(runCtx)
		}
	}
	e.monitor.Start(runCtx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.reconciler.Run(runCtx)
	}()

	e.logger.WithFields(logrus.Fields{
		"session_id": e.sessionID,
		"user_id":    privacy.MaskUserID(e.userID),
	}).Info("Sync engine started")
	return nil
}

// Stop halts background work and waits for it to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.running = false
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.monitor.Stop()
	e.wg.Wait()
	e.logger.WithField("session_id", e.sessionID).Info("Sync engine stopped")
}

// SendText creates a message with a locally generated id, shows it as pending,
// and queues it for delivery. The id is stable across the message's lifetime;
// the backend only assigns the session sequence number.
func (e *Engine) SendText(ctx context.Context, text, lang string) (models.DisplayMessage, error) {
	if err := validation.ValidateMessageText(text); err != nil {
		return models.DisplayMessage{}, err
	}

	ctx, span := tracing.StartSpan(ctx, "engine.send_text",
		attribute.String("session_id", e.sessionID))
	defer span.End()

	msg := models.Message{
		ID:           uuid.NewString(),
		SessionID:    e.sessionID,
		SenderID:     e.userID,
		OriginalText: text,
		OriginalLang: lang,
		CreatedAt:    time.Now(),
	}

	e.displayq.Add(msg, models.MessageStatusPending)
	if _, err := e.outbound.Enqueue(ctx, msg); err != nil {
		tracing.RecordError(ctx, err)
		return models.DisplayMessage{}, err
	}

	dm, _ := e.displayq.GetMessage(msg.ID)
	return dm, nil
}

// RetryFailedMessage requeues a failed message for another delivery round.
func (e *Engine) RetryFailedMessage(ctx context.Context, localID string) {
	e.outbound.RetryMessage(ctx, localID)
}

// ToggleReaction flips the local user's reaction on a message and queues the
// matching backend operation. Unknown message ids are ignored.
func (e *Engine) ToggleReaction(ctx context.Context, messageID, emoji string) error {
	if err := validation.ValidateEmoji(emoji); err != nil {
		return err
	}

	added, ok := e.displayq.ToggleReaction(messageID, emoji, e.userID)
	if !ok {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "engine.toggle_reaction",
		attribute.String("message_id", messageID),
		attribute.Bool("added", added))
	defer span.End()

	kind := models.OpRemoveReaction
	if added {
		kind = models.OpAddReaction
	}
	_, err := e.operations.Enqueue(ctx, models.SyncOperation{
		Kind:      kind,
		MessageID: messageID,
		UserID:    e.userID,
		Emoji:     emoji,
	})
	return err
}

// EditMessage applies the new text locally right away and queues the backend
// edit. The previous text travels with the operation so a failure can be
// reported against what the user overwrote.
func (e *Engine) EditMessage(ctx context.Context, messageID, newText string) error {
	if err := validation.ValidateMessageText(newText); err != nil {
		return err
	}
	current, ok := e.displayq.GetMessage(messageID)
	if !ok {
		return apperrors.NewNotFoundError("message", messageID)
	}

	ctx, span := tracing.StartSpan(ctx, "engine.edit_message",
		attribute.String("message_id", messageID))
	defer span.End()

	e.displayq.ApplyEdit(messageID, newText, nil, time.Now())
	_, err := e.operations.Enqueue(ctx, models.SyncOperation{
		Kind:         models.OpEditMessage,
		MessageID:    messageID,
		UserID:       e.userID,
		NewText:      newText,
		PreviousText: current.OriginalText,
	})
	return err
}

// DeleteMessage tombstones the message locally and queues the backend delete.
func (e *Engine) DeleteMessage(ctx context.Context, messageID string) error {
	if _, ok := e.displayq.GetMessage(messageID); !ok {
		return apperrors.NewNotFoundError("message", messageID)
	}

	ctx, span := tracing.StartSpan(ctx, "engine.delete_message",
		attribute.String("message_id", messageID))
	defer span.End()

	e.displayq.ApplyDelete(messageID, time.Now())
	_, err := e.operations.Enqueue(ctx, models.SyncOperation{
		Kind:      models.OpDeleteMessage,
		MessageID: messageID,
		UserID:    e.userID,
	})
	return err
}

// Messages returns the current display snapshot in display order.
func (e *Engine) Messages() []models.DisplayMessage {
	return e.displayq.GetDisplayMessages()
}

// Subscribe registers a display listener and returns its unsubscribe func.
func (e *Engine) Subscribe(listener display.Listener) func() {
	return e.displayq.Subscribe(listener)
}

// Connected reports the last observed backend reachability.
func (e *Engine) Connected() bool {
	return e.monitor.IsConnected()
}

// PendingOutbound returns the messages still awaiting delivery.
func (e *Engine) PendingOutbound() []models.QueuedOutboundMessage {
	return e.outbound.Pending()
}

// PendingOperations returns the number of queued side-effect operations.
func (e *Engine) PendingOperations() int {
	return e.operations.Len()
}

// Cleanup trims the display queue to its configured bound.
func (e *Engine) Cleanup() {
	e.displayq.Cleanup()
}
