package syncengine

import (
	"context"
	"sync"
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

// Reconciler brings the display queue in line with the backend: it loads
// stored history on join, then applies live change-feed events. History is
// always loaded before the feed is consumed, so a message can arrive through
// both paths; the processed-id set deduplicates.
type Reconciler struct {
	client    backend.Client
	feed      backend.FeedSubscriber
	executor  *retry.Executor
	displayq  *display.Queue
	logger    *apperrors.Logger
	sessionID string
	selfID    string

	mu        sync.Mutex
	processed map[string]struct{}
}

func NewReconciler(client backend.Client, feed backend.FeedSubscriber, executor *retry.Executor, displayq *display.Queue, sessionID, selfID string, logger *logrus.Logger) *Reconciler {
	return &Reconciler{
		client:    client,
		feed:      feed,
		executor:  executor,
		displayq:  displayq,
		logger:    apperrors.WrapLogger(logger),
		sessionID: sessionID,
		selfID:    selfID,
		processed: make(map[string]struct{}),
	}
}

// Join loads session history into the display queue and then subscribes to
// the change feed. The returned channel closes when the feed drops; callers
// rejoin through Run.
func (r *Reconciler) Join(ctx context.Context) (<-chan backend.ChangeEvent, error) {
	if err := r.loadHistory(ctx); err != nil {
		return nil, err
	}

	events, err := r.feed.Subscribe(ctx, r.sessionID)
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Run joins the session and consumes feed events until the context is
// cancelled, rejoining whenever the feed drops. Each rejoin reloads history,
// which backfills anything missed during the outage.
func (r *Reconciler) Run(ctx context.Context) {
	for {
		events, err := r.Join(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.LogRetryableError(err, "Session join failed, backing off", logrus.Fields{
				"session_id": r.sessionID,
			})
			select {
			case <-ctx.Done():
				return
			case <-time.After(constants.DefaultRejoinDelay):
			}
			continue
		}

		r.consume(ctx, events)
		if ctx.Err() != nil {
			return
		}
		r.logger.WithField("session_id", r.sessionID).Warn("Change feed closed, rejoining")
	}
}

func (r *Reconciler) consume(ctx context.Context, events <-chan backend.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.handleEvent(ev)
		}
	}
}

func (r *Reconciler) loadHistory(ctx context.Context) error {
	var records []backend.MessageRecord

	result := r.executor.Execute(ctx, retry.CategoryHistoryLoad, func(ctx context.Context) error {
		histCtx, cancel := context.WithTimeout(ctx, constants.DefaultHistoryTimeout)
		defer cancel()

		fetched, err := r.client.FetchHistory(histCtx, r.sessionID)
		if err != nil {
			return err
		}
		records = fetched
		return nil
	})
	if !result.Success {
		return result.Err
	}

	added := 0
	for _, rec := range records {
		// Self-authored messages flow through the outbound queue; history
		// only backfills the remote side.
		if rec.SenderID == r.selfID {
			r.markProcessed(rec.ID)
			continue
		}
		if !r.markProcessed(rec.ID) {
			continue
		}
		if r.displayq.Add(recordToMessage(rec), models.MessageStatusDisplayed) {
			added++
		}
	}

	r.logger.WithFields(logrus.Fields{
		"session_id": r.sessionID,
		"fetched":    len(records),
		"added":      added,
	}).Info("Session history loaded")
	metrics.AddToCounter("history_messages_loaded", float64(added), map[string]string{"session_id": r.sessionID}, "Messages backfilled from history")
	return nil
}

func (r *Reconciler) handleEvent(ev backend.ChangeEvent) {
	if ev.SessionID != "" && ev.SessionID != r.sessionID {
		return
	}

	switch ev.Type {
	case backend.EventMessageInsert:
		if ev.Message == nil {
			return
		}
		// Echo of our own send; the outbound queue already settled it.
		if ev.Message.SenderID == r.selfID {
			r.markProcessed(ev.Message.ID)
			return
		}
		if !r.markProcessed(ev.Message.ID) {
			return
		}
		r.displayq.Add(recordToMessage(*ev.Message), models.MessageStatusDisplayed)
		metrics.IncrementCounter("feed_messages_received", nil, "Remote messages received over the change feed")

	case backend.EventMessageUpdate:
		if ev.Message == nil {
			return
		}
		if ev.Message.Deleted {
			deletedAt := time.Now()
			if ev.Message.DeletedAt != nil {
				deletedAt = *ev.Message.DeletedAt
			}
			r.displayq.ApplyDelete(ev.Message.ID, deletedAt)
			return
		}
		editedAt := time.Now()
		if ev.Message.EditedAt != nil {
			editedAt = *ev.Message.EditedAt
		}
		r.displayq.ApplyEdit(ev.Message.ID, ev.Message.OriginalText, ev.Message.TranslatedText, editedAt)

	case backend.EventReactionInsert:
		if ev.Reaction == nil {
			return
		}
		r.displayq.ApplyReaction(ev.Reaction.MessageID, ev.Reaction.Emoji, ev.Reaction.UserID, true)

	case backend.EventReactionDelete:
		if ev.Reaction == nil {
			return
		}
		r.displayq.ApplyReaction(ev.Reaction.MessageID, ev.Reaction.Emoji, ev.Reaction.UserID, false)

	default:
		r.logger.WithField("type", ev.Type).Warn("Unknown change feed event type")
	}
}

// markProcessed records the id and reports whether it was new.
func (r *Reconciler) markProcessed(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.processed[id]; seen {
		return false
	}
	r.processed[id] = struct{}{}
	return true
}
