// Package display holds the authoritative, locally-visible conversation state:
// message ordering, lifecycle status, and reaction aggregates. It has no I/O
// and never fails; invalid ids are silent no-ops because races between UI
// actions and async updates are expected.
package display

import (
	"sync"
	"time"

	"chatsync/internal/metrics"
	"chatsync/internal/models"

	"github.com/sirupsen/logrus"
)

// Listener receives the full ordered snapshot on every mutation.
type Listener func([]models.DisplayMessage)

var visibleStatuses = map[models.MessageStatus]bool{
	models.MessageStatusPending:   true,
	models.MessageStatusSending:   true,
	models.MessageStatusSent:      true,
	models.MessageStatusDisplayed: true,
	models.MessageStatusFailed:    true,
}

// Queue is the single authoritative in-memory table of messages visible to
// the user. Display order is monotonic and never reassigned; entries are
// stored as values and cloned at the boundary so subscribers never alias
// queue-owned state.
type Queue struct {
	mu           sync.Mutex
	entries      map[string]*models.DisplayMessage
	order        []string
	nextOrder    int64
	listeners    map[int]Listener
	nextListener int
	maxMessages  int
	localUserID  string
	logger       *logrus.Logger
}

// NewQueue creates a display queue retaining at most maxMessages entries.
// localUserID drives the hasReacted flag on reaction aggregates.
func NewQueue(maxMessages int, localUserID string, logger *logrus.Logger) *Queue {
	if logger == nil {
		logger = logrus.New()
	}
	return &Queue{
		entries:     make(map[string]*models.DisplayMessage),
		listeners:   make(map[int]Listener),
		maxMessages: maxMessages,
		localUserID: localUserID,
		logger:      logger,
	}
}

// Add inserts a message if its id is not already present and assigns the next
// display-order index. Exact duplicates are silently ignored; Add is
// idempotent by message id. Returns true if the message was inserted.
func (q *Queue) Add(msg models.Message, status models.MessageStatus) bool {
	q.mu.Lock()

	if _, exists := q.entries[msg.ID]; exists {
		q.mu.Unlock()
		return false
	}

	entry := &models.DisplayMessage{
		Message:      msg.Clone(),
		LocalID:      msg.ID,
		Status:       status,
		DisplayOrder: q.nextOrder,
	}
	recomputeHasReacted(entry, q.localUserID)
	q.nextOrder++
	q.entries[msg.ID] = entry
	q.order = append(q.order, msg.ID)
	metrics.SetGauge("display_queue_size", float64(len(q.entries)), nil, "Messages held in the display queue")

	q.notifyLocked()
	return true
}

// UpdateStatus moves a message's status forward. Unknown ids and backward
// transitions are silent no-ops. Transitions to sent or displayed stamp the
// delivery timestamp.
func (q *Queue) UpdateStatus(id string, status models.MessageStatus) {
	q.mu.Lock()

	entry, ok := q.entries[id]
	if !ok || !models.CanTransition(entry.Status, status) {
		q.mu.Unlock()
		return
	}

	entry.Status = status
	if status == models.MessageStatusSent || status == models.MessageStatusDisplayed {
		now := time.Now()
		entry.DeliveredAt = &now
	}

	q.notifyLocked()
}

// MarkSent records delivery confirmation in one mutation: the server-assigned
// sequence number plus the transition to sent.
func (q *Queue) MarkSent(id string, sequence int64) {
	q.mu.Lock()

	entry, ok := q.entries[id]
	if !ok || !models.CanTransition(entry.Status, models.MessageStatusSent) {
		q.mu.Unlock()
		return
	}

	entry.Sequence = sequence
	entry.Status = models.MessageStatusSent
	now := time.Now()
	entry.DeliveredAt = &now

	q.notifyLocked()
}

// SetRetryCount updates the retry counter shown next to a failed message.
func (q *Queue) SetRetryCount(id string, count int) {
	q.mu.Lock()

	entry, ok := q.entries[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	entry.RetryCount = count

	q.notifyLocked()
}

// ToggleReaction flips userID's reaction with emoji on a message: absent adds,
// present removes. The reaction map is created lazily; an unknown message id
// is a silent no-op (ok=false). Aggregates whose count reaches zero are
// deleted, never retained empty. The hasReacted flag is recomputed from the
// user set after every mutation so the two can never drift. Returns whether
// the reaction is now present. This is only the local half of a reaction
// toggle; the network half is a sync operation issued by the caller.
func (q *Queue) ToggleReaction(messageID, emoji, userID string) (added, ok bool) {
	q.mu.Lock()

	entry, found := q.entries[messageID]
	if !found {
		q.mu.Unlock()
		return false, false
	}

	added = toggleReaction(entry, emoji, userID)
	recomputeHasReacted(entry, q.localUserID)

	q.notifyLocked()
	return added, true
}

// ApplyReaction applies a remotely observed reaction row insert or delete.
// Unlike ToggleReaction it is idempotent: adding a user already in the set or
// removing an absent one is a no-op.
func (q *Queue) ApplyReaction(messageID, emoji, userID string, added bool) {
	q.mu.Lock()

	entry, ok := q.entries[messageID]
	if !ok {
		q.mu.Unlock()
		return
	}

	present := hasUser(entry, emoji, userID)
	if added == present {
		q.mu.Unlock()
		return
	}

	toggleReaction(entry, emoji, userID)
	recomputeHasReacted(entry, q.localUserID)

	q.notifyLocked()
}

// ApplyEdit replaces a message's text and marks it edited. Translated text is
// cleared when nil is passed, pending re-translation.
func (q *Queue) ApplyEdit(id, newText string, translated *string, editedAt time.Time) {
	q.mu.Lock()

	entry, ok := q.entries[id]
	if !ok {
		q.mu.Unlock()
		return
	}

	entry.OriginalText = newText
	entry.TranslatedText = translated
	entry.Edited = true
	entry.EditedAt = &editedAt

	q.notifyLocked()
}

// ApplyDelete soft-deletes a message: text is cleared and the deleted flag
// set. The entry keeps its display order.
func (q *Queue) ApplyDelete(id string, deletedAt time.Time) {
	q.mu.Lock()

	entry, ok := q.entries[id]
	if !ok {
		q.mu.Unlock()
		return
	}

	entry.OriginalText = ""
	entry.TranslatedText = nil
	entry.Deleted = true
	entry.DeletedAt = &deletedAt

	q.notifyLocked()
}

// GetDisplayMessages returns all retained messages in display order, filtered
// to user-visible statuses. Failed messages are included so the UI can show an
// error affordance.
func (q *Queue) GetDisplayMessages() []models.DisplayMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// GetMessage returns a copy of one entry by id.
func (q *Queue) GetMessage(id string) (models.DisplayMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[id]
	if !ok {
		return models.DisplayMessage{}, false
	}
	return cloneEntry(entry), true
}

// Len returns the number of retained entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Subscribe registers a listener and returns its unsubscribe function. Every
// mutation triggers exactly one notification pass over all listeners.
func (q *Queue) Subscribe(listener Listener) func() {
	q.mu.Lock()
	id := q.nextListener
	q.nextListener++
	q.listeners[id] = listener
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		delete(q.listeners, id)
		q.mu.Unlock()
	}
}

// Cleanup trims the queue to the most recent maxMessages entries by display
// order to cap memory.
func (q *Queue) Cleanup() {
	q.mu.Lock()

	if q.maxMessages <= 0 || len(q.order) <= q.maxMessages {
		q.mu.Unlock()
		return
	}

	drop := len(q.order) - q.maxMessages
	for _, id := range q.order[:drop] {
		delete(q.entries, id)
	}
	q.order = append([]string(nil), q.order[drop:]...)
	q.logger.WithFields(logrus.Fields{
		"dropped":  drop,
		"retained": len(q.order),
	}).Debug("Trimmed display queue")
	metrics.SetGauge("display_queue_size", float64(len(q.entries)), nil, "Messages held in the display queue")

	q.notifyLocked()
}

// notifyLocked builds one snapshot and delivers it to all listeners. It is
// entered with the mutex held and releases it before invoking listeners so a
// listener may call back into the queue.
func (q *Queue) notifyLocked() {
	snapshot := q.snapshotLocked()
	listeners := make([]Listener, 0, len(q.listeners))
	for _, l := range q.listeners {
		listeners = append(listeners, l)
	}
	q.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

func (q *Queue) snapshotLocked() []models.DisplayMessage {
	out := make([]models.DisplayMessage, 0, len(q.order))
	for _, id := range q.order {
		entry, ok := q.entries[id]
		if !ok || !visibleStatuses[entry.Status] {
			continue
		}
		out = append(out, cloneEntry(entry))
	}
	return out
}

func cloneEntry(entry *models.DisplayMessage) models.DisplayMessage {
	copied := *entry
	copied.Message = entry.Message.Clone()
	if entry.DeliveredAt != nil {
		t := *entry.DeliveredAt
		copied.DeliveredAt = &t
	}
	return copied
}

// toggleReaction flips userID on emoji and returns whether it is now present.
func toggleReaction(entry *models.DisplayMessage, emoji, userID string) bool {
	reactions := models.CloneReactions(entry.Reactions)
	if reactions == nil {
		reactions = make(map[string]models.ReactionAggregate)
	}

	agg, ok := reactions[emoji]
	if !ok {
		agg = models.ReactionAggregate{Emoji: emoji}
	}

	idx := -1
	for i, u := range agg.UserIDs {
		if u == userID {
			idx = i
			break
		}
	}

	var added bool
	if idx == -1 {
		agg.UserIDs = append(agg.UserIDs, userID)
		added = true
	} else {
		agg.UserIDs = append(agg.UserIDs[:idx], agg.UserIDs[idx+1:]...)
	}

	agg.Count = len(agg.UserIDs)
	if agg.Count == 0 {
		delete(reactions, emoji)
	} else {
		reactions[emoji] = agg
	}

	if len(reactions) == 0 {
		reactions = nil
	}
	entry.Reactions = reactions
	return added
}

func hasUser(entry *models.DisplayMessage, emoji, userID string) bool {
	agg, ok := entry.Reactions[emoji]
	if !ok {
		return false
	}
	for _, u := range agg.UserIDs {
		if u == userID {
			return true
		}
	}
	return false
}

// recomputeHasReacted derives every aggregate's hasReacted flag from its user
// set. The flag is never stored independently of the set.
func recomputeHasReacted(entry *models.DisplayMessage, localUserID string) {
	for emoji, agg := range entry.Reactions {
		agg.HasReacted = false
		for _, u := range agg.UserIDs {
			if u == localUserID {
				agg.HasReacted = true
				break
			}
		}
		entry.Reactions[emoji] = agg
	}
}
