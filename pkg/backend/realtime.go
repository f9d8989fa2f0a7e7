package backend

import (
	"context"
	"time"

	apperrors "chatsync/internal/errors"
	"chatsync/pkg/constants"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

// RealtimeClient subscribes to the backend's websocket change feed. One
// Subscribe call serves one session; the event channel closes when the
// connection drops or the context is cancelled. Reconnection is handled by
// the reconciliation layer, which re-runs its join sequence.
type RealtimeClient struct {
	feedURL string
	apiKey  string
	logger  *logrus.Logger
}

func NewRealtimeClient(feedURL, apiKey string, logger *logrus.Logger) *RealtimeClient {
	if logger == nil {
		logger = logrus.New()
	}
	return &RealtimeClient{
		feedURL: feedURL,
		apiKey:  apiKey,
		logger:  logger,
	}
}

// Subscribe dials the feed, registers interest in sessionID, and returns a
// channel of change events.
func (r *RealtimeClient) Subscribe(ctx context.Context, sessionID string) (<-chan ChangeEvent, error) {
	dialCtx, cancel := context.WithTimeout(ctx, constants.DefaultRealtimeDialSec*time.Second)
	defer cancel()

	opts := &websocket.DialOptions{}
	if r.apiKey != "" {
		opts.HTTPHeader = map[string][]string{
			"Authorization": {"Bearer " + r.apiKey},
		}
	}

	conn, _, err := websocket.Dial(dialCtx, r.feedURL, opts)
	if err != nil {
		return nil, apperrors.NewFeedError(sessionID, err)
	}
	conn.SetReadLimit(constants.DefaultFeedReadLimitBytes)

	if err := wsjson.Write(ctx, conn, subscribeRequest{Action: "subscribe", SessionID: sessionID}); err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return nil, apperrors.NewFeedError(sessionID, err)
	}

	events := make(chan ChangeEvent, constants.DefaultFeedBufferSize)
	go r.readLoop(ctx, conn, sessionID, events)
	return events, nil
}

func (r *RealtimeClient) readLoop(ctx context.Context, conn *websocket.Conn, sessionID string, events chan<- ChangeEvent) {
	defer close(events)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	for {
		var event ChangeEvent
		if err := wsjson.Read(ctx, conn, &event); err != nil {
			if ctx.Err() == nil {
				r.logger.WithError(err).WithField("session_id", sessionID).Warn("Realtime feed closed")
			}
			return
		}

		select {
		case events <- event:
		case <-ctx.Done():
			return
		}
	}
}
