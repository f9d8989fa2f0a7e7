package backend

import "context"

// Client is the REST surface of the message backend.
type Client interface {
	SaveMessage(ctx context.Context, record *MessageRecord) (*MessageRecord, error)
	EditMessage(ctx context.Context, messageID, newText string) error
	DeleteMessage(ctx context.Context, messageID string) error
	AddReaction(ctx context.Context, messageID, userID, emoji string) error
	RemoveReaction(ctx context.Context, messageID, userID, emoji string) error
	FetchHistory(ctx context.Context, sessionID string) ([]MessageRecord, error)
	HealthCheck(ctx context.Context) error
}

// FeedSubscriber delivers the backend's change feed for one session. The
// returned channel closes when the subscription ends; reconnection is the
// caller's responsibility.
type FeedSubscriber interface {
	Subscribe(ctx context.Context, sessionID string) (<-chan ChangeEvent, error)
}
