package syncengine

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"chatsync/internal/models"
	"chatsync/internal/retry"
	"chatsync/pkg/backend"
)

type mockBackendClient struct {
	mock.Mock
}

func (m *mockBackendClient) SaveMessage(ctx context.Context, record *backend.MessageRecord) (*backend.MessageRecord, error) {
	args := m.Called(ctx, record)
	if saved := args.Get(0); saved != nil {
		return saved.(*backend.MessageRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBackendClient) EditMessage(ctx context.Context, messageID, newText string) error {
	args := m.Called(ctx, messageID, newText)
	return args.Error(0)
}

func (m *mockBackendClient) DeleteMessage(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *mockBackendClient) AddReaction(ctx context.Context, messageID, userID, emoji string) error {
	args := m.Called(ctx, messageID, userID, emoji)
	return args.Error(0)
}

func (m *mockBackendClient) RemoveReaction(ctx context.Context, messageID, userID, emoji string) error {
	args := m.Called(ctx, messageID, userID, emoji)
	return args.Error(0)
}

func (m *mockBackendClient) FetchHistory(ctx context.Context, sessionID string) ([]backend.MessageRecord, error) {
	args := m.Called(ctx, sessionID)
	if records := args.Get(0); records != nil {
		return records.([]backend.MessageRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBackendClient) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type mockFeed struct {
	mock.Mock
}

func (m *mockFeed) Subscribe(ctx context.Context, sessionID string) (<-chan backend.ChangeEvent, error) {
	args := m.Called(ctx, sessionID)
	if ch := args.Get(0); ch != nil {
		return ch.(chan backend.ChangeEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

// memStore is an in-memory QueueStore for tests.
type memStore struct {
	mu       sync.Mutex
	messages map[string]models.QueuedOutboundMessage
	ops      map[string]models.QueuedSyncOperation
}

func newMemStore() *memStore {
	return &memStore{
		messages: make(map[string]models.QueuedOutboundMessage),
		ops:      make(map[string]models.QueuedSyncOperation),
	}
}

func (s *memStore) SaveOutboundMessage(_ context.Context, m *models.QueuedOutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.LocalID] = *m
	return nil
}

func (s *memStore) DeleteOutboundMessage(_ context.Context, localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, localID)
	return nil
}

func (s *memStore) ListOutboundMessages(_ context.Context) ([]*models.QueuedOutboundMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.QueuedOutboundMessage, 0, len(s.messages))
	for _, m := range s.messages {
		copied := m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocalSeq < out[j].LocalSeq })
	return out, nil
}

func (s *memStore) SaveSyncOperation(_ context.Context, op *models.QueuedSyncOperation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops[op.OpID] = *op
	return nil
}

func (s *memStore) DeleteSyncOperation(_ context.Context, opID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ops, opID)
	return nil
}

func (s *memStore) ListSyncOperations(_ context.Context) ([]*models.QueuedSyncOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.QueuedSyncOperation, 0, len(s.ops))
	for _, op := range s.ops {
		copied := op
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocalSeq < out[j].LocalSeq })
	return out, nil
}

func (s *memStore) storedMessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *memStore) storedOperationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ops)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fastExecutor returns an executor with millisecond backoff so retry paths
// run quickly. The breaker threshold is high enough that ordinary failure
// tests never trip it.
func fastExecutor() *retry.Executor {
	executor := retry.NewExecutor(quietLogger())
	cfg := retry.Config{
		MaxAttempts:      3,
		BaseDelay:        time.Millisecond,
		MaxDelay:         5 * time.Millisecond,
		Multiplier:       2.0,
		BreakerThreshold: 100,
		BreakerCooldown:  time.Minute,
	}
	for _, category := range []retry.Category{
		retry.CategorySend, retry.CategoryReaction, retry.CategoryEdit,
		retry.CategoryDelete, retry.CategoryHistoryLoad,
	} {
		executor.SetConfig(category, cfg)
	}
	return executor
}
