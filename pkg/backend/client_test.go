package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "chatsync/internal/errors"
)

func TestSaveMessage(t *testing.T) {
	var gotAuth, gotPath, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotMethod = r.Method

		var req saveMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		saved := MessageRecord{
			ID:           req.ID,
			SessionID:    req.SessionID,
			SenderID:     req.SenderID,
			OriginalText: req.OriginalText,
			OriginalLang: req.OriginalLang,
			CreatedAt:    req.CreatedAt,
			Sequence:     42,
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(saved))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", 5*time.Second)
	saved, err := client.SaveMessage(context.Background(), &MessageRecord{
		ID:           "msg-1",
		SessionID:    "session-1",
		SenderID:     "alice",
		OriginalText: "hello",
		OriginalLang: "en",
		CreatedAt:    time.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "/api/v1/messages", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "msg-1", saved.ID)
	assert.Equal(t, int64(42), saved.Sequence)
}

func TestSaveMessageServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	_, err := client.SaveMessage(context.Background(), &MessageRecord{ID: "msg-1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Equal(t, apperrors.ErrCodeBackendAPI, apperrors.GetCode(err))
}

func TestSaveMessageRateLimitIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	_, err := client.SaveMessage(context.Background(), &MessageRecord{ID: "msg-1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Equal(t, apperrors.ErrCodeRateLimit, apperrors.GetCode(err))
}

func TestEditMessageNotFoundIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "message not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	err := client.EditMessage(context.Background(), "msg-missing", "new text")
	require.Error(t, err)
	assert.False(t, apperrors.IsRetryable(err))
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "message not found")
}

func TestEditMessageUsesPatchOnMessagePath(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody editMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	require.NoError(t, client.EditMessage(context.Background(), "msg-1", "edited"))
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/api/v1/messages/msg-1", gotPath)
	assert.Equal(t, "edited", gotBody.OriginalText)
}

func TestAddReaction(t *testing.T) {
	var gotBody addReactionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/reactions", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	require.NoError(t, client.AddReaction(context.Background(), "msg-1", "alice", "👍"))
	assert.Equal(t, "msg-1", gotBody.MessageID)
	assert.Equal(t, "alice", gotBody.UserID)
	assert.Equal(t, "👍", gotBody.Emoji)
}

func TestRemoveReactionSendsQueryParams(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		gotQuery = map[string]string{
			"message_id": r.URL.Query().Get("message_id"),
			"user_id":    r.URL.Query().Get("user_id"),
			"emoji":      r.URL.Query().Get("emoji"),
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	require.NoError(t, client.RemoveReaction(context.Background(), "msg-1", "bob", "❤️"))
	assert.Equal(t, "msg-1", gotQuery["message_id"])
	assert.Equal(t, "bob", gotQuery["user_id"])
	assert.Equal(t, "❤️", gotQuery["emoji"])
}

func TestFetchHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sessions/session-1/messages", r.URL.Path)
		records := []MessageRecord{
			{ID: "msg-1", Sequence: 1, Reactions: []ReactionRecord{
				{ID: "r-1", MessageID: "msg-1", UserID: "bob", Emoji: "👍"},
			}},
			{ID: "msg-2", Sequence: 2},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(records)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	records, err := client.FetchHistory(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "msg-1", records[0].ID)
	require.Len(t, records[0].Reactions, 1)
	assert.Equal(t, "👍", records[0].Reactions[0].Emoji)
}

func TestHealthCheck(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	assert.NoError(t, client.HealthCheck(context.Background()))

	healthy = false
	assert.Error(t, client.HealthCheck(context.Background()))
}

func TestConnectionRefusedIsNetworkError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "", time.Second)
	err := client.HealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Equal(t, apperrors.ErrCodeBackendAPI, apperrors.GetCode(err))
}

func TestContextCancellationWinsOverNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(server.URL, "", time.Second)
	err := client.HealthCheck(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNoAuthHeaderWithoutAPIKey(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	require.NoError(t, client.HealthCheck(context.Background()))
	assert.Empty(t, gotAuth)
}
