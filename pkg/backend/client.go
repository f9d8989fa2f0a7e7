package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "chatsync/internal/errors"
	"chatsync/pkg/constants"
)

// HTTPClient talks to the message backend's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a backend client. A zero timeout falls back to the
// package default.
func NewClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeoutSec * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) SaveMessage(ctx context.Context, record *MessageRecord) (*MessageRecord, error) {
	payload := saveMessageRequest{
		ID:             record.ID,
		SessionID:      record.SessionID,
		SenderID:       record.SenderID,
		OriginalText:   record.OriginalText,
		TranslatedText: record.TranslatedText,
		OriginalLang:   record.OriginalLang,
		CreatedAt:      record.CreatedAt,
	}

	var saved MessageRecord
	if err := c.do(ctx, http.MethodPost, "/api/v1/messages", payload, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (c *HTTPClient) EditMessage(ctx context.Context, messageID, newText string) error {
	path := "/api/v1/messages/" + url.PathEscape(messageID)
	return c.do(ctx, http.MethodPatch, path, editMessageRequest{OriginalText: newText}, nil)
}

func (c *HTTPClient) DeleteMessage(ctx context.Context, messageID string) error {
	path := "/api/v1/messages/" + url.PathEscape(messageID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) AddReaction(ctx context.Context, messageID, userID, emoji string) error {
	payload := addReactionRequest{MessageID: messageID, UserID: userID, Emoji: emoji}
	return c.do(ctx, http.MethodPost, "/api/v1/reactions", payload, nil)
}

func (c *HTTPClient) RemoveReaction(ctx context.Context, messageID, userID, emoji string) error {
	query := url.Values{}
	query.Set("message_id", messageID)
	query.Set("user_id", userID)
	query.Set("emoji", emoji)
	return c.do(ctx, http.MethodDelete, "/api/v1/reactions?"+query.Encode(), nil, nil)
}

// FetchHistory returns all non-deleted messages for a session ordered by
// sequence number, with reactions joined.
func (c *HTTPClient) FetchHistory(ctx context.Context, sessionID string) ([]MessageRecord, error) {
	path := "/api/v1/sessions/" + url.PathEscape(sessionID) + "/messages"

	var records []MessageRecord
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload, result interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to marshal request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.NewNetworkError(path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp errorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errResp); decodeErr == nil && errResp.Error != "" {
			return apperrors.NewBackendError(path, resp.StatusCode, fmt.Errorf("%s", errResp.Error))
		}
		return apperrors.NewBackendError(path, resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeBackendAPI, "failed to decode response").
				WithContext("endpoint", path)
		}
	}
	return nil
}
