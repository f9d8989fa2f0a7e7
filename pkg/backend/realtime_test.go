package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedServer is a minimal websocket feed: it accepts one connection, records
// the subscribe request, and relays events pushed through the send channel.
func feedServer(t *testing.T, subscribed chan<- subscribeRequest, send <-chan ChangeEvent) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")

		var req subscribeRequest
		if err := wsjson.Read(r.Context(), conn, &req); err != nil {
			return
		}
		subscribed <- req

		for ev := range send {
			if err := wsjson.Write(r.Context(), conn, ev); err != nil {
				return
			}
		}
	}))
}

func TestRealtimeSubscribeReceivesEvents(t *testing.T) {
	subscribed := make(chan subscribeRequest, 1)
	send := make(chan ChangeEvent)
	server := feedServer(t, subscribed, send)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewRealtimeClient(server.URL, "feed-key", nil)
	events, err := client.Subscribe(ctx, "session-1")
	require.NoError(t, err)

	select {
	case req := <-subscribed:
		assert.Equal(t, "subscribe", req.Action)
		assert.Equal(t, "session-1", req.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the subscribe request")
	}

	want := ChangeEvent{
		Type:      EventMessageInsert,
		SessionID: "session-1",
		Message:   &MessageRecord{ID: "m1", SenderID: "bob", OriginalText: "hello"},
	}
	send <- want

	select {
	case got := <-events:
		assert.Equal(t, EventMessageInsert, got.Type)
		require.NotNil(t, got.Message)
		assert.Equal(t, "m1", got.Message.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("event never arrived on the feed channel")
	}
}

func TestRealtimeChannelClosesWhenServerDrops(t *testing.T) {
	subscribed := make(chan subscribeRequest, 1)
	send := make(chan ChangeEvent)
	server := feedServer(t, subscribed, send)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := NewRealtimeClient(server.URL, "", nil)
	events, err := client.Subscribe(ctx, "session-1")
	require.NoError(t, err)
	<-subscribed

	// Server handler returns and closes the connection.
	close(send)

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("feed channel did not close after the server dropped")
	}
}

func TestRealtimeSubscribeDialFailure(t *testing.T) {
	client := NewRealtimeClient("http://127.0.0.1:1", "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.Subscribe(ctx, "session-1")
	assert.Error(t, err)
}
