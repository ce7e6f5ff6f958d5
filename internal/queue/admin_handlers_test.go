package queue_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foodshed/market-api/internal/queue"
)

// deadTask builds a DLQ row whose payload is a well-formed queue message.
func deadTask(t *testing.T, kind, key string, attempt, maxAttempts int) queue.DLQEntry {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"kind":         kind,
		"key":          key,
		"payload":      []byte("payload"),
		"attempt":      attempt,
		"max_attempts": maxAttempts,
		"available_at": time.Now().UnixNano(),
	})
	require.NoError(t, err)
	return queue.DLQEntry{
		Kind:           kind,
		IdempotencyKey: key,
		Payload:        raw,
		Attempts:       attempt,
		CreatedAt:      time.Now(),
	}
}

func TestReplayDLQByID(t *testing.T) {
	client := newTestRedis(t)
	store := newMemoryStore()
	handler := queue.AdminHandler{
		Store:             store,
		Queue:             queue.Enqueuer{R: client, Prefix: "adm", DedupTTL: time.Minute, MaxAttempts: 5},
		PageSize:          10,
		VisibilityTimeout: 60 * time.Second,
	}

	id, err := store.InsertQueueDlq(context.Background(), deadTask(t, "webhook", "dlq1", 2, 3))
	require.NoError(t, err)

	body := bytes.NewBufferString(`{"ids":["` + id.String() + `"]}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/queue/dlq/replay", body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ReplayDLQ(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Replayed []string          `json:"replayed"`
		Failed   map[string]string `json:"failed"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Contains(t, resp.Replayed, id.String())
	require.Empty(t, resp.Failed)

	// The task is back on the queue and the DLQ row is gone.
	depth, err := client.ZCard(context.Background(), "adm:queue:webhook").Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), depth)

	_, err = store.GetQueueDlq(context.Background(), id)
	require.ErrorIs(t, err, sql.ErrNoRows)
}
