package workers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunaexecutor-backend/internal/features/chat/models"
	"lunaexecutor-backend/internal/platform/redis/redistest"
)

const testStream = "chat:test"

type recordingBroadcaster struct {
	mu     sync.Mutex
	frames [][]byte
}

func (b *recordingBroadcaster) BroadcastRaw(data []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, append([]byte(nil), data...))
	return 1
}

func (b *recordingBroadcaster) received() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.frames...)
}

// streamEntries flattens miniredis stream entries into field maps.
func streamEntries(t *testing.T, mr *miniredis.Miniredis) []map[string]string {
	t.Helper()
	entries, err := mr.Stream(testStream)
	require.NoError(t, err)

	out := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		fields := make(map[string]string, len(e.Values)/2)
		for i := 0; i+1 < len(e.Values); i += 2 {
			fields[e.Values[i]] = e.Values[i+1]
		}
		out = append(out, fields)
	}
	return out
}

func TestStreamPublisher_Broadcast(t *testing.T) {
	rdb, mr := redistest.New(t)
	publisher := NewStreamPublisher(rdb, testStream, 100)

	msg := &models.ChatMessage{
		ID:        7,
		UserID:    42,
		Content:   "hello",
		Timestamp: time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC),
	}
	require.NoError(t, publisher.Broadcast(context.Background(), msg))

	entries := streamEntries(t, mr)
	require.Len(t, entries, 1)
	assert.Equal(t, "7", entries[0]["id"])

	var decoded models.ChatMessage
	require.NoError(t, json.Unmarshal([]byte(entries[0][payloadField]), &decoded))
	assert.Equal(t, *msg, decoded)
}

func TestStreamPublisher_TrimsToMaxLen(t *testing.T) {
	rdb, mr := redistest.New(t)
	publisher := NewStreamPublisher(rdb, testStream, 2)

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, publisher.Broadcast(context.Background(), &models.ChatMessage{ID: i}))
	}

	entries := streamEntries(t, mr)
	require.Len(t, entries, 2)
	assert.Equal(t, "2", entries[0]["id"])
	assert.Equal(t, "3", entries[1]["id"])
}

func TestStreamPublisher_RedisFailure(t *testing.T) {
	rdb, mr := redistest.New(t)
	mr.SetError("connection refused")
	publisher := NewStreamPublisher(rdb, testStream, 100)

	err := publisher.Broadcast(context.Background(), &models.ChatMessage{ID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish chat message")
}

func TestChatFanoutWorker_RelaysInOrder(t *testing.T) {
	rdb := redistest.NewClient(t)
	local := &recordingBroadcaster{}
	publisher := NewStreamPublisher(rdb, testStream, 100)

	worker := NewChatFanoutWorker(rdb, local, testStream)
	worker.block = 50 * time.Millisecond
	worker.now = func() time.Time { return time.Now().Add(-time.Minute) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, publisher.Broadcast(context.Background(), &models.ChatMessage{ID: i, Content: "m"}))
	}

	require.Eventually(t, func() bool { return len(local.received()) == 3 }, 5*time.Second, 10*time.Millisecond)
	for i, frame := range local.received() {
		var msg models.ChatMessage
		require.NoError(t, json.Unmarshal(frame, &msg))
		assert.Equal(t, int64(i+1), msg.ID)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestChatFanoutWorker_SkipsEntriesWithoutPayload(t *testing.T) {
	local := &recordingBroadcaster{}
	worker := NewChatFanoutWorker(redistest.NewClient(t), local, testStream)
	worker.relay(map[string]interface{}{"id": "1"})
	worker.relay(map[string]interface{}{payloadField: ""})
	worker.relay(map[string]interface{}{payloadField: `{"id":2}`})

	frames := local.received()
	require.Len(t, frames, 1)
	assert.JSONEq(t, `{"id":2}`, string(frames[0]))
}

func TestChatFanoutWorker_StopsWhileRedisFails(t *testing.T) {
	rdb, mr := redistest.New(t)
	mr.SetError("connection refused")

	worker := NewChatFanoutWorker(rdb, &recordingBroadcaster{}, testStream)
	worker.block = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
