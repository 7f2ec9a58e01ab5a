package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"lunaexecutor-backend/internal/common/logger"
	"lunaexecutor-backend/internal/common/metrics"
	"lunaexecutor-backend/internal/features/chat/models"
)

const payloadField = "payload"

// StreamClient is the Redis stream surface used by the chat fan-out.
type StreamClient interface {
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
	XRead(ctx context.Context, a *goredis.XReadArgs) *goredis.XStreamSliceCmd
}

// LocalBroadcaster delivers encoded frames to this instance's connections.
type LocalBroadcaster interface {
	BroadcastRaw(data []byte) int
}

// StreamPublisher appends persisted chat messages to a Redis stream instead of
// broadcasting locally. Every instance's ChatFanoutWorker relays them.
type StreamPublisher struct {
	client StreamClient
	stream string
	maxLen int64
}

func NewStreamPublisher(client StreamClient, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) Broadcast(ctx context.Context, msg *models.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal chat message: %w", err)
	}

	err = p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			payloadField: string(data),
			"id":         strconv.FormatInt(msg.ID, 10),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish chat message: %w", err)
	}
	return nil
}

// ChatFanoutWorker tails the chat stream and broadcasts each entry to local connections.
type ChatFanoutWorker struct {
	client StreamClient
	local  LocalBroadcaster
	stream string
	block  time.Duration
	now    func() time.Time
}

func NewChatFanoutWorker(client StreamClient, local LocalBroadcaster, stream string) *ChatFanoutWorker {
	return &ChatFanoutWorker{
		client: client,
		local:  local,
		stream: stream,
		block:  5 * time.Second,
		now:    time.Now,
	}
}

// Start blocks until ctx is cancelled.
func (w *ChatFanoutWorker) Start(ctx context.Context) {
	// Entries added after startup; "$" would miss anything published between reads.
	lastID := fmt.Sprintf("%d-0", w.now().UnixMilli())

	logger.Info().Str("stream", w.stream).Msg("Starting chat fan-out worker")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Stopping chat fan-out worker")
			return
		default:
		}

		streams, err := w.client.XRead(ctx, &goredis.XReadArgs{
			Streams: []string{w.stream, lastID},
			Count:   100,
			Block:   w.block,
		}).Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) || ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Msg("Error reading chat stream")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID
				w.relay(msg.Values)
			}
		}
	}
}

func (w *ChatFanoutWorker) relay(values map[string]interface{}) {
	payload, ok := values[payloadField].(string)
	if !ok || payload == "" {
		logger.Warn().Interface("values", values).Msg("Skipping chat stream entry without payload")
		return
	}
	w.local.BroadcastRaw([]byte(payload))
	metrics.ObserveChatMessage(metrics.OutcomeBroadcast)
}
