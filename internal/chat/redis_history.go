package chat

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// historyKey is the Redis key for the chat history list.
const historyKey = "chat:history"

// redisTimeout bounds each Redis round trip.
const redisTimeout = 2 * time.Second

// RedisHistory keeps the history in a Redis list. It satisfies the
// same contract as Log; the dispatcher cannot tell them apart.
type RedisHistory struct {
	client redis.Cmdable
}

// NewRedisHistory creates a history backed by the given Redis client.
func NewRedisHistory(client redis.Cmdable) *RedisHistory {
	return &RedisHistory{client: client}
}

// Append pushes a message onto the end of the history list. Failures
// are logged and swallowed; chat continues without the record.
func (h *RedisHistory) Append(msg *Message) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("redis: failed to marshal message: %v", err)
		return
	}
	if err := h.client.RPush(ctx, historyKey, data).Err(); err != nil {
		log.Printf("redis: failed to append message: %v", err)
	}
}

// Snapshot returns the full history in append order.
func (h *RedisHistory) Snapshot() []*Message {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	vals, err := h.client.LRange(ctx, historyKey, 0, -1).Result()
	if err != nil {
		log.Printf("redis: failed to read history: %v", err)
		return nil
	}

	msgs := make([]*Message, 0, len(vals))
	for _, v := range vals {
		var m Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			continue
		}
		msgs = append(msgs, &m)
	}
	return msgs
}

// Count returns the number of stored messages.
func (h *RedisHistory) Count() int {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	n, err := h.client.LLen(ctx, historyKey).Result()
	if err != nil {
		log.Printf("redis: failed to count history: %v", err)
		return 0
	}
	return int(n)
}
