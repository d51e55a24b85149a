package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/you/otpsvc/domain"
)

const (
	defaultStream  = "challenge-events"
	readBlock      = 5 * time.Second
	readBatch      = 16
	reclaimMinIdle = time.Minute
	reclaimEvery   = 12 // read iterations between pending reclaims
)

// RedisEventBus implements domain.EventPublisher and domain.EventSubscriber
// on a single Redis Stream. One stream keeps per-challenge append order;
// consumer groups give at-least-once delivery across saga replicas.
type RedisEventBus struct {
	client *redis.Client
	stream string
}

// NewRedisEventBus creates a new stream-backed event bus
func NewRedisEventBus(client *redis.Client) *RedisEventBus {
	return &RedisEventBus{client: client, stream: defaultStream}
}

// Publish implements domain.EventPublisher
func (b *RedisEventBus) Publish(ctx context.Context, event *domain.ChallengeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]interface{}{"data": data},
	}).Err()
}

// Subscribe implements domain.EventSubscriber. It blocks until ctx is
// cancelled. Handled messages are acked; failed ones stay pending and are
// reclaimed after reclaimMinIdle, so delivery is at least once.
func (b *RedisEventBus) Subscribe(ctx context.Context, group, consumer string, handler domain.EventHandler) error {
	if err := b.ensureGroup(ctx, group); err != nil {
		return err
	}

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if i%reclaimEvery == 0 {
			b.reclaimPending(ctx, group, consumer, handler)
		}

		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{b.stream, ">"},
			Count:    readBatch,
			Block:    readBlock,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("event bus: read failed: %v", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				b.handleMessage(ctx, group, msg, handler)
			}
		}
	}
}

func (b *RedisEventBus) ensureGroup(ctx context.Context, group string) error {
	err := b.client.XGroupCreateMkStream(ctx, b.stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// reclaimPending takes over messages another consumer left unacked, e.g.
// after a crashed replica
func (b *RedisEventBus) reclaimPending(ctx context.Context, group, consumer string, handler domain.EventHandler) {
	messages, _, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   b.stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  reclaimMinIdle,
		Start:    "0-0",
		Count:    readBatch,
	}).Result()
	if err != nil && err != redis.Nil {
		log.Printf("event bus: reclaim failed: %v", err)
		return
	}

	for _, msg := range messages {
		b.handleMessage(ctx, group, msg, handler)
	}
}

func (b *RedisEventBus) handleMessage(ctx context.Context, group string, msg redis.XMessage, handler domain.EventHandler) {
	// Acks must land even when ctx is cancelled mid-batch, or handled
	// messages would be redelivered on the next start
	ackCtx := context.WithoutCancel(ctx)

	raw, ok := msg.Values["data"].(string)
	if !ok {
		// Malformed entry, ack so it never blocks the group
		log.Printf("event bus: dropping malformed message %s", msg.ID)
		b.client.XAck(ackCtx, b.stream, group, msg.ID)
		return
	}

	var event domain.ChallengeEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		log.Printf("event bus: dropping undecodable message %s: %v", msg.ID, err)
		b.client.XAck(ackCtx, b.stream, group, msg.ID)
		return
	}

	if err := handler(ctx, &event); err != nil {
		// Leave pending for redelivery
		log.Printf("event bus: handler failed for %s (%s): %v", event.ChallengeID, event.Type, err)
		return
	}

	if err := b.client.XAck(ackCtx, b.stream, group, msg.ID).Err(); err != nil {
		log.Printf("event bus: ack failed for %s: %v", msg.ID, err)
	}
}
