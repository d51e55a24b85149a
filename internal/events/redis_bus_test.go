package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/you/otpsvc/domain"
)

func testRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush test Redis DB: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func publishEvents(t *testing.T, bus *RedisEventBus, events ...*domain.ChallengeEvent) {
	t.Helper()
	for _, event := range events {
		if err := bus.Publish(context.Background(), event); err != nil {
			t.Fatalf("failed to publish: %v", err)
		}
	}
}

func TestRedisEventBus_PublishSubscribe(t *testing.T) {
	client := testRedisClient(t)
	bus := NewRedisEventBus(client)

	publishEvents(t, bus,
		&domain.ChallengeEvent{ID: "evt-1", Type: domain.EventChallengeIssued, ChallengeID: "ch-1", Version: 1},
		&domain.ChallengeEvent{ID: "evt-2", Type: domain.EventChallengeVerified, ChallengeID: "ch-1", Version: 2},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var received []*domain.ChallengeEvent
	handler := func(ctx context.Context, event *domain.ChallengeEvent) error {
		mu.Lock()
		received = append(received, event)
		if len(received) == 2 {
			cancel()
		}
		mu.Unlock()
		return nil
	}

	err := bus.Subscribe(ctx, "test-group", "consumer-1", handler)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("expected 2 events, got %d", len(received))
	}
	// Append order is preserved within the challenge
	if received[0].Version != 1 || received[1].Version != 2 {
		t.Errorf("expected versions in order, got %d then %d", received[0].Version, received[1].Version)
	}

	// Everything handled was acked
	pending, err := client.XPending(context.Background(), "challenge-events", "test-group").Result()
	if err != nil {
		t.Fatalf("failed to read pending: %v", err)
	}
	if pending.Count != 0 {
		t.Errorf("expected no pending messages, got %d", pending.Count)
	}
}

func TestRedisEventBus_FailedHandlerLeavesPending(t *testing.T) {
	client := testRedisClient(t)
	bus := NewRedisEventBus(client)

	publishEvents(t, bus,
		&domain.ChallengeEvent{ID: "evt-1", Type: domain.EventChallengeIssued, ChallengeID: "ch-1", Version: 1},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := func(ctx context.Context, event *domain.ChallengeEvent) error {
		defer cancel()
		return errors.New("transient failure")
	}

	if err := bus.Subscribe(ctx, "test-group", "consumer-1", handler); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	pending, err := client.XPending(context.Background(), "challenge-events", "test-group").Result()
	if err != nil {
		t.Fatalf("failed to read pending: %v", err)
	}
	if pending.Count != 1 {
		t.Errorf("expected the failed message to stay pending, got %d", pending.Count)
	}
}

func TestRedisEventBus_MalformedMessageIsAcked(t *testing.T) {
	client := testRedisClient(t)
	bus := NewRedisEventBus(client)

	err := client.XAdd(context.Background(), &redis.XAddArgs{
		Stream: "challenge-events",
		Values: map[string]interface{}{"data": "{not json"},
	}).Err()
	if err != nil {
		t.Fatalf("failed to seed malformed message: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	handled := false
	handler := func(ctx context.Context, event *domain.ChallengeEvent) error {
		handled = true
		return nil
	}

	if err := bus.Subscribe(ctx, "test-group", "consumer-1", handler); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if handled {
		t.Error("malformed message must not reach the handler")
	}

	pending, err := client.XPending(context.Background(), "challenge-events", "test-group").Result()
	if err != nil {
		t.Fatalf("failed to read pending: %v", err)
	}
	if pending.Count != 0 {
		t.Errorf("expected the malformed message acked, got %d pending", pending.Count)
	}
}
