// Package bus carries completion events from workers to API servers.
//
// The Redis implementation is fire-and-forget pub/sub: subscribers that
// are offline when an event is published never see it.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pullsense/pullsense/pkg/errors"
	"github.com/pullsense/pullsense/pkg/logger"
)

// CompletionEvent is the payload published when an analysis finishes.
type CompletionEvent struct {
	Type string              `json:"type"`
	Data CompletionEventData `json:"data"`
}

// CompletionEventData identifies the analyzed pull request.
type CompletionEventData struct {
	PRID   uint   `json:"pr_id"`
	Status string `json:"status"`
}

// NewCompletionEvent builds the analysis_complete event for a PR.
func NewCompletionEvent(prID uint, status string) CompletionEvent {
	return CompletionEvent{
		Type: "analysis_complete",
		Data: CompletionEventData{PRID: prID, Status: status},
	}
}

// Marshal encodes the event as its wire payload.
func (e CompletionEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Bus is a channel-based publish/subscribe transport.
type Bus interface {
	// Publish sends payload to all current subscribers of channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe returns a channel of payloads published to channel after
	// the subscription is established. The returned channel closes when
	// ctx is canceled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)

	// Close releases transport resources.
	Close() error
}

// redisBus implements Bus over Redis pub/sub.
type redisBus struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed Bus from a URL.
func NewRedis(redisURL string) (Bus, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "invalid Redis URL", err)
	}
	return &redisBus{client: redis.NewClient(opt)}, nil
}

// NewRedisWithClient wraps an existing client, used by tests.
func NewRedisWithClient(client *redis.Client) Bus {
	return &redisBus{client: client}
}

func (b *redisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return errors.Wrap(errors.ErrCodePublish, fmt.Sprintf("publish to %s failed", channel), err)
	}
	return nil
}

func (b *redisBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	sub := b.client.Subscribe(ctx, channel)

	// Wait for the subscription to be confirmed so messages published
	// after Subscribe returns are never missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errors.Wrap(errors.ErrCodePublish, fmt.Sprintf("subscribe to %s failed", channel), err)
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer func() {
			if err := sub.Close(); err != nil {
				logger.Warn("failed to close subscription", zap.Error(err))
			}
		}()
		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *redisBus) Close() error {
	return b.client.Close()
}

// memoryBus implements Bus in-process, for tests and single-process mode.
type memoryBus struct {
	mu   sync.Mutex
	subs map[string][]chan []byte
}

// NewMemory creates an in-process Bus.
func NewMemory() Bus {
	return &memoryBus{subs: make(map[string][]chan []byte)}
}

func (b *memoryBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	subs := make([]chan []byte, len(b.subs[channel]))
	copy(subs, b.subs[channel])
	b.mu.Unlock()

	msg := make([]byte, len(payload))
	copy(msg, payload)
	for _, ch := range subs {
		select {
		case ch <- msg:
		default:
			// Slow subscribers drop messages rather than block publishers.
		}
	}
	return nil
}

func (b *memoryBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer b.remove(channel, ch)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *memoryBus) remove(channel string, target chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[channel]
	for i, ch := range subs {
		if ch == target {
			b.subs[channel] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (b *memoryBus) Close() error {
	return nil
}
