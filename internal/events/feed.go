package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// Change entity kinds carried on the feed.
const (
	EntityCompetition = "competition"
	EntityTeam        = "team"
)

// Change operation kinds.
const (
	ChangeInsert = "insert"
	ChangeUpdate = "update"
)

// Change is a single insert/update notification for a stored entity. The
// engine consumes the feed to keep its in-memory cache fresh; losing the feed
// degrades reads to store-only with no correctness loss, only staleness.
type Change struct {
	Op       string    `json:"op"`
	Entity   string    `json:"entity"`
	EntityID uint      `json:"entity_id"`
	At       time.Time `json:"at"`
}

// ChangeFeed is the abstract real-time change subscription. Implementations
// may sit on Redis pub/sub, polling, log tailing or a message queue.
type ChangeFeed interface {
	// Publish announces a change to all feed consumers.
	Publish(change Change) error

	// Subscribe returns a channel of changes, closed when ctx is cancelled.
	Subscribe(ctx context.Context) (<-chan Change, error)

	// Close releases feed resources.
	Close() error
}

// NoOpFeed is the standalone-mode feed: publishes are dropped and the
// subscription never delivers.
type NoOpFeed struct{}

// Publish implements ChangeFeed for NoOpFeed.
func (f *NoOpFeed) Publish(change Change) error {
	return nil
}

// Subscribe implements ChangeFeed for NoOpFeed.
func (f *NoOpFeed) Subscribe(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

// Close implements ChangeFeed for NoOpFeed.
func (f *NoOpFeed) Close() error {
	return nil
}

// redisFeedChannel is the pub/sub channel all instances share.
const redisFeedChannel = "competition:changes"

// RedisFeed implements ChangeFeed over Redis pub/sub using an existing
// universal client.
type RedisFeed struct {
	client redis.UniversalClient
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRedisFeed creates a Redis-backed change feed from an existing client.
func NewRedisFeed(client redis.UniversalClient) (*RedisFeed, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil for RedisFeed")
	}

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("provided redis client failed ping check: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &RedisFeed{client: client, ctx: ctx, cancel: cancel}, nil
}

// Publish announces a change on the shared channel.
func (f *RedisFeed) Publish(change Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return err
	}
	if err := f.client.Publish(f.ctx, redisFeedChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to feed channel %s: %w", redisFeedChannel, err)
	}
	return nil
}

// Subscribe consumes the shared channel until ctx is cancelled. Malformed
// payloads are logged and skipped.
func (f *RedisFeed) Subscribe(ctx context.Context) (<-chan Change, error) {
	sub := f.client.Subscribe(ctx, redisFeedChannel)

	// Force the subscription to establish before returning.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to feed channel %s: %w", redisFeedChannel, err)
	}

	out := make(chan Change, 64)
	go func() {
		defer close(out)
		defer sub.Close()

		msgCh := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-f.ctx.Done():
				return
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					log.Printf("[RedisFeed] dropping malformed change payload: %v", err)
					continue
				}
				select {
				case out <- change:
				default:
					log.Printf("[RedisFeed] consumer is slow, dropping change for %s #%d", change.Entity, change.EntityID)
				}
			}
		}
	}()

	return out, nil
}

// Close stops all subscriptions created from this feed.
func (f *RedisFeed) Close() error {
	f.cancel()
	return nil
}
