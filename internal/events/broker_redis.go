package events

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const publishTimeout = 2 * time.Second

// RedisBroker implements EventBroker over Redis Pub/Sub so every dashboard
// replica sees route plans built on any of them.
type RedisBroker struct {
	rdb    *redis.Client
	prefix string

	mu   sync.Mutex
	subs map[chan Event]*redis.PubSub
}

// NewRedisBroker connects to redisURL and checks the connection
func NewRedisBroker(ctx context.Context, redisURL string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return NewRedisBrokerFromClient(rdb), nil
}

// NewRedisBrokerFromClient wraps an existing client
func NewRedisBrokerFromClient(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{
		rdb:    rdb,
		prefix: "binsight:",
		subs:   map[chan Event]*redis.PubSub{},
	}
}

func (b *RedisBroker) Subscribe(topic string) chan Event {
	ch := make(chan Event, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(topic))
	// wait for the subscription to be confirmed
	if _, err := ps.Receive(ctx); err != nil {
		log.Printf("⚠️  Redis subscribe to %s failed: %v", topic, err)
	}

	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()

	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				log.Printf("⚠️  Dropping malformed event on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}()
	return ch
}

// Unsubscribe closes the subscription; ch is closed once its reader exits
func (b *RedisBroker) Unsubscribe(topic string, ch chan Event) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		ps.Close()
	}
}

func (b *RedisBroker) Publish(topic string, evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("❌ Failed to marshal %s event: %v", evt.Type, err)
		return
	}
	if err := b.rdb.Publish(ctx, b.chanName(topic), data).Err(); err != nil {
		log.Printf("❌ Redis publish to %s failed: %v", topic, err)
	}
}

// Close drops all subscriptions and the client
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	for ch, ps := range b.subs {
		ps.Close()
		delete(b.subs, ch)
	}
	b.mu.Unlock()
	return b.rdb.Close()
}

func (b *RedisBroker) chanName(topic string) string { return b.prefix + topic }
