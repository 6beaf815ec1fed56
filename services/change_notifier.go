package services

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const ReportChangesChannel = "safegate:reports"

// ChangeNotifier fans out "report changed" events so subscriptions can
// re-query. Payloads are report ids.
type ChangeNotifier interface {
	Publish(ctx context.Context, reportID string) error
	Subscribe(ctx context.Context) (<-chan string, func(), error)
}

// RedisChangeNotifier shares change events across server instances.
type RedisChangeNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisChangeNotifier(client *redis.Client) *RedisChangeNotifier {
	return &RedisChangeNotifier{client: client, channel: ReportChangesChannel}
}

func (n *RedisChangeNotifier) Publish(ctx context.Context, reportID string) error {
	return n.client.Publish(ctx, n.channel, reportID).Err()
}

func (n *RedisChangeNotifier) Subscribe(ctx context.Context) (<-chan string, func(), error) {
	pubsub := n.client.Subscribe(ctx, n.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, err
	}

	out := make(chan string, 16)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
					logrus.Debugf("Dropping change event for %s, subscriber is slow", msg.Payload)
				}
			}
		}
	}()

	return out, cancel, nil
}

// LocalChangeNotifier delivers events within the process.
type LocalChangeNotifier struct {
	mu   sync.RWMutex
	subs map[chan string]struct{}
}

func NewLocalChangeNotifier() *LocalChangeNotifier {
	return &LocalChangeNotifier{subs: make(map[chan string]struct{})}
}

func (n *LocalChangeNotifier) Publish(_ context.Context, reportID string) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for ch := range n.subs {
		select {
		case ch <- reportID:
		default:
		}
	}
	return nil
}

func (n *LocalChangeNotifier) Subscribe(ctx context.Context) (<-chan string, func(), error) {
	ch := make(chan string, 16)

	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, ch)
			close(ch)
			n.mu.Unlock()
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel, nil
}

// watchChanges runs refresh once for the initial state and again for every
// relevant change event until the returned func is called or ctx ends.
func watchChanges(
	ctx context.Context,
	notifier ChangeNotifier,
	relevant func(reportID string) bool,
	refresh func(ctx context.Context) error,
	onError func(error),
) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	events, stop, err := notifier.Subscribe(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	run := func() {
		if err := refresh(ctx); err != nil && ctx.Err() == nil && onError != nil {
			onError(err)
		}
	}

	go func() {
		defer stop()
		run()
		for {
			select {
			case <-ctx.Done():
				return
			case id, ok := <-events:
				if !ok {
					return
				}
				if relevant == nil || relevant(id) {
					run()
				}
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}
