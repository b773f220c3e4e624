// Package bus is the in-process notification surface modules use to talk
// to each other. Delivery is fire-and-forget: Publish never blocks and a
// subscriber that cannot keep up misses notifications.
package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/ambient/internal/ports"
	"github.com/bft-labs/ambient/pkg/log"
)

// DefaultQueueSize is the per-subscriber queue length.
const DefaultQueueSize = 64

type subscription struct {
	id      int
	topics  map[string]struct{}
	handler func(ports.Notification)
	queue   chan ports.Notification
	done    chan struct{}
}

func (s *subscription) wants(topic string) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

// Bus implements ports.Bus. Each subscriber has its own queue and delivery
// goroutine, so a slow handler never delays the publisher or other
// subscribers.
type Bus struct {
	logger    log.Logger
	queueSize int
	now       func() time.Time

	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Bus.
type Option func(*Bus)

// WithQueueSize sets the per-subscriber queue length.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithLogger sets the logger used to report dropped notifications.
func WithLogger(logger log.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		logger:    log.NewNoopLogger(),
		queueSize: DefaultQueueSize,
		now:       time.Now,
		subs:      make(map[int]*subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers a notification to every subscriber of topic.
func (b *Bus) Publish(topic, sender string, payload any) {
	n := ports.Notification{
		ID:      uuid.NewString(),
		Topic:   topic,
		Sender:  sender,
		Payload: payload,
		SentAt:  b.now(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, s := range b.subs {
		if !s.wants(topic) {
			continue
		}
		select {
		case s.queue <- n:
		default:
			b.logger.Warn("notification dropped, subscriber queue full",
				log.String("topic", topic),
				log.String("sender", sender),
			)
		}
	}
}

// Subscribe registers handler for the given topics, or for every topic
// when none are given. Handlers run on a goroutine owned by the
// subscription, one notification at a time.
func (b *Bus) Subscribe(handler func(ports.Notification), topics ...string) func() {
	s := &subscription{
		topics:  make(map[string]struct{}, len(topics)),
		handler: handler,
		queue:   make(chan ports.Notification, b.queueSize),
		done:    make(chan struct{}),
	}
	for _, t := range topics {
		s.topics[t] = struct{}{}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	s.id = b.nextID
	b.nextID++
	b.subs[s.id] = s
	b.wg.Add(1)
	b.mu.Unlock()

	go b.deliver(s)

	return func() {
		b.mu.Lock()
		_, ok := b.subs[s.id]
		delete(b.subs, s.id)
		b.mu.Unlock()
		if ok {
			close(s.done)
		}
	}
}

func (b *Bus) deliver(s *subscription) {
	defer b.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case n := <-s.queue:
			b.invoke(s, n)
		}
	}
}

func (b *Bus) invoke(s *subscription, n ports.Notification) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("notification handler panicked",
				log.String("topic", n.Topic),
				log.Any("panic", r),
			)
		}
	}()
	s.handler(n)
}

// Close removes every subscription and waits for running handlers to
// return. Later Publish calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[int]*subscription)
	b.mu.Unlock()

	for _, s := range subs {
		close(s.done)
	}
	b.wg.Wait()
}
