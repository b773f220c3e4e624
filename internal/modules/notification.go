package modules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/ambient/internal/domain"
	"github.com/bft-labs/ambient/internal/ports"
)

// DefaultNotificationCapacity bounds the inbox when the module sets no limit.
const DefaultNotificationCapacity = 20

// Notification shows bus events, newest first, for a limited time.
type Notification struct {
	opts     domain.NotificationOptions
	capacity int
	now      func() time.Time
	cancel   func()

	mu    sync.Mutex
	inbox []domain.Item
}

// NewNotification subscribes to the configured topics, or to
// ports.TopicShowAlert when none are set.
func NewNotification(opts domain.NotificationOptions, capacity int, bus ports.Subscriber, now func() time.Time) *Notification {
	if capacity <= 0 {
		capacity = DefaultNotificationCapacity
	}
	if len(opts.Topics) == 0 {
		opts.Topics = []string{ports.TopicShowAlert}
	}
	n := &Notification{opts: opts, capacity: capacity, now: now}
	n.cancel = bus.Subscribe(n.receive, opts.Topics...)
	return n
}

func (n *Notification) receive(msg ports.Notification) {
	item := notificationItem(msg)

	n.mu.Lock()
	defer n.mu.Unlock()
	n.inbox = append([]domain.Item{item}, n.inbox...)
	if len(n.inbox) > n.capacity {
		n.inbox = n.inbox[:n.capacity]
	}
}

func notificationItem(msg ports.Notification) domain.Item {
	item := domain.Item{
		ID:      msg.ID,
		SortKey: msg.SentAt,
		Source:  msg.Sender,
	}
	switch p := msg.Payload.(type) {
	case ports.Alert:
		item.Title, item.Description = p.Title, p.Message
	case ports.ModuleError:
		item.Title = fmt.Sprintf("%s: %s", p.ModuleID, p.Kind)
		item.Description = p.Message
	case string:
		item.Title = p
	case nil:
		item.Title = msg.Topic
	default:
		item.Title = msg.Topic
		item.Description = fmt.Sprint(p)
	}
	return item
}

// Close unsubscribes from the bus.
func (n *Notification) Close() error {
	n.cancel()
	return nil
}

// Fetch returns the notifications still within their display time.
func (n *Notification) Fetch(ctx context.Context, spec domain.ModuleSpec) domain.FetchResult {
	now := n.now()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.opts.DisplayTime > 0 {
		kept := n.inbox[:0]
		for _, it := range n.inbox {
			if now.Sub(it.SortKey) < n.opts.DisplayTime {
				kept = append(kept, it)
			}
		}
		n.inbox = kept
	}
	return domain.Ok(append([]domain.Item(nil), n.inbox...), now)
}
