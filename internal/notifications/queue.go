package notifications

import (
	"sync"
	"time"
)

// QueueItem is one pending delivery.
type QueueItem struct {
	ID          string
	Channel     ChannelType
	To          string
	Payload     NotificationPayload
	Attempts    int
	MaxAttempts int
	LastError   string
	CreatedAt   time.Time
}

// Queue is a bounded in-process delivery queue. Enqueue never blocks so an
// incident save is not held up by slow channels.
type Queue struct {
	items chan *QueueItem

	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a queue holding up to size items.
func NewQueue(size int) *Queue {
	return &Queue{items: make(chan *QueueItem, size)}
}

// Enqueue adds an item, failing with ErrQueueFull when the buffer is full.
func (q *Queue) Enqueue(item *QueueItem) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- item:
		recordQueueDepth(len(q.items))
		return nil
	default:
		recordNotificationSent(string(item.Channel), "dropped")
		return ErrQueueFull
	}
}

// Items returns the channel workers receive from.
func (q *Queue) Items() <-chan *QueueItem {
	return q.items
}

// Len returns the number of waiting items.
func (q *Queue) Len() int {
	return len(q.items)
}

// Close stops accepting items. Workers drain what is left.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.items)
}
