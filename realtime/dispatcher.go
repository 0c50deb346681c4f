package realtime

import "sync"

// topicKey identifies the (resourceType, resource) pair a dispatcher
// notification targets, e.g. ("collection", "posts").
type topicKey struct {
	resourceType string
	resource     string
}

// Dispatcher owns the process's subscriber registry (spec: "the realtime
// dispatcher owns the set of subscriptions; registration and delivery are
// synchronised via a read-mostly lock"). It is owned by one CMS instance,
// not the process — tests construct a fresh Dispatcher per test.
type Dispatcher struct {
	mu   sync.RWMutex
	subs map[topicKey]map[int]chan int64
	next int
}

// NewDispatcher builds an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[topicKey]map[int]chan int64)}
}

// subscribe registers a buffered channel of seq notifications for key,
// returning an unsubscribe function. The channel is buffered (size 1) and
// coalescing: a pending notification is overwritten rather than blocking
// the writer, since a subscriber only ever cares about "refresh to
// latest", not the exact sequence of intermediate seqs.
func (d *Dispatcher) subscribe(key topicKey) (ch chan int64, unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch = make(chan int64, 1)
	id := d.next
	d.next++
	if d.subs[key] == nil {
		d.subs[key] = make(map[int]chan int64)
	}
	d.subs[key][id] = ch
	unsubscribe = func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subs[key], id)
		if len(d.subs[key]) == 0 {
			delete(d.subs, key)
		}
	}
	return ch, unsubscribe
}

// Notify wakes every subscriber registered for (resourceType, resource)
// with the latest seq, coalescing with any notification still pending in
// a subscriber's channel.
func (d *Dispatcher) Notify(resourceType, resource string, seq int64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	key := topicKey{resourceType, resource}
	for _, ch := range d.subs[key] {
		select {
		case ch <- seq:
		default:
			// A refresh is already queued for this subscriber; drain and
			// replace with the newer seq rather than blocking Notify.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- seq:
			default:
			}
		}
	}
}
