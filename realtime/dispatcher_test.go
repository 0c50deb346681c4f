package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherNotifySubscribers(t *testing.T) {
	t.Parallel()
	d := NewDispatcher()
	ch, unsubscribe := d.subscribe(topicKey{"collection", "posts"})
	defer unsubscribe()

	d.Notify("collection", "posts", 7)
	select {
	case seq := <-ch:
		assert.Equal(t, int64(7), seq)
	case <-time.After(time.Second):
		t.Fatal("expected notification")
	}

	// Unrelated resource must not wake this subscriber.
	d.Notify("collection", "comments", 1)
	select {
	case <-ch:
		t.Fatal("unexpected notification for unrelated resource")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatcherCoalescesPendingNotify(t *testing.T) {
	t.Parallel()
	d := NewDispatcher()
	ch, unsubscribe := d.subscribe(topicKey{"collection", "posts"})
	defer unsubscribe()

	d.Notify("collection", "posts", 1)
	d.Notify("collection", "posts", 2)
	d.Notify("collection", "posts", 3)

	select {
	case seq := <-ch:
		assert.Equal(t, int64(3), seq)
	case <-time.After(time.Second):
		t.Fatal("expected coalesced notification")
	}
	select {
	case <-ch:
		t.Fatal("expected only one coalesced notification")
	default:
	}
}

func TestDispatcherUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()
	d := NewDispatcher()
	ch, unsubscribe := d.subscribe(topicKey{"collection", "posts"})
	unsubscribe()

	d.Notify("collection", "posts", 1)
	select {
	case <-ch:
		t.Fatal("unsubscribed channel must not receive")
	case <-time.After(50 * time.Millisecond):
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	require.Empty(t, d.subs)
}
