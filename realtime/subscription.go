package realtime

import (
	"context"
	"sync"
	"time"

	cms "github.com/loomcms/loom"
	"github.com/loomcms/loom/query"
)

// Topic is one client-defined subscription bound to an SSE connection
// (spec section 4.6, "a single POST request carries a list of topics").
type Topic struct {
	ID           string
	ResourceType string
	Resource     string
	Where        query.Predicate
	With         []string
	Limit        int
	Offset       int
	OrderBy      []query.Sort
}

// Finder is the narrow surface the SSE multiplexer calls back into to
// resolve a topic's current snapshot. crud.Engine satisfies this directly
// (Find + Populate), kept as an interface here so realtime never imports
// crud (crud's transactional writer already imports realtime the other
// way, to append log rows and notify the dispatcher).
type Finder interface {
	Find(ac *cms.AppContext, collectionName string, where query.Predicate, sorts []query.Sort, page query.Page) (data []cms.Record, total int, err error)
	Populate(ac *cms.AppContext, collectionName string, records []cms.Record, with []string) error
}

// Event is one SSE frame: event name + JSON-able payload.
type Event struct {
	Name string
	Data any
}

const pingInterval = 25 * time.Second

// Subscribe drives one client's multiplexed SSE stream: it resolves each
// topic's initial snapshot, then re-refreshes a topic whenever the
// dispatcher reports a new seq for its (resourceType, resource), honoring
// the per-topic "mutex + queued flag" refresh discipline (spec 4.6), until
// ctx is cancelled (client abort) or send returns an error.
func Subscribe(ctx context.Context, ac *cms.AppContext, disp *Dispatcher, finder Finder, topics []Topic, send func(Event) error) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(topics)+1)
	stop := make(chan struct{})
	var stopOnce sync.Once
	closeStop := func() { stopOnce.Do(func() { close(stop) }) }

	for _, t := range topics {
		t := t
		wg.Add(1)
		go func() {
			defer wg.Done()
			runTopic(ctx, ac, disp, finder, t, send, stop, errCh)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		pingLoop(ctx, send, stop)
	}()

	select {
	case <-ctx.Done():
		closeStop()
	case err := <-errCh:
		closeStop()
		wg.Wait()
		return err
	}
	wg.Wait()
	return nil
}

func pingLoop(ctx context.Context, send func(Event) error, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case now := <-ticker.C:
			if err := send(Event{Name: "ping", Data: map[string]any{"ts": now.UTC()}}); err != nil {
				return
			}
		}
	}
}

func runTopic(ctx context.Context, ac *cms.AppContext, disp *Dispatcher, finder Finder, t Topic, send func(Event) error, stop <-chan struct{}, errCh chan<- error) {
	notifyCh, unsubscribe := disp.subscribe(topicKey{t.ResourceType, t.Resource})
	defer unsubscribe()

	var mu sync.Mutex
	refreshing := false
	queued := false

	refresh := func(seq int64) {
		mu.Lock()
		if refreshing {
			queued = true
			mu.Unlock()
			return
		}
		refreshing = true
		mu.Unlock()

		for {
			data, err := snapshot(ac, finder, t)
			if err != nil {
				_ = send(Event{Name: "error", Data: map[string]any{"topicId": t.ID, "message": err.Error()}})
			} else {
				if err := send(Event{Name: "snapshot", Data: map[string]any{"topicId": t.ID, "seq": seq, "data": data}}); err != nil {
					select {
					case errCh <- err:
					default:
					}
				}
			}

			mu.Lock()
			if queued {
				queued = false
				mu.Unlock()
				continue
			}
			refreshing = false
			mu.Unlock()
			return
		}
	}

	// Initial snapshot, seq unknown until the first dispatcher notify.
	refresh(0)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case seq := <-notifyCh:
			refresh(seq)
		}
	}
}

func snapshot(ac *cms.AppContext, finder Finder, t Topic) ([]cms.Record, error) {
	page := query.Page{Limit: t.Limit, Offset: t.Offset}
	data, _, err := finder.Find(ac, t.Resource, t.Where, t.OrderBy, page)
	if err != nil {
		return nil, err
	}
	if len(t.With) > 0 {
		if err := finder.Populate(ac, t.Resource, data, t.With); err != nil {
			return nil, err
		}
	}
	return data, nil
}
