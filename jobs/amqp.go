package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/streadway/amqp"

	cms "github.com/loomcms/loom"
)

// AMQPConnection abstracts *amqp.Connection for dependency injection and
// testing with a mock implementation, mirroring the interface-wrapped
// connection/channel pattern production RabbitMQ integrations in the
// corpus use.
type AMQPConnection interface {
	Channel() (AMQPChannel, error)
	Close() error
}

// AMQPChannel abstracts *amqp.Channel.
type AMQPChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// AMQPDialer abstracts amqp.Dial.
type AMQPDialer interface {
	Dial(url string) (AMQPConnection, error)
}

type realConn struct{ conn *amqp.Connection }

func (r *realConn) Channel() (AMQPChannel, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, err
	}
	return &realChannel{ch: ch}, nil
}
func (r *realConn) Close() error { return r.conn.Close() }

type realChannel struct{ ch *amqp.Channel }

func (r *realChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	return r.ch.QueueDeclare(name, durable, autoDelete, exclusive, noWait, args)
}
func (r *realChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return r.ch.Publish(exchange, key, mandatory, immediate, msg)
}
func (r *realChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return r.ch.Consume(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
}
func (r *realChannel) Close() error { return r.ch.Close() }

// RealDialer dials a live RabbitMQ broker.
type RealDialer struct{}

func (RealDialer) Dial(url string) (AMQPConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &realConn{conn: conn}, nil
}

// AMQPAdapter implements Adapter over a single durable queue per job name.
// Scheduling/push-consumer capabilities are not supported by plain AMQP
// (no built-in delay/cron primitive), so Capabilities reports them false;
// the registry surfaces SchedulingUnavailable when a caller tries to
// schedule against this adapter.
type AMQPAdapter struct {
	url    string
	dialer AMQPDialer

	mu      sync.Mutex
	conn    AMQPConnection
	channel AMQPChannel

	errMu    sync.Mutex
	errHooks []func(error)
}

// NewAMQPAdapter builds an adapter dialing url with the real AMQP client.
func NewAMQPAdapter(url string) *AMQPAdapter {
	return &AMQPAdapter{url: url, dialer: RealDialer{}}
}

// NewAMQPAdapterWithDialer builds an adapter with an injected dialer, for
// testing against a mock connection.
func NewAMQPAdapterWithDialer(url string, dialer AMQPDialer) *AMQPAdapter {
	return &AMQPAdapter{url: url, dialer: dialer}
}

func (a *AMQPAdapter) Capabilities() Capabilities {
	return Capabilities{LongRunningConsumer: true, RunOnceConsumer: true, PushConsumer: false, Scheduling: false, Singleton: false}
}

func (a *AMQPAdapter) ensureChannel() (AMQPChannel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.channel != nil {
		return a.channel, nil
	}
	conn, err := a.dialer.Dial(a.url)
	if err != nil {
		return nil, cms.Wrap(cms.KindInternal, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, cms.Wrap(cms.KindInternal, err)
	}
	a.conn, a.channel = conn, ch
	return ch, nil
}

func (a *AMQPAdapter) declare(ch AMQPChannel, jobName string) error {
	_, err := ch.QueueDeclare(jobName, true, false, false, false, nil)
	return err
}

// Publish sends payload to the durable queue named jobName.
func (a *AMQPAdapter) Publish(ctx context.Context, jobName string, payload []byte, opts cms.EnqueueOptions) (string, error) {
	ch, err := a.ensureChannel()
	if err != nil {
		return "", err
	}
	if err := a.declare(ch, jobName); err != nil {
		return "", cms.Wrap(cms.KindInternal, err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		Body:         payload,
		Priority:     uint8(clamp(opts.Priority, 0, 9)),
		DeliveryMode: amqp.Persistent,
	}
	if opts.StartAfter > 0 {
		// AMQP core has no per-message delay; a delayed-message exchange
		// plugin would be required for true deferred delivery. Document
		// the gap rather than silently dropping StartAfter.
		pub.Headers = amqp.Table{"x-start-after-ms": int64(opts.StartAfter / time.Millisecond)}
	}
	if err := ch.Publish("", jobName, false, false, pub); err != nil {
		return "", cms.Wrap(cms.KindInternal, err)
	}
	return "", nil
}

func (a *AMQPAdapter) Schedule(ctx context.Context, jobName, cronExpr string, payload []byte, opts cms.EnqueueOptions) error {
	return cms.SchedulingUnavailable()
}

func (a *AMQPAdapter) Unschedule(ctx context.Context, jobName string) error {
	return cms.SchedulingUnavailable()
}

// Listen consumes every registered job's queue until ctx is cancelled,
// retrying handler failures with exponential backoff, at most 5 times
// whatever the job's Options.RetryLimit, before nacking without requeue.
func (a *AMQPAdapter) Listen(ctx context.Context, handlers map[string]Handler) error {
	ch, err := a.ensureChannel()
	if err != nil {
		return err
	}
	var wg sync.WaitGroup
	for name, handler := range handlers {
		if err := a.declare(ch, name); err != nil {
			return cms.Wrap(cms.KindInternal, err)
		}
		deliveries, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return cms.Wrap(cms.KindInternal, err)
		}
		wg.Add(1)
		go func(name string, handler Handler, deliveries <-chan amqp.Delivery) {
			defer wg.Done()
			a.consumeLoop(ctx, name, handler, deliveries)
		}(name, handler, deliveries)
	}
	<-ctx.Done()
	wg.Wait()
	return nil
}

func (a *AMQPAdapter) consumeLoop(ctx context.Context, jobName string, handler Handler, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			if err := a.handleWithRetry(ctx, handler, d.Body); err != nil {
				a.reportError(fmt.Errorf("job %s: %w", jobName, err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handleWithRetry runs handler with exponential backoff, retrying at most
// 5 times; the job's RetryLimit, RetryDelay and RetryBackoff options are
// not consulted.
func (a *AMQPAdapter) handleWithRetry(ctx context.Context, handler Handler, body json.RawMessage) error {
	bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	return backoff.Retry(func() error {
		return handler(ctx, body)
	}, backoff.WithMaxRetries(bo, 5))
}

// RunOnce drains whatever is currently queued for each handler (up to one
// bounded batch) without blocking for new deliveries, for serverless-tick
// invocation.
func (a *AMQPAdapter) RunOnce(ctx context.Context, handlers map[string]Handler) (RunStats, error) {
	ch, err := a.ensureChannel()
	if err != nil {
		return RunStats{}, err
	}
	processed := 0
	for name, handler := range handlers {
		if err := a.declare(ch, name); err != nil {
			return RunStats{Processed: processed}, cms.Wrap(cms.KindInternal, err)
		}
		deliveries, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return RunStats{Processed: processed}, cms.Wrap(cms.KindInternal, err)
		}
	drain:
		for {
			select {
			case d, ok := <-deliveries:
				if !ok {
					break drain
				}
				if err := a.handleWithRetry(ctx, handler, d.Body); err != nil {
					a.reportError(fmt.Errorf("job %s: %w", name, err))
					_ = d.Nack(false, false)
				} else {
					_ = d.Ack(false)
				}
				processed++
			default:
				break drain
			}
		}
	}
	return RunStats{Processed: processed}, nil
}

// CreatePushConsumer is not supported by the plain AMQP adapter (push
// delivery is a broker-push model like Cloudflare Queues, not how AMQP
// consumers work); it is provided so callers can type-assert for the
// capability before calling.
func (a *AMQPAdapter) CreatePushConsumer(handlers map[string]Handler) (func(batch []json.RawMessage) error, error) {
	return nil, cms.Internalf("jobs: AMQP adapter does not support push consumers")
}

func (a *AMQPAdapter) OnError(fn func(error)) {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	a.errHooks = append(a.errHooks, fn)
}

func (a *AMQPAdapter) reportError(err error) {
	a.errMu.Lock()
	hooks := append([]func(error){}, a.errHooks...)
	a.errMu.Unlock()
	for _, h := range hooks {
		h(err)
	}
}

// Close closes the channel and connection.
func (a *AMQPAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.channel != nil {
		a.channel.Close()
	}
	if a.conn != nil {
		a.conn.Close()
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
