// Package jobs implements the job queue abstraction (spec section 4.7): a
// registry of named job definitions, a broker-agnostic Adapter contract,
// and an AMQP adapter grounded in the same interface-wrapped
// connection/channel pattern a production RabbitMQ integration in the
// corpus uses for dependency injection and testability.
package jobs

import (
	"context"
	"encoding/json"
	"time"

	cms "github.com/loomcms/loom"
)

// Options configures a job's default publish/retry/scheduling behaviour
// (spec 4.7, "JobDefinition").
type Options struct {
	Priority         int
	RetryLimit       int
	RetryDelay       time.Duration
	RetryBackoff     bool // exponential when true, fixed RetryDelay otherwise
	ExpireIn         time.Duration
	StartAfter       time.Duration
	Cron             string // not read by Registry.Schedule, which takes its cron expression as an argument
	Singleton        bool
}

// Handler processes one decoded payload. Returning an error reports the
// delivery as failed; AMQPAdapter retries it up to 5 times with
// exponential backoff, then nacks it without requeue. The job's
// RetryLimit, RetryDelay and RetryBackoff options are not consulted.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Definition is one named job: its payload schema (a Validator run against
// the encoded payload before publishing), its handler, and its default
// options.
type Definition struct {
	Name    string
	Schema  Validator
	Handler Handler
	Options Options
}

// Validator validates a decoded payload against a job's declared schema.
// Kept minimal and dependency-free: job payloads are typically a handful
// of scalar/ID fields and the CMS core already carries a richer validation
// DSL in package field for record-shaped data.
type Validator interface {
	Validate(payload json.RawMessage) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(payload json.RawMessage) error

func (f ValidatorFunc) Validate(payload json.RawMessage) error { return f(payload) }

// NoValidation accepts every payload.
var NoValidation Validator = ValidatorFunc(func(json.RawMessage) error { return nil })

// Capabilities advertises what an Adapter supports (spec 4.7, "adapter
// contract").
type Capabilities struct {
	LongRunningConsumer bool
	RunOnceConsumer     bool
	PushConsumer        bool
	Scheduling          bool
	Singleton           bool
}

// RunStats is returned by Adapter.RunOnce.
type RunStats struct {
	Processed int
}

// Adapter is the broker integration a Registry publishes through and
// consumes from.
type Adapter interface {
	Capabilities() Capabilities
	Publish(ctx context.Context, jobName string, payload []byte, opts cms.EnqueueOptions) (string, error)
	Schedule(ctx context.Context, jobName string, cronExpr string, payload []byte, opts cms.EnqueueOptions) error
	Unschedule(ctx context.Context, jobName string) error
	// Listen runs until ctx is cancelled, dispatching deliveries to the
	// matching registered handler (spec: "long-running; serves until
	// stopped").
	Listen(ctx context.Context, handlers map[string]Handler) error
	// RunOnce processes one bounded batch per handler and returns
	// (spec: "serverless tick").
	RunOnce(ctx context.Context, handlers map[string]Handler) (RunStats, error)
	// OnError registers a callback for adapter-level delivery/connection
	// errors that aren't tied to one job's handler.
	OnError(fn func(error))
	Close() error
}

// Registry holds every declared Definition and exposes the typed
// publish/schedule/unschedule surface the spec describes per job.
type Registry struct {
	Adapter     Adapter
	definitions map[string]*Definition
}

// NewRegistry builds an empty registry bound to adapter.
func NewRegistry(adapter Adapter) *Registry {
	return &Registry{Adapter: adapter, definitions: map[string]*Definition{}}
}

// Register adds a job definition, overwriting any earlier registration
// under the same name.
func (r *Registry) Register(def Definition) {
	r.definitions[def.Name] = &def
}

// Definitions returns every registered job in registration order is not
// guaranteed (map-backed); callers needing order should sort by name.
func (r *Registry) Definitions() map[string]*Definition {
	return r.definitions
}

// Publish validates payload against job's schema, then hands it to the
// adapter, falling back to the job's Options where opts leaves a field
// zero.
func (r *Registry) Publish(ctx context.Context, jobName string, payload any, opts cms.EnqueueOptions) (string, error) {
	def, ok := r.definitions[jobName]
	if !ok {
		return "", cms.NotFound("job", jobName)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", cms.Wrap(cms.KindBadRequest, err)
	}
	if def.Schema != nil {
		if err := def.Schema.Validate(body); err != nil {
			return "", cms.Wrap(cms.KindValidation, err)
		}
	}
	opts = mergeOptions(def.Options, opts)
	return r.Adapter.Publish(ctx, jobName, body, opts)
}

// Schedule registers a cron-style recurring publish for jobName (spec 4.7,
// "schedule(payload, cron, opts?)"). Fails with SchedulingUnavailable if
// the adapter doesn't advertise the scheduling capability.
func (r *Registry) Schedule(ctx context.Context, jobName, cronExpr string, payload any, opts cms.EnqueueOptions) error {
	if _, ok := r.definitions[jobName]; !ok {
		return cms.NotFound("job", jobName)
	}
	if !r.Adapter.Capabilities().Scheduling {
		return cms.SchedulingUnavailable()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return cms.Wrap(cms.KindBadRequest, err)
	}
	return r.Adapter.Schedule(ctx, jobName, cronExpr, body, opts)
}

// Unschedule cancels a job's recurring schedule, if any.
func (r *Registry) Unschedule(ctx context.Context, jobName string) error {
	return r.Adapter.Unschedule(ctx, jobName)
}

// Listen runs the adapter's long-running consumer loop over every
// registered handler until ctx is cancelled.
func (r *Registry) Listen(ctx context.Context) error {
	return r.Adapter.Listen(ctx, r.handlerMap())
}

// RunOnce processes a single bounded batch (serverless tick).
func (r *Registry) RunOnce(ctx context.Context) (RunStats, error) {
	return r.Adapter.RunOnce(ctx, r.handlerMap())
}

func (r *Registry) handlerMap() map[string]Handler {
	out := make(map[string]Handler, len(r.definitions))
	for name, def := range r.definitions {
		out[name] = wrapValidated(def)
	}
	return out
}

// wrapValidated re-validates at delivery time too, since a schema may have
// been relaxed/tightened between publish and consume in a rolling
// deployment.
func wrapValidated(def *Definition) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		if def.Schema != nil {
			if err := def.Schema.Validate(payload); err != nil {
				return cms.Wrap(cms.KindValidation, err)
			}
		}
		return def.Handler(ctx, payload)
	}
}

func mergeOptions(base Options, override cms.EnqueueOptions) cms.EnqueueOptions {
	out := override
	if out.Priority == 0 {
		out.Priority = base.Priority
	}
	if out.RetryLimit == 0 {
		out.RetryLimit = base.RetryLimit
	}
	if out.StartAfter == 0 {
		out.StartAfter = base.StartAfter
	}
	if !out.Singleton {
		out.Singleton = base.Singleton
	}
	return out
}
