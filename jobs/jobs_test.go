package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cms "github.com/loomcms/loom"
)

// fakeAdapter is an in-memory Adapter for exercising Registry without a
// live broker, mirroring the mock-connection pattern production AMQP
// integrations in the corpus use for dependency injection and testing.
type fakeAdapter struct {
	mu        sync.Mutex
	published []publishedMsg
	caps      Capabilities
}

type publishedMsg struct {
	jobName string
	payload []byte
}

func (f *fakeAdapter) Capabilities() Capabilities { return f.caps }

func (f *fakeAdapter) Publish(ctx context.Context, jobName string, payload []byte, opts cms.EnqueueOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMsg{jobName, payload})
	return "", nil
}

func (f *fakeAdapter) Schedule(ctx context.Context, jobName, cronExpr string, payload []byte, opts cms.EnqueueOptions) error {
	return cms.SchedulingUnavailable()
}
func (f *fakeAdapter) Unschedule(ctx context.Context, jobName string) error { return nil }
func (f *fakeAdapter) Listen(ctx context.Context, handlers map[string]Handler) error {
	<-ctx.Done()
	return nil
}
func (f *fakeAdapter) RunOnce(ctx context.Context, handlers map[string]Handler) (RunStats, error) {
	return RunStats{}, nil
}
func (f *fakeAdapter) OnError(fn func(error)) {}
func (f *fakeAdapter) Close() error           { return nil }

func TestRegistryPublishValidatesAndDelegates(t *testing.T) {
	t.Parallel()
	adapter := &fakeAdapter{}
	reg := NewRegistry(adapter)
	reg.Register(Definition{
		Name: "send-email",
		Schema: ValidatorFunc(func(payload json.RawMessage) error {
			var v struct{ To string }
			if err := json.Unmarshal(payload, &v); err != nil {
				return err
			}
			if v.To == "" {
				return assertErr("to is required")
			}
			return nil
		}),
		Handler: func(ctx context.Context, payload json.RawMessage) error { return nil },
	})

	_, err := reg.Publish(context.Background(), "send-email", map[string]string{"to": "a@example.com"}, cms.EnqueueOptions{})
	require.NoError(t, err)
	require.Len(t, adapter.published, 1)
	assert.Equal(t, "send-email", adapter.published[0].jobName)

	_, err = reg.Publish(context.Background(), "send-email", map[string]string{}, cms.EnqueueOptions{})
	assert.Error(t, err)
	assert.Equal(t, cms.KindValidation, cms.KindOf(err))
}

func TestRegistryPublishUnknownJob(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(&fakeAdapter{})
	_, err := reg.Publish(context.Background(), "nope", nil, cms.EnqueueOptions{})
	assert.Equal(t, cms.KindNotFound, cms.KindOf(err))
}

func TestRegistryScheduleRequiresCapability(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(&fakeAdapter{caps: Capabilities{}})
	reg.Register(Definition{Name: "nightly", Handler: func(context.Context, json.RawMessage) error { return nil }})

	err := reg.Schedule(context.Background(), "nightly", "0 0 * * *", nil, cms.EnqueueOptions{})
	assert.Equal(t, cms.KindSchedulingUnavailable, cms.KindOf(err))
}

func TestCronSchedulerAddsCapability(t *testing.T) {
	t.Parallel()
	adapter := &fakeAdapter{}
	sched := NewCronScheduler(adapter)
	reg := NewRegistry(sched)
	reg.Register(Definition{Name: "nightly", Handler: func(context.Context, json.RawMessage) error { return nil }})

	require.True(t, reg.Adapter.Capabilities().Scheduling)
	err := reg.Schedule(context.Background(), "nightly", "0 0 * * *", []byte(`{}`), cms.EnqueueOptions{})
	require.NoError(t, err)
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
func assertErr(msg string) error  { return simpleErr(msg) }
