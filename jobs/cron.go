package jobs

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	cms "github.com/loomcms/loom"
)

// cronSpec is a parsed 5-field cron expression (minute hour day-of-month
// month day-of-week). No cron library appears anywhere in the corpus this
// module is grounded on, so this parser is a deliberately minimal
// hand-rolled implementation covering the subset spec 4.7's
// `schedule(payload, cron, opts?)` needs: literal values, `*`, and
// comma-separated lists. Step (`*/5`) and range (`1-5`) syntax are not
// supported; a job registering a cron expression using them fails fast at
// Schedule() time rather than silently misfiring.
type cronSpec struct {
	minute, hour, dom, month, dow fieldSet
}

type fieldSet map[int]struct{}

func (f fieldSet) matches(v int) bool {
	if _, any := f[-1]; any {
		return true
	}
	_, ok := f[v]
	return ok
}

func parseCron(expr string) (*cronSpec, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("jobs: cron expression %q must have 5 fields", expr)
	}
	minute, err := parseField(fields[0], 0, 59)
	if err != nil {
		return nil, err
	}
	hour, err := parseField(fields[1], 0, 23)
	if err != nil {
		return nil, err
	}
	dom, err := parseField(fields[2], 1, 31)
	if err != nil {
		return nil, err
	}
	month, err := parseField(fields[3], 1, 12)
	if err != nil {
		return nil, err
	}
	dow, err := parseField(fields[4], 0, 6)
	if err != nil {
		return nil, err
	}
	return &cronSpec{minute: minute, hour: hour, dom: dom, month: month, dow: dow}, nil
}

func parseField(f string, lo, hi int) (fieldSet, error) {
	set := fieldSet{}
	if f == "*" {
		set[-1] = struct{}{}
		return set, nil
	}
	for _, part := range strings.Split(f, ",") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("jobs: unsupported cron field %q", f)
		}
		if n < lo || n > hi {
			return nil, fmt.Errorf("jobs: cron field %q out of range [%d,%d]", f, lo, hi)
		}
		set[n] = struct{}{}
	}
	return set, nil
}

func (c *cronSpec) matches(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dom.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dow.matches(int(t.Weekday()))
}

// entry is one active cron registration tracked by CronScheduler.
type entry struct {
	jobName string
	spec    *cronSpec
	payload []byte
	opts    cms.EnqueueOptions
	lastRun time.Time
}

// CronScheduler decorates any Adapter with in-process cron scheduling
// (spec 4.7, "schedule(payload, cron, opts?)"): it advertises the
// Scheduling capability regardless of the wrapped adapter's own support,
// and drives matching publishes off a one-tick-per-minute loop. Use this
// when the broker itself has no native delay/cron primitive, as is the
// case for plain AMQP.
type CronScheduler struct {
	Adapter

	mu       sync.Mutex
	entries  map[string]*entry
}

// NewCronScheduler wraps adapter with in-process cron support.
func NewCronScheduler(adapter Adapter) *CronScheduler {
	return &CronScheduler{Adapter: adapter, entries: map[string]*entry{}}
}

func (s *CronScheduler) Capabilities() Capabilities {
	caps := s.Adapter.Capabilities()
	caps.Scheduling = true
	return caps
}

func (s *CronScheduler) Schedule(ctx context.Context, jobName, cronExpr string, payload []byte, opts cms.EnqueueOptions) error {
	spec, err := parseCron(cronExpr)
	if err != nil {
		return cms.Wrap(cms.KindBadRequest, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jobName] = &entry{jobName: jobName, spec: spec, payload: payload, opts: opts}
	return nil
}

func (s *CronScheduler) Unschedule(ctx context.Context, jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, jobName)
	return nil
}

// Run drives the scheduling loop until ctx is cancelled, publishing each
// due entry through the wrapped adapter at most once per matching minute.
func (s *CronScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.fire(ctx, now)
		}
	}
}

func (s *CronScheduler) fire(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := make([]*entry, 0)
	for _, e := range s.entries {
		truncated := now.Truncate(time.Minute)
		if e.lastRun.Equal(truncated) {
			continue
		}
		if e.spec.matches(truncated) {
			e.lastRun = truncated
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		_, _ = s.Adapter.Publish(ctx, e.jobName, e.payload, e.opts)
	}
}
