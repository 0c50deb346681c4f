package jobs

import (
	"context"

	cms "github.com/loomcms/loom"
)

// QueueAdapter narrows a Registry to the cms.Queue surface the CRUD engine
// and search indexer depend on, so neither imports package jobs directly.
type QueueAdapter struct {
	Registry *Registry
}

func (q QueueAdapter) Enqueue(ctx context.Context, jobName string, payload []byte, opts cms.EnqueueOptions) (string, error) {
	def, ok := q.Registry.definitions[jobName]
	if !ok {
		return "", cms.NotFound("job", jobName)
	}
	merged := mergeOptions(def.Options, opts)
	return q.Registry.Adapter.Publish(ctx, jobName, payload, merged)
}

func (q QueueAdapter) Supports(capability string) bool {
	caps := q.Registry.Adapter.Capabilities()
	switch capability {
	case "index-records":
		_, ok := q.Registry.definitions["index-records"]
		return ok
	case "scheduling":
		return caps.Scheduling
	case "push":
		return caps.PushConsumer
	default:
		return false
	}
}
