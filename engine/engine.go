// Package engine wires the compiled schema set, the CRUD engine, the
// realtime dispatcher, the job registry and the search pipeline into the
// single long-lived instance an embedding application constructs once at
// startup (spec section 2, "Control flow" and section 9, "Embedding
// surface"). It owns no transport: adapters (HTTP handlers, a CLI, a
// worker loop) sit in front of it and call into its exported methods.
package engine

import (
	"context"
	"fmt"
	"io/fs"

	cms "github.com/loomcms/loom"
	"github.com/loomcms/loom/collection"
	"github.com/loomcms/loom/crud"
	"github.com/loomcms/loom/jobs"
	"github.com/loomcms/loom/migrate"
	"github.com/loomcms/loom/realtime"
	"github.com/loomcms/loom/search"
	"github.com/loomcms/loom/schemacompiler"
)

// Engine is the embeddable CMS runtime instance.
type Engine struct {
	Config cms.Config

	Registry   *collection.Registry
	Schemas    schemacompiler.CompiledSet
	CRUD       *crud.Engine
	Dispatcher *realtime.Dispatcher
	Jobs       *jobs.Registry
	Indexer    *search.Indexer
	SearchAPI  *search.Endpoint
	Migrations *migrate.Runner

	realtimeFinder crud.RealtimeFinder
}

// Options configures the pieces of an Engine that aren't part of the
// collection registry or the base Config: the job broker adapter backing
// the job queue, the migration files directory, and which locales the
// search indexer must keep current.
type Options struct {
	JobAdapter    jobs.Adapter
	Migrations    fs.FS
	SearchLocales []string
}

// New compiles reg, wires every subsystem against cfg, and returns the
// ready-to-use Engine. Compile errors (schema collisions, invalid field
// configs) are returned as a single aggregate error (spec: "at
// registration time, not at first request").
func New(cfg cms.Config, reg *collection.Registry, opts Options) (*Engine, error) {
	schemas, err := schemacompiler.CompileRegistry(reg)
	if err != nil {
		return nil, err
	}

	disp := realtime.NewDispatcher()

	crudEngine := &crud.Engine{
		DB:         cfg.DB,
		Logger:     cfg.Logger,
		Schemas:    schemas,
		Dispatcher: disp,
	}

	e := &Engine{
		Config:     cfg,
		Registry:   reg,
		Schemas:    schemas,
		CRUD:       crudEngine,
		Dispatcher: disp,
	}
	e.realtimeFinder = crud.RealtimeFinder{Engine: crudEngine}

	if opts.JobAdapter != nil {
		e.Jobs = jobs.NewRegistry(opts.JobAdapter)
		cfg.Queue = jobs.QueueAdapter{Registry: e.Jobs}
		e.Config.Queue = cfg.Queue
	}

	if cfg.Search != nil {
		locales := opts.SearchLocales
		if len(locales) == 0 {
			locales = []string{cfg.DefaultLocale}
		}
		indexer := search.NewIndexer(crudEngine, schemas, cfg.Search, cfg.Queue, locales)
		if cfg.SearchConfig.DebounceWindow > 0 {
			indexer.SetDebounceWindow(cfg.SearchConfig.DebounceWindow)
		}
		crudEngine.Search = indexer
		e.Indexer = indexer
		e.SearchAPI = &search.Endpoint{
			Engine:  crudEngine,
			Schemas: schemas,
			Backend: cfg.Search,
			Indexer: indexer,
		}

		if e.Jobs != nil {
			e.Jobs.Register(jobs.Definition{
				Name:    "index-records",
				Schema:  jobs.NoValidation,
				Handler: indexer.JobHandler(),
			})
		}
	}

	if opts.Migrations != nil {
		e.Migrations = migrate.NewRunner(cfg.DB, opts.Migrations)
	}

	return e, nil
}

// RealtimeFinder exposes the CRUD-backed realtime.Finder used to resolve
// a subscription topic's snapshot (spec section 4.6).
func (e *Engine) RealtimeFinder() realtime.Finder { return e.realtimeFinder }

// Snapshot builds the current schema snapshot for migration generation
// (spec section 5, "generate diffs the current compiled schema against
// the last-applied one").
func (e *Engine) Snapshot() migrate.Snapshot {
	return migrate.BuildSnapshot(e.Schemas)
}

// Health pings the configured DB when it implements Ping (spec section 9,
// "/health"). No other collaborator (queue, storage, search) is checked.
func (e *Engine) Health(ctx context.Context) error {
	type pinger interface{ Ping(ctx context.Context) error }
	if p, ok := e.Config.DB.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("db: %w", err)
		}
	}
	return nil
}

// Close releases every collaborator that owns a long-lived resource.
func (e *Engine) Close() error {
	type closer interface{ Close() error }
	var errs []error
	if c, ok := e.Config.DB.(closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.Jobs != nil && e.Jobs.Adapter != nil {
		if err := e.Jobs.Adapter.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := cms.NewAggregateError(errs...); err != nil {
		return err
	}
	return nil
}
