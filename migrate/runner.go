package migrate

import (
	"context"
	"io/fs"
	"sort"
	"strings"

	cms "github.com/loomcms/loom"
)

// sqlInit bootstraps the `migrations` table itself (spec section 5): the
// one table the runner manages imperatively rather than through a
// generated File, since it must exist before any generated migration can
// be tracked. Grounded in pgroll's pkg/state bootstrap SQL.
const sqlInit = `
CREATE TABLE IF NOT EXISTS migrations (
    version    text PRIMARY KEY,
    name       text NOT NULL,
    applied_at timestamptz NOT NULL DEFAULT now()
);`

// Status is one row of `migrate status`.
type Status struct {
	Version string
	Name    string
	Applied bool
}

// Runner applies and reverts the migration files found under a directory,
// tracking applied versions in the `migrations` table.
type Runner struct {
	DB cms.DB
	FS fs.FS // directory containing *.json files written by Generate
}

// NewRunner builds a Runner reading migration files from dirFS.
func NewRunner(db cms.DB, dirFS fs.FS) *Runner {
	return &Runner{DB: db, FS: dirFS}
}

// files returns every migration file in FS, sorted by version ascending.
func (r *Runner) files() ([]*File, error) {
	entries, err := fs.ReadDir(r.FS, ".")
	if err != nil {
		return nil, cms.Wrap(cms.KindInternal, err)
	}
	var files []*File
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := fs.ReadFile(r.FS, e.Name())
		if err != nil {
			return nil, cms.Wrap(cms.KindInternal, err)
		}
		f, err := UnmarshalFile(data)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

func (r *Runner) ensureInit(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, sqlInit)
	if err != nil {
		return cms.Wrap(cms.KindInternal, err)
	}
	return nil
}

func (r *Runner) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT version FROM migrations")
	if err != nil {
		return nil, cms.Wrap(cms.KindInternal, err)
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, cms.Wrap(cms.KindInternal, err)
		}
		out[v] = true
	}
	return out, rows.Err()
}

// Up applies every migration not yet recorded as applied, each inside its
// own transaction (spec 5: "each migration runs in its own transaction;
// a failure mid-file rolls back that file only").
func (r *Runner) Up(ctx context.Context) ([]string, error) {
	if err := r.ensureInit(ctx); err != nil {
		return nil, err
	}
	files, err := r.files()
	if err != nil {
		return nil, err
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, f := range files {
		if applied[f.Version] {
			continue
		}
		if err := r.runFile(ctx, f, f.Up); err != nil {
			return ran, err
		}
		if err := r.recordApplied(ctx, f); err != nil {
			return ran, err
		}
		ran = append(ran, f.Version)
	}
	return ran, nil
}

// Down reverts the single most-recently-applied migration.
func (r *Runner) Down(ctx context.Context) (string, error) {
	files, err := r.files()
	if err != nil {
		return "", err
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return "", err
	}
	for i := len(files) - 1; i >= 0; i-- {
		f := files[i]
		if !applied[f.Version] {
			continue
		}
		if err := r.runFile(ctx, f, f.Down); err != nil {
			return "", err
		}
		if err := r.recordReverted(ctx, f); err != nil {
			return "", err
		}
		return f.Version, nil
	}
	return "", nil
}

// DownTo reverts every applied migration newer than targetVersion, most
// recent first.
func (r *Runner) DownTo(ctx context.Context, targetVersion string) ([]string, error) {
	files, err := r.files()
	if err != nil {
		return nil, err
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}

	var reverted []string
	for i := len(files) - 1; i >= 0; i-- {
		f := files[i]
		if f.Version <= targetVersion {
			break
		}
		if !applied[f.Version] {
			continue
		}
		if err := r.runFile(ctx, f, f.Down); err != nil {
			return reverted, err
		}
		if err := r.recordReverted(ctx, f); err != nil {
			return reverted, err
		}
		reverted = append(reverted, f.Version)
	}
	return reverted, nil
}

// Reset reverts every applied migration.
func (r *Runner) Reset(ctx context.Context) ([]string, error) {
	return r.DownTo(ctx, "")
}

// Fresh reverts everything, then re-applies every migration from scratch.
func (r *Runner) Fresh(ctx context.Context) ([]string, error) {
	if _, err := r.Reset(ctx); err != nil {
		return nil, err
	}
	return r.Up(ctx)
}

// StatusReport returns every known migration file with its applied state.
func (r *Runner) StatusReport(ctx context.Context) ([]Status, error) {
	if err := r.ensureInit(ctx); err != nil {
		return nil, err
	}
	files, err := r.files()
	if err != nil {
		return nil, err
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(files))
	for _, f := range files {
		out = append(out, Status{Version: f.Version, Name: f.Name, Applied: applied[f.Version]})
	}
	return out, nil
}

func (r *Runner) runFile(ctx context.Context, f *File, statements []string) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return cms.Wrap(cms.KindInternal, err)
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return cms.Wrap(cms.KindMigrationConflict, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return cms.Wrap(cms.KindInternal, err)
	}
	return nil
}

func (r *Runner) recordApplied(ctx context.Context, f *File) error {
	_, err := r.DB.ExecContext(ctx, "INSERT INTO migrations (version, name) VALUES ($1, $2) ON CONFLICT (version) DO NOTHING", f.Version, f.Name)
	if err != nil {
		return cms.Wrap(cms.KindInternal, err)
	}
	return nil
}

func (r *Runner) recordReverted(ctx context.Context, f *File) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM migrations WHERE version = $1", f.Version)
	if err != nil {
		return cms.Wrap(cms.KindInternal, err)
	}
	return nil
}
