package migrate

import (
	"encoding/json"
	"fmt"
	"time"

	cms "github.com/loomcms/loom"
)

// File is one generated migration: a version-ordered pair of forward/
// backward statement lists plus the snapshot taken after applying it (so
// the next `generate` run diffs against a known-good baseline rather than
// re-deriving it from the prior migration's statements).
type File struct {
	Version   string    `json:"version"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	Up        []string  `json:"up"`
	Down      []string  `json:"down"`
	Snapshot  Snapshot  `json:"snapshot"`
}

// Generate diffs old against next and returns the migration file to write,
// or nil if there is nothing to do. name is a short human label (e.g.
// "add_posts_featured_flag") embedded in the filename the caller writes.
func Generate(old, next Snapshot, name string, now time.Time) (*File, error) {
	ops := Diff(old, next)
	if len(ops) == 0 {
		return nil, nil
	}

	f := &File{
		Version:   now.UTC().Format("20060102150405"),
		Name:      name,
		CreatedAt: now.UTC(),
		Snapshot:  next,
	}
	for _, op := range ops {
		if stmt := op.ForwardSQL(); stmt != "" {
			f.Up = append(f.Up, stmt)
		}
	}
	// Backward statements undo forward ones in reverse order.
	for i := len(ops) - 1; i >= 0; i-- {
		if stmt := ops[i].BackwardSQL(); stmt != "" {
			f.Down = append(f.Down, stmt)
		}
	}
	return f, nil
}

// FileName is the canonical on-disk name for a generated migration.
func (f *File) FileName() string {
	return fmt.Sprintf("%s_%s.json", f.Version, f.Name)
}

// Marshal renders f as the JSON this package's Runner reads back.
func (f *File) Marshal() ([]byte, error) {
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, cms.Wrap(cms.KindInternal, err)
	}
	return b, nil
}

// UnmarshalFile parses a migration file previously written by Generate.
func UnmarshalFile(data []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, cms.Wrap(cms.KindInternal, err)
	}
	return &f, nil
}
