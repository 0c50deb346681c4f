package crud

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	cms "github.com/loomcms/loom"
	"github.com/loomcms/loom/schemacompiler"
)

// writeVersionSnapshot inserts a new row in the collection's versions
// table (spec section 4.2.5: every create/update captures a full
// point-in-time snapshot rather than a diff).
func (e *Engine) writeVersionSnapshot(ac *cms.AppContext, compiled *schemacompiler.Compiled, recordID string, row map[string]any, versionNumber int64) error {
	if compiled.VersionsTable == nil {
		return nil
	}
	db := cms.TxHandle(ac, e.DB)

	snapshot := cms.Record(row).Clone()
	snapshot["version_id"] = uuid.NewString()
	snapshot["version_number"] = versionNumber
	snapshot["version_created_at"] = time.Now().UTC()

	cols := make([]string, 0, len(snapshot))
	placeholders := make([]string, 0, len(snapshot))
	args := make([]any, 0, len(snapshot))
	i := 1
	for _, colSpec := range compiled.VersionsTable.Columns {
		v, ok := snapshot[colSpec.Name]
		if !ok {
			continue
		}
		cols = append(cols, quoteIdent(colSpec.Name))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i))
		args = append(args, v)
		i++
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(compiled.VersionsTable.Name), join(cols), join(placeholders))
	if _, err := db.ExecContext(ac.Context, stmt, args...); err != nil {
		return cms.Wrap(cms.KindInternal, err)
	}
	return nil
}

// FindVersions returns every snapshot recorded for a record, newest first
// (spec section 4.2.5).
func (e *Engine) FindVersions(ac *cms.AppContext, collectionName, recordID string) ([]cms.Record, error) {
	compiled, err := e.resolve(collectionName)
	if err != nil {
		return nil, err
	}
	c := compiled.Collection
	if compiled.VersionsTable == nil {
		return nil, cms.NotRestorable(c.Name())
	}
	if err := checkAccess(ac, c, "read", nil); err != nil {
		return nil, err
	}

	db := cms.TxHandle(ac, e.DB)
	colNames := make([]string, 0, len(compiled.VersionsTable.Columns))
	for _, col := range compiled.VersionsTable.Columns {
		colNames = append(colNames, quoteIdent(col.Name))
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 ORDER BY version_number DESC",
		join(colNames), quoteIdent(compiled.VersionsTable.Name))
	rows, err := db.QueryContext(ac.Context, stmt, recordID)
	if err != nil {
		return nil, cms.Wrap(cms.KindInternal, err)
	}
	defer rows.Close()

	var out []cms.Record
	for rows.Next() {
		record, err := scanRow(rows, compiled.VersionsTable.Columns)
		if err != nil {
			return nil, cms.Wrap(cms.KindInternal, err)
		}
		out = append(out, record)
	}
	return out, nil
}

// RevertToVersion restores a record's current row to match a prior
// version snapshot, itself recorded as a new version (spec section
// 4.2.5: "revert creates a new version rather than rewriting history").
func (e *Engine) RevertToVersion(ac *cms.AppContext, collectionName, recordID, versionID string) (cms.Record, error) {
	compiled, err := e.resolve(collectionName)
	if err != nil {
		return nil, err
	}
	c := compiled.Collection
	if compiled.VersionsTable == nil {
		return nil, cms.NotRestorable(c.Name())
	}
	if err := checkAccess(ac, c, "update", nil); err != nil {
		return nil, err
	}

	var result cms.Record
	err = cms.WithTransaction(ac, e.DB, e.Logger, func(ac *cms.AppContext) error {
		db := cms.TxHandle(ac, e.DB)
		colNames := make([]string, 0, len(compiled.VersionsTable.Columns))
		for _, col := range compiled.VersionsTable.Columns {
			colNames = append(colNames, quoteIdent(col.Name))
		}
		stmt := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 AND version_id = $2",
			join(colNames), quoteIdent(compiled.VersionsTable.Name))
		row := db.QueryRowContext(ac.Context, stmt, recordID, versionID)
		snapshot, err := scanOneRow(row, compiled.VersionsTable.Columns)
		if err != nil {
			return cms.NotFound("version", versionID)
		}

		delete(snapshot, "version_id")
		delete(snapshot, "version_number")
		delete(snapshot, "version_created_at")
		snapshot["updated_at"] = time.Now().UTC()

		if err := e.updateMainRow(ac, compiled, recordID, snapshot); err != nil {
			return err
		}

		nextVersion, err := e.nextVersionNumber(ac, compiled, recordID)
		if err != nil {
			return err
		}
		if err := e.writeVersionSnapshot(ac, compiled, recordID, snapshot, nextVersion); err != nil {
			return err
		}
		result = snapshot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) nextVersionNumber(ac *cms.AppContext, compiled *schemacompiler.Compiled, recordID string) (int64, error) {
	db := cms.TxHandle(ac, e.DB)
	row := db.QueryRowContext(ac.Context, fmt.Sprintf("SELECT COALESCE(MAX(version_number), 0) + 1 FROM %s WHERE id = $1",
		quoteIdent(compiled.VersionsTable.Name)), recordID)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, cms.Wrap(cms.KindInternal, err)
	}
	return n, nil
}
