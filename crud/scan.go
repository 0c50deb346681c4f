package crud

import (
	"database/sql"

	cms "github.com/loomcms/loom"
	"github.com/loomcms/loom/field"
)

// scanRow decodes one row of a multi-row result into a Record, given the
// column specs in the order they were selected, JSON-decoding any column
// declared jsonb.
func scanRow(rows *sql.Rows, cols []field.ColumnSpec) (cms.Record, error) {
	dest := make([]any, len(cols))
	for i := range dest {
		dest[i] = new(any)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	return decodeRow(cols, dest), nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows (post-Next), for
// call sites that only ever expect a single row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOneRow(row rowScanner, cols []field.ColumnSpec) (cms.Record, error) {
	dest := make([]any, len(cols))
	for i := range dest {
		dest[i] = new(any)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return decodeRow(cols, dest), nil
}

func decodeRow(cols []field.ColumnSpec, dest []any) cms.Record {
	out := cms.Record{}
	for i, col := range cols {
		v := *(dest[i].(*any))
		if col.SQLType == "jsonb" {
			switch b := v.(type) {
			case []byte:
				out[col.Name] = unmarshalJSON(b)
			case string:
				out[col.Name] = unmarshalJSON([]byte(b))
			default:
				out[col.Name] = v
			}
			continue
		}
		out[col.Name] = v
	}
	return out
}
