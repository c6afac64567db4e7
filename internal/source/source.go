// Package source provides the tabular data sources the pipeline reads
// profiles from and writes generated fields back to. Sources are local
// files (CSV or XLSX); persistence is a whole-batch rewrite so retrying a
// failed flush is always safe.
package source

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Source is the pipeline's view of a tabular record store.
type Source interface {
	// Fetch loads the full ordered batch of profiles. Called once per run.
	Fetch(ctx context.Context) ([]model.Profile, error)

	// PersistBatch applies field updates and rewrites the backing store.
	// The write is all-or-nothing: callers must not assume partial success
	// on error, and replaying the same batch is idempotent.
	PersistBatch(ctx context.Context, updates []model.FieldUpdate) error
}

// Open selects a source implementation by file extension.
func Open(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSV(path), nil
	case ".xlsx":
		return NewXLSX(path), nil
	default:
		return nil, eris.Errorf("source: unsupported file type %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

// normalizeHeader lowercases and trims a header cell so field lookups are
// stable regardless of how the sheet was authored.
func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// table is the shared in-memory form of a loaded sheet: a normalized
// header plus row-major cells. Both file formats load into this and apply
// updates through it.
type table struct {
	header []string
	rows   [][]string
}

// colIndex returns the column index for field, appending a new column when
// the sheet does not have one yet.
func (t *table) colIndex(field string) int {
	for i, h := range t.header {
		if h == field {
			return i
		}
	}
	t.header = append(t.header, field)
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], "")
	}
	return len(t.header) - 1
}

// apply writes updates into the table. Row IDs index into the fetched
// batch; unknown rows are an error since they indicate a stale batch.
func (t *table) apply(updates []model.FieldUpdate) error {
	for _, u := range updates {
		if u.ProfileID < 0 || u.ProfileID >= len(t.rows) {
			return eris.Errorf("source: update for unknown row %d (have %d rows)", u.ProfileID, len(t.rows))
		}
		col := t.colIndex(u.Field)
		row := t.rows[u.ProfileID]
		for len(row) <= col {
			row = append(row, "")
		}
		row[col] = u.Value
		t.rows[u.ProfileID] = row
	}
	return nil
}

// profiles converts the table to the model form.
func (t *table) profiles() []model.Profile {
	out := make([]model.Profile, 0, len(t.rows))
	for i, row := range t.rows {
		p := model.NewProfile(i)
		for c, h := range t.header {
			if h == "" {
				continue
			}
			if c < len(row) {
				p.Set(h, row[c])
			}
		}
		out = append(out, p)
	}
	return out
}
