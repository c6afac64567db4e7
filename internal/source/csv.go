package source

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

// CSVSource reads and writes profiles in a local CSV file with a header
// row. Unknown columns round-trip untouched.
type CSVSource struct {
	path string

	mu  sync.Mutex
	tbl *table
}

// NewCSV creates a CSV source for the given path.
func NewCSV(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Fetch loads all rows. The parsed table is retained so a later
// PersistBatch rewrites the file from the same snapshot.
func (s *CSVSource) Fetch(ctx context.Context) ([]model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s.tbl.profiles(), nil
}

func (s *CSVSource) load(ctx context.Context) error {
	if ctx.Err() != nil {
		return eris.Wrap(ctx.Err(), "csv: fetch")
	}

	f, err := os.Open(s.path)
	if err != nil {
		return eris.Wrapf(err, "csv: open %s", s.path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows tolerated

	records, err := r.ReadAll()
	if err != nil {
		return eris.Wrapf(err, "csv: read %s", s.path)
	}
	if len(records) == 0 {
		return eris.Errorf("csv: %s has no header row", s.path)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = normalizeHeader(h)
	}

	s.tbl = &table{header: header, rows: records[1:]}
	return nil
}

// PersistBatch applies the updates and atomically rewrites the file
// (temp file + rename). Loads the file first if Fetch was never called.
func (s *CSVSource) PersistBatch(ctx context.Context, updates []model.FieldUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tbl == nil {
		if err := s.load(ctx); err != nil {
			return err
		}
	}
	if err := s.tbl.apply(updates); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".outreach-*.csv")
	if err != nil {
		return eris.Wrap(err, "csv: create temp file")
	}
	tmpPath := tmp.Name()

	w := csv.NewWriter(tmp)
	if err := w.Write(s.tbl.header); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return eris.Wrap(err, "csv: write header")
	}
	for _, row := range s.tbl.rows {
		if err := w.Write(row); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return eris.Wrap(err, "csv: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return eris.Wrap(err, "csv: flush")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return eris.Wrap(err, "csv: close temp file")
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return eris.Wrapf(err, "csv: replace %s", s.path)
	}
	return nil
}
