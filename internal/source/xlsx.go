package source

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/outreach-cli/internal/model"
)

// XLSXSource reads and writes profiles in the first worksheet of a local
// XLSX workbook with a header row.
type XLSXSource struct {
	path string

	mu        sync.Mutex
	tbl       *table
	sheetName string
}

// NewXLSX creates an XLSX source for the given path.
func NewXLSX(path string) *XLSXSource {
	return &XLSXSource{path: path}
}

// Fetch loads all rows from the first sheet.
func (s *XLSXSource) Fetch(ctx context.Context) ([]model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s.tbl.profiles(), nil
}

func (s *XLSXSource) load(ctx context.Context) error {
	if ctx.Err() != nil {
		return eris.Wrap(ctx.Err(), "xlsx: fetch")
	}

	f, err := xlsx.OpenFile(s.path)
	if err != nil {
		return eris.Wrapf(err, "xlsx: open %s", s.path)
	}
	if len(f.Sheets) == 0 {
		return eris.Errorf("xlsx: %s has no sheets", s.path)
	}
	sheet := f.Sheets[0]
	s.sheetName = sheet.Name
	if len(sheet.Rows) == 0 {
		return eris.Errorf("xlsx: %s has no header row", s.path)
	}

	header := make([]string, len(sheet.Rows[0].Cells))
	for i, cell := range sheet.Rows[0].Cells {
		header[i] = normalizeHeader(cell.String())
	}

	rows := make([][]string, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = cell.String()
		}
		rows = append(rows, cells)
	}

	s.tbl = &table{header: header, rows: rows}
	return nil
}

// PersistBatch applies the updates and rewrites the workbook with a single
// sheet carrying the same name as the one that was loaded.
func (s *XLSXSource) PersistBatch(ctx context.Context, updates []model.FieldUpdate) error {
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

	out := xlsx.NewFile()
	sheetName := s.sheetName
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	sheet, err := out.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	hdr := sheet.AddRow()
	for _, h := range s.tbl.header {
		hdr.AddCell().SetString(h)
	}
	for _, row := range s.tbl.rows {
		r := sheet.AddRow()
		for _, v := range row {
			r.AddCell().SetString(v)
		}
	}

	if err := out.Save(s.path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", s.path)
	}
	return nil
}
