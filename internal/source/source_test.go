package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleCSV = "Name,Company,Role,research,draft,linkedin_url\n" +
	"Ada Lovelace,Analytical Engines Ltd,CTO,,,https://linkedin.example/ada\n" +
	"Grace Hopper,Navy Research,Rear Admiral,existing research,,\n"

func TestOpen_SelectsByExtension(t *testing.T) {
	src, err := Open("profiles.csv")
	require.NoError(t, err)
	assert.IsType(t, &CSVSource{}, src)

	src, err = Open("profiles.XLSX")
	require.NoError(t, err)
	assert.IsType(t, &XLSXSource{}, src)

	_, err = Open("profiles.txt")
	assert.Error(t, err)
}

func TestCSV_Fetch(t *testing.T) {
	src := NewCSV(writeCSV(t, sampleCSV))

	profiles, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	// Headers are normalized to lower case.
	assert.Equal(t, "Ada Lovelace", profiles[0].Name())
	assert.Equal(t, "Analytical Engines Ltd", profiles[0].Company())
	assert.Equal(t, 0, profiles[0].ID)
	assert.False(t, profiles[0].HasResearch())

	assert.Equal(t, 1, profiles[1].ID)
	assert.True(t, profiles[1].HasResearch())
	assert.Equal(t, "existing research", profiles[1].Research())

	// Unknown columns pass through.
	assert.Equal(t, "https://linkedin.example/ada", profiles[0].Get("linkedin_url"))
}

func TestCSV_PersistBatch(t *testing.T) {
	path := writeCSV(t, sampleCSV)
	src := NewCSV(path)

	_, err := src.Fetch(context.Background())
	require.NoError(t, err)

	err = src.PersistBatch(context.Background(), []model.FieldUpdate{
		{ProfileID: 0, Field: model.FieldResearch, Value: "new findings"},
		{ProfileID: 1, Field: model.FieldDraft, Value: "Dear Grace,\nhello"},
	})
	require.NoError(t, err)

	// Re-read from disk through a fresh source.
	profiles, err := NewCSV(path).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new findings", profiles[0].Research())
	assert.Equal(t, "Dear Grace,\nhello", profiles[1].Draft())
	// Untouched data survives the rewrite.
	assert.Equal(t, "https://linkedin.example/ada", profiles[0].Get("linkedin_url"))
	assert.Equal(t, "existing research", profiles[1].Research())
}

func TestCSV_PersistBatch_Idempotent(t *testing.T) {
	path := writeCSV(t, sampleCSV)
	src := NewCSV(path)
	_, err := src.Fetch(context.Background())
	require.NoError(t, err)

	updates := []model.FieldUpdate{{ProfileID: 0, Field: model.FieldResearch, Value: "v"}}
	require.NoError(t, src.PersistBatch(context.Background(), updates))
	require.NoError(t, src.PersistBatch(context.Background(), updates))

	profiles, err := NewCSV(path).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v", profiles[0].Research())
}

func TestCSV_PersistBatch_AppendsMissingColumn(t *testing.T) {
	path := writeCSV(t, "name,company\nAda,Engines\n")
	src := NewCSV(path)
	_, err := src.Fetch(context.Background())
	require.NoError(t, err)

	err = src.PersistBatch(context.Background(), []model.FieldUpdate{
		{ProfileID: 0, Field: model.FieldResearch, Value: "found"},
	})
	require.NoError(t, err)

	profiles, err := NewCSV(path).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "found", profiles[0].Research())
}

func TestCSV_PersistBatch_UnknownRow(t *testing.T) {
	src := NewCSV(writeCSV(t, sampleCSV))
	_, err := src.Fetch(context.Background())
	require.NoError(t, err)

	err = src.PersistBatch(context.Background(), []model.FieldUpdate{
		{ProfileID: 99, Field: model.FieldResearch, Value: "x"},
	})
	assert.Error(t, err)
}

func TestCSV_FetchMissingFile(t *testing.T) {
	_, err := NewCSV(filepath.Join(t.TempDir(), "nope.csv")).Fetch(context.Background())
	assert.Error(t, err)
}

func TestXLSX_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.xlsx")

	// Author a workbook the way a user would.
	seed := NewXLSX(path)
	seed.tbl = &table{
		header: []string{"name", "company", "role", "research", "draft"},
		rows: [][]string{
			{"Ada Lovelace", "Analytical Engines Ltd", "CTO", "", ""},
			{"Grace Hopper", "Navy Research", "Rear Admiral", "existing research", ""},
		},
	}
	require.NoError(t, seed.PersistBatch(context.Background(), nil))

	src := NewXLSX(path)
	profiles, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Ada Lovelace", profiles[0].Name())
	assert.True(t, profiles[1].HasResearch())

	err = src.PersistBatch(context.Background(), []model.FieldUpdate{
		{ProfileID: 0, Field: model.FieldResearch, Value: "xlsx findings"},
	})
	require.NoError(t, err)

	profiles, err = NewXLSX(path).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "xlsx findings", profiles[0].Research())
	assert.Equal(t, "existing research", profiles[1].Research())
}

func TestTable_ApplyPadsShortRows(t *testing.T) {
	tbl := &table{
		header: []string{"name", "research"},
		rows:   [][]string{{"Ada"}},
	}
	require.NoError(t, tbl.apply([]model.FieldUpdate{
		{ProfileID: 0, Field: "research", Value: "v"},
	}))
	assert.Equal(t, []string{"Ada", "v"}, tbl.rows[0])
}
