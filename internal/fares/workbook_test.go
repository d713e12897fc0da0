package fares

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// writeWorkbook saves rows into the first sheet of a new workbook. nil cells
// are left empty.
func writeWorkbook(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	path := filepath.Join(t.TempDir(), "fare_data.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func quietLogger() *log.Logger { return log.New(io.Discard) }

func TestReadWorkbookFile(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"BRT Bus Shelter", "Kimara\nMwisho", "Ubungo"},
		{"Kimara Mwisho", 0, 650},
		{"Ubungo", 700, nil},
	})

	rows, err := ReadWorkbookFile(path)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Kimara\nMwisho", rows[0][1])
	assert.Equal(t, "650", rows[1][2])
	// trailing empty cell is trimmed by the reader
	assert.Len(t, rows[2], 2)
}

func TestReadWorkbookFromReader(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"", "A", "B"},
		{"", 0, 5},
		{"", 7, 0},
	})
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	rows, err := ReadWorkbook(bytes.NewReader(raw))
	require.NoError(t, err)
	m, err := Parse(rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, m.Stops())
}

func TestReadWorkbookRejectsGarbage(t *testing.T) {
	_, err := ReadWorkbook(bytes.NewReader([]byte("not a workbook")))
	assert.Error(t, err)
}

func TestFileSourceLoad(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"Shelter", "Kimara\nMwisho", "Ubungo", "Kivukoni"},
		{"", 0, 650, 750},
		{"", 650, 0, 650},
		{"", 750, 650, 0.5},
	})
	src := FileSource{Path: path, Logger: quietLogger()}

	m, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Kimara Mwisho", "Ubungo", "Kivukoni"}, m.Stops())
	assert.Equal(t, [][]float64{{0, 650, 750}, {650, 0, 650}, {750, 650, 0.5}}, m.Rows())
}

func TestFileSourceRoundTrip(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"", "A", "B"},
		{"", 0, 5},
		{"", 7, 0},
	})
	ctx := context.Background()

	first := NewStore(FileSource{Path: path, Logger: quietLogger()}, WithLogger(quietLogger()))
	second := NewStore(FileSource{Path: path, Logger: quietLogger()}, WithLogger(quietLogger()))

	m1, err := first.Load(ctx)
	require.NoError(t, err)
	m2, err := second.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, m1.Stops(), m2.Stops())
	assert.Equal(t, m1.Rows(), m2.Rows())
}

func TestFileSourceIgnoresNumberFormat(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"", "A", "B"},
		{"", 0, 1500},
		{"", 1500, 0},
	})
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	sheet := f.GetSheetName(0)
	thousands, err := f.NewStyle(&excelize.Style{NumFmt: 3}) // #,##0
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle(sheet, "B2", "C3", thousands))
	shown, err := f.GetCellValue(sheet, "C2")
	require.NoError(t, err)
	require.Equal(t, "1,500", shown)
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())

	m, err := FileSource{Path: path, Logger: quietLogger()}.Load(context.Background())
	require.NoError(t, err)
	fare, err := m.Fare("A", "B")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, fare)
	fare, err = m.Fare("B", "A")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, fare)
}

func TestFileSourceZeroDataRows(t *testing.T) {
	path := writeWorkbook(t, [][]any{{"", "A", "B"}})
	_, err := FileSource{Path: path, Logger: quietLogger()}.Load(context.Background())
	assert.ErrorIs(t, err, ErrEmptyData)
}

func TestFileSourceStrictRaggedRow(t *testing.T) {
	path := writeWorkbook(t, [][]any{
		{"", "A", "B", "C"},
		{"", 0, 1, 2},
		{"", 1, 0},
		{"", 2, 3, 0},
	})

	m, err := FileSource{Path: path, Logger: quietLogger()}.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, m.RaggedRows())

	_, err = FileSource{Path: path, Strict: true, Logger: quietLogger()}.Load(context.Background())
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestFileSourceMissingFile(t *testing.T) {
	src := FileSource{Path: filepath.Join(t.TempDir(), "missing.xlsx"), Logger: quietLogger()}
	_, err := src.Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
