package fares

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"
)

// Source produces a Matrix. Implementations read and parse the chart on every
// call; caching belongs to Store.
type Source interface {
	Load(ctx context.Context) (*Matrix, error)
}

// lineBreaks collapses each embedded line break in a header cell to a space.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// NormalizeStopName turns header cell text into a stop name.
func NormalizeStopName(text string) string {
	return lineBreaks.Replace(text)
}

// CoerceFare parses rendered cell text as a fare. Blank cells and anything
// that is not a finite decimal number count as 0; the chart leaves cells
// blank on purpose, so this never fails.
func CoerceFare(text string) float64 {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

type parseOptions struct {
	strict bool
}

// ParseOption tweaks Parse.
type ParseOption func(*parseOptions)

// WithStrictRows makes Parse reject rows whose length differs from the number
// of stops instead of keeping them ragged.
func WithStrictRows() ParseOption {
	return func(o *parseOptions) { o.strict = true }
}

// Parse converts the rendered cell text of one worksheet into a Matrix.
// Row 0 is the header; column 0 of every row is a label and is skipped.
// Empty header cells are skipped; empty fare cells inside a row become 0.
func Parse(rows [][]string, opts ...ParseOption) (*Matrix, error) {
	var o parseOptions
	for _, fn := range opts {
		fn(&o)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyData
	}

	stops := make([]string, 0, len(rows[0]))
	for col, cell := range rows[0] {
		if col == 0 || cell == "" {
			continue
		}
		stops = append(stops, NormalizeStopName(cell))
	}

	fares := make([][]float64, 0, len(rows)-1)
	for _, row := range rows[1:] {
		data := make([]float64, 0, len(stops))
		for col, cell := range row {
			if col == 0 {
				continue
			}
			data = append(data, CoerceFare(cell))
		}
		fares = append(fares, data)
	}

	return NewMatrix(stops, fares, o.strict)
}

// ReadWorkbook returns the rendered text of every row of the first worksheet.
// Trailing empty cells of a row are not reported, so short rows stay short.
func ReadWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()
	return firstSheetRows(f)
}

// ReadWorkbookFile is ReadWorkbook for a file on disk.
func ReadWorkbookFile(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return firstSheetRows(f)
}

func firstSheetRows(f *excelize.File) ([][]string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyData
	}
	// Raw values, so a fare formatted as "1,500" still reads as 1500.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// FileSource loads the fare chart from a workbook on disk.
type FileSource struct {
	Path   string
	Strict bool
	Logger *log.Logger
}

// Load reads and parses the workbook. The context is accepted for interface
// symmetry; reading a local file is not cancellable.
func (s FileSource) Load(_ context.Context) (*Matrix, error) {
	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Info("loading fare data", "path", s.Path)

	if _, err := os.Stat(s.Path); err != nil {
		logger.Error("loading fare data", "err", err)
		return nil, fmt.Errorf("workbook: %w", err)
	}
	rows, err := ReadWorkbookFile(s.Path)
	if err != nil {
		logger.Error("loading fare data", "err", err)
		return nil, err
	}
	var opts []ParseOption
	if s.Strict {
		opts = append(opts, WithStrictRows())
	}
	m, err := Parse(rows, opts...)
	if err != nil {
		logger.Error("loading fare data", "err", err)
		return nil, err
	}
	if n := m.RaggedRows(); n > 0 {
		logger.Warn("fare chart has ragged rows", "rows", n, "stops", m.Len())
	}
	logger.Info("fare data loaded", "stops", m.Len())
	return m, nil
}
