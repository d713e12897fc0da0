package fares

import "fmt"

// Matrix is a parsed fare chart. fares[i][j] is the fare from stops[i] to
// stops[j]. A Matrix is never modified after construction; a new load builds
// a new one.
type Matrix struct {
	stops []string
	fares [][]float64
	index map[string]int // first occurrence of each stop name
}

// NewMatrix validates the shape of stops and fares and builds the name index.
// Rows shorter or longer than len(stops) are accepted unless strict is set.
func NewMatrix(stops []string, fares [][]float64, strict bool) (*Matrix, error) {
	if len(stops) == 0 || len(fares) == 0 {
		return nil, ErrEmptyData
	}
	if len(stops) != len(fares) {
		return nil, fmt.Errorf("%w: %d stops, %d rows", ErrShapeMismatch, len(stops), len(fares))
	}
	if strict {
		for i, row := range fares {
			if len(row) != len(stops) {
				return nil, fmt.Errorf("%w: row %d has %d fares, want %d", ErrShapeMismatch, i+1, len(row), len(stops))
			}
		}
	}
	idx := make(map[string]int, len(stops))
	for i, s := range stops {
		if _, dup := idx[s]; !dup {
			idx[s] = i
		}
	}
	return &Matrix{stops: stops, fares: fares, index: idx}, nil
}

// Stops returns a copy of the stop names in chart column order.
func (m *Matrix) Stops() []string {
	out := make([]string, len(m.stops))
	copy(out, m.stops)
	return out
}

// Rows returns a copy of the fare rows.
func (m *Matrix) Rows() [][]float64 {
	out := make([][]float64, len(m.fares))
	for i, r := range m.fares {
		out[i] = append([]float64(nil), r...)
	}
	return out
}

// Len reports the number of stops.
func (m *Matrix) Len() int { return len(m.stops) }

// IndexOf returns the position of the first stop called name.
func (m *Matrix) IndexOf(name string) (int, bool) {
	i, ok := m.index[name]
	return i, ok
}

// RaggedRows counts rows whose length differs from the stop count.
func (m *Matrix) RaggedRows() int {
	n := 0
	for _, r := range m.fares {
		if len(r) != len(m.stops) {
			n++
		}
	}
	return n
}

// Fare looks up the fare between two stop names. The diagonal is whatever the
// chart says; nothing is assumed about symmetry.
func (m *Matrix) Fare(from, to string) (float64, error) {
	i, ok := m.IndexOf(from)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStop, from)
	}
	j, ok := m.IndexOf(to)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStop, to)
	}
	row := m.fares[i]
	if j >= len(row) {
		return 0, fmt.Errorf("%w: %q -> %q", ErrFareUnavailable, from, to)
	}
	return row[j], nil
}
