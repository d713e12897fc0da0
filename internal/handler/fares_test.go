package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/brt-fare-chart/internal/fares"
)

type rowsSource struct {
	rows [][]string
	err  error
}

func (s rowsSource) Load(context.Context) (*fares.Matrix, error) {
	if s.err != nil {
		return nil, s.err
	}
	return fares.Parse(s.rows)
}

func newTestHandler(t *testing.T, src fares.Source) (*echo.Echo, *FareHandler) {
	t.Helper()
	quiet := log.New(io.Discard)
	store := fares.NewStore(src, fares.WithLogger(quiet))
	h := NewFareHandler(store, filepath.Join(t.TempDir(), "fare_data.xlsx"), "brt_fare_chart.xlsx", quiet)
	e := echo.New()
	e.GET("/api/stops", h.GetStops)
	e.GET("/api/fare", h.GetFare)
	e.GET("/api/download-excel", h.DownloadWorkbook)
	return e, h
}

func get(e *echo.Echo, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

var abRows = [][]string{
	{"BRT Bus Shelter", "A", "B", "Kimara\nMwisho"},
	{"A", "0", "5", "650"},
	{"B", "7", "0"},
	{"Kimara Mwisho", "650", "650", "0"},
}

func TestGetStops(t *testing.T) {
	e, _ := newTestHandler(t, rowsSource{rows: abRows})
	rec := get(e, "/api/stops")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["A","B","Kimara Mwisho"]`, rec.Body.String())
}

func TestGetFare(t *testing.T) {
	e, _ := newTestHandler(t, rowsSource{rows: abRows})

	tests := []struct {
		name   string
		target string
		code   int
		body   string
	}{
		{"forward", "/api/fare?from=A&to=B", http.StatusOK, `{"from":"A","to":"B","fare":5}`},
		{"reverse", "/api/fare?from=B&to=A", http.StatusOK, `{"from":"B","to":"A","fare":7}`},
		{"diagonal", "/api/fare?from=A&to=A", http.StatusOK, `{"from":"A","to":"A","fare":0}`},
		{"normalized name", "/api/fare?from=Kimara%20Mwisho&to=A", http.StatusOK, `{"from":"Kimara Mwisho","to":"A","fare":650}`},
		{"missing from", "/api/fare?to=B", http.StatusBadRequest, `{"error":"Both from and to parameters are required"}`},
		{"empty to", "/api/fare?from=A&to=", http.StatusBadRequest, `{"error":"Both from and to parameters are required"}`},
		{"unknown stop", "/api/fare?from=A&to=Z", http.StatusNotFound, `{"error":"Invalid stop name"}`},
		{"case sensitive", "/api/fare?from=a&to=B", http.StatusNotFound, `{"error":"Invalid stop name"}`},
		{"ragged row", "/api/fare?from=B&to=Kimara%20Mwisho", http.StatusNotFound, `{"error":"Fare not available"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(e, tt.target)
			assert.Equal(t, tt.code, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

func TestLoadFailureIs500(t *testing.T) {
	e, _ := newTestHandler(t, rowsSource{err: errors.New("no workbook")})

	for _, target := range []string{"/api/stops", "/api/fare?from=A&to=B"} {
		rec := get(e, target)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, target)
		assert.JSONEq(t, `{"error":"Failed to load fare data"}`, rec.Body.String())
	}
}

func TestMissingParameterCheckedBeforeLoad(t *testing.T) {
	e, _ := newTestHandler(t, rowsSource{err: errors.New("no workbook")})
	rec := get(e, "/api/fare?from=A")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadWorkbook(t *testing.T) {
	e, h := newTestHandler(t, rowsSource{rows: abRows})
	content := []byte("PK\x03\x04 pretend workbook bytes")
	require.NoError(t, os.WriteFile(h.WorkbookPath, content, 0o644))

	rec := get(e, "/api/download-excel")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, workbookMIME, rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "attachment; filename=brt_fare_chart.xlsx", rec.Header().Get(echo.HeaderContentDisposition))
	assert.Equal(t, content, rec.Body.Bytes())
}

func TestDownloadWorkbookMissingFile(t *testing.T) {
	e, _ := newTestHandler(t, rowsSource{rows: abRows})
	rec := get(e, "/api/download-excel")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to download file"}`, rec.Body.String())
}

func TestNewFareHandlerPanicsOnNilStore(t *testing.T) {
	assert.Panics(t, func() { NewFareHandler(nil, "", "", nil) })
}
