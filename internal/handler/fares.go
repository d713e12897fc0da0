// Package handler exposes HTTP handlers for the fare chart API.  Handlers
// translate fares package errors into status codes; all lookups go through a
// shared fares.Store owned by the server's composition root.
package handler

import (
    "context"
    "errors"
    "net/http"
    "os"

    "github.com/charmbracelet/log"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/brt-fare-chart/internal/fares"
)

// workbookMIME is the content type of .xlsx downloads.
const workbookMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// FareStore is what the handlers need from fares.Store.
type FareStore interface {
    Stops(ctx context.Context) ([]string, error)
    Fare(ctx context.Context, from, to string) (float64, error)
}

// FareHandler serves stop lists, fare lookups and the raw workbook.
type FareHandler struct {
    Store        FareStore   // Store answers stop and fare queries
    WorkbookPath string      // WorkbookPath is streamed by DownloadWorkbook
    DownloadName string      // DownloadName is the attachment filename
    Logger       *log.Logger // Logger records unexpected failures
}

// NewFareHandler constructs a FareHandler and panics if store is nil.
func NewFareHandler(store FareStore, workbookPath, downloadName string, logger *log.Logger) *FareHandler {
    if store == nil {
        panic("nil store passed to NewFareHandler")
    }
    if logger == nil {
        logger = log.Default()
    }
    return &FareHandler{Store: store, WorkbookPath: workbookPath, DownloadName: downloadName, Logger: logger}
}

// FareResponse is the body of a successful fare lookup.
type FareResponse struct {
    From string  `json:"from"`
    To   string  `json:"to"`
    Fare float64 `json:"fare"`
}

// GetStops returns every stop name in chart column order as a JSON array.
func (h *FareHandler) GetStops(c echo.Context) error {
    stops, err := h.Store.Stops(c.Request().Context())
    if err != nil {
        return loadFailed(c)
    }
    return c.JSON(http.StatusOK, stops)
}

// GetFare answers GET /api/fare?from=&to=.
func (h *FareHandler) GetFare(c echo.Context) error {
    q := fares.Query{From: c.QueryParam("from"), To: c.QueryParam("to")}
    if err := q.Validate(); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "Both from and to parameters are required"})
    }
    fare, err := h.Store.Fare(c.Request().Context(), q.From, q.To)
    switch {
    case err == nil:
        return c.JSON(http.StatusOK, FareResponse{From: q.From, To: q.To, Fare: fare})
    case errors.Is(err, fares.ErrUnknownStop):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "Invalid stop name"})
    case errors.Is(err, fares.ErrFareUnavailable):
        h.Logger.Warn("fare lookup hit a ragged row", "from", q.From, "to", q.To)
        return c.JSON(http.StatusNotFound, echo.Map{"error": "Fare not available"})
    default:
        return loadFailed(c)
    }
}

// DownloadWorkbook streams the fare chart workbook unchanged as an attachment.
func (h *FareHandler) DownloadWorkbook(c echo.Context) error {
    f, err := os.Open(h.WorkbookPath)
    if err != nil {
        h.Logger.Error("download workbook", "path", h.WorkbookPath, "err", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to download file"})
    }
    defer f.Close()
    c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+h.DownloadName)
    return c.Stream(http.StatusOK, workbookMIME, f)
}

func loadFailed(c echo.Context) error {
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load fare data"})
}
