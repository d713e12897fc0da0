package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/brt-fare-chart/internal/handler" // import the handlers that serve fares
)

// Probes bundles what the health endpoints need.
type Probes struct {
	Status handler.StoreStatus
}

// RegisterRoutes registers the liveness and readiness probes.  Neither
// requires the fare chart to be loaded, so they stay outside the /api group
// and its middleware.
func RegisterRoutes(e *echo.Echo, p Probes) {
	// Liveness: the process is up.
	e.GET("/healthz", handler.Health)
	// Readiness: the fare chart has been loaded at least once.
	e.GET("/readyz", handler.Ready(p.Status))
}

// APIMiddleware holds the middleware applied to the fare API.  Group runs
// on every /api route; Cache wraps only the JSON lookups since the workbook
// download is streamed.
type APIMiddleware struct {
	Group []echo.MiddlewareFunc
	Cache echo.MiddlewareFunc
}

// RegisterFares registers the fare API under /api.
func RegisterFares(e *echo.Echo, h *handler.FareHandler, mw APIMiddleware) {
	g := e.Group("/api", mw.Group...)

	var lookup []echo.MiddlewareFunc
	if mw.Cache != nil {
		lookup = append(lookup, mw.Cache)
	}
	// Stop names in chart column order.
	g.GET("/stops", h.GetStops, lookup...)
	// Fare between two named stops.
	g.GET("/fare", h.GetFare, lookup...)
	// The source workbook, unchanged.
	g.GET("/download-excel", h.DownloadWorkbook)
}
