package middleware

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/brt-fare-chart/internal/fares"
)

// MatrixLoader is the part of fares.Store the warm-up middleware needs.
type MatrixLoader interface {
    Load(ctx context.Context) (*fares.Matrix, error)
}

// EnsureFares makes sure the fare chart is loaded before any fare route runs.
// The first request after start pays for the load; a failed load answers 500
// and is retried by the next request.
func EnsureFares(store MatrixLoader) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if _, err := store.Load(c.Request().Context()); err != nil {
                return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load fare data"})
            }
            return next(c)
        }
    }
}
