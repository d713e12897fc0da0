package handler // declare the package name; contains HTTP handlers

import (
    "net/http" // net/http provides status codes and response helpers

    "github.com/labstack/echo/v4" // echo is the web framework used for this project

    "github.com/iliyamo/brt-fare-chart/internal/fares" // fares reports the store lifecycle
)

// Health is a liveness endpoint used by load balancers and monitoring
// systems to verify that the process is running.  It returns a plain text
// "ok" message with an HTTP 200 status code and never touches the fare chart.
func Health(c echo.Context) error { // Health handler signature accepts an echo context and returns an error
    return c.String(http.StatusOK, "ok") // write "ok" with a 200 OK status; String writes plain text
}

// StoreStatus is the part of fares.Store the readiness probe reports on.
type StoreStatus interface {
    State() fares.State
    Loads() int64
}

// ReadyResponse is the body of GET /readyz.
type ReadyResponse struct {
    State string `json:"state"`
    Loads int64  `json:"loads"`
}

// Ready reports whether the fare chart has been loaded.  It does not trigger
// a load itself: traffic on /api does that.  Returns 503 until the store is
// ready.
func Ready(s StoreStatus) echo.HandlerFunc {
    return func(c echo.Context) error {
        st := s.State()
        resp := ReadyResponse{State: st.String(), Loads: s.Loads()}
        if st != fares.StateReady {
            return c.JSON(http.StatusServiceUnavailable, resp)
        }
        return c.JSON(http.StatusOK, resp)
    }
}
