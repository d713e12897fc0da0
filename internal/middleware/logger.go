package middleware

import (
    "github.com/charmbracelet/log"
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
)

// RequestLogger writes one line per request to logger.
func RequestLogger(logger *log.Logger) echo.MiddlewareFunc {
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogMethod:   true,
        LogURI:      true,
        LogStatus:   true,
        LogLatency:  true,
        LogRemoteIP: true,
        LogError:    true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            kv := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "ip", v.RemoteIP}
            if v.Error != nil {
                logger.Error("request", append(kv, "err", v.Error)...)
                return nil
            }
            logger.Info("request", kv...)
            return nil
        },
    })
}
