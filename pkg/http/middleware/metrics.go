package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// HTTPRecorder is satisfied by *metrics.Recorder.
type HTTPRecorder interface {
	RecordHTTPRequest(method, route, status string, seconds float64)
}

// Metrics records request counts and latency labelled by the route template
// (e.g. "/api/vaults/:chainId/:address/risk") to keep cardinality low.
func Metrics(rec HTTPRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			if rec != nil {
				rec.RecordHTTPRequest(
					c.Request().Method,
					routeLabel(c),
					strconv.Itoa(c.Response().Status),
					time.Since(start).Seconds(),
				)
			}
			return nil
		}
	}
}

func routeLabel(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}
