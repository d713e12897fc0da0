// Package fares turns a stop-by-stop fare chart into an in-memory matrix and
// answers lookups against it.
//
// The errors below let the HTTP layer tell client mistakes (unknown stop,
// missing parameter) apart from load failures (empty or malformed chart).
package fares

import "errors"

// ErrEmptyData is returned when the chart has no header stops or no data rows.
var ErrEmptyData = errors.New("no data found in worksheet")

// ErrShapeMismatch is returned when the number of data rows differs from the
// number of stops, or, in strict mode, when a row is not len(stops) long.
var ErrShapeMismatch = errors.New("stops and fares data mismatch in size")

// ErrUnknownStop is returned when a query names a stop absent from the chart.
var ErrUnknownStop = errors.New("invalid stop name")

// ErrMissingParameter is returned when a query omits its origin or destination.
var ErrMissingParameter = errors.New("both from and to parameters are required")

// ErrFareUnavailable is returned when both stops exist but the origin row is
// too short to hold the destination column (a ragged row).
var ErrFareUnavailable = errors.New("fare not available")
