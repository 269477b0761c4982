// Package domain defines domain-level errors for the market data feature.
package domain

import "errors"

var (
	// ErrInsufficientData means fewer than two samples exist for the requested window.
	// It is an expected condition shown as "not enough data", not a failure.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrUpstreamUnavailable wraps store, cache or feed failures.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUnknownRange is returned for a range token the chart kind does not offer.
	ErrUnknownRange = errors.New("unknown range")

	// ErrUnknownChartKind is returned for an unsupported chart kind.
	ErrUnknownChartKind = errors.New("unknown chart kind")

	// ErrClosed is returned by operations on a view model after Close.
	ErrClosed = errors.New("view model closed")
)
