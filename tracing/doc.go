// Package tracing delegates all span management to OpenTelemetry; nothing is
// re-implemented locally.
package tracing
