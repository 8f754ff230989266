// Package tracing provides OpenTelemetry tracing integration for the HTTP
// surface. The middleware extracts W3C trace context from inbound requests,
// opens a server span per request, and propagates the trace ID back to the
// client via the X-Trace-Id header.
package tracing
