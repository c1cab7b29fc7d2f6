// ABOUTME: Package observe exposes stream health as OpenTelemetry metrics
// ABOUTME: Metrics are served through the Prometheus exporter
// Package observe wires stream counters, buffer fill and clock estimates
// into OpenTelemetry. Values are read when a collector scrapes, so the
// real-time callback never touches the metrics SDK.
package observe
