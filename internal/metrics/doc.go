// Package metrics is the engine's metrics sink: counters for publish and
// delivery volume, timings for delivery latency. The sink is an interface
// with a noop default so emission can never block or fail the hot path; the
// concrete sink ships to statsd.
package metrics
