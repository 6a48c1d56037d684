// Package metrics registers sweenv's Prometheus collectors: session resets,
// shell bridge round trips, dispatcher verb counts, diff apply outcomes,
// symbol index rebuilds, and container start/stop latency. Call Handler to
// mount the exposition endpoint; use NewTimer/ObserveDuration around the
// operation you want to time.
package metrics
