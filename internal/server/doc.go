// Package server exposes the monitoring HTTP API: health, active session
// listing, pipeline statistics, and Prometheus metrics.
package server
