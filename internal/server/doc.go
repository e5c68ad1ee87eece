// Package server exposes the operational HTTP endpoints of the relay:
// Prometheus metrics, liveness and readiness probes.
//
// The relay itself has no inbound HTTP surface; this server only exists so
// the process can be scraped and probed when it runs in a cluster.
package server
