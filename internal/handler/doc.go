// Package handler implements the optional HTTP API.
//
// # Endpoints
//
//	GET /health        liveness plus monitor progress
//	GET /api/chargers  every charger the journal has seen
//	GET /api/events    newest journaled events (?limit=N)
//
// The SSE stream (/events) and Prometheus (/metrics) are served by the hub
// and metrics packages and wired next to these in main.
//
// Errors are returned as JSON {"error": "..."} with an appropriate status.
package handler
