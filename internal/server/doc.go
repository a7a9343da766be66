// Package server exposes the HTTP surface: the REST engagement API, the
// WebSocket endpoint, and the observability endpoints.
package server
