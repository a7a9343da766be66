// Package app is the application layer. It orchestrates the
// persist-then-broadcast use cases across the repositories, the realtime hub,
// and the cross-instance bridge.
package app
