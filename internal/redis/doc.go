// Package redis wraps the go-redis client with metrics and circuit breaker
// hooks and provides the cross-instance engagement event bridge.
package redis
