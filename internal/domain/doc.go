// Package domain holds the core types and ports of the engagement service:
// posts, reactions, comments, the repository interfaces backed by Postgres,
// and the broadcaster port implemented by the realtime hub.
package domain
