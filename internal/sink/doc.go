// Package sink defines the append-only boundary to externally-owned live
// tables. The adapter core writes fixed-schema rows into named tables
// through the Sink interface and never owns storage or rendering. Appends
// are fire-and-forget so the event-receipt path is never blocked.
package sink
