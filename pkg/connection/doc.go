// Package connection provides connection lifecycle management for the
// client façade: exponential backoff with jitter and a reconnect manager
// that drives a transport's connect function until it succeeds, the retry
// budget is exhausted, or the manager is closed.
package connection
