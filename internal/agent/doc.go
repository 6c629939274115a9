// Package agent implements the status cache agent itself: one cache
// generation, one monitored URL, and a decision table per trigger. Requests
// for the monitored resource resolve through cache freshness, a single
// cache-busting network attempt, stale-cache replay, and finally a
// synthesized fallback record; the handler never surfaces an error to the
// caller. Explicit and periodic refreshes share the same fetch-and-store
// path and report through the notify hub. Activation purges superseded
// generations wholesale.
package agent
