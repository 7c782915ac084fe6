// Package retry provides exponential backoff for operations that touch NATS:
// connecting to the server and reading pattern entries from a KV bucket.
//
// Do runs a function until it succeeds or the attempt budget is spent,
// sleeping Backoff(n) (plus optional jitter) between attempts and stopping
// early when the context ends. Wrap an error with NonRetryable to stop at once,
// for instance when a KV entry decodes but is malformed.
//
//	idx, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*patternindex.Index, error) {
//	    return store.Load(ctx)
//	})
package retry
