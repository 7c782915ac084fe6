// Package worker provides a generic worker pool: a fixed number of
// goroutines draining a bounded queue.
//
//	pool, err := worker.NewPool(8, 1024, func(ctx context.Context, sig signature.Signature) error {
//		_, _ = cache.Get(sig)
//		return nil
//	})
//	if err != nil {
//		return err
//	}
//	_ = pool.Start(ctx)
//	for _, sig := range sigs {
//		if err := pool.SubmitWait(ctx, sig); err != nil {
//			break
//		}
//	}
//	err = pool.Stop(10 * time.Second) // drains the queue
//
// Submit never blocks and drops work with ErrQueueFull when the queue is at
// capacity; SubmitWait retries until there is room. Statistics are always
// kept; Prometheus metrics are added with WithMetrics.
package worker
