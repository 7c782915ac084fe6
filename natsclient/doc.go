// Package natsclient manages the NATS connection used to store pattern
// indexes in JetStream key-value buckets.
//
// The client wraps nats.go with retrying connects, a circuit breaker that
// fails fast after repeated failures, and slog logging of connection state
// changes. Connection status is mirrored into metric.Metrics when one is
// supplied.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//		natsclient.WithLogger(logger),
//		natsclient.WithMetrics(registry.CoreMetrics()),
//	)
//	if err != nil {
//		return err
//	}
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close(ctx)
//
//	bucket, err := client.KeyValue(ctx, jetstream.KeyValueConfig{Bucket: "canopy_patterns"})
//
// TestClient starts a throwaway NATS server in a container for integration
// tests.
package natsclient
