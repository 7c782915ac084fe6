// Package errors provides classified error handling for the canopy packages.
//
// # Classification
//
// Errors fall into three classes:
//
//   - Transient: the NATS connection dropped, a KV read timed out, the pattern
//     index is temporarily unreadable. Retrying may succeed.
//   - Invalid: malformed index files, unknown relation labels in strict mode,
//     populating the core tier twice. Retrying the same input will not help.
//   - Fatal: invalid configuration or corrupted data. Stop and report.
//
// Classification looks at an explicit ClassifiedError first, then at the
// sentinel variables in this package, and finally at common message fragments
// so that errors from third-party libraries still land in a sensible class.
//
// # Wrapping
//
// Wrap errors at package boundaries with the component and method names:
//
//	if err := yaml.Unmarshal(data, &doc); err != nil {
//	    return errors.WrapInvalid(err, "patternindex", "LoadFile", "decode yaml")
//	}
//
// The resulting message follows "component.method: action failed: cause" and
// still matches the cause with errors.Is and errors.As.
//
// # Retry
//
// RetryConfig.ShouldRetry combines the classification with an attempt budget,
// and ToRetryConfig converts it for use with pkg/retry.Do:
//
//	cfg := errors.DefaultRetryConfig().ToRetryConfig()
//	err := retry.Do(ctx, cfg, func() error { return load(ctx) })
//
// Hot-path cache operations (Get, GetWithFallback, Insert) never return errors;
// this package is used only by construction, loading and persistence code.
package errors
