// Package health models component health as healthy, degraded or unhealthy
// and aggregates it for the /health endpoint.
//
// A Status is a value: WithMetrics and WithSubStatus return copies. Aggregate
// takes the worst level among its children. Monitor holds the latest status
// per component, either pushed with Update or pulled from a Checker:
//
//	monitor := health.NewMonitor()
//	monitor.Register("patterncache", cache)
//	monitor.Update("index", health.FromError("index", err))
//	status := monitor.Check("canopy")
//
// FromError strips URLs, paths, addresses and credentials from the error text
// before it reaches the endpoint.
package health
