package health

import "time"

func newStatus(component, level, message string) Status {
	return Status{
		Component: component,
		Healthy:   level == LevelHealthy,
		Status:    level,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy creates a healthy status.
func NewHealthy(component, message string) Status {
	return newStatus(component, LevelHealthy, message)
}

// NewUnhealthy creates an unhealthy status.
func NewUnhealthy(component, message string) Status {
	return newStatus(component, LevelUnhealthy, message)
}

// NewDegraded creates a degraded status.
func NewDegraded(component, message string) Status {
	return newStatus(component, LevelDegraded, message)
}

// Aggregate takes the worst level among subs: any unhealthy child makes the
// result unhealthy, otherwise any degraded child makes it degraded.
func Aggregate(component string, subs []Status) Status {
	if len(subs) == 0 {
		return NewHealthy(component, "no components registered")
	}

	level := LevelHealthy
	for _, sub := range subs {
		switch {
		case sub.IsUnhealthy():
			level = LevelUnhealthy
		case sub.IsDegraded() && level == LevelHealthy:
			level = LevelDegraded
		}
	}

	var status Status
	switch level {
	case LevelUnhealthy:
		status = NewUnhealthy(component, "one or more components are unhealthy")
	case LevelDegraded:
		status = NewDegraded(component, "one or more components are degraded")
	default:
		status = NewHealthy(component, "all components are healthy")
	}

	status.SubStatuses = make([]Status, len(subs))
	copy(status.SubStatuses, subs)
	return status
}
