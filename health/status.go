package health

import (
	"regexp"
	"strings"
	"time"
)

// Health levels.
const (
	LevelHealthy   = "healthy"
	LevelDegraded  = "degraded"
	LevelUnhealthy = "unhealthy"
)

var (
	urlPattern        = regexp.MustCompile(`(?:https?|nats|tls|wss?)://[^\s]+`)
	unixPathPattern   = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	windowsPathRegexp = regexp.MustCompile(`[A-Z]:\\[^:\s]+`)
	ipPattern         = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portPattern       = regexp.MustCompile(`:\d{2,5}\b`)
	secretPattern     = regexp.MustCompile(`(?i)(password|token|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status is the health of one component, optionally with children.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics are optional counters attached to a Status.
type Metrics struct {
	Uptime         time.Duration `json:"uptime"`
	ErrorCount     int           `json:"error_count"`
	RequestsServed int64         `json:"requests_served,omitempty"`
	LastActivity   time.Time     `json:"last_activity,omitempty"`
}

func (s Status) IsHealthy() bool   { return s.Status == LevelHealthy }
func (s Status) IsDegraded() bool  { return s.Status == LevelDegraded }
func (s Status) IsUnhealthy() bool { return s.Status == LevelUnhealthy }

// WithMetrics returns a copy with metrics attached.
func (s Status) WithMetrics(metrics *Metrics) Status {
	s.Metrics = metrics
	return s
}

// WithSubStatus returns a copy with sub appended. The receiver's slice is
// never shared with the result.
func (s Status) WithSubStatus(sub Status) Status {
	subs := make([]Status, len(s.SubStatuses), len(s.SubStatuses)+1)
	copy(subs, s.SubStatuses)
	s.SubStatuses = append(subs, sub)
	return s
}

// FromError reports component as unhealthy with a sanitized error message,
// or healthy when err is nil.
func FromError(component string, err error) Status {
	if err == nil {
		return NewHealthy(component, "ok")
	}
	return NewUnhealthy(component, sanitize(err.Error()))
}

// sanitize strips addresses, paths and credentials from a message before it
// is served on the health endpoint.
func sanitize(msg string) string {
	if msg == "" {
		return ""
	}

	out := urlPattern.ReplaceAllString(msg, "[URL]")
	out = unixPathPattern.ReplaceAllString(out, "[PATH]")
	out = windowsPathRegexp.ReplaceAllString(out, "[PATH]")
	out = ipPattern.ReplaceAllString(out, "[IP]")
	out = portPattern.ReplaceAllString(out, "[PORT]")

	lower := strings.ToLower(out)
	for _, word := range []string{"password", "token", "secret", "credential"} {
		if strings.Contains(lower, word) {
			out = secretPattern.ReplaceAllString(out, "[REDACTED]")
			break
		}
	}
	return out
}
