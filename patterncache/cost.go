package patterncache

// Usage is the entry count of each accounted structure.
type Usage struct {
	CoreEntries       int
	WorkingSetEntries int
	UsageCounters     int
}

// Footprint is an estimated per-structure memory cost in bytes.
type Footprint struct {
	Core        int64 `json:"core"`
	WorkingSet  int64 `json:"working_set"`
	UsageCounts int64 `json:"usage_counts"`
}

// Total sums the components.
func (f Footprint) Total() int64 {
	return f.Core + f.WorkingSet + f.UsageCounts
}

// CostFunc estimates the memory footprint of the cache from its entry counts.
type CostFunc func(Usage) Footprint

// Default per-entry costs.
const (
	PatternEntryBytes = 1024
	UsageEntryBytes   = 100
)

// FixedCost charges a flat amount per cached pattern and per usage counter.
func FixedCost(patternBytes, counterBytes int64) CostFunc {
	return func(u Usage) Footprint {
		return Footprint{
			Core:        int64(u.CoreEntries) * patternBytes,
			WorkingSet:  int64(u.WorkingSetEntries) * patternBytes,
			UsageCounts: int64(u.UsageCounters) * counterBytes,
		}
	}
}

// DefaultCost is FixedCost(PatternEntryBytes, UsageEntryBytes).
func DefaultCost() CostFunc {
	return FixedCost(PatternEntryBytes, UsageEntryBytes)
}
