package training

import "errors"

var (
	// ErrNoDecisions means an episode ended before any agent decided, so no
	// per-decision mean can be reported.
	ErrNoDecisions = errors.New("no decisions taken in episode")

	// ErrSlotMismatch means the clock reported a vector whose length differs
	// from the number of slots.
	ErrSlotMismatch = errors.New("clock output does not match slot count")
)

// MetricValue is one named evaluation of a Metric.
type MetricValue struct {
	Name  string
	Value float64
}

// AgentStats are the per-episode aggregates of one slot.
type AgentStats struct {
	Intersection string
	Decisions    int
	MeanReward   float64
	MeanTDError  float64
	Epsilon      float64
}

// Record is the evaluation summary of one finished episode.
type Record struct {
	Episode  int
	Episodes int
	// Steps is the number of ticks the episode advanced.
	Steps   int
	Metrics []MetricValue
	// Epsilon is the exploration rate of the last slot's agent.
	Epsilon float64
	Agents  []AgentStats
}

// Metric looks up a metric value by name.
func (r Record) Metric(name string) (float64, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}
