// Package generator turns the state of one intersection into a fixed-length
// feature vector used as an agent's observation or reward.
package generator

import "github.com/LincolnVS/tlc-baselines/simulation"

// Generator produces a vector of Len() values from the current world state.
type Generator interface {
	Generate() []float64
	Len() int
}

// Signal is a per-lane quantity read from the world.
type Signal string

const (
	LaneCount            Signal = "lane_count"
	LaneWaitingCount     Signal = "lane_waiting_count"
	LaneWaitingTimeCount Signal = "lane_waiting_time_count"
	LaneSpeed            Signal = "lane_speed"
)

var signals = []Signal{LaneCount, LaneWaitingCount, LaneWaitingTimeCount, LaneSpeed}

func (s Signal) read(l *simulation.Lane) float64 {
	switch s {
	case LaneCount:
		return float64(l.VehicleCount())
	case LaneWaitingCount:
		return float64(l.WaitingCount())
	case LaneWaitingTimeCount:
		return l.WaitingTime()
	case LaneSpeed:
		return l.MeanSpeed()
	default:
		return 0
	}
}

// Average selects how lane values are reduced.
type Average string

const (
	// AverageNone keeps one value per lane.
	AverageNone Average = ""
	// AverageRoad keeps the mean of each road's lanes.
	AverageRoad Average = "road"
	// AverageAll keeps a single value: the mean of the road means.
	AverageAll Average = "all"
)
