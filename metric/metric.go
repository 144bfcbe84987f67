// Package metric accumulates network-wide statistics over an episode.
package metric

import (
	"github.com/samber/lo"

	"github.com/LincolnVS/tlc-baselines/simulation"
)

// Metric is updated after every tick and reset with the world.
type Metric interface {
	Name() string
	Eval() float64
	Update(done bool)
	Reset()
}

// Defaults returns the metrics reported for every episode.
func Defaults(w *simulation.World) []Metric {
	return []Metric{
		NewTravelTime(w),
		NewThroughput(w),
		NewSpeedScore(w),
		NewMaxWaitingTime(w),
	}
}

// TravelTime is the average travel time of every vehicle seen so far,
// counting the elapsed time of vehicles still on the road.
type TravelTime struct {
	world *simulation.World
}

func NewTravelTime(w *simulation.World) *TravelTime { return &TravelTime{world: w} }

func (m *TravelTime) Name() string  { return "travel_time" }
func (m *TravelTime) Eval() float64 { return m.world.AverageTravelTime() }
func (m *TravelTime) Update(bool)   {}
func (m *TravelTime) Reset()        {}

// Throughput is the number of vehicles that left the network.
type Throughput struct {
	world *simulation.World
}

func NewThroughput(w *simulation.World) *Throughput { return &Throughput{world: w} }

func (m *Throughput) Name() string  { return "throughput" }
func (m *Throughput) Eval() float64 { return float64(len(m.world.FinishedTravelTimes())) }
func (m *Throughput) Update(bool)   {}
func (m *Throughput) Reset()        {}

// SpeedScore averages, over ticks with traffic, the mean ratio of vehicle
// speed to the speed it is allowed to drive.
type SpeedScore struct {
	world *simulation.World
	total float64
	ticks int
}

func NewSpeedScore(w *simulation.World) *SpeedScore { return &SpeedScore{world: w} }

func (m *SpeedScore) Name() string { return "speed_score" }

func (m *SpeedScore) Eval() float64 {
	if m.ticks == 0 {
		return 0
	}
	return m.total / float64(m.ticks)
}

func (m *SpeedScore) Update(bool) {
	vehicles := m.world.Vehicles()
	if len(vehicles) == 0 {
		return
	}
	m.total += lo.Mean(lo.Map(vehicles, func(v *simulation.Vehicle, _ int) float64 {
		return v.Speed() / v.MaxSpeed()
	}))
	m.ticks++
}

func (m *SpeedScore) Reset() { m.total, m.ticks = 0, 0 }

// MaxWaitingTime is the longest total waiting time any vehicle reached.
type MaxWaitingTime struct {
	world *simulation.World
	max   float64
}

func NewMaxWaitingTime(w *simulation.World) *MaxWaitingTime { return &MaxWaitingTime{world: w} }

func (m *MaxWaitingTime) Name() string  { return "max_waiting_time" }
func (m *MaxWaitingTime) Eval() float64 { return m.max }

func (m *MaxWaitingTime) Update(bool) {
	for _, v := range m.world.Vehicles() {
		m.max = max(m.max, v.WaitingTime())
	}
}

func (m *MaxWaitingTime) Reset() { m.max = 0 }
