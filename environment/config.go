package environment

import (
	"fmt"

	"github.com/LincolnVS/tlc-baselines/generator"
	"github.com/LincolnVS/tlc-baselines/simulation"
)

// Observation kinds.
const (
	ObserveStateOfThree = "state_of_three"
	ObserveLaneCount    = "lane_count"
)

// Config selects the generators bound to every intersection.
type Config struct {
	// Observation is ObserveStateOfThree or ObserveLaneCount.
	Observation string
	// RewardSignal is averaged over the incoming roads and negated.
	RewardSignal generator.Signal
}

// DefaultConfig observes the state of three and rewards fewer waiting vehicles.
func DefaultConfig() Config {
	return Config{
		Observation:  ObserveStateOfThree,
		RewardSignal: generator.LaneWaitingCount,
	}
}

// Slots binds one observation and one reward generator to every
// signalised intersection of w.
func (c Config) Slots(w *simulation.World) ([]Slot, error) {
	slots := make([]Slot, 0, len(w.Intersections()))
	for _, inter := range w.Intersections() {
		var (
			obs generator.Generator
			err error
		)
		switch c.Observation {
		case ObserveStateOfThree:
			obs, err = generator.NewStateOfThree(inter)
		case ObserveLaneCount:
			obs, err = generator.NewLaneVehicle(inter, generator.LaneVehicleOptions{
				Signals: []generator.Signal{generator.LaneCount},
				InOnly:  true,
			})
		default:
			err = fmt.Errorf("unknown observation %q", c.Observation)
		}
		if err != nil {
			return nil, fmt.Errorf("intersection %s: %w", inter.ID, err)
		}
		reward, err := generator.NewLaneVehicle(inter, generator.LaneVehicleOptions{
			Signals:  []generator.Signal{c.RewardSignal},
			InOnly:   true,
			Average:  generator.AverageAll,
			Negative: true,
		})
		if err != nil {
			return nil, fmt.Errorf("intersection %s: %w", inter.ID, err)
		}
		slots = append(slots, Slot{Intersection: inter, Observation: obs, Reward: reward})
	}
	return slots, nil
}
