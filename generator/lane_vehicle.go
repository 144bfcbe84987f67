package generator

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/LincolnVS/tlc-baselines/simulation"
)

// LaneVehicle reads per-lane signals of the roads around an intersection.
// Values are grouped signal by signal, then road by road.
type LaneVehicle struct {
	signals  []Signal
	roads    [][]*simulation.Lane
	average  Average
	negative bool
}

// LaneVehicleOptions configure a LaneVehicle generator.
type LaneVehicleOptions struct {
	Signals []Signal
	// InOnly restricts the generator to incoming roads.
	InOnly  bool
	Average Average
	// Negative flips the sign of every value, turning a cost into a reward.
	Negative bool
}

// NewLaneVehicle binds a LaneVehicle generator to inter.
func NewLaneVehicle(inter *simulation.Intersection, opts LaneVehicleOptions) (*LaneVehicle, error) {
	if len(opts.Signals) == 0 {
		return nil, errors.New("lane vehicle generator needs at least one signal")
	}
	switch opts.Average {
	case AverageNone, AverageRoad, AverageAll:
	default:
		return nil, fmt.Errorf("unknown average %q", opts.Average)
	}
	for _, s := range opts.Signals {
		if !lo.Contains(signals, s) {
			return nil, fmt.Errorf("unknown signal %q", s)
		}
	}

	roads := inter.InRoads
	if !opts.InOnly {
		roads = append(append([]*simulation.Road(nil), inter.InRoads...), inter.OutRoads...)
	}
	if len(roads) == 0 {
		return nil, fmt.Errorf("intersection %s has no roads", inter.ID)
	}
	return &LaneVehicle{
		signals:  opts.Signals,
		roads:    lo.Map(roads, func(r *simulation.Road, _ int) []*simulation.Lane { return r.Lanes }),
		average:  opts.Average,
		negative: opts.Negative,
	}, nil
}

func (g *LaneVehicle) Len() int {
	var size int
	switch g.average {
	case AverageRoad:
		size = len(g.roads)
	case AverageAll:
		size = 1
	default:
		size = lo.SumBy(g.roads, func(lanes []*simulation.Lane) int { return len(lanes) })
	}
	return len(g.signals) * size
}

func (g *LaneVehicle) Generate() []float64 {
	out := make([]float64, 0, g.Len())
	for _, s := range g.signals {
		var values []float64
		for _, lanes := range g.roads {
			road := lo.Map(lanes, func(l *simulation.Lane, _ int) float64 { return s.read(l) })
			if g.average == AverageNone {
				values = append(values, road...)
			} else {
				values = append(values, lo.Mean(road))
			}
		}
		if g.average == AverageAll {
			values = []float64{lo.Mean(values)}
		}
		out = append(out, values...)
	}
	if g.negative {
		for i := range out {
			out[i] = -out[i]
		}
	}
	return out
}
