package generator

import (
	"fmt"

	"github.com/LincolnVS/tlc-baselines/simulation"
)

// StateOfThree describes every incoming lane by three values (moving
// vehicles, waiting vehicles, green under the active phase) followed by a
// one-hot encoding of the active phase.
type StateOfThree struct {
	inter *simulation.Intersection
	lanes []*simulation.Lane
}

func NewStateOfThree(inter *simulation.Intersection) (*StateOfThree, error) {
	lanes := inter.InLanes()
	if len(lanes) == 0 {
		return nil, fmt.Errorf("intersection %s has no incoming lanes", inter.ID)
	}
	return &StateOfThree{inter: inter, lanes: lanes}, nil
}

func (g *StateOfThree) Len() int { return 3*len(g.lanes) + len(g.inter.Phases) }

func (g *StateOfThree) Generate() []float64 {
	out := make([]float64, 0, g.Len())
	for _, l := range g.lanes {
		waiting := l.WaitingCount()
		green := 0.0
		if g.inter.IsGreen(l) {
			green = 1
		}
		out = append(out, float64(l.VehicleCount()-waiting), float64(waiting), green)
	}
	for p := range g.inter.Phases {
		if p == g.inter.Phase() {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	}
	return out
}
