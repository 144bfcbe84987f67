package environment

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/LincolnVS/tlc-baselines/generator"
	"github.com/LincolnVS/tlc-baselines/metric"
	"github.com/LincolnVS/tlc-baselines/simulation"
	"github.com/LincolnVS/tlc-baselines/training"
)

// Slot binds an intersection to the generators of its observation and reward.
type Slot struct {
	Intersection *simulation.Intersection
	Observation  generator.Generator
	Reward       generator.Generator
}

// Env is the traffic signal control environment: one agent per slot, one
// action per slot per Step. It implements training.SimulationClock.
type Env struct {
	world   *simulation.World
	slots   []Slot
	metrics []metric.Metric
}

// New validates the slots and builds an Env over w.
func New(w *simulation.World, slots []Slot, metrics []metric.Metric) (*Env, error) {
	if len(slots) == 0 {
		return nil, errors.New("environment needs at least one slot")
	}
	for _, s := range slots {
		if s.Reward.Len() != 1 {
			return nil, fmt.Errorf("intersection %s: reward generator yields %d values, want 1", s.Intersection.ID, s.Reward.Len())
		}
	}
	return &Env{world: w, slots: slots, metrics: metrics}, nil
}

var _ training.SimulationClock = (*Env)(nil)

func (e *Env) World() *simulation.World { return e.world }
func (e *Env) Slots() []Slot            { return e.slots }
func (e *Env) Metrics() []metric.Metric { return e.metrics }

// TrainingMetrics exposes the metrics through the trainer's interface.
func (e *Env) TrainingMetrics() []training.Metric {
	return lo.Map(e.metrics, func(m metric.Metric, _ int) training.Metric { return m })
}

// Reset rewinds the world and the metrics and returns the first observations.
func (e *Env) Reset(context.Context) ([][]float64, error) {
	if err := e.world.Reset(); err != nil {
		return nil, err
	}
	for _, m := range e.metrics {
		m.Reset()
	}
	return e.observe(), nil
}

// Step applies one phase per slot and advances the world by one tick.
func (e *Env) Step(_ context.Context, actions []int) (training.StepResult, error) {
	if len(actions) != len(e.slots) {
		return training.StepResult{}, fmt.Errorf("got %d actions for %d slots", len(actions), len(e.slots))
	}
	if err := e.world.Step(e.phases(actions)); err != nil {
		return training.StepResult{}, err
	}
	dones := lo.Map(e.slots, func(s Slot, _ int) bool { return e.world.IntersectionDone(s.Intersection) })
	allDone := lo.EveryBy(dones, func(d bool) bool { return d })
	for _, m := range e.metrics {
		m.Update(allDone)
	}
	return training.StepResult{
		Observations: e.observe(),
		Rewards:      lo.Map(e.slots, func(s Slot, _ int) float64 { return s.Reward.Generate()[0] }),
		Dones:        dones,
		Info: map[string]float64{
			"time":     e.world.Time(),
			"vehicles": float64(len(e.world.Vehicles())),
		},
	}, nil
}

func (e *Env) SetSaveReplay(_ context.Context, enabled bool) error {
	e.world.SetSaveReplay(enabled)
	return nil
}

func (e *Env) SetReplayFile(_ context.Context, name string) error {
	return e.world.SetReplayFile(name)
}

// phases orders the slot actions like the world's intersections.
func (e *Env) phases(actions []int) []int {
	index := make(map[*simulation.Intersection]int, len(e.slots))
	for j, s := range e.slots {
		index[s.Intersection] = j
	}
	inters := e.world.Intersections()
	phases := make([]int, len(inters))
	for i, inter := range inters {
		if j, ok := index[inter]; ok {
			phases[i] = actions[j]
		} else {
			phases[i] = inter.Phase()
		}
	}
	return phases
}

func (e *Env) observe() [][]float64 {
	return lo.Map(e.slots, func(s Slot, _ int) []float64 { return s.Observation.Generate() })
}

// Close flushes any pending replay.
func (e *Env) Close() error { return e.world.Close() }
