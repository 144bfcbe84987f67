package training

import (
	"context"
	"fmt"

	"github.com/LincolnVS/tlc-baselines/config"
)

const (
	sampledAction = 0
	policyAction  = 1
)

// stubClock is a deterministic SimulationClock. Ticks are numbered from 1
// within an episode.
type stubClock struct {
	agents int
	reward func(tick, agent int) float64
	done   func(tick, agent int) bool

	tick        int
	totalTicks  int
	resets      int
	actions     [][]int
	replay      []bool
	replayFiles []string
	events      *[]string
	// rewardWidth overrides the reward vector length when non-zero.
	rewardWidth int
}

func newStubClock(agents int, events *[]string) *stubClock {
	return &stubClock{
		agents: agents,
		reward: func(int, int) float64 { return 0 },
		done:   func(int, int) bool { return false },
		events: events,
	}
}

func (c *stubClock) obs() [][]float64 {
	out := make([][]float64, c.agents)
	for j := range out {
		out[j] = []float64{float64(c.tick), float64(j)}
	}
	return out
}

func (c *stubClock) Reset(context.Context) ([][]float64, error) {
	c.tick = 0
	c.resets++
	c.log("clock_reset")
	return c.obs(), nil
}

func (c *stubClock) Step(_ context.Context, actions []int) (StepResult, error) {
	c.tick++
	c.totalTicks++
	c.actions = append(c.actions, append([]int(nil), actions...))
	c.log("step")

	width := c.agents
	if c.rewardWidth != 0 {
		width = c.rewardWidth
	}
	res := StepResult{
		Observations: c.obs(),
		Rewards:      make([]float64, width),
		Dones:        make([]bool, c.agents),
	}
	for j := 0; j < width; j++ {
		res.Rewards[j] = c.reward(c.tick, j)
	}
	for j := range res.Dones {
		res.Dones[j] = c.done(c.tick, j)
	}
	return res, nil
}

func (c *stubClock) SetSaveReplay(_ context.Context, enabled bool) error {
	c.replay = append(c.replay, enabled)
	return nil
}

func (c *stubClock) SetReplayFile(_ context.Context, name string) error {
	c.replayFiles = append(c.replayFiles, name)
	return nil
}

func (c *stubClock) log(ev string) {
	if c.events != nil {
		*c.events = append(*c.events, ev)
	}
}

type experience struct {
	prev   []float64
	action int
	reward float64
	next   []float64
}

type stubAgent struct {
	id            string
	learningStart int
	td            float64
	eps           float64
	saveErr       error

	samples     int
	policies    int
	remembered  []experience
	traceResets int
	saves       []string
	loads       []string
	events      *[]string
}

func (a *stubAgent) Sample() int {
	a.samples++
	return sampledAction
}

func (a *stubAgent) GetAction([]float64) int {
	a.policies++
	return policyAction
}

func (a *stubAgent) Remember(prev []float64, action int, reward float64, next []float64) {
	a.remembered = append(a.remembered, experience{prev, action, reward, next})
}

func (a *stubAgent) TDError() float64   { return a.td }
func (a *stubAgent) Epsilon() float64   { return a.eps }
func (a *stubAgent) LearningStart() int { return a.learningStart }

func (a *stubAgent) ResetTraces() {
	a.traceResets++
	if a.events != nil {
		*a.events = append(*a.events, fmt.Sprintf("reset_traces:%s", a.id))
	}
}

func (a *stubAgent) SaveModel(dir string) error {
	if a.saveErr != nil {
		return a.saveErr
	}
	a.saves = append(a.saves, dir)
	return nil
}

func (a *stubAgent) LoadModel(dir string) error {
	a.loads = append(a.loads, dir)
	return nil
}

func (a *stubAgent) Hyperparameters() config.Hyperparameters {
	hp := config.DefaultHyperparameters()
	hp.LearningStart = a.learningStart
	return hp
}

type stubMetric struct {
	name  string
	value float64
}

func (m stubMetric) Name() string  { return m.name }
func (m stubMetric) Eval() float64 { return m.value }

type captureSink struct {
	hp      *config.Hyperparameters
	records []Record
}

func (s *captureSink) Configure(hp config.Hyperparameters) error {
	s.hp = &hp
	return nil
}

func (s *captureSink) Record(rec Record) error {
	s.records = append(s.records, rec)
	return nil
}

func slotsFor(agents ...*stubAgent) []Slot {
	slots := make([]Slot, len(agents))
	for i, a := range agents {
		slots[i] = Slot{Intersection: a.id, Agent: a}
	}
	return slots
}
