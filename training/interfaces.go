// Package training drives per-intersection agents through episodes of a
// shared traffic simulation. Agents decide once every action interval while
// the simulation advances one tick at a time; the rewards of the ticks in
// between are averaged into the experience each agent learns from.
package training

import (
	"context"

	"github.com/LincolnVS/tlc-baselines/config"
)

// SimulationClock advances the simulated world by exactly one tick per Step.
// Observations, rewards and done flags are ordered like the trainer's slots.
type SimulationClock interface {
	Reset(ctx context.Context) ([][]float64, error)
	Step(ctx context.Context, actions []int) (StepResult, error)
	SetSaveReplay(ctx context.Context, enabled bool) error
	SetReplayFile(ctx context.Context, name string) error
}

// StepResult is what one tick reports for every agent.
type StepResult struct {
	Observations [][]float64
	Rewards      []float64
	Dones        []bool
	Info         map[string]float64
}

// Agent is one learning decision-maker bound to one intersection.
type Agent interface {
	// Sample returns an exploratory action from the action space.
	Sample() int
	// GetAction returns the policy action for obs.
	GetAction(obs []float64) int
	// Remember ingests one transition and runs a learning update.
	Remember(prev []float64, action int, reward float64, next []float64)
	// TDError is the learning-error magnitude of the last Remember.
	TDError() float64
	Epsilon() float64
	LearningStart() int
	// ResetTraces clears intra-episode state without touching the weights.
	ResetTraces()
	SaveModel(dir string) error
	LoadModel(dir string) error
	Hyperparameters() config.Hyperparameters
}

// Metric is a simulation-wide statistic reset together with the clock.
type Metric interface {
	Name() string
	Eval() float64
}

// Sink receives the run configuration once and one Record per episode.
type Sink interface {
	Configure(hp config.Hyperparameters) error
	Record(rec Record) error
}

// Slot binds an agent to the intersection it controls for the whole run.
type Slot struct {
	Intersection string
	Agent        Agent
}
