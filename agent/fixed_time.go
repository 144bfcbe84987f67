package agent

import (
	"github.com/LincolnVS/tlc-baselines/config"
	"github.com/LincolnVS/tlc-baselines/training"
)

// FixedTime is the non-learning baseline: it switches to the next phase at
// every decision, whatever it observes.
type FixedTime struct {
	phases int
	next   int
}

var _ training.Agent = (*FixedTime)(nil)

func NewFixedTime(phases int) *FixedTime {
	return &FixedTime{phases: max(phases, 1)}
}

func (a *FixedTime) Sample() int {
	p := a.next
	a.next = (a.next + 1) % a.phases
	return p
}

func (a *FixedTime) GetAction([]float64) int { return a.Sample() }

func (a *FixedTime) Remember([]float64, int, float64, []float64) {}
func (a *FixedTime) TDError() float64                            { return 0 }
func (a *FixedTime) Epsilon() float64                            { return 0 }
func (a *FixedTime) LearningStart() int                          { return 0 }

// ResetTraces restarts the cycle at phase 0.
func (a *FixedTime) ResetTraces() { a.next = 0 }

func (a *FixedTime) SaveModel(string) error { return nil }
func (a *FixedTime) LoadModel(string) error { return nil }

func (a *FixedTime) Hyperparameters() config.Hyperparameters { return config.Hyperparameters{} }
