// Package agent holds the per-intersection decision makers driven by the
// trainer.
package agent

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/LincolnVS/tlc-baselines/config"
	"github.com/LincolnVS/tlc-baselines/training"
)

// ErrCheckpointShape is returned when a checkpoint does not fit the agent.
var ErrCheckpointShape = errors.New("checkpoint shape mismatch")

// LinearSarsa is an expected SARSA(lambda) learner with one linear value
// function per action over a Fourier basis of the observation. It explores
// epsilon-greedily; epsilon decays after every update down to a floor.
type LinearSarsa struct {
	id      string
	actions int
	obsLen  int
	hp      config.Hyperparameters
	basis   *fourierBasis
	rng     *rand.Rand

	weights *mat.Dense // actions x features
	traces  *mat.Dense
	epsilon float64
	tdError float64
	greedy  bool
}

var _ training.Agent = (*LinearSarsa)(nil)

// NewLinearSarsa builds an agent with zero weights and epsilon 1.
func NewLinearSarsa(id string, obsLen, actions int, hp config.Hyperparameters, seed uint64) (*LinearSarsa, error) {
	if actions < 1 {
		return nil, fmt.Errorf("agent %s: needs at least one action, got %d", id, actions)
	}
	basis, err := newFourierBasis(obsLen, hp.FourierOrder, hp.MaxNonZeroFourier)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", id, err)
	}
	return &LinearSarsa{
		id:      id,
		actions: actions,
		obsLen:  obsLen,
		hp:      hp,
		basis:   basis,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		weights: mat.NewDense(actions, basis.Len(), nil),
		traces:  mat.NewDense(actions, basis.Len(), nil),
		epsilon: 1,
	}, nil
}

func (a *LinearSarsa) ID() string { return a.id }

func (a *LinearSarsa) Sample() int { return a.rng.IntN(a.actions) }

// GetAction is epsilon-greedy over the current value estimates, or purely
// greedy once SetGreedy(true) was called.
func (a *LinearSarsa) GetAction(obs []float64) int {
	if !a.greedy && a.rng.Float64() < a.epsilon {
		return a.Sample()
	}
	return floats.MaxIdx(a.values(a.basis.features(obs)))
}

func (a *LinearSarsa) values(phi *mat.VecDense) []float64 {
	q := mat.NewVecDense(a.actions, nil)
	q.MulVec(a.weights, phi)
	return q.RawVector().Data
}

// expected is the value of next under the epsilon-greedy policy.
func (a *LinearSarsa) expected(q []float64) float64 {
	greedy := floats.MaxIdx(q)
	v := 0.0
	for i, qi := range q {
		p := a.epsilon / float64(a.actions)
		if i == greedy {
			p += 1 - a.epsilon
		}
		v += p * qi
	}
	return v
}

func (a *LinearSarsa) Remember(prev []float64, action int, reward float64, next []float64) {
	phi := a.basis.features(prev)
	q := a.values(phi)
	target := reward + a.hp.Discount*a.expected(a.values(a.basis.features(next)))
	delta := target - q[action]
	a.tdError = math.Abs(delta)

	a.traces.Scale(a.hp.Discount*a.hp.Lambda, a.traces)
	trace := a.traces.RawRowView(action)
	floats.Add(trace, phi.RawVector().Data)

	step := make([]float64, a.basis.Len())
	for r := 0; r < a.actions; r++ {
		floats.MulTo(step, a.traces.RawRowView(r), a.basis.alphaScale)
		floats.AddScaled(a.weights.RawRowView(r), a.hp.LearningRate*delta, step)
	}
	a.epsilon = math.Max(a.hp.MinEpsilon, a.epsilon*a.hp.EpsilonDecay)
}

func (a *LinearSarsa) TDError() float64 { return a.tdError }
func (a *LinearSarsa) Epsilon() float64 { return a.epsilon }

// SetEpsilon overrides the exploration rate.
func (a *LinearSarsa) SetEpsilon(eps float64) { a.epsilon = eps }

// SetGreedy disables exploration in GetAction. Loading a checkpoint keeps it.
func (a *LinearSarsa) SetGreedy(greedy bool) { a.greedy = greedy }

func (a *LinearSarsa) LearningStart() int { return a.hp.LearningStart }

func (a *LinearSarsa) ResetTraces() { a.traces.Zero() }

func (a *LinearSarsa) Hyperparameters() config.Hyperparameters { return a.hp }

// checkpoint is the on-disk form of a LinearSarsa.
type checkpoint struct {
	ID           string    `msgpack:"id"`
	Actions      int       `msgpack:"actions"`
	Observation  int       `msgpack:"observation"`
	FourierOrder int       `msgpack:"fourier_order"`
	MaxNonZero   int       `msgpack:"max_nonzero"`
	Epsilon      float64   `msgpack:"epsilon"`
	Weights      []float64 `msgpack:"weights"`
}

// CheckpointPath is where an agent with the given id is saved under dir.
func CheckpointPath(dir, id string) string {
	return filepath.Join(dir, id+".msgpack")
}

// SaveModel overwrites <dir>/<id>.msgpack with the weights and epsilon.
func (a *LinearSarsa) SaveModel(dir string) error {
	data, err := msgpack.Marshal(&checkpoint{
		ID:           a.id,
		Actions:      a.actions,
		Observation:  a.obsLen,
		FourierOrder: a.hp.FourierOrder,
		MaxNonZero:   a.hp.MaxNonZeroFourier,
		Epsilon:      a.epsilon,
		Weights:      a.weights.RawMatrix().Data,
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", a.id, err)
	}
	return os.WriteFile(CheckpointPath(dir, a.id), data, 0o644)
}

// LoadModel restores weights and epsilon from <dir>/<id>.msgpack.
// Traces are cleared.
func (a *LinearSarsa) LoadModel(dir string) error {
	data, err := os.ReadFile(CheckpointPath(dir, a.id))
	if err != nil {
		return err
	}
	var cp checkpoint
	if err := msgpack.Unmarshal(data, &cp); err != nil {
		return fmt.Errorf("decode %s: %w", a.id, err)
	}
	rows, cols := a.weights.Dims()
	if cp.Actions != a.actions || cp.Observation != a.obsLen ||
		cp.FourierOrder != a.hp.FourierOrder || cp.MaxNonZero != a.hp.MaxNonZeroFourier ||
		len(cp.Weights) != rows*cols {
		return fmt.Errorf("agent %s: %w", a.id, ErrCheckpointShape)
	}
	a.weights = mat.NewDense(rows, cols, cp.Weights)
	a.epsilon = cp.Epsilon
	a.ResetTraces()
	return nil
}
