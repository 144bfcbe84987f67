package training

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/LincolnVS/tlc-baselines/config"
)

// Options are the trainer's share of config.Config.
type Options struct {
	Steps          int
	ActionInterval int
	Episodes       int
	SaveRate       int
	SaveDir        string
	Termination    config.TerminationCheck
}

// OptionsFrom extracts the trainer options from a run configuration.
func OptionsFrom(c config.Config) Options {
	return Options{
		Steps:          c.Steps,
		ActionInterval: c.ActionInterval,
		Episodes:       c.Episodes,
		SaveRate:       c.SaveRate,
		SaveDir:        c.SaveDir,
		Termination:    c.Termination,
	}
}

func (o Options) validate() error {
	switch {
	case o.Steps <= 0:
		return fmt.Errorf("steps must be positive, got %d", o.Steps)
	case o.ActionInterval <= 0:
		return fmt.Errorf("action interval must be positive, got %d", o.ActionInterval)
	case o.Episodes < 0:
		return fmt.Errorf("episodes must not be negative, got %d", o.Episodes)
	case o.SaveRate <= 0:
		return fmt.Errorf("save rate must be positive, got %d", o.SaveRate)
	case o.SaveDir == "":
		return errors.New("save dir must not be empty")
	}
	switch o.Termination {
	case config.CheckAfterEpoch, config.CheckAfterTick:
		return nil
	default:
		return fmt.Errorf("unknown termination check %q", o.Termination)
	}
}

// Trainer runs the decision-interval training loop. It is single-threaded:
// no agent call overlaps a clock tick.
type Trainer struct {
	opts    Options
	clock   SimulationClock
	slots   []Slot
	metrics []Metric
	sink    Sink
	logger  *log.Logger

	// totalDecisions counts decisions across all slots and episodes.
	totalDecisions int
}

// NewTrainer validates the options and builds a Trainer. An empty
// Options.Termination defaults to config.CheckAfterEpoch; a nil logger
// means log.Default().
func NewTrainer(opts Options, clock SimulationClock, slots []Slot, metrics []Metric, sink Sink, logger *log.Logger) (*Trainer, error) {
	if opts.Termination == "" {
		opts.Termination = config.CheckAfterEpoch
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		return nil, errors.New("simulation clock is required")
	}
	if len(slots) == 0 {
		return nil, errors.New("at least one agent slot is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Trainer{
		opts:    opts,
		clock:   clock,
		slots:   slots,
		metrics: metrics,
		sink:    sink,
		logger:  logger,
	}, nil
}

// TotalDecisions is the lifetime decision count across all slots.
func (t *Trainer) TotalDecisions() int { return t.totalDecisions }

// Train runs every episode. Any error is fatal for the run.
func (t *Trainer) Train(ctx context.Context) error {
	if t.sink != nil {
		if err := t.sink.Configure(t.slots[len(t.slots)-1].Agent.Hyperparameters()); err != nil {
			return fmt.Errorf("configure sink: %w", err)
		}
	}
	t.logger.Printf("🚦 Training %d agents for %d episodes (%d steps, decide every %d ticks)",
		len(t.slots), t.opts.Episodes, t.opts.Steps, t.opts.ActionInterval)

	for e := 0; e < t.opts.Episodes; e++ {
		ep, err := t.runEpisode(ctx, e)
		if err != nil {
			return fmt.Errorf("episode %d: %w", e, err)
		}
		if t.dueForSave(e) {
			if err := t.checkpoint(); err != nil {
				return fmt.Errorf("episode %d: %w", e, err)
			}
		}
		rec, err := t.summarize(ep)
		if err != nil {
			return fmt.Errorf("episode %d: %w", e, err)
		}
		if t.sink != nil {
			if err := t.sink.Record(rec); err != nil {
				return fmt.Errorf("episode %d: record: %w", e, err)
			}
		}
	}
	t.logger.Printf("✅ Training finished after %d decisions", t.totalDecisions)
	return nil
}

// runEpisode resets the traces and the world, then alternates decisions and
// epochs until the step budget is spent or every agent is done. The budget
// bounds the tick count checked at epoch boundaries, so the last epoch may
// run past Steps when Steps is not a multiple of ActionInterval.
func (t *Trainer) runEpisode(ctx context.Context, index int) (*episode, error) {
	for _, s := range t.slots {
		s.Agent.ResetTraces()
	}
	obs, err := t.clock.Reset(ctx)
	if err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	if err := t.checkWidth(len(obs), "observations"); err != nil {
		return nil, err
	}
	if err := t.configureReplay(ctx, index); err != nil {
		return nil, err
	}

	ep := newEpisode(index, len(t.slots))
	lastObs := obs
	for ep.ticks < t.opts.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		actions := t.decide(lastObs, true)
		e, err := t.runEpoch(ctx, ep, actions)
		if err != nil {
			return nil, err
		}
		t.route(ep, lastObs, e)
		lastObs = e.next
		if e.allDone {
			t.logger.Printf("🏁 [Episode %d] all intersections done after %d ticks", index, ep.ticks)
			break
		}
	}
	return ep, nil
}

func (t *Trainer) dueForSave(e int) bool {
	return e%t.opts.SaveRate == t.opts.SaveRate-1
}

// configureReplay turns replay capture on for cadence episodes only.
func (t *Trainer) configureReplay(ctx context.Context, e int) error {
	if !t.dueForSave(e) {
		if err := t.clock.SetSaveReplay(ctx, false); err != nil {
			return fmt.Errorf("disable replay: %w", err)
		}
		return nil
	}
	if err := t.clock.SetSaveReplay(ctx, true); err != nil {
		return fmt.Errorf("enable replay: %w", err)
	}
	if err := t.clock.SetReplayFile(ctx, ReplayFile(e)); err != nil {
		return fmt.Errorf("set replay file: %w", err)
	}
	return nil
}

// ReplayFile names the replay trace of episode e.
func ReplayFile(e int) string {
	return fmt.Sprintf("replay_%d.txt", e)
}

// checkpoint writes every agent's model into the save dir exactly once.
func (t *Trainer) checkpoint() error {
	if err := os.MkdirAll(t.opts.SaveDir, 0o755); err != nil {
		return fmt.Errorf("create save dir %q: %w", t.opts.SaveDir, err)
	}
	for _, s := range t.slots {
		if err := s.Agent.SaveModel(t.opts.SaveDir); err != nil {
			return fmt.Errorf("save agent %s: %w", s.Intersection, err)
		}
	}
	t.logger.Printf("💾 Saved %d agents to %s", len(t.slots), t.opts.SaveDir)
	return nil
}

// summarize divides the episode totals by that episode's decision counts.
func (t *Trainer) summarize(ep *episode) (Record, error) {
	rec := Record{
		Episode:  ep.index,
		Episodes: t.opts.Episodes,
		Steps:    ep.ticks,
		Metrics:  t.evalMetrics(),
		Agents:   make([]AgentStats, len(t.slots)),
	}
	for j, s := range t.slots {
		n := ep.decisions[j]
		if n == 0 {
			return Record{}, fmt.Errorf("%w: agent %s", ErrNoDecisions, s.Intersection)
		}
		rec.Agents[j] = AgentStats{
			Intersection: s.Intersection,
			Decisions:    n,
			MeanReward:   ep.rewards[j] / float64(n),
			MeanTDError:  ep.tdErrors[j] / float64(n),
			Epsilon:      s.Agent.Epsilon(),
		}
		rec.Epsilon = rec.Agents[j].Epsilon
	}
	return rec, nil
}

func (t *Trainer) evalMetrics() []MetricValue {
	values := make([]MetricValue, len(t.metrics))
	for i, m := range t.metrics {
		values[i] = MetricValue{Name: m.Name(), Value: m.Eval()}
	}
	return values
}
