package training

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"github.com/LincolnVS/tlc-baselines/config"
)

// episode holds the accumulators of one training iteration. It is discarded
// once summarised into a Record.
type episode struct {
	index     int
	ticks     int
	rewards   []float64
	tdErrors  []float64
	decisions []int
}

func newEpisode(index, slots int) *episode {
	return &episode{
		index:     index,
		rewards:   make([]float64, slots),
		tdErrors:  make([]float64, slots),
		decisions: make([]int, slots),
	}
}

// epoch is one block of ticks sharing a single action per agent.
type epoch struct {
	actions []int
	// rewards holds one reward vector per executed tick.
	rewards [][]float64
	next    [][]float64
	// allDone reports whether every agent was done on the last executed tick.
	allDone bool
}

// meanRewards averages the per-tick rewards of the epoch for each agent.
func (ep *epoch) meanRewards() []float64 {
	means := make([]float64, len(ep.actions))
	column := make([]float64, len(ep.rewards))
	for j := range means {
		for k, tick := range ep.rewards {
			column[k] = tick[j]
		}
		means[j] = stat.Mean(column, nil)
	}
	return means
}

// decide picks one action per slot. With explore set, agents sample until
// the lifetime decision count exceeds their learning start.
func (t *Trainer) decide(obs [][]float64, explore bool) []int {
	actions := make([]int, len(t.slots))
	for j, s := range t.slots {
		if !explore || t.totalDecisions > s.Agent.LearningStart() {
			actions[j] = s.Agent.GetAction(obs[j])
		} else {
			actions[j] = s.Agent.Sample()
		}
	}
	return actions
}

// runEpoch advances the clock action-interval times with a fixed action
// vector. Under CheckAfterTick the epoch is cut short by global termination.
func (t *Trainer) runEpoch(ctx context.Context, ep *episode, actions []int) (*epoch, error) {
	e := &epoch{
		actions: actions,
		rewards: make([][]float64, 0, t.opts.ActionInterval),
	}
	for k := 0; k < t.opts.ActionInterval; k++ {
		res, err := t.step(ctx, actions)
		if err != nil {
			return nil, fmt.Errorf("tick %d: %w", ep.ticks, err)
		}
		ep.ticks++
		e.rewards = append(e.rewards, res.Rewards)
		e.next = res.Observations
		e.allDone = allDone(res.Dones)
		if e.allDone && t.opts.Termination == config.CheckAfterTick {
			break
		}
	}
	return e, nil
}

// route hands every slot its own experience and updates the counters.
func (t *Trainer) route(ep *episode, prev [][]float64, e *epoch) {
	rewards := e.meanRewards()
	for j, s := range t.slots {
		s.Agent.Remember(prev[j], e.actions[j], rewards[j], e.next[j])
		ep.rewards[j] += rewards[j]
		ep.tdErrors[j] += s.Agent.TDError()
		ep.decisions[j]++
		t.totalDecisions++
	}
}

func (t *Trainer) step(ctx context.Context, actions []int) (StepResult, error) {
	res, err := t.clock.Step(ctx, actions)
	if err != nil {
		return StepResult{}, err
	}
	if err := t.checkWidth(len(res.Observations), "observations"); err != nil {
		return StepResult{}, err
	}
	if err := t.checkWidth(len(res.Rewards), "rewards"); err != nil {
		return StepResult{}, err
	}
	if err := t.checkWidth(len(res.Dones), "dones"); err != nil {
		return StepResult{}, err
	}
	return res, nil
}

func (t *Trainer) checkWidth(n int, what string) error {
	if n != len(t.slots) {
		return fmt.Errorf("%w: %d %s for %d slots", ErrSlotMismatch, n, what, len(t.slots))
	}
	return nil
}

// allDone is true only when every agent reports done; partial termination
// keeps the episode running.
func allDone(dones []bool) bool {
	return lo.EveryBy(dones, func(d bool) bool { return d })
}
