package training

import (
	"context"
	"fmt"
)

// Evaluate loads every agent from the save dir and runs one episode on the
// policy alone: no sampling, no learning-start gating and no Remember. The
// simulation advances one tick at a time and stops on global termination
// or when the step budget is spent.
func (t *Trainer) Evaluate(ctx context.Context) ([]MetricValue, error) {
	for _, s := range t.slots {
		if err := s.Agent.LoadModel(t.opts.SaveDir); err != nil {
			return nil, fmt.Errorf("load agent %s: %w", s.Intersection, err)
		}
	}
	obs, err := t.clock.Reset(ctx)
	if err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	if err := t.checkWidth(len(obs), "observations"); err != nil {
		return nil, err
	}

	var actions []int
	for i := 0; i < t.opts.Steps; i++ {
		if i%t.opts.ActionInterval == 0 {
			actions = t.decide(obs, false)
		}
		res, err := t.step(ctx, actions)
		if err != nil {
			return nil, fmt.Errorf("tick %d: %w", i, err)
		}
		obs = res.Observations
		if allDone(res.Dones) {
			t.logger.Printf("🏁 Evaluation: all intersections done after %d ticks", i+1)
			break
		}
	}

	values := t.evalMetrics()
	for _, v := range values {
		t.logger.Printf("📊 Final %s is %.4f", v.Name, v.Value)
	}
	return values, nil
}
