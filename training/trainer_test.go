package training

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LincolnVS/tlc-baselines/config"
)

var quiet = log.New(io.Discard, "", 0)

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Steps:          100,
		ActionInterval: 20,
		Episodes:       1,
		SaveRate:       20,
		SaveDir:        filepath.Join(t.TempDir(), "model"),
	}
}

func TestTrainOneIntersectionScenario(t *testing.T) {
	clock := newStubClock(1, nil)
	clock.reward = func(tick, _ int) float64 {
		if tick%2 == 1 {
			return -1
		}
		return 0
	}
	agent := &stubAgent{id: "intersection_1_1"}
	sink := &captureSink{}

	tr, err := NewTrainer(testOptions(t), clock, slotsFor(agent), nil, sink, quiet)
	require.NoError(t, err)
	require.NoError(t, tr.Train(context.Background()))

	assert.Equal(t, 100, clock.totalTicks)
	require.Len(t, agent.remembered, 5)
	for _, exp := range agent.remembered {
		assert.InDelta(t, -0.5, exp.reward, 1e-9)
	}
	require.Len(t, sink.records, 1)
	assert.Equal(t, 100, sink.records[0].Steps)
	assert.Equal(t, 5, sink.records[0].Agents[0].Decisions)
	assert.InDelta(t, -0.5, sink.records[0].Agents[0].MeanReward, 1e-9)
	assert.Equal(t, 5, tr.TotalDecisions())
}

func TestTrainEpochCountMatchesStepBudget(t *testing.T) {
	for _, tc := range []struct{ steps, interval int }{
		{100, 20}, {60, 1}, {90, 30}, {12, 4},
	} {
		clock := newStubClock(2, nil)
		a, b := &stubAgent{id: "a"}, &stubAgent{id: "b"}
		opts := testOptions(t)
		opts.Steps, opts.ActionInterval, opts.Episodes = tc.steps, tc.interval, 2

		tr, err := NewTrainer(opts, clock, slotsFor(a, b), nil, nil, quiet)
		require.NoError(t, err)
		require.NoError(t, tr.Train(context.Background()))

		assert.Equal(t, 2*tc.steps, clock.totalTicks, "steps=%d interval=%d", tc.steps, tc.interval)
		assert.Len(t, a.remembered, 2*tc.steps/tc.interval)
		assert.Len(t, b.remembered, 2*tc.steps/tc.interval)
	}
}

func TestTrainRewardIsEpochMean(t *testing.T) {
	clock := newStubClock(1, nil)
	clock.reward = func(tick, _ int) float64 { return float64(tick) }
	agent := &stubAgent{id: "a"}
	opts := testOptions(t)
	opts.Steps, opts.ActionInterval = 8, 4

	tr, err := NewTrainer(opts, clock, slotsFor(agent), nil, nil, quiet)
	require.NoError(t, err)
	require.NoError(t, tr.Train(context.Background()))

	require.Len(t, agent.remembered, 2)
	// Ticks 1..4 then 5..8; the last tick alone would give 4 and 8.
	assert.InDelta(t, 2.5, agent.remembered[0].reward, 1e-9)
	assert.InDelta(t, 6.5, agent.remembered[1].reward, 1e-9)
}

func TestTrainExperienceUsesEpochBoundaryObservations(t *testing.T) {
	clock := newStubClock(1, nil)
	agent := &stubAgent{id: "a"}
	opts := testOptions(t)
	opts.Steps, opts.ActionInterval = 6, 3

	tr, err := NewTrainer(opts, clock, slotsFor(agent), nil, nil, quiet)
	require.NoError(t, err)
	require.NoError(t, tr.Train(context.Background()))

	require.Len(t, agent.remembered, 2)
	assert.Equal(t, []float64{0, 0}, agent.remembered[0].prev)
	assert.Equal(t, []float64{3, 0}, agent.remembered[0].next)
	assert.Equal(t, []float64{3, 0}, agent.remembered[1].prev)
	assert.Equal(t, []float64{6, 0}, agent.remembered[1].next)
}

func TestTrainActionFixedWithinEpoch(t *testing.T) {
	clock := newStubClock(1, nil)
	agent := &stubAgent{id: "a", learningStart: 1}
	opts := testOptions(t)
	opts.Steps, opts.ActionInterval = 12, 4

	tr, err := NewTrainer(opts, clock, slotsFor(agent), nil, nil, quiet)
	require.NoError(t, err)
	require.NoError(t, tr.Train(context.Background()))

	require.Len(t, clock.actions, 12)
	for k := 0; k < 8; k++ {
		assert.Equal(t, []int{sampledAction}, clock.actions[k], "tick %d", k)
	}
	for k := 8; k < 12; k++ {
		assert.Equal(t, []int{policyAction}, clock.actions[k], "tick %d", k)
	}
}

func TestTrainResetTracesOncePerEpisodeBeforeFirstTick(t *testing.T) {
	var events []string
	clock := newStubClock(2, &events)
	a := &stubAgent{id: "a", events: &events}
	b := &stubAgent{id: "b", events: &events}
	opts := testOptions(t)
	opts.Steps, opts.ActionInterval, opts.Episodes = 4, 2, 3

	tr, err := NewTrainer(opts, clock, slotsFor(a, b), nil, nil, quiet)
	require.NoError(t, err)
	require.NoError(t, tr.Train(context.Background()))

	assert.Equal(t, 3, a.traceResets)
	assert.Equal(t, 3, b.traceResets)

	episode := []string{"reset_traces:a", "reset_traces:b", "clock_reset", "step", "step", "step", "step"}
	var want []string
	for i := 0; i < 3; i++ {
		want = append(want, episode...)
	}
	assert.Equal(t, want, events)
}

func TestTrainReplayAndCheckpointCadence(t *testing.T) {
	clock := newStubClock(1, nil)
	agent := &stubAgent{id: "a"}
	opts := testOptions(t)
	opts.Steps, opts.ActionInterval, opts.Episodes, opts.SaveRate = 4, 2, 3, 2

	tr, err := NewTrainer(opts, clock, slotsFor(agent), nil, nil, quiet)
	require.NoError(t, err)
	require.NoError(t, tr.Train(context.Background()))

	assert.Equal(t, []bool{false, true, false}, clock.replay)
	assert.Equal(t, []string{"replay_1.txt"}, clock.replayFiles)
	assert.Equal(t, []string{opts.SaveDir}, agent.saves)

	info, err := os.Stat(opts.SaveDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestTrainCheckpointEveryCadenceEpisode(t *testing.T) {
	clock := newStubClock(1, nil)
	agent := &stubAgent{id: "a"}
	opts := testOptions(t)
	opts.Steps, opts.ActionInterval, opts.Episodes, opts.SaveRate = 2, 2, 7, 3

	tr, err := NewTrainer(opts, clock, slotsFor(agent), nil, nil, quiet)
	require.NoError(t, err)
	require.NoError(t, tr.Train(context.Background()))

	assert.Len(t, agent.saves, 2) // episodes 2 and 5
	assert.Equal(t, []string{"replay_2.txt", "replay_5.txt"}, clock.replayFiles)
	assert.Equal(t, []bool{false, false, true, false, false, true, false}, clock.replay)
}

func TestTrainCheckpointFailureIsFatal(t *testing.T) {
	clock := newStubClock(1, nil)
	agent := &stubAgent{id: "a", saveErr: errors.New("disk full")}
	sink := &captureSink{}
	opts := testOptions(t)
	opts.Steps, opts.ActionInterval, opts.Episodes, opts.SaveRate = 2, 2, 5, 1

	tr, err := NewTrainer(opts, clock, slotsFor(agent), nil, sink, quiet)
	require.NoError(t, err)
	err = tr.Train(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, clock.resets)
	assert.Empty(t, sink.records)
}

func TestTrainStatsArePerEpisode(t *testing.T) {
	clock := newStubClock(2, nil)
	clock.reward = func(_, agent int) float64 { return float64(-1 - agent) }
	a := &stubAgent{id: "a", td: 0.5, eps: 0.3}
	b := &stubAgent{id: "b", td: 2, eps: 0.1}
	sink := &captureSink{}
	opts := testOptions(t)
	opts.Steps, opts.ActionInterval, opts.Episodes = 10, 5, 3
	metrics := []Metric{stubMetric{"travel_time", 42}, stubMetric{"throughput", 7}}

	tr, err := NewTrainer(opts, clock, slotsFor(a, b), metrics, sink, quiet)
	require.NoError(t, err)
	require.NoError(t, tr.Train(context.Background()))

	require.NotNil(t, sink.hp)
	require.Len(t, sink.records, 3)
	for e, rec := range sink.records {
		assert.Equal(t, e, rec.Episode)
		assert.Equal(t, 3, rec.Episodes)
		assert.Equal(t, 10, rec.Steps)
		assert.Equal(t, []MetricValue{{"travel_time", 42}, {"throughput", 7}}, rec.Metrics)
		assert.InDelta(t, 0.1, rec.Epsilon, 1e-12)

		require.Len(t, rec.Agents, 2)
		assert.Equal(t, AgentStats{Intersection: "a", Decisions: 2, MeanReward: -1, MeanTDError: 0.5, Epsilon: 0.3}, rec.Agents[0])
		assert.Equal(t, AgentStats{Intersection: "b", Decisions: 2, MeanReward: -2, MeanTDError: 2, Epsilon: 0.1}, rec.Agents[1])
	}
	v, ok := sink.records[0].Metric("throughput")
	assert.True(t, ok)
	assert.Equal(t, 7.0, v)
	assert.Equal(t, 12, tr.TotalDecisions())
}

func TestTrainLearningStartGatesPolicy(t *testing.T) {
	clock := newStubClock(1, nil)
	agent := &stubAgent{id: "a", learningStart: 3}
	opts := testOptions(t)

	tr, err := NewTrainer(opts, clock, slotsFor(agent), nil, nil, quiet)
	require.NoError(t, err)
	require.NoError(t, tr.Train(context.Background()))

	// Decisions are taken with lifetime counts 0,1,2,3 (sample) and 4 (policy).
	assert.Equal(t, 4, agent.samples)
	assert.Equal(t, 1, agent.policies)
	actions := make([]int, len(agent.remembered))
	for i, exp := range agent.remembered {
		actions[i] = exp.action
	}
	assert.Equal(t, []int{0, 0, 0, 0, 1}, actions)
}

func TestTrainLearningStartCountsAcrossEpisodes(t *testing.T) {
	clock := newStubClock(1, nil)
	agent := &stubAgent{id: "a", learningStart: 2}
	opts := testOptions(t)
	opts.Steps, opts.ActionInterval, opts.Episodes = 2, 1, 3

	tr, err := NewTrainer(opts, clock, slotsFor(agent), nil, nil, quiet)
	require.NoError(t, err)
	require.NoError(t, tr.Train(context.Background()))

	assert.Equal(t, 3, agent.samples)
	assert.Equal(t, 3, agent.policies)
}

func TestTrainAgentsAreIndependent(t *testing.T) {
	clock := newStubClock(2, nil)
	clock.reward = func(tick, agent int) float64 {
		if agent == 0 {
			return -1
		}
		return float64(tick)
	}
	a := &stubAgent{id: "a", learningStart: 1000}
	b := &stubAgent{id: "b"}
	opts := testOptions(t)
	opts.Steps, opts.ActionInterval = 4, 2

	tr, err := NewTrainer(opts, clock, slotsFor(a, b), nil, nil, quiet)
	require.NoError(t, err)
	require.NoError(t, tr.Train(context.Background()))

	require.Len(t, a.remembered, 2)
	require.Len(t, b.remembered, 2)
	assert.Equal(t, -1.0, a.remembered[0].reward)
	assert.Equal(t, -1.0, a.remembered[1].reward)
	assert.Equal(t, 1.5, b.remembered[0].reward)
	assert.Equal(t, 3.5, b.remembered[1].reward)
	assert.Equal(t, []float64{0, 0}, a.remembered[0].prev)
	assert.Equal(t, []float64{0, 1}, b.remembered[0].prev)
	// a keeps sampling, b switches to its policy after the first epoch.
	assert.Equal(t, []int{sampledAction, policyAction}, clock.actions[2])
}

func TestTrainPartialTerminationDoesNotEndEpisode(t *testing.T) {
	for _, check := range []config.TerminationCheck{config.CheckAfterEpoch, config.CheckAfterTick} {
		clock := newStubClock(2, nil)
		clock.done = func(_, agent int) bool { return agent == 0 }
		a, b := &stubAgent{id: "a"}, &stubAgent{id: "b"}
		opts := testOptions(t)
		opts.Termination = check

		tr, err := NewTrainer(opts, clock, slotsFor(a, b), nil, nil, quiet)
		require.NoError(t, err)
		require.NoError(t, tr.Train(context.Background()))

		assert.Equal(t, 100, clock.totalTicks, string(check))
		assert.Len(t, a.remembered, 5, string(check))
	}
}

func TestTrainTerminationAfterEpoch(t *testing.T) {
	clock := newStubClock(2, nil)
	clock.done = func(tick, _ int) bool { return tick >= 30 }
	clock.reward = func(int, int) float64 { return -1 }
	a, b := &stubAgent{id: "a"}, &stubAgent{id: "b"}
	sink := &captureSink{}
	opts := testOptions(t)
	opts.Episodes = 2

	tr, err := NewTrainer(opts, clock, slotsFor(a, b), nil, sink, quiet)
	require.NoError(t, err)
	require.NoError(t, tr.Train(context.Background()))

	// Done first shows at tick 30; the epoch still runs to its boundary.
	assert.Equal(t, 80, clock.totalTicks)
	assert.Len(t, a.remembered, 4)
	require.Len(t, sink.records, 2)
	assert.Equal(t, 40, sink.records[0].Steps)
	assert.Equal(t, 2, sink.records[0].Agents[0].Decisions)
}

func TestTrainTerminationAfterEpochIgnoresMidEpochDone(t *testing.T) {
	clock := newStubClock(1, nil)
	clock.done = func(tick, _ int) bool { return tick == 30 }
	agent := &stubAgent{id: "a"}
	opts := testOptions(t)

	tr, err := NewTrainer(opts, clock, slotsFor(agent), nil, nil, quiet)
	require.NoError(t, err)
	require.NoError(t, tr.Train(context.Background()))

	assert.Equal(t, 100, clock.totalTicks)
}

func TestTrainTerminationAfterTick(t *testing.T) {
	clock := newStubClock(1, nil)
	clock.done = func(tick, _ int) bool { return tick == 30 }
	clock.reward = func(tick, _ int) float64 { return float64(tick) }
	agent := &stubAgent{id: "a"}
	sink := &captureSink{}
	opts := testOptions(t)
	opts.Termination = config.CheckAfterTick

	tr, err := NewTrainer(opts, clock, slotsFor(agent), nil, sink, quiet)
	require.NoError(t, err)
	require.NoError(t, tr.Train(context.Background()))

	assert.Equal(t, 30, clock.totalTicks)
	require.Len(t, agent.remembered, 2)
	// The cut-short epoch averages ticks 21..30 only.
	assert.InDelta(t, 25.5, agent.remembered[1].reward, 1e-9)
	assert.Equal(t, []float64{30, 0}, agent.remembered[1].next)
	assert.Equal(t, 30, sink.records[0].Steps)
}

func TestTrainBoundaryEpochOverrunsStepBudget(t *testing.T) {
	clock := newStubClock(1, nil)
	agent := &stubAgent{id: "a"}
	sink := &captureSink{}
	opts := testOptions(t)
	opts.Steps, opts.ActionInterval = 50, 20

	tr, err := NewTrainer(opts, clock, slotsFor(agent), nil, sink, quiet)
	require.NoError(t, err)
	require.NoError(t, tr.Train(context.Background()))

	assert.Equal(t, 60, clock.totalTicks)
	assert.Len(t, agent.remembered, 3)
	assert.Equal(t, 60, sink.records[0].Steps)
}

func TestTrainRejectsMismatchedClock(t *testing.T) {
	clock := newStubClock(2, nil)
	clock.rewardWidth = 1
	a, b := &stubAgent{id: "a"}, &stubAgent{id: "b"}

	tr, err := NewTrainer(testOptions(t), clock, slotsFor(a, b), nil, nil, quiet)
	require.NoError(t, err)
	err = tr.Train(context.Background())

	require.ErrorIs(t, err, ErrSlotMismatch)
	assert.Empty(t, a.remembered)
}

func TestSummarizeWithoutDecisionsFails(t *testing.T) {
	agent := &stubAgent{id: "a"}
	tr, err := NewTrainer(testOptions(t), newStubClock(1, nil), slotsFor(agent), nil, nil, quiet)
	require.NoError(t, err)

	_, err = tr.summarize(newEpisode(0, 1))
	require.ErrorIs(t, err, ErrNoDecisions)
}

func TestEvaluateUsesPolicyOnly(t *testing.T) {
	clock := newStubClock(2, nil)
	a := &stubAgent{id: "a", learningStart: 1 << 30}
	b := &stubAgent{id: "b"}
	opts := testOptions(t)
	opts.Steps, opts.ActionInterval = 50, 20
	metrics := []Metric{stubMetric{"travel_time", 12.5}}

	tr, err := NewTrainer(opts, clock, slotsFor(a, b), metrics, nil, quiet)
	require.NoError(t, err)
	values, err := tr.Evaluate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []MetricValue{{"travel_time", 12.5}}, values)
	assert.Equal(t, 50, clock.totalTicks)
	assert.Equal(t, []string{opts.SaveDir}, a.loads)
	assert.Equal(t, []string{opts.SaveDir}, b.loads)
	assert.Zero(t, a.samples)
	assert.Equal(t, 3, a.policies) // ticks 0, 20, 40
	assert.Empty(t, a.remembered)
	assert.Empty(t, b.remembered)
	assert.Zero(t, tr.TotalDecisions())
}

func TestEvaluateStopsOnGlobalTermination(t *testing.T) {
	clock := newStubClock(1, nil)
	clock.done = func(tick, _ int) bool { return tick == 7 }
	agent := &stubAgent{id: "a"}

	tr, err := NewTrainer(testOptions(t), clock, slotsFor(agent), nil, nil, quiet)
	require.NoError(t, err)
	_, err = tr.Evaluate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, clock.totalTicks)
}

func TestNewTrainerValidates(t *testing.T) {
	agent := &stubAgent{id: "a"}
	clock := newStubClock(1, nil)
	base := testOptions(t)

	for name, mutate := range map[string]func(*Options){
		"steps":       func(o *Options) { o.Steps = 0 },
		"interval":    func(o *Options) { o.ActionInterval = 0 },
		"episodes":    func(o *Options) { o.Episodes = -1 },
		"save rate":   func(o *Options) { o.SaveRate = 0 },
		"save dir":    func(o *Options) { o.SaveDir = "" },
		"termination": func(o *Options) { o.Termination = "sometimes" },
	} {
		opts := base
		mutate(&opts)
		_, err := NewTrainer(opts, clock, slotsFor(agent), nil, nil, quiet)
		assert.Error(t, err, name)
	}

	_, err := NewTrainer(base, clock, nil, nil, nil, quiet)
	assert.Error(t, err)
	_, err = NewTrainer(base, nil, slotsFor(agent), nil, nil, quiet)
	assert.Error(t, err)
}
