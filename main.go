package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/LincolnVS/tlc-baselines/agent"
	"github.com/LincolnVS/tlc-baselines/api"
	"github.com/LincolnVS/tlc-baselines/collector"
	"github.com/LincolnVS/tlc-baselines/config"
	"github.com/LincolnVS/tlc-baselines/environment"
	"github.com/LincolnVS/tlc-baselines/metric"
	"github.com/LincolnVS/tlc-baselines/simulation"
	"github.com/LincolnVS/tlc-baselines/training"
)

func main() {
	cfg, err := config.Parse(os.Args[0], os.Args[1:])
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// intersection is what agents are built from, whether the environment is
// local or remote.
type intersection struct {
	id     string
	phases int
	obsLen int
}

func run(ctx context.Context, cfg config.Config) error {
	stamp := time.Now().Format("20060102-150405")
	logger, closeLog, err := newLogger(cfg.LogDir, stamp)
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Println("=============================================")
	logger.Println("======  Traffic Signal Control Baselines  ======")
	logger.Println("=============================================")

	// --- 1. Environment: local world or remote server ---
	var (
		clock   training.SimulationClock
		metrics []training.Metric
		inters  []intersection
	)
	if cfg.Remote != "" {
		client, err := api.Dial(cfg.Remote)
		if err != nil {
			return err
		}
		defer client.Close()
		desc, err := client.Describe(ctx)
		if err != nil {
			return err
		}
		for _, info := range desc.Intersections {
			inters = append(inters, intersection{id: info.ID, phases: info.Phases, obsLen: info.ObservationLen})
		}
		clock, metrics = client, client.TrainingMetrics(desc.MetricNames)
		logger.Printf("🔌 Connected to environment at %s", cfg.Remote)
	} else {
		env, err := localEnv(cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := env.Close(); err != nil {
				logger.Printf("❌ flush replay: %v", err)
			}
		}()
		if cfg.Serve != "" {
			lis, err := net.Listen("tcp", cfg.Serve)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.Serve, err)
			}
			return environment.NewServer(env, logger).Serve(ctx, lis)
		}
		for _, s := range env.Slots() {
			inters = append(inters, intersection{id: s.Intersection.ID, phases: len(s.Intersection.Phases), obsLen: s.Observation.Len()})
		}
		clock, metrics = env, env.TrainingMetrics()
	}

	// --- 2. One agent per intersection ---
	hp := config.DefaultHyperparameters()
	slots := make([]training.Slot, 0, len(inters))
	learners := make([]*agent.LinearSarsa, 0, len(inters))
	for i, inter := range inters {
		a, err := agent.NewLinearSarsa(inter.id, inter.obsLen, inter.phases, hp, uint64(i))
		if err != nil {
			return err
		}
		if cfg.LoadModel && !cfg.Evaluate {
			if err := a.LoadModel(cfg.SaveDir); err != nil {
				return fmt.Errorf("warm start %s: %w", inter.id, err)
			}
		}
		learners = append(learners, a)
		slots = append(slots, training.Slot{Intersection: inter.id, Agent: a})
	}
	logger.Printf("🤖 Created %d agents", len(slots))

	// --- 3. Sinks ---
	sink, err := newSinks(cfg.LogDir, stamp, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Printf("❌ close sinks: %v", err)
		}
	}()

	// --- 4. Train or evaluate ---
	tr, err := training.NewTrainer(training.OptionsFrom(cfg), clock, slots, metrics, sink, logger)
	if err != nil {
		return err
	}
	if !cfg.Evaluate {
		return tr.Train(ctx)
	}
	for _, a := range learners {
		a.SetGreedy(true)
	}
	values, err := tr.Evaluate(ctx)
	if err != nil {
		return err
	}
	rec := training.Record{Metrics: values}
	if tt, ok := rec.Metric("travel_time"); ok {
		logger.Printf("Final Travel Time is %.4f", tt)
	}
	return nil
}

func localEnv(cfg config.Config, logger *log.Logger) (*environment.Env, error) {
	w, err := simulation.Load(cfg.ConfigFile, cfg.Threads, logger)
	if err != nil {
		return nil, err
	}
	slots, err := environment.DefaultConfig().Slots(w)
	if err != nil {
		return nil, err
	}
	return environment.New(w, slots, metric.Defaults(w))
}

// newLogger logs to stderr and to <dir>/<stamp>.log.
func newLogger(dir, stamp string) (*log.Logger, func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, stamp+".log"))
	if err != nil {
		return nil, nil, err
	}
	logger := log.New(io.MultiWriter(os.Stderr, f), "", log.LstdFlags)
	return logger, func() { f.Close() }, nil
}

func newSinks(dir, stamp string, logger *log.Logger) (collector.Tee, error) {
	excel, err := collector.NewExcelSink(filepath.Join(dir, stamp+".xlsx"), logger)
	if err != nil {
		return nil, err
	}
	jsonl, err := collector.NewJSONLSink(filepath.Join(dir, stamp+".jsonl"))
	if err != nil {
		return nil, err
	}
	return collector.Tee{collector.NewLogSink(logger), excel, jsonl}, nil
}
