package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

// ===================================================================
//                           Run defaults
// ===================================================================

const (
	// DefaultSteps is the tick budget of one episode.
	DefaultSteps = 3600

	// DefaultActionInterval is how many ticks share one agent decision.
	DefaultActionInterval = 20

	DefaultEpisodes = 2000

	// DefaultSaveRate saves checkpoints and replays once every this many episodes.
	DefaultSaveRate = 20

	DefaultThreads = 1
	DefaultSaveDir = "model/tosfb"
	DefaultLogDir  = "log/tosfb"
)

// TerminationCheck selects when the "all agents done" condition is evaluated.
type TerminationCheck string

const (
	// CheckAfterEpoch looks at the done flags of the last tick of a decision epoch.
	CheckAfterEpoch TerminationCheck = "epoch"
	// CheckAfterTick stops as soon as any tick reports every agent done.
	CheckAfterTick TerminationCheck = "tick"
)

// Set implements flag.Value.
func (t *TerminationCheck) Set(s string) error {
	switch TerminationCheck(strings.ToLower(s)) {
	case CheckAfterEpoch:
		*t = CheckAfterEpoch
	case CheckAfterTick:
		*t = CheckAfterTick
	default:
		return fmt.Errorf("unknown termination check %q (want %q or %q)", s, CheckAfterEpoch, CheckAfterTick)
	}
	return nil
}

func (t *TerminationCheck) String() string { return string(*t) }

// Config collects everything a training or evaluation run is parameterised by.
type Config struct {
	ConfigFile string // simulation config (roadnet + flows)
	Threads    int

	Steps          int
	ActionInterval int
	Episodes       int

	LoadModel bool // warm start from SaveDir before training
	Evaluate  bool // run the load/evaluate-only path instead of training
	SaveRate  int
	SaveDir   string
	LogDir    string

	// Remote drives an environment served by another process instead of a local world.
	Remote string
	// Serve exposes the local environment over gRPC instead of training.
	Serve string

	Termination TerminationCheck
}

// Default returns a Config holding the default of every field.
func Default() Config {
	return Config{
		Threads:        DefaultThreads,
		Steps:          DefaultSteps,
		ActionInterval: DefaultActionInterval,
		Episodes:       DefaultEpisodes,
		SaveRate:       DefaultSaveRate,
		SaveDir:        DefaultSaveDir,
		LogDir:         DefaultLogDir,
		Termination:    CheckAfterEpoch,
	}
}

// RegisterFlags binds every field of c to fs. The config file is the first
// positional argument and is not registered here.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Threads, "thread", c.Threads, "number of threads")
	fs.IntVar(&c.Steps, "steps", c.Steps, "number of steps")
	fs.IntVar(&c.ActionInterval, "action_interval", c.ActionInterval, "how often agent make decisions")
	fs.IntVar(&c.Episodes, "episodes", c.Episodes, "training episodes")
	fs.BoolVar(&c.LoadModel, "load_model", c.LoadModel, "load agent checkpoints before training")
	fs.BoolVar(&c.Evaluate, "evaluate", c.Evaluate, "load checkpoints and run one evaluation episode without learning")
	fs.IntVar(&c.SaveRate, "save_rate", c.SaveRate, "save model once every time this many episodes are completed")
	fs.StringVar(&c.SaveDir, "save_dir", c.SaveDir, "directory in which model should be saved")
	fs.StringVar(&c.LogDir, "log_dir", c.LogDir, "directory in which logs should be saved")
	fs.StringVar(&c.Remote, "remote", c.Remote, "address of a remote environment server")
	fs.StringVar(&c.Serve, "serve", c.Serve, "listen address; serve the environment over gRPC instead of training")
	fs.Var(&c.Termination, "termination", "when to check for global termination: epoch or tick")
}

// Parse reads a command line of the form
//
//	<config_file> [flags]   or   [flags] <config_file>
//
// on top of the defaults and validates the result.
func Parse(name string, args []string) (Config, error) {
	c := Default()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c.RegisterFlags(fs)
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		c.ConfigFile, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return c, err
	}
	if c.ConfigFile == "" && fs.NArg() > 0 {
		c.ConfigFile = fs.Arg(0)
	}
	return c, c.Validate()
}

// Validate reports every configuration error found.
func (c Config) Validate() error {
	var errs []error
	if c.ConfigFile == "" && c.Remote == "" {
		errs = append(errs, errors.New("config file is required"))
	}
	if c.Threads <= 0 {
		errs = append(errs, fmt.Errorf("thread must be positive, got %d", c.Threads))
	}
	if c.Steps <= 0 {
		errs = append(errs, fmt.Errorf("steps must be positive, got %d", c.Steps))
	}
	if c.ActionInterval <= 0 {
		errs = append(errs, fmt.Errorf("action_interval must be positive, got %d", c.ActionInterval))
	}
	if c.Episodes < 0 {
		errs = append(errs, fmt.Errorf("episodes must not be negative, got %d", c.Episodes))
	}
	if c.SaveRate <= 0 {
		errs = append(errs, fmt.Errorf("save_rate must be positive, got %d", c.SaveRate))
	}
	if c.SaveDir == "" {
		errs = append(errs, errors.New("save_dir must not be empty"))
	}
	return errors.Join(errs...)
}
