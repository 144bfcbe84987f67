package simulation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the simulation config file. Roadnet and flow paths are relative
// to Dir, as is the replay file; a relative Dir is resolved against the
// directory of the config file.
type Config struct {
	Interval      float64 `json:"interval"` // seconds per tick
	Seed          uint64  `json:"seed"`
	Dir           string  `json:"dir"`
	RoadnetFile   string  `json:"roadnetFile"`
	FlowFile      string  `json:"flowFile"`
	SaveReplay    bool    `json:"saveReplay"`
	ReplayLogFile string  `json:"replayLogFile"`
}

// RoadnetFile describes intersections and the roads between them.
type RoadnetFile struct {
	Intersections []IntersectionSpec `json:"intersections"`
	Roads         []RoadSpec         `json:"roads"`
}

// IntersectionSpec lists, per phase, the incoming lane IDs that are green.
// Virtual intersections sit on the network boundary and have no signal.
type IntersectionSpec struct {
	ID      string     `json:"id"`
	Virtual bool       `json:"virtual"`
	Phases  [][]string `json:"phases"`
}

type RoadSpec struct {
	ID     string  `json:"id"`
	From   string  `json:"from"`
	To     string  `json:"to"`
	Length float64 `json:"length"`
	Speed  float64 `json:"speed"`
	Lanes  int     `json:"lanes"`
}

// FlowSpec spawns one vehicle every Interval seconds in [StartTime, EndTime].
type FlowSpec struct {
	Route     []string    `json:"route"`
	Interval  float64     `json:"interval"`
	StartTime float64     `json:"startTime"`
	EndTime   float64     `json:"endTime"`
	Vehicle   VehicleSpec `json:"vehicle"`
}

type VehicleSpec struct {
	Length   float64 `json:"length"`
	MinGap   float64 `json:"minGap"`
	MaxSpeed float64 `json:"maxSpeed"`
}

// LoadConfig reads the config file and the roadnet and flow files it names.
func LoadConfig(path string) (Config, RoadnetFile, []FlowSpec, error) {
	var (
		cfg     Config
		roadnet RoadnetFile
		flows   []FlowSpec
	)
	if err := readJSON(path, &cfg); err != nil {
		return cfg, roadnet, nil, fmt.Errorf("read config: %w", err)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 1
	}
	if !filepath.IsAbs(cfg.Dir) {
		cfg.Dir = filepath.Join(filepath.Dir(path), cfg.Dir)
	}
	if cfg.RoadnetFile == "" || cfg.FlowFile == "" {
		return cfg, roadnet, nil, errors.New("config must name roadnetFile and flowFile")
	}
	if err := readJSON(filepath.Join(cfg.Dir, cfg.RoadnetFile), &roadnet); err != nil {
		return cfg, roadnet, nil, fmt.Errorf("read roadnet: %w", err)
	}
	if err := readJSON(filepath.Join(cfg.Dir, cfg.FlowFile), &flows); err != nil {
		return cfg, roadnet, nil, fmt.Errorf("read flows: %w", err)
	}
	return cfg, roadnet, flows, nil
}

func readJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
