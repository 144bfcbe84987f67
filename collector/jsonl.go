package collector

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/lo"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/LincolnVS/tlc-baselines/config"
	"github.com/LincolnVS/tlc-baselines/training"
)

// JSONLSink appends one JSON object per line: a "config" line for the
// hyperparameters, then an "episode" line per record. The file is opened
// and closed for every line so a crashed run keeps what it wrote.
type JSONLSink struct {
	path string
}

var _ training.Sink = (*JSONLSink)(nil)

func NewJSONLSink(path string) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &JSONLSink{path: path}, nil
}

func (s *JSONLSink) Configure(hp config.Hyperparameters) error {
	values := make(map[string]any)
	for _, f := range hp.Fields() {
		values[f.Name] = f.Value
	}
	return s.append(map[string]any{
		"type":            "config",
		"hyperparameters": values,
	})
}

func (s *JSONLSink) Record(rec training.Record) error {
	metrics := make(map[string]any, len(rec.Metrics))
	for _, m := range rec.Metrics {
		metrics[m.Name] = m.Value
	}
	agents := lo.Map(rec.Agents, func(a training.AgentStats, _ int) any {
		return map[string]any{
			"intersection":  a.Intersection,
			"decisions":     a.Decisions,
			"mean_reward":   a.MeanReward,
			"mean_td_error": a.MeanTDError,
			"epsilon":       a.Epsilon,
		}
	})
	return s.append(map[string]any{
		"type":     "episode",
		"episode":  rec.Episode,
		"episodes": rec.Episodes,
		"steps":    rec.Steps,
		"epsilon":  rec.Epsilon,
		"metrics":  metrics,
		"agents":   agents,
	})
}

func (s *JSONLSink) append(fields map[string]any) error {
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return fmt.Errorf("encode line: %w", err)
	}
	line, err := protojson.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode line: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
