// Package collector holds the evaluation sinks that receive the run
// configuration once and one training.Record per finished episode.
package collector

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"github.com/LincolnVS/tlc-baselines/config"
	"github.com/LincolnVS/tlc-baselines/training"
)

const (
	episodeSheet = "Episodes"
	agentSheet   = "Agents"
	configSheet  = "Hyperparameters"
)

// ExcelSink builds a workbook with one row per episode, one row per agent
// per episode and the run's hyperparameters. It is written on Close.
type ExcelSink struct {
	path   string
	f      *excelize.File
	logger *log.Logger

	episodeRow int
	agentRow   int
}

var _ training.Sink = (*ExcelSink)(nil)

// NewExcelSink prepares an empty workbook that Close saves to path.
func NewExcelSink(path string, logger *log.Logger) (*ExcelSink, error) {
	if logger == nil {
		logger = log.Default()
	}
	f := excelize.NewFile()
	for _, name := range []string{episodeSheet, agentSheet, configSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	agentHeaders := []string{"episode", "intersection", "decisions", "mean_reward", "mean_td_error", "epsilon"}
	if err := f.SetSheetRow(agentSheet, "A1", &agentHeaders); err != nil {
		return nil, err
	}
	return &ExcelSink{path: path, f: f, logger: logger, episodeRow: 1, agentRow: 2}, nil
}

func (s *ExcelSink) Configure(hp config.Hyperparameters) error {
	headers := []string{"name", "value"}
	if err := s.f.SetSheetRow(configSheet, "A1", &headers); err != nil {
		return err
	}
	for i, field := range hp.Fields() {
		row := []any{field.Name, field.Value}
		if err := s.f.SetSheetRow(configSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	return nil
}

func (s *ExcelSink) Record(rec training.Record) error {
	// The header follows the metric names of the first record.
	if s.episodeRow == 1 {
		headers := append([]string{"episode", "steps", "epsilon"},
			lo.Map(rec.Metrics, func(m training.MetricValue, _ int) string { return m.Name })...)
		if err := s.f.SetSheetRow(episodeSheet, "A1", &headers); err != nil {
			return err
		}
		s.episodeRow++
	}

	row := append([]any{rec.Episode, rec.Steps, rec.Epsilon},
		lo.Map(rec.Metrics, func(m training.MetricValue, _ int) any { return m.Value })...)
	if err := s.f.SetSheetRow(episodeSheet, fmt.Sprintf("A%d", s.episodeRow), &row); err != nil {
		return err
	}
	s.episodeRow++

	for _, a := range rec.Agents {
		row := []any{rec.Episode, a.Intersection, a.Decisions, a.MeanReward, a.MeanTDError, a.Epsilon}
		if err := s.f.SetSheetRow(agentSheet, fmt.Sprintf("A%d", s.agentRow), &row); err != nil {
			return err
		}
		s.agentRow++
	}
	return nil
}

// Close saves the workbook, creating its directory if needed.
func (s *ExcelSink) Close() error {
	defer func() {
		if err := s.f.Close(); err != nil {
			s.logger.Printf("❌ close workbook: %v", err)
		}
	}()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := s.f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	s.logger.Printf("✅ Episode report saved to %s", s.path)
	return nil
}
