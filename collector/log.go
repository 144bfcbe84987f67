package collector

import (
	"errors"
	"io"
	"log"

	"github.com/LincolnVS/tlc-baselines/config"
	"github.com/LincolnVS/tlc-baselines/training"
)

// LogSink prints every record as
//
//	episode:<e>/<episodes>
//	\t<metric>: <value>
type LogSink struct {
	logger *log.Logger
}

var _ training.Sink = (*LogSink)(nil)

func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Configure(hp config.Hyperparameters) error {
	for _, f := range hp.Fields() {
		s.logger.Printf("⚙️  %s = %g", f.Name, f.Value)
	}
	return nil
}

func (s *LogSink) Record(rec training.Record) error {
	s.logger.Printf("episode:%d/%d", rec.Episode, rec.Episodes)
	for _, m := range rec.Metrics {
		s.logger.Printf("\t%s: %.4f", m.Name, m.Value)
	}
	s.logger.Printf("\tepsilon: %.4f", rec.Epsilon)
	return nil
}

// Tee forwards to every sink in order and stops at the first failure.
type Tee []training.Sink

var _ training.Sink = Tee(nil)

func (t Tee) Configure(hp config.Hyperparameters) error {
	for _, s := range t {
		if err := s.Configure(hp); err != nil {
			return err
		}
	}
	return nil
}

func (t Tee) Record(rec training.Record) error {
	for _, s := range t {
		if err := s.Record(rec); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink that is an io.Closer.
func (t Tee) Close() error {
	var errs []error
	for _, s := range t {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
