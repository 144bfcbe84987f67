package simulation

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SetSaveReplay turns per-tick replay capture on or off.
func (w *World) SetSaveReplay(enabled bool) { w.saveReplay = enabled }

// SetReplayFile names the replay file, relative to the config dir, that the
// frames captured from now on are written to.
func (w *World) SetReplayFile(name string) error {
	if err := w.flushReplay(); err != nil {
		return err
	}
	w.replayFile = name
	return nil
}

// recordFrame captures the time, every signal phase and the occupied lanes.
// Format: "<time>;<intersection>:<phase>,...;<lane>:<vehicles>,..."
func (w *World) recordFrame() {
	var b strings.Builder
	fmt.Fprintf(&b, "%.1f;", w.time)
	for i, inter := range w.rn.intersections {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s:%d", inter.ID, inter.phase)
	}
	b.WriteByte(';')
	first := true
	for _, l := range w.rn.lanes {
		if len(l.vehicles) == 0 {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		fmt.Fprintf(&b, "%s:%d", l.ID, len(l.vehicles))
	}
	w.replay = append(w.replay, b.String())
}

// flushReplay writes the buffered frames to the replay file and drops them.
func (w *World) flushReplay() error {
	if len(w.replay) == 0 {
		return nil
	}
	frames := w.replay
	w.replay = nil
	if w.replayFile == "" {
		w.logger.Printf("⚠️  dropping %d replay frames: no replay file set", len(frames))
		return nil
	}
	path := filepath.Join(w.cfg.Dir, w.replayFile)
	if err := writeReplay(path, frames); err != nil {
		return fmt.Errorf("write replay %s: %w", path, err)
	}
	w.logger.Printf("🎞️  Replay with %d frames saved to %s", len(frames), path)
	return nil
}

func writeReplay(path string, frames []string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(f)
	for _, frame := range frames {
		if _, err := bw.WriteString(frame + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
