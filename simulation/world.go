package simulation

import (
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/samber/lo"
)

type flow struct {
	spec    FlowSpec
	route   []*Road
	next    float64
	pending []*Vehicle
}

// World is a discrete-time point-queue traffic simulation. Each Step
// advances it by one tick of Config.Interval seconds. Lanes are advanced by
// a pool of worker goroutines inside a tick; crossings between lanes are
// applied serially afterwards, so a tick either completes or fails as a whole.
type World struct {
	cfg     Config
	rn      *roadnet
	flows   []*flow
	threads int
	rng     *rand.Rand
	logger  *log.Logger

	time     float64
	ticks    int
	spawned  int
	finished []float64 // travel times of vehicles that left the network
	flowsEnd float64

	saveReplay bool
	replayFile string
	replay     []string
}

// Load builds a World from a config file. threads sets the number of
// workers that advance lanes within one tick.
func Load(path string, threads int, logger *log.Logger) (*World, error) {
	cfg, spec, flowSpecs, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, spec, flowSpecs, threads, logger)
}

// New builds a World from already parsed specs.
func New(cfg Config, spec RoadnetFile, flowSpecs []FlowSpec, threads int, logger *log.Logger) (*World, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 1
	}
	if threads <= 0 {
		threads = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	rn, err := buildRoadnet(spec)
	if err != nil {
		return nil, fmt.Errorf("roadnet: %w", err)
	}
	w := &World{
		cfg:        cfg,
		rn:         rn,
		threads:    threads,
		logger:     logger,
		saveReplay: cfg.SaveReplay,
		replayFile: cfg.ReplayLogFile,
	}
	for i, fs := range flowSpecs {
		route, err := rn.route(fs.Route)
		if err != nil {
			return nil, fmt.Errorf("flow %d: %w", i, err)
		}
		w.flows = append(w.flows, &flow{spec: fs, route: route})
		w.flowsEnd = max(w.flowsEnd, fs.EndTime)
	}
	w.reset()
	logger.Printf("🗺️  Loaded world: %d intersections, %d lanes, %d flows, %d threads",
		len(rn.intersections), len(rn.lanes), len(w.flows), threads)
	return w, nil
}

// Intersections returns the signalised intersections in config order. Step
// takes one phase per entry in this order.
func (w *World) Intersections() []*Intersection { return w.rn.intersections }

// Lane looks a lane up by ID.
func (w *World) Lane(id string) (*Lane, bool) {
	l, ok := w.rn.laneByID[id]
	return l, ok
}

func (w *World) Time() float64 { return w.time }
func (w *World) Ticks() int     { return w.ticks }

// Reset empties the network and rewinds the clock. A replay captured
// during the previous episode is written out first.
func (w *World) Reset() error {
	err := w.flushReplay()
	w.reset()
	return err
}

func (w *World) reset() {
	for _, l := range w.rn.lanes {
		clear(l.vehicles)
		l.vehicles = l.vehicles[:0]
	}
	for _, f := range w.flows {
		f.next = f.spec.StartTime
		f.pending = nil
	}
	for _, inter := range w.rn.intersections {
		_ = inter.setPhase(0)
	}
	w.time, w.ticks, w.spawned = 0, 0, 0
	w.finished = nil
	w.rng = rand.New(rand.NewPCG(w.cfg.Seed, w.cfg.Seed))
}

// Step applies one phase per intersection and advances one tick.
func (w *World) Step(phases []int) error {
	if len(phases) != len(w.rn.intersections) {
		return fmt.Errorf("got %d phases for %d intersections", len(phases), len(w.rn.intersections))
	}
	for i, inter := range w.rn.intersections {
		if err := inter.setPhase(phases[i]); err != nil {
			return err
		}
	}
	dt := w.cfg.Interval
	w.spawn()
	w.advanceLanes(dt)
	w.cross(w.time + dt)
	w.time += dt
	w.ticks++
	if w.saveReplay {
		w.recordFrame()
	}
	return nil
}

// spawn creates the vehicles due by now and admits pending ones onto the
// first road of their route.
func (w *World) spawn() {
	for _, f := range w.flows {
		for f.next <= w.time && f.next <= f.spec.EndTime {
			w.spawned++
			f.pending = append(f.pending, newVehicle(fmt.Sprintf("flow_%d", w.spawned), f.route, f.spec.Vehicle, f.next))
			if f.spec.Interval <= 0 {
				f.next = math.Inf(1)
				break
			}
			f.next += f.spec.Interval
		}
		for len(f.pending) > 0 {
			v := f.pending[0]
			l := w.pickLane(f.route[0], v)
			if l == nil {
				break
			}
			l.pushBack(v)
			f.pending = f.pending[1:]
		}
	}
}

// pickLane chooses the least loaded lane of r with room for v, breaking
// ties at random.
func (w *World) pickLane(r *Road, v *Vehicle) *Lane {
	candidates := lo.Filter(r.Lanes, func(l *Lane, _ int) bool { return l.hasRoom(v) })
	if len(candidates) == 0 {
		return nil
	}
	fewest := lo.MinBy(candidates, func(a, b *Lane) bool { return len(a.vehicles) < len(b.vehicles) })
	ties := lo.Filter(candidates, func(l *Lane, _ int) bool { return len(l.vehicles) == len(fewest.vehicles) })
	return ties[w.rng.IntN(len(ties))]
}

func (w *World) advanceLanes(dt float64) {
	lanes := w.rn.lanes
	if w.threads == 1 {
		for _, l := range lanes {
			l.advance(dt)
		}
		return
	}
	var wg sync.WaitGroup
	for t := 0; t < w.threads; t++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := offset; i < len(lanes); i += w.threads {
				lanes[i].advance(dt)
			}
		}(t)
	}
	wg.Wait()
}

// cross moves at most one vehicle per lane from its stop line onto the
// next road of its route, or out of the network at the end of the route.
func (w *World) cross(now float64) {
	for _, l := range w.rn.lanes {
		v := l.atStopLine()
		if v == nil {
			continue
		}
		if v.leg == len(v.route)-1 {
			l.popFront()
			v.lane = nil
			w.finished = append(w.finished, v.TravelTime(now))
			continue
		}
		if inter := l.Road.To; !inter.Virtual && !inter.IsGreen(l) {
			continue
		}
		next := w.pickLane(v.route[v.leg+1], v)
		if next == nil {
			continue
		}
		l.popFront()
		v.leg++
		next.pushBack(v)
	}
}

// Vehicles returns the vehicles currently on a lane.
func (w *World) Vehicles() []*Vehicle {
	var out []*Vehicle
	for _, l := range w.rn.lanes {
		out = append(out, l.vehicles...)
	}
	return out
}

// FinishedTravelTimes are the travel times of vehicles that left the network.
func (w *World) FinishedTravelTimes() []float64 { return w.finished }

// AverageTravelTime averages the travel time of finished vehicles and the
// elapsed time of those still running or waiting to enter.
func (w *World) AverageTravelTime() float64 {
	total := lo.Sum(w.finished)
	n := len(w.finished)
	for _, v := range w.Vehicles() {
		total += v.TravelTime(w.time)
		n++
	}
	for _, f := range w.flows {
		for _, v := range f.pending {
			total += v.TravelTime(w.time)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

func (w *World) spawningDone() bool {
	if w.time <= w.flowsEnd {
		return false
	}
	return lo.EveryBy(w.flows, func(f *flow) bool { return len(f.pending) == 0 })
}

// Finished reports whether every flow is exhausted and the network is empty.
func (w *World) Finished() bool {
	return w.spawningDone() && len(w.Vehicles()) == 0
}

// IntersectionDone reports whether no vehicle will enter inter any more.
func (w *World) IntersectionDone(inter *Intersection) bool {
	if !w.spawningDone() {
		return false
	}
	return !lo.SomeBy(w.Vehicles(), func(v *Vehicle) bool { return v.passes(inter) })
}

// Close writes any pending replay.
func (w *World) Close() error {
	return w.flushReplay()
}
