package simulation

// waitingSpeed is the speed below which a vehicle counts as waiting.
const waitingSpeed = 0.1

const (
	defaultVehicleLength = 5.0
	defaultMinGap        = 2.5
)

// Vehicle follows a fixed route of roads.
type Vehicle struct {
	ID string

	route []*Road
	leg   int
	lane  *Lane

	pos      float64 // front bumper, metres from the lane start
	speed    float64
	length   float64
	minGap   float64
	maxSpeed float64

	spawnTime float64
	waiting   float64 // accumulated seconds below waitingSpeed
}

func newVehicle(id string, route []*Road, spec VehicleSpec, now float64) *Vehicle {
	v := &Vehicle{
		ID:        id,
		route:     route,
		length:    spec.Length,
		minGap:    spec.MinGap,
		maxSpeed:  spec.MaxSpeed,
		spawnTime: now,
	}
	if v.length <= 0 {
		v.length = defaultVehicleLength
	}
	if v.minGap <= 0 {
		v.minGap = defaultMinGap
	}
	return v
}

// Speed is the speed over the last tick in m/s.
func (v *Vehicle) Speed() float64 { return v.speed }

// MaxSpeed is the highest speed the vehicle may drive on its current road.
func (v *Vehicle) MaxSpeed() float64 {
	limit := v.route[v.leg].Speed
	if v.maxSpeed > 0 && v.maxSpeed < limit {
		return v.maxSpeed
	}
	return limit
}

// WaitingTime is the total time the vehicle has spent waiting.
func (v *Vehicle) WaitingTime() float64 { return v.waiting }

// TravelTime is the time since the vehicle spawned.
func (v *Vehicle) TravelTime(now float64) float64 { return now - v.spawnTime }

// passes reports whether the rest of the route enters inter.
func (v *Vehicle) passes(inter *Intersection) bool {
	for _, r := range v.route[v.leg:] {
		if r.To == inter {
			return true
		}
	}
	return false
}

// VehicleCount is the number of vehicles on the lane.
func (l *Lane) VehicleCount() int { return len(l.vehicles) }

// WaitingCount is the number of vehicles on the lane below waiting speed.
func (l *Lane) WaitingCount() int {
	n := 0
	for _, v := range l.vehicles {
		if v.speed < waitingSpeed {
			n++
		}
	}
	return n
}

// WaitingTime sums the waiting time of the vehicles on the lane.
func (l *Lane) WaitingTime() float64 {
	total := 0.0
	for _, v := range l.vehicles {
		total += v.waiting
	}
	return total
}

// MeanSpeed is the mean vehicle speed on the lane, 0 when empty.
func (l *Lane) MeanSpeed() float64 {
	if len(l.vehicles) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range l.vehicles {
		total += v.speed
	}
	return total / float64(len(l.vehicles))
}

// advance moves every vehicle forward, limited by the stop line or the
// vehicle ahead. Lanes are independent, so this may run in parallel.
func (l *Lane) advance(dt float64) {
	limit := l.Road.Length
	for i, v := range l.vehicles {
		if i > 0 {
			leader := l.vehicles[i-1]
			limit = leader.pos - leader.length - v.minGap
		}
		target := v.pos + v.MaxSpeed()*dt
		next := max(v.pos, min(target, limit))
		v.speed = (next - v.pos) / dt
		v.pos = next
		if v.speed < waitingSpeed {
			v.waiting += dt
		}
	}
}

// hasRoom reports whether v can enter at the lane start.
func (l *Lane) hasRoom(v *Vehicle) bool {
	if len(l.vehicles) == 0 {
		return true
	}
	tail := l.vehicles[len(l.vehicles)-1]
	return tail.pos-tail.length >= v.minGap
}

func (l *Lane) atStopLine() *Vehicle {
	if len(l.vehicles) == 0 {
		return nil
	}
	if v := l.vehicles[0]; v.pos >= l.Road.Length-1e-9 {
		return v
	}
	return nil
}

func (l *Lane) popFront() {
	l.vehicles[0] = nil
	l.vehicles = l.vehicles[1:]
}

func (l *Lane) pushBack(v *Vehicle) {
	v.lane = l
	v.pos = 0
	l.vehicles = append(l.vehicles, v)
}
