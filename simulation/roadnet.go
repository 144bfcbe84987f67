package simulation

import (
	"fmt"
	"slices"
)

// Road is a directed link between two intersections with parallel lanes.
type Road struct {
	ID     string
	From   *Intersection
	To     *Intersection
	Length float64
	Speed  float64
	Lanes  []*Lane
}

// Lane holds its vehicles front first: index 0 is nearest the stop line.
type Lane struct {
	ID       string
	Road     *Road
	vehicles []*Vehicle
}

// Intersection is a signalised node. Phases[i] is the set of incoming lanes
// that are green while phase i is active.
type Intersection struct {
	ID       string
	Virtual  bool
	InRoads  []*Road
	OutRoads []*Road
	Phases   [][]*Lane

	phase int
	green map[*Lane]bool
}

// Phase is the index of the active phase.
func (i *Intersection) Phase() int { return i.phase }

// InLanes returns every lane ending at the intersection, road by road.
func (i *Intersection) InLanes() []*Lane {
	var lanes []*Lane
	for _, r := range i.InRoads {
		lanes = append(lanes, r.Lanes...)
	}
	return lanes
}

// OutLanes returns every lane starting at the intersection, road by road.
func (i *Intersection) OutLanes() []*Lane {
	var lanes []*Lane
	for _, r := range i.OutRoads {
		lanes = append(lanes, r.Lanes...)
	}
	return lanes
}

// IsGreen reports whether lane may cross under the active phase.
func (i *Intersection) IsGreen(l *Lane) bool { return i.green[l] }

func (i *Intersection) setPhase(p int) error {
	if p < 0 || p >= len(i.Phases) {
		return fmt.Errorf("intersection %s: phase %d out of range [0,%d)", i.ID, p, len(i.Phases))
	}
	i.phase = p
	clear(i.green)
	for _, l := range i.Phases[p] {
		i.green[l] = true
	}
	return nil
}

type roadnet struct {
	intersections []*Intersection // signalised only, in file order
	byID          map[string]*Intersection
	roads         map[string]*Road
	lanes         []*Lane
	laneByID      map[string]*Lane
}

func buildRoadnet(spec RoadnetFile) (*roadnet, error) {
	rn := &roadnet{
		byID:     make(map[string]*Intersection),
		roads:    make(map[string]*Road),
		laneByID: make(map[string]*Lane),
	}
	for _, is := range spec.Intersections {
		if _, dup := rn.byID[is.ID]; dup {
			return nil, fmt.Errorf("duplicate intersection %q", is.ID)
		}
		rn.byID[is.ID] = &Intersection{ID: is.ID, Virtual: is.Virtual, green: make(map[*Lane]bool)}
	}
	for _, rs := range spec.Roads {
		from, to := rn.byID[rs.From], rn.byID[rs.To]
		if from == nil || to == nil {
			return nil, fmt.Errorf("road %q joins unknown intersections %q -> %q", rs.ID, rs.From, rs.To)
		}
		if rs.Length <= 0 || rs.Speed <= 0 || rs.Lanes <= 0 {
			return nil, fmt.Errorf("road %q needs positive length, speed and lanes", rs.ID)
		}
		if _, dup := rn.roads[rs.ID]; dup {
			return nil, fmt.Errorf("duplicate road %q", rs.ID)
		}
		r := &Road{ID: rs.ID, From: from, To: to, Length: rs.Length, Speed: rs.Speed}
		for k := 0; k < rs.Lanes; k++ {
			l := &Lane{ID: fmt.Sprintf("%s_%d", rs.ID, k), Road: r}
			r.Lanes = append(r.Lanes, l)
			rn.lanes = append(rn.lanes, l)
			rn.laneByID[l.ID] = l
		}
		rn.roads[r.ID] = r
		from.OutRoads = append(from.OutRoads, r)
		to.InRoads = append(to.InRoads, r)
	}
	for _, is := range spec.Intersections {
		inter := rn.byID[is.ID]
		if is.Virtual {
			continue
		}
		if len(is.Phases) == 0 {
			return nil, fmt.Errorf("intersection %q has no phases", is.ID)
		}
		for p, ids := range is.Phases {
			phase := make([]*Lane, 0, len(ids))
			for _, id := range ids {
				l := rn.laneByID[id]
				if l == nil || l.Road.To != inter {
					return nil, fmt.Errorf("intersection %q phase %d: %q is not an incoming lane", is.ID, p, id)
				}
				phase = append(phase, l)
			}
			inter.Phases = append(inter.Phases, phase)
		}
		rn.intersections = append(rn.intersections, inter)
	}
	return rn, nil
}

func (rn *roadnet) route(ids []string) ([]*Road, error) {
	route := make([]*Road, 0, len(ids))
	for k, id := range ids {
		r := rn.roads[id]
		if r == nil {
			return nil, fmt.Errorf("route names unknown road %q", id)
		}
		if k > 0 && route[k-1].To != r.From {
			return nil, fmt.Errorf("route is not connected at %q", id)
		}
		route = append(route, r)
	}
	if len(route) == 0 {
		return nil, fmt.Errorf("empty route")
	}
	return slices.Clip(route), nil
}
