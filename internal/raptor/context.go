package raptor

import (
	"github.com/solari-transit/engine/internal/spatial"
	"github.com/solari-transit/engine/internal/timetable"
)

// stepLocation is either a transit stop or a raw query coordinate (the
// origin/destination of the whole itinerary), grounded on
// InternalStepLocation.
type stepLocation struct {
	stop   timetable.Stop
	isStop bool
	lat    float64
	lng    float64
}

func stopLocation(s timetable.Stop) stepLocation { return stepLocation{stop: s, isStop: true} }

func rawLocation(lat, lng float64) stepLocation { return stepLocation{lat: lat, lng: lng} }

func (l stepLocation) coordinate() (float64, float64) {
	if l.isStop {
		return spatial.LatLngForCellID(l.stop.S2CellID)
	}
	return l.lat, l.lng
}

// step is one edge of the reconstruction DAG: a transit boarding, a
// transfer, or (step 0) the synthetic seed. Grounded on InternalStep.
type step struct {
	previousStep int
	from, to     stepLocation
	route        *timetable.Route
	trip         *timetable.Trip
	departure    uint32
	arrival      uint32
}

// itineraryRef is the best-known way to reach a stop: its arrival time
// and the stepLog index that produced it. Grounded on InternalItinerary.
type itineraryRef struct {
	finalTime uint32
	lastStep  int
}

// RouterContext is the per-query mutable search state, grounded on
// RouterContext — never shared across queries (spec §5).
type RouterContext struct {
	tt           timetable.Timetable
	bestGlobal   []*itineraryRef
	bestPerRound [][]*itineraryRef
	markedStops  []bool
	markedRoutes []timetable.TripStopTime
	stepLog      []step
	round        uint32
	targets      []targetCost
}

// targetCost is a candidate destination stop and the fixed last-mile
// cost (seconds) of walking from it to the true destination coordinate.
type targetCost struct {
	stopID uint32
	cost   uint32
}

// newRouterContext allocates a fresh search context over tt, grounded
// on the struct literal built at the top of Router::route.
func newRouterContext(tt timetable.Timetable, targets []targetCost) *RouterContext {
	n := tt.StopCount()
	ctx := &RouterContext{
		tt:           tt,
		bestGlobal:   make([]*itineraryRef, n),
		markedStops:  make([]bool, n),
		markedRoutes: make([]timetable.TripStopTime, len(tt.Routes())),
		targets:      targets,
		stepLog: []step{{
			previousStep: 0,
			from:         rawLocation(0, 0),
			to:           rawLocation(0, 0),
		}},
	}
	ctx.bestPerRound = append(ctx.bestPerRound, make([]*itineraryRef, n))
	return ctx
}

// bestTimeToTarget is the best proven arrival at any destination
// candidate, plus its walking last-mile cost, across all rounds so far.
// Grounded on best_time_to_target.
func (ctx *RouterContext) bestTimeToTarget() (uint32, bool) {
	var best uint32
	found := false
	for _, t := range ctx.targets {
		it := ctx.bestGlobal[t.stopID]
		if it == nil {
			continue
		}
		candidate := it.finalTime + t.cost
		if !found || candidate < best {
			best = candidate
			found = true
		}
	}
	return best, found
}

// maybeUpdateArrivalTimeAndRoute records a candidate improvement to to's
// arrival time, gated by target pruning and by strict improvement over
// the stop's previous best. Grounded verbatim on
// maybe_update_arrival_time_and_route.
func (ctx *RouterContext) maybeUpdateArrivalTimeAndRoute(
	round uint32,
	from stepLocation,
	departure uint32,
	to stepLocation,
	arrival uint32,
	via *timetable.Route,
	onTrip *timetable.Trip,
	previousStep int,
) bool {
	if !to.isStop {
		return false
	}
	stopID := to.stop.StopIndex

	if bestTarget, ok := ctx.bestTimeToTarget(); ok && arrival >= bestTarget {
		return false
	}

	if prev := ctx.bestGlobal[stopID]; prev != nil && arrival >= prev.finalTime {
		return false
	}

	newStep := step{
		previousStep: previousStep,
		from:         from,
		to:           to,
		route:        via,
		trip:         onTrip,
		departure:    departure,
		arrival:      arrival,
	}
	ref := &itineraryRef{finalTime: arrival, lastStep: len(ctx.stepLog)}
	ctx.bestGlobal[stopID] = ref
	ctx.bestPerRound[round][stopID] = ref
	ctx.markedStops[stopID] = true
	ctx.stepLog = append(ctx.stepLog, newStep)
	return true
}
