package builder

import (
	"fmt"

	"github.com/solari-transit/engine/internal/timetable"
)

// Validate checks the optional, configurable invariants from §4.E:
// monotone arrivals within a trip, route_stops length matching per-trip
// stop-time counts, and monotone first_route_trip offsets. Returns every
// violation found rather than stopping at the first, so a build report
// can surface them all at once.
func Validate(tt *timetable.InMemory) []error {
	var errs []error

	routes := tt.Routes()
	for i := 1; i < len(routes); i++ {
		if routes[i].FirstRouteTrip < routes[i-1].FirstRouteTrip {
			errs = append(errs, fmt.Errorf("route %d: first_route_trip not monotone", i))
		}
	}

	trips := tt.RouteTrips()
	routeStops := tt.RouteStops()
	stopTimes := tt.TripStopTimes()
	for _, trip := range trips {
		route := routes[trip.RouteIndex]
		var stopCountInRoute int
		for i := route.FirstRouteStop; i < uint32(len(routeStops)) && routeStops[i].RouteIndex == trip.RouteIndex; i++ {
			stopCountInRoute++
		}
		gotCount := int(trip.LastTripStopTime - trip.FirstTripStopTime)
		if stopCountInRoute != gotCount {
			errs = append(errs, fmt.Errorf("trip %d: stop_time count %d does not match route stop count %d",
				trip.TripIndex, gotCount, stopCountInRoute))
		}

		var prevArrival int64 = -1
		for i := trip.FirstTripStopTime; i < trip.LastTripStopTime; i++ {
			a := int64(stopTimes[i].ArrivalEpoch)
			if a < prevArrival {
				errs = append(errs, fmt.Errorf("trip %d: arrival at stop_seq %d is before previous stop",
					trip.TripIndex, stopTimes[i].RouteStopSeq))
			}
			prevArrival = a
		}
	}

	return errs
}
