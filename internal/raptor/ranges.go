package raptor

import "github.com/solari-transit/engine/internal/timetable"

// routeStopsFor returns the RouteStop window for routeID, relying on
// FirstRouteStop running offsets exactly as the columnar layout stores
// them (§6).
func routeStopsFor(tt timetable.Timetable, routeID uint32) []timetable.RouteStop {
	start, end := routeStopRange(tt, routeID)
	return tt.RouteStops()[start:end]
}

func routeStopRange(tt timetable.Timetable, routeID uint32) (start, end uint32) {
	routes := tt.Routes()
	start = routes[routeID].FirstRouteStop
	if int(routeID)+1 < len(routes) {
		end = routes[routeID+1].FirstRouteStop
	} else {
		end = uint32(len(tt.RouteStops()))
	}
	return start, end
}

// routeTripsFor returns the Trip window for routeID, sorted by
// departure at the route's first stop (the builder's invariant, §7).
func routeTripsFor(tt timetable.Timetable, routeID uint32) []timetable.Trip {
	start, end := routeTripRange(tt, routeID)
	return tt.RouteTrips()[start:end]
}

func routeTripRange(tt timetable.Timetable, routeID uint32) (start, end uint32) {
	routes := tt.Routes()
	start = routes[routeID].FirstRouteTrip
	if int(routeID)+1 < len(routes) {
		end = routes[routeID+1].FirstRouteTrip
	} else {
		end = uint32(len(tt.RouteTrips()))
	}
	return start, end
}

// stopRoutesFor returns the StopRoute membership window for stopID.
func stopRoutesFor(tt timetable.Timetable, stopID uint32) []timetable.StopRoute {
	stops := tt.Stops()
	start := stops[stopID].FirstStopRoute
	var end uint32
	if int(stopID)+1 < len(stops) {
		end = stops[stopID+1].FirstStopRoute
	} else {
		end = uint32(len(tt.StopRoutes()))
	}
	return tt.StopRoutes()[start:end]
}

// tripStopTimesFor returns a trip's stop-time row window, in stop-seq
// order.
func tripStopTimesFor(tt timetable.Timetable, trip timetable.Trip) []timetable.TripStopTime {
	return tt.TripStopTimes()[trip.FirstTripStopTime:trip.LastTripStopTime]
}
