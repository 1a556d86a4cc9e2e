// Package timetable defines the columnar transit data model: eight
// fixed-width record types held in parallel columns, a capability
// interface the RAPTOR router is generic over, and two implementations
// (an in-memory staging form used by the builder and tests, and a
// memory-mapped form used at query time).
//
// Every record type here is plain-old-data by convention: fixed-width
// fields only, no pointers, no strings, no slices. The mapped
// implementation reinterprets a column file's bytes directly as a slice
// of these types, so a field reorder or an added field changes the
// on-disk layout.
package timetable

// Stop is one row of the stops column.
type Stop struct {
	StopIndex      uint32
	S2CellID       uint64
	FirstStopRoute uint32
}

// StopRoute is one row of the stop_routes column: a (route, sequence)
// pair, grouped by stop. The range for stop s is
// [stops[s].FirstStopRoute, stops[s+1].FirstStopRoute).
type StopRoute struct {
	RouteIndex uint32
	StopSeq    uint32
}

// Route is one row of the routes column. A route is the RAPTOR sense: a
// maximal set of trips sharing a published line and an identical,
// ordered stop sequence.
type Route struct {
	RouteIndex    uint32
	FirstRouteStop uint32
	FirstRouteTrip uint32
}

// RouteStop is one row of the route_stops column, grouped by route.
type RouteStop struct {
	RouteIndex         uint32
	StopIndex          uint32
	StopSeq            uint32
	DistanceAlongRoute float32
}

// Trip is one row of the route_trips column. Within a route, trips are
// sorted by departure at the route's first stop.
type Trip struct {
	TripIndex          uint32
	RouteIndex         uint32
	FirstTripStopTime  uint32
	LastTripStopTime   uint32
}

// TripStopTime is one row of the trip_stop_times column. Arrivals are
// non-decreasing within a trip.
type TripStopTime struct {
	TripIndex     uint32
	RouteStopSeq  uint32
	ArrivalEpoch  uint32
	DepartureEpoch uint32
}

// MarkedTripStopTime is the per-route sentinel RAPTOR's route-collection
// step stores when no boarding has been found yet this round.
const MarkedTripStopTime = ^uint32(0)

// Transfer is one row of the transfers column: a directed, weighted
// pedestrian transfer candidate between two stops.
type Transfer struct {
	From        uint32
	To          uint32
	TimeSeconds uint32
}

// StopMetadata is the variable-width per-stop record in the sidecar
// store.
type StopMetadata struct {
	Name         string
	PlatformCode string
	LocationType int
}

// TripMetadata is the variable-width per-trip record in the sidecar
// store.
type TripMetadata struct {
	Headsign    string
	RouteName   string
	AgencyName  string
}

// ShapeCoordinate is one point of a route's optional shape, with its
// distance along the shape in metres for subsegment clipping.
type ShapeCoordinate struct {
	Lat, Lng         float64
	DistanceAlongShape float32
}
