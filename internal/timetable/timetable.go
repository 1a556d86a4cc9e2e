package timetable

// Timetable is the capability interface the RAPTOR router reads through.
// Two implementations satisfy it: InMemory (built directly by the
// builder, used in tests) and Mapped (memory-mapped columns plus a
// bbolt-backed sidecar store, used at query time). The router holds a
// Timetable interface value, so its hot-loop calls go through interface
// dispatch.
type Timetable interface {
	Route(routeID uint32) Route
	Stop(stopID uint32) Stop
	StopCount() int
	Stops() []Stop
	Routes() []Route
	StopRoutes() []StopRoute
	RouteStops() []RouteStop
	RouteTrips() []Trip
	TripStopTimes() []TripStopTime
	Transfers() []Transfer
	TransferIndex() []uint32
	TransfersFrom(stopID uint32) []Transfer
	NearestStops(lat, lng float64, n int) []StopDistance
	StopMetadata(stop Stop) (StopMetadata, error)
	TripMetadata(trip Trip) (TripMetadata, error)
	RouteShape(route Route) ([]ShapeCoordinate, error)
}

// StopDistance pairs a stop with its distance from a query coordinate,
// as returned by NearestStops.
type StopDistance struct {
	Stop           Stop
	DistanceMeters float64
}
