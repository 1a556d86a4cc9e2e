package timetable

import "testing"

func twoStopFixture() *InMemory {
	stops := []Stop{
		{StopIndex: 0, S2CellID: CellIDForCoordinate(40.70, -74.00), FirstStopRoute: 0},
		{StopIndex: 1, S2CellID: CellIDForCoordinate(40.71, -74.00), FirstStopRoute: 1},
	}
	stopRoutes := []StopRoute{
		{RouteIndex: 0, StopSeq: 0},
		{RouteIndex: 0, StopSeq: 1},
	}
	routes := []Route{{RouteIndex: 0, FirstRouteStop: 0, FirstRouteTrip: 0}}
	routeStops := []RouteStop{
		{RouteIndex: 0, StopIndex: 0, StopSeq: 0, DistanceAlongRoute: 0},
		{RouteIndex: 0, StopIndex: 1, StopSeq: 1, DistanceAlongRoute: 1000},
	}
	routeTrips := []Trip{
		{TripIndex: 0, RouteIndex: 0, FirstTripStopTime: 0, LastTripStopTime: 2},
		{TripIndex: 1, RouteIndex: 0, FirstTripStopTime: 2, LastTripStopTime: 4},
		{TripIndex: 2, RouteIndex: 0, FirstTripStopTime: 4, LastTripStopTime: 6},
	}
	tripStopTimes := []TripStopTime{
		{TripIndex: 0, RouteStopSeq: 0, ArrivalEpoch: 32400, DepartureEpoch: 32400},
		{TripIndex: 0, RouteStopSeq: 1, ArrivalEpoch: 32700, DepartureEpoch: 32700},
		{TripIndex: 1, RouteStopSeq: 0, ArrivalEpoch: 36000, DepartureEpoch: 36000},
		{TripIndex: 1, RouteStopSeq: 1, ArrivalEpoch: 36300, DepartureEpoch: 36300},
		{TripIndex: 2, RouteStopSeq: 0, ArrivalEpoch: 39600, DepartureEpoch: 39600},
		{TripIndex: 2, RouteStopSeq: 1, ArrivalEpoch: 39900, DepartureEpoch: 39900},
	}
	return NewInMemory(stops, stopRoutes, routes, routeStops, routeTrips, tripStopTimes,
		[]uint32{0, 0}, nil, map[uint32]StopMetadata{}, map[uint32]TripMetadata{}, map[uint32][]ShapeCoordinate{})
}

func TestTransfersFromRange(t *testing.T) {
	tt := twoStopFixture()
	if got := tt.TransfersFrom(0); len(got) != 0 {
		t.Fatalf("expected no transfers from stop 0, got %v", got)
	}
}

func TestNearestStopsFindsBothStops(t *testing.T) {
	tt := twoStopFixture()
	results := tt.NearestStops(40.70, -74.00, 5)
	if len(results) != 2 {
		t.Fatalf("expected 2 stops, got %d: %v", len(results), results)
	}
}

func TestRouteAndStopAccessors(t *testing.T) {
	tt := twoStopFixture()
	if tt.StopCount() != 2 {
		t.Fatalf("expected 2 stops, got %d", tt.StopCount())
	}
	if tt.Route(0).FirstRouteStop != 0 {
		t.Fatalf("unexpected route: %+v", tt.Route(0))
	}
}
