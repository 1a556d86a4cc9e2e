package raptor

import (
	"context"
	"testing"
	"time"

	"github.com/solari-transit/engine/internal/api"
	"github.com/solari-transit/engine/internal/logging"
	"github.com/solari-transit/engine/internal/timetable"
)

// fourStopLine builds a single route A(0)->B(1)->C(2)->D(3) with two
// trips, plus a second route starting at C serving E(4)->F(5), and a
// walking transfer from C(2) to E(4).
func fourStopLine() *timetable.InMemory {
	stops := []timetable.Stop{
		{StopIndex: 0, S2CellID: timetable.CellIDForCoordinate(0.0000, 0.0000), FirstStopRoute: 0},
		{StopIndex: 1, S2CellID: timetable.CellIDForCoordinate(0.0050, 0.0000), FirstStopRoute: 1},
		{StopIndex: 2, S2CellID: timetable.CellIDForCoordinate(0.0100, 0.0000), FirstStopRoute: 2},
		{StopIndex: 3, S2CellID: timetable.CellIDForCoordinate(0.0150, 0.0000), FirstStopRoute: 3},
		{StopIndex: 4, S2CellID: timetable.CellIDForCoordinate(0.0101, 0.0050), FirstStopRoute: 4},
		{StopIndex: 5, S2CellID: timetable.CellIDForCoordinate(0.0101, 0.0100), FirstStopRoute: 5},
	}
	stopRoutes := []timetable.StopRoute{
		{RouteIndex: 0, StopSeq: 0}, // stop 0
		{RouteIndex: 0, StopSeq: 1}, // stop 1
		{RouteIndex: 0, StopSeq: 2}, // stop 2
		{RouteIndex: 0, StopSeq: 3}, // stop 3
		{RouteIndex: 1, StopSeq: 0}, // stop 4
		{RouteIndex: 1, StopSeq: 1}, // stop 5
	}
	routes := []timetable.Route{
		{RouteIndex: 0, FirstRouteStop: 0, FirstRouteTrip: 0},
		{RouteIndex: 1, FirstRouteStop: 4, FirstRouteTrip: 2},
	}
	routeStops := []timetable.RouteStop{
		{RouteIndex: 0, StopIndex: 0, StopSeq: 0, DistanceAlongRoute: 0},
		{RouteIndex: 0, StopIndex: 1, StopSeq: 1, DistanceAlongRoute: 555},
		{RouteIndex: 0, StopIndex: 2, StopSeq: 2, DistanceAlongRoute: 1110},
		{RouteIndex: 0, StopIndex: 3, StopSeq: 3, DistanceAlongRoute: 1665},
		{RouteIndex: 1, StopIndex: 4, StopSeq: 0, DistanceAlongRoute: 0},
		{RouteIndex: 1, StopIndex: 5, StopSeq: 1, DistanceAlongRoute: 555},
	}
	routeTrips := []timetable.Trip{
		{TripIndex: 0, RouteIndex: 0, FirstTripStopTime: 0, LastTripStopTime: 4},
		{TripIndex: 1, RouteIndex: 0, FirstTripStopTime: 4, LastTripStopTime: 8},
		{TripIndex: 2, RouteIndex: 1, FirstTripStopTime: 8, LastTripStopTime: 10},
	}
	tripStopTimes := []timetable.TripStopTime{
		// trip 0: departs A at 1000
		{TripIndex: 0, RouteStopSeq: 0, ArrivalEpoch: 1000, DepartureEpoch: 1000},
		{TripIndex: 0, RouteStopSeq: 1, ArrivalEpoch: 1100, DepartureEpoch: 1100},
		{TripIndex: 0, RouteStopSeq: 2, ArrivalEpoch: 1200, DepartureEpoch: 1200},
		{TripIndex: 0, RouteStopSeq: 3, ArrivalEpoch: 1300, DepartureEpoch: 1300},
		// trip 1: departs A at 4000
		{TripIndex: 1, RouteStopSeq: 0, ArrivalEpoch: 4000, DepartureEpoch: 4000},
		{TripIndex: 1, RouteStopSeq: 1, ArrivalEpoch: 4100, DepartureEpoch: 4100},
		{TripIndex: 1, RouteStopSeq: 2, ArrivalEpoch: 4200, DepartureEpoch: 4200},
		{TripIndex: 1, RouteStopSeq: 3, ArrivalEpoch: 4300, DepartureEpoch: 4300},
		// trip 2 (route 1): departs E at 1260
		{TripIndex: 2, RouteStopSeq: 0, ArrivalEpoch: 1260, DepartureEpoch: 1260},
		{TripIndex: 2, RouteStopSeq: 1, ArrivalEpoch: 1360, DepartureEpoch: 1360},
	}
	transferIndex := []uint32{0, 0, 0, 1, 1, 1} // stop 2 -> one transfer
	transfers := []timetable.Transfer{
		{From: 2, To: 4, TimeSeconds: 60},
	}
	stopMetadata := map[uint32]timetable.StopMetadata{
		0: {Name: "A"}, 1: {Name: "B"}, 2: {Name: "C"},
		3: {Name: "D"}, 4: {Name: "E"}, 5: {Name: "F"},
	}
	tripMetadata := map[uint32]timetable.TripMetadata{
		0: {RouteName: "Line 0", AgencyName: "Agency"},
		1: {RouteName: "Line 0", AgencyName: "Agency"},
		2: {RouteName: "Line 1", AgencyName: "Agency"},
	}
	return timetable.NewInMemory(stops, stopRoutes, routes, routeStops, routeTrips, tripStopTimes,
		transferIndex, transfers, stopMetadata, tripMetadata, map[uint32][]timetable.ShapeCoordinate{})
}

func newTestRouter(tt timetable.Timetable) *Router {
	return New(tt, nil, Options{MaxTransfers: 10, MaxTransferDelta: 0, MaxCandidateStopsEachSide: 4}, logging.Nop())
}

func TestRouteDirectTrip(t *testing.T) {
	tt := fourStopLine()
	r := newTestRouter(tt)

	req := api.Request{
		From:    api.Location{Lat: 0.0000, Lng: 0.0000},
		To:      api.Location{Lat: 0.0150, Lng: 0.0000},
		StartAt: time.Unix(500, 0),
	}
	resp, err := r.Route(context.Background(), req)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if resp.Status != api.StatusOK {
		t.Fatalf("expected StatusOK, got %v", resp.Status)
	}
	if len(resp.Itineraries) == 0 {
		t.Fatalf("expected at least one itinerary")
	}
	it := resp.Itineraries[0]
	if len(it.Legs) != 1 || it.Legs[0].Kind != api.LegTransit {
		t.Fatalf("expected a single transit leg, got %+v", it.Legs)
	}
	if it.Legs[0].Transit.RouteName != "Line 0" {
		t.Fatalf("expected Line 0, got %q", it.Legs[0].Transit.RouteName)
	}
	if !it.Legs[0].Transit.EndTime.Equal(time.Unix(1300, 0)) {
		t.Fatalf("expected arrival at 1300, got %v", it.Legs[0].Transit.EndTime)
	}
}

func TestRouteSkipsDepartedTrip(t *testing.T) {
	tt := fourStopLine()
	r := newTestRouter(tt)

	// Starting at 1150, trip 0 (departs A at 1000) can no longer be
	// boarded at A; only trip 1 (departs 4000) is reachable.
	req := api.Request{
		From:    api.Location{Lat: 0.0000, Lng: 0.0000},
		To:      api.Location{Lat: 0.0150, Lng: 0.0000},
		StartAt: time.Unix(1150, 0),
	}
	resp, err := r.Route(context.Background(), req)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(resp.Itineraries) == 0 {
		t.Fatalf("expected an itinerary")
	}
	it := resp.Itineraries[0]
	if !it.Legs[0].Transit.EndTime.Equal(time.Unix(4300, 0)) {
		t.Fatalf("expected arrival at 4300 (trip 1), got %v", it.Legs[0].Transit.EndTime)
	}
}

func TestRouteWithTransfer(t *testing.T) {
	tt := fourStopLine()
	r := newTestRouter(tt)

	req := api.Request{
		From:    api.Location{Lat: 0.0000, Lng: 0.0000},
		To:      api.Location{Lat: 0.0101, Lng: 0.0100},
		StartAt: time.Unix(500, 0),
	}
	resp, err := r.Route(context.Background(), req)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(resp.Itineraries) == 0 {
		t.Fatalf("expected an itinerary to F")
	}
	it := resp.Itineraries[0]
	var sawTransit, sawTransfer bool
	for _, leg := range it.Legs {
		switch leg.Kind {
		case api.LegTransit:
			sawTransit = true
		case api.LegTransfer:
			sawTransfer = true
		}
	}
	if !sawTransit || !sawTransfer {
		t.Fatalf("expected both a transit and a transfer leg, got %+v", it.Legs)
	}
}

func TestRouteNoPathReturnsNoRoute(t *testing.T) {
	tt := fourStopLine()
	r := newTestRouter(tt)

	// Far away from every stop: NearestStops returns nothing useful and
	// the query can never improve on an unreachable target.
	req := api.Request{
		From:    api.Location{Lat: 45.0, Lng: 45.0},
		To:      api.Location{Lat: -45.0, Lng: -45.0},
		StartAt: time.Unix(0, 0),
	}
	resp, err := r.Route(context.Background(), req)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if resp.Status != api.StatusNoRoute {
		t.Fatalf("expected StatusNoRoute, got %v with %d itineraries", resp.Status, len(resp.Itineraries))
	}
}

func TestRouteMaxTransfersOverridesDownwardOnly(t *testing.T) {
	tt := fourStopLine()
	r := New(tt, nil, Options{MaxTransfers: 10, MaxCandidateStopsEachSide: 4}, logging.Nop())

	zero := 0
	req := api.Request{
		From:         api.Location{Lat: 0.0000, Lng: 0.0000},
		To:           api.Location{Lat: 0.0150, Lng: 0.0000},
		StartAt:      time.Unix(500, 0),
		MaxTransfers: &zero,
	}
	resp, err := r.Route(context.Background(), req)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	// Round 0 only seeds the origin-adjacent stops by walking; no RAPTOR
	// round runs, so no target is reached by a transit leg and the
	// walk-only seeds are not returned as itineraries.
	if resp.Status != api.StatusNoRoute {
		t.Fatalf("expected StatusNoRoute with MaxTransfers=0, got %v", resp.Status)
	}
}

func TestRouteIsDeterministic(t *testing.T) {
	tt := fourStopLine()
	r := newTestRouter(tt)
	req := api.Request{
		From:    api.Location{Lat: 0.0000, Lng: 0.0000},
		To:      api.Location{Lat: 0.0150, Lng: 0.0000},
		StartAt: time.Unix(500, 0),
	}

	first, err := r.Route(context.Background(), req)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	second, err := r.Route(context.Background(), req)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(first.Itineraries) != len(second.Itineraries) {
		t.Fatalf("non-deterministic itinerary count: %d vs %d", len(first.Itineraries), len(second.Itineraries))
	}
	for i := range first.Itineraries {
		if !first.Itineraries[i].EndTime.Equal(second.Itineraries[i].EndTime) {
			t.Fatalf("non-deterministic end time at index %d: %v vs %v", i, first.Itineraries[i].EndTime, second.Itineraries[i].EndTime)
		}
	}
}

func TestEarliestTripFromBinarySearch(t *testing.T) {
	tt := fourStopLine()
	routeStop := timetable.RouteStop{RouteIndex: 0, StopIndex: 0, StopSeq: 0}

	trip, ok := earliestTripFrom(tt, routeStop, 0)
	if !ok || trip.TripIndex != 0 {
		t.Fatalf("expected trip 0 for notBefore=0, got %+v ok=%v", trip, ok)
	}

	trip, ok = earliestTripFrom(tt, routeStop, 1001)
	if !ok || trip.TripIndex != 1 {
		t.Fatalf("expected trip 1 for notBefore=1001, got %+v ok=%v", trip, ok)
	}

	_, ok = earliestTripFrom(tt, routeStop, 5000)
	if ok {
		t.Fatalf("expected no trip for notBefore past the last departure")
	}
}
