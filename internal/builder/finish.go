package builder

import (
	"sort"

	"github.com/solari-transit/engine/internal/metrics"
	"github.com/solari-transit/engine/internal/timetable"
)

// Finish runs Stage 3: sorts routes and trips deterministically and
// emits the packed columns, tracking the first_* running offsets.
// Grounded on process_routes_trips/process_trip/process_stops.
func (b *Builder) Finish() (*timetable.InMemory, error) {
	routeOrder := b.sortedRouteOrder()

	var (
		routes        []timetable.Route
		routeStops    []timetable.RouteStop
		routeTrips    []timetable.Trip
		tripStopTimes []timetable.TripStopTime
		tripMeta      = make(map[uint32]timetable.TripMetadata)
		routeShapes   = make(map[uint32][]timetable.ShapeCoordinate)
	)

	// stopRouteMembership[stopLocalID] accumulates (routeIndex, stopSeq)
	// in route-index order, emitted as Stage 3 requires.
	stopRouteMembership := make([][]timetable.StopRoute, len(b.stopIDs))

	for newRouteIdx, oldRouteIdx := range routeOrder {
		staged := b.routes[oldRouteIdx]
		routeIdx := uint32(newRouteIdx)

		firstRouteStop := uint32(len(routeStops))
		for seq, stopID := range staged.stopSeq {
			dist := float32(0)
			if seq < len(staged.shapeDistances) {
				dist = staged.shapeDistances[seq]
			}
			routeStops = append(routeStops, timetable.RouteStop{
				RouteIndex:         routeIdx,
				StopIndex:          stopID,
				StopSeq:            uint32(seq),
				DistanceAlongRoute: dist,
			})
			stopRouteMembership[stopID] = append(stopRouteMembership[stopID], timetable.StopRoute{
				RouteIndex: routeIdx,
				StopSeq:    uint32(seq),
			})
		}

		sort.Slice(staged.trips, func(i, j int) bool {
			return staged.trips[i].departureAtFirstStop < staged.trips[j].departureAtFirstStop
		})

		firstRouteTrip := uint32(len(routeTrips))
		for _, trip := range staged.trips {
			tripIdx := uint32(len(routeTrips))
			firstStopTime := uint32(len(tripStopTimes))
			for _, st := range trip.stopTimes {
				st.TripIndex = tripIdx
				tripStopTimes = append(tripStopTimes, st)
			}
			lastStopTime := uint32(len(tripStopTimes))
			routeTrips = append(routeTrips, timetable.Trip{
				TripIndex:         tripIdx,
				RouteIndex:        routeIdx,
				FirstTripStopTime: firstStopTime,
				LastTripStopTime:  lastStopTime,
			})
			tripMeta[tripIdx] = timetable.TripMetadata{
				Headsign:   trip.headsign,
				RouteName:  trip.routeName,
				AgencyName: trip.agencyName,
			}
			metrics.FeedRecordsIngested.WithLabelValues("trip_stop_time").Add(float64(len(trip.stopTimes)))
		}

		if shape := b.routeShape(staged); shape != nil {
			routeShapes[routeIdx] = shape
		}

		routes = append(routes, timetable.Route{
			RouteIndex:     routeIdx,
			FirstRouteStop: firstRouteStop,
			FirstRouteTrip: firstRouteTrip,
		})
	}

	stops := make([]timetable.Stop, len(b.stopIDs))
	stopMeta := make(map[uint32]timetable.StopMetadata, len(b.stopIDs))
	var stopRoutesFlat []timetable.StopRoute
	for i := range b.stopIDs {
		firstStopRoute := uint32(len(stopRoutesFlat))
		stopRoutesFlat = append(stopRoutesFlat, stopRouteMembership[i]...)
		stops[i] = timetable.Stop{
			StopIndex:      uint32(i),
			S2CellID:       timetable.CellIDForCoordinate(b.stopLat[i], b.stopLng[i]),
			FirstStopRoute: firstStopRoute,
		}
		stopMeta[uint32(i)] = b.stopMeta[i]
	}

	// Transfers are populated by internal/transfermatrix after Finish;
	// an empty index/transfers pair is a valid starting point (every
	// stop's transfer range is zero-length until transfermatrix fills
	// it in via InMemory.WithTransfers).
	transferIndex := make([]uint32, len(stops))

	return timetable.NewInMemory(
		stops, stopRoutesFlat, routes, routeStops, routeTrips, tripStopTimes,
		transferIndex, nil, stopMeta, tripMeta, routeShapes,
	), nil
}

// routeShape resolves a staged route's shape points, if its trips'
// GTFS shape_id was recorded; the builder only carries shape points
// through when available, used later for reconstruction clipping.
func (b *Builder) routeShape(staged *stagedRoute) []timetable.ShapeCoordinate {
	if staged.shapeID == "" {
		return nil
	}
	points, ok := b.shapes[staged.shapeID]
	if !ok {
		return nil
	}
	out := make([]timetable.ShapeCoordinate, len(points))
	for i, p := range points {
		out[i] = timetable.ShapeCoordinate{
			Lat:                p.Lat,
			Lng:                p.Lng,
			DistanceAlongShape: float32(p.ShapeDistTraveled),
		}
	}
	return out
}
