package builder

import "github.com/solari-transit/engine/internal/timetable"

// MergeImages concatenates column-wise, shifting every cross-referenced
// id by the running offset of its target column. Mechanical: every
// cross-reference is a dense index, so the invariants hold under
// offset-shift (Stage 4, §4.E).
func MergeImages(images ...*timetable.InMemory) (*timetable.InMemory, error) {
	if len(images) == 0 {
		return timetable.NewInMemory(nil, nil, nil, nil, nil, nil, nil, nil,
			map[uint32]timetable.StopMetadata{}, map[uint32]timetable.TripMetadata{}, map[uint32][]timetable.ShapeCoordinate{}), nil
	}
	if len(images) == 1 {
		return images[0], nil
	}

	var (
		stops         []timetable.Stop
		stopRoutes    []timetable.StopRoute
		routes        []timetable.Route
		routeStops    []timetable.RouteStop
		routeTrips    []timetable.Trip
		tripStopTimes []timetable.TripStopTime
		transferIndex []uint32
		transfers     []timetable.Transfer
		stopMeta      = make(map[uint32]timetable.StopMetadata)
		tripMeta      = make(map[uint32]timetable.TripMetadata)
		routeShapes   = make(map[uint32][]timetable.ShapeCoordinate)
	)

	var stopCursor, routeCursor, stopRouteCursor, routeStopCursor, routeTripCursor, tripStopTimeCursor, transferCursor uint32

	for _, img := range images {
		for _, s := range img.Stops() {
			meta, _ := img.StopMetadata(s)
			newIdx := stopCursor + s.StopIndex
			stops = append(stops, timetable.Stop{
				StopIndex:      newIdx,
				S2CellID:       s.S2CellID,
				FirstStopRoute: stopRouteCursor + s.FirstStopRoute,
			})
			stopMeta[newIdx] = meta
		}
		for _, sr := range img.StopRoutes() {
			stopRoutes = append(stopRoutes, timetable.StopRoute{
				RouteIndex: routeCursor + sr.RouteIndex,
				StopSeq:    sr.StopSeq,
			})
		}
		for _, r := range img.Routes() {
			newIdx := routeCursor + r.RouteIndex
			shape, _ := img.RouteShape(r)
			if shape != nil {
				routeShapes[newIdx] = shape
			}
			routes = append(routes, timetable.Route{
				RouteIndex:     newIdx,
				FirstRouteStop: routeStopCursor + r.FirstRouteStop,
				FirstRouteTrip: routeTripCursor + r.FirstRouteTrip,
			})
		}
		for _, rs := range img.RouteStops() {
			routeStops = append(routeStops, timetable.RouteStop{
				RouteIndex:         routeCursor + rs.RouteIndex,
				StopIndex:          stopCursor + rs.StopIndex,
				StopSeq:            rs.StopSeq,
				DistanceAlongRoute: rs.DistanceAlongRoute,
			})
		}
		for _, tr := range img.RouteTrips() {
			newIdx := routeTripCursor + tr.TripIndex
			meta, _ := img.TripMetadata(tr)
			tripMeta[newIdx] = meta
			routeTrips = append(routeTrips, timetable.Trip{
				TripIndex:         newIdx,
				RouteIndex:        routeCursor + tr.RouteIndex,
				FirstTripStopTime: tripStopTimeCursor + tr.FirstTripStopTime,
				LastTripStopTime:  tripStopTimeCursor + tr.LastTripStopTime,
			})
		}
		for _, tst := range img.TripStopTimes() {
			tripStopTimes = append(tripStopTimes, timetable.TripStopTime{
				TripIndex:      routeTripCursor + tst.TripIndex,
				RouteStopSeq:   tst.RouteStopSeq,
				ArrivalEpoch:   tst.ArrivalEpoch,
				DepartureEpoch: tst.DepartureEpoch,
			})
		}
		for i, ti := range img.TransferIndex() {
			_ = i
			transferIndex = append(transferIndex, transferCursor+ti)
		}
		for _, t := range img.Transfers() {
			transfers = append(transfers, timetable.Transfer{
				From:        stopCursor + t.From,
				To:          stopCursor + t.To,
				TimeSeconds: t.TimeSeconds,
			})
		}

		stopCursor += uint32(len(img.Stops()))
		routeCursor += uint32(len(img.Routes()))
		stopRouteCursor += uint32(len(img.StopRoutes()))
		routeStopCursor += uint32(len(img.RouteStops()))
		routeTripCursor += uint32(len(img.RouteTrips()))
		tripStopTimeCursor += uint32(len(img.TripStopTimes()))
		transferCursor += uint32(len(img.Transfers()))
	}

	return timetable.NewInMemory(
		stops, stopRoutes, routes, routeStops, routeTrips, tripStopTimes,
		transferIndex, transfers, stopMeta, tripMeta, routeShapes,
	), nil
}
