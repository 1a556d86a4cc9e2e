package raptor

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/solari-transit/engine/internal/api"
	"github.com/solari-transit/engine/internal/geomath"
	"github.com/solari-transit/engine/internal/metrics"
	"github.com/solari-transit/engine/internal/polyline"
	"github.com/solari-transit/engine/internal/timetable"
	"github.com/solari-transit/engine/internal/transfergraph"
	"github.com/solari-transit/engine/internal/xerrors"
)

// defaultFakeWalkSpeedSecondsPerMeter approximates a pedestrian's pace
// for the last-mile cost from a snapped stop to the query's exact
// origin or destination coordinate. Grounded on
// FAKE_WALK_SPEED_SECONDS_PER_METER.
const defaultFakeWalkSpeedSecondsPerMeter = 2.0

// Options configures a Router. MaxTransfers and MaxTransferDelta come
// from the server's own config (internal/config.ServeConfig), not from
// individual requests: a request may tighten MaxTransfers but never
// loosen it past the server-wide ceiling. A zero or negative
// MaxTransfers passed to New is defaulted to effectively unbounded; a
// per-request override of exactly zero is taken literally (zero
// additional rounds beyond the walk-only seed).
type Options struct {
	MaxTransfers              int
	MaxTransferDelta          int
	MaxCandidateStopsEachSide int
	FakeWalkSpeedSecPerM      float64
}

// Router answers routing queries over a fixed timetable. One Router
// serves many concurrent Route calls; all per-query mutable state lives
// in RouterContext, built fresh for each call.
type Router struct {
	tt        timetable.Timetable
	transfers *transfergraph.Searcher
	opts      Options
	log       *zap.SugaredLogger
}

// New builds a Router. transfers may be nil, in which case transfer legs
// in the response carry no shape (the itinerary is still computed
// correctly: transfer durations come from timetable.Transfers, built
// ahead of time by internal/transfermatrix, not from the live graph).
func New(tt timetable.Timetable, transfers *transfergraph.Searcher, opts Options, log *zap.SugaredLogger) *Router {
	if opts.MaxCandidateStopsEachSide <= 0 {
		opts.MaxCandidateStopsEachSide = 4
	}
	if opts.FakeWalkSpeedSecPerM <= 0 {
		opts.FakeWalkSpeedSecPerM = defaultFakeWalkSpeedSecondsPerMeter
	}
	if opts.MaxTransfers <= 0 {
		// "Unbounded" for the server-wide ceiling, not a request-level
		// concept: a request explicitly asking for MaxTransfers: 0 still
		// means exactly zero, so only the ceiling itself gets a default.
		opts.MaxTransfers = 1 << 30
	}
	return &Router{tt: tt, transfers: transfers, opts: opts, log: log}
}

// Route answers one door-to-door query. Grounded verbatim on
// Router::route: snap both ends to nearby stops, run RAPTOR rounds, then
// pick and unwind the Pareto-optimal itineraries.
func (r *Router) Route(ctx context.Context, req api.Request) (api.Response, error) {
	queryStart := time.Now()
	defer func() { metrics.RouteQueryLatency.Observe(time.Since(queryStart).Seconds()) }()

	startStops := r.tt.NearestStops(req.From.Lat, req.From.Lng, r.opts.MaxCandidateStopsEachSide)
	targetStops := r.tt.NearestStops(req.To.Lat, req.To.Lng, r.opts.MaxCandidateStopsEachSide)
	if len(startStops) == 0 || len(targetStops) == 0 {
		return api.Response{Status: api.StatusNoRoute}, nil
	}

	targets := make([]targetCost, len(targetStops))
	for i, sd := range targetStops {
		targets[i] = targetCost{
			stopID: sd.Stop.StopIndex,
			cost:   uint32(r.opts.FakeWalkSpeedSecPerM * sd.DistanceMeters),
		}
	}

	rc := newRouterContext(r.tt, targets)
	startEpoch := uint32(req.StartAt.Unix())
	r.init(rc, startEpoch, req.From.Lat, req.From.Lng, startStops)

	maxTransfers := r.opts.MaxTransfers
	if req.MaxTransfers != nil && *req.MaxTransfers < maxTransfers {
		maxTransfers = *req.MaxTransfers
	}
	if err := r.runRounds(ctx, rc, maxTransfers); err != nil {
		return api.Response{}, err
	}
	metrics.RoundsExecuted.Observe(float64(rc.round))

	chosen := r.pickBestItineraries(rc, targets)
	if len(chosen) == 0 {
		return api.Response{Status: api.StatusNoRoute}, nil
	}

	itineraries := make([]api.Itinerary, 0, len(chosen))
	for _, it := range chosen {
		itin, err := r.unwindItinerary(rc, it, req.StartAt, targets, req.From, req.To)
		if err != nil {
			return api.Response{}, err
		}
		itineraries = append(itineraries, itin)
	}

	return api.Response{Status: api.StatusOK, Itineraries: itineraries}, nil
}

// init seeds round 0: every candidate start stop is reachable by
// walking straight from the origin coordinate. Grounded on
// RouterContext::init.
func (r *Router) init(rc *RouterContext, startEpoch uint32, startLat, startLng float64, starts []timetable.StopDistance) {
	from := rawLocation(startLat, startLng)
	for _, sd := range starts {
		cost := uint32(r.opts.FakeWalkSpeedSecPerM * sd.DistanceMeters)
		rc.maybeUpdateArrivalTimeAndRoute(0, from, startEpoch, stopLocation(sd.Stop), startEpoch+cost, nil, nil, 0)
	}
}

// runRounds drives the round loop until a round produces no new marks
// or the transfer ceiling is reached. Grounded on RouterContext::route,
// including the bound-shrinking-by-delta step once a target is proven
// reachable.
func (r *Router) runRounds(ctx context.Context, rc *RouterContext, maxTransfers int) error {
	rc.round = 0
	roundBound := maxTransfers
	marked := true
	for marked {
		if err := ctx.Err(); err != nil {
			return err
		}
		if int(rc.round) >= roundBound {
			break
		}
		marked = r.doRound(rc)
		if _, ok := rc.bestTimeToTarget(); ok && r.opts.MaxTransferDelta > 0 {
			candidate := int(rc.round) + r.opts.MaxTransferDelta
			if candidate < roundBound {
				roundBound = candidate
			}
		}
		rc.round++
	}
	return nil
}

// doRound runs one RAPTOR round: collect the earliest boardable trip per
// marked route, scan each marked route forward, then relax transfers
// from every stop marked during the scan. Grounded on
// RouterContext::do_round.
func (r *Router) doRound(rc *RouterContext) bool {
	for i := range rc.markedRoutes {
		rc.markedRoutes[i] = timetable.TripStopTime{TripIndex: timetable.MarkedTripStopTime}
	}
	for stopID := range rc.markedStops {
		if !rc.markedStops[stopID] {
			continue
		}
		best := rc.bestGlobal[stopID]
		exploreRoutesForMarkedStop(rc.tt, rc.markedRoutes, uint32(stopID), best.finalTime)
	}
	for i := range rc.markedStops {
		rc.markedStops[i] = false
	}

	markedStopsCount := 0
	for routeID, departure := range rc.markedRoutes {
		if departure.TripIndex == timetable.MarkedTripStopTime {
			continue
		}
		markedStopsCount += r.scanRoute(rc, uint32(routeID), departure)
	}

	markedTransfersCount := 0
	markedSnapshot := append([]bool(nil), rc.markedStops...)
	for stopID, marked := range markedSnapshot {
		if !marked {
			continue
		}
		stop := rc.tt.Stop(uint32(stopID))
		for _, transfer := range rc.tt.TransfersFrom(uint32(stopID)) {
			prev := rc.bestGlobal[stopID]
			if prev == nil {
				r.log.Errorw("no best time for transfer source stop", "stop", stopID)
				continue
			}
			// Don't transfer twice in a row (the origin's access walk
			// also has route == nil, so a transfer can never
			// immediately follow it either).
			if rc.stepLog[prev.lastStep].route == nil {
				continue
			}
			departureTime := prev.finalTime
			arrival := departureTime + transfer.TimeSeconds
			if rc.maybeUpdateArrivalTimeAndRoute(rc.round, stopLocation(stop), departureTime, stopLocation(rc.tt.Stop(transfer.To)), arrival, nil, nil, prev.lastStep) {
				markedTransfersCount++
			}
		}
	}

	rc.bestPerRound = append(rc.bestPerRound, make([]*itineraryRef, len(rc.bestGlobal)))
	return markedStopsCount > 0 || markedTransfersCount > 0
}

// scanRoute walks routeID's stops in order, riding the trip boarded at
// departure's boarding stop and improving every downstream stop, hopping
// to a strictly earlier trip whenever one becomes catchable mid-scan.
// Grounded on the route-scanning loop inside do_round.
func (r *Router) scanRoute(rc *RouterContext, routeID uint32, departure timetable.TripStopTime) int {
	boardingTrip := rc.tt.RouteTrips()[departure.TripIndex]
	boardingRouteStops := routeStopsFor(rc.tt, boardingTrip.RouteIndex)
	boardingRouteStop := boardingRouteStops[departure.RouteStopSeq]

	improved := 0
	var currentTrip *timetable.Trip
	var currentTripStart timetable.RouteStop
	foundFirstStop := false

	for _, routeStop := range routeStopsFor(rc.tt, routeID) {
		if routeStop.StopIndex == boardingRouteStop.StopIndex {
			foundFirstStop = true
		}
		if !foundFirstStop {
			continue
		}

		if currentTrip != nil {
			tripTimes := tripStopTimesFor(rc.tt, *currentTrip)
			departureTime := tripTimes[boardingRouteStop.StopSeq].DepartureEpoch
			arrivalTime := tripTimes[routeStop.StopSeq].ArrivalEpoch

			prev := rc.bestGlobal[boardingRouteStop.StopIndex]
			if prev == nil {
				r.log.Errorw("no best time for boarding stop", "stop", boardingRouteStop.StopIndex)
				continue
			}

			route := rc.tt.Route(routeID)
			if rc.maybeUpdateArrivalTimeAndRoute(
				rc.round,
				stopLocation(rc.tt.Stop(currentTripStart.StopIndex)),
				departureTime,
				stopLocation(rc.tt.Stop(routeStop.StopIndex)),
				arrivalTime,
				&route,
				currentTrip,
				prev.lastStep,
			) {
				improved++

				notBefore := rc.bestGlobal[boardingRouteStop.StopIndex].finalTime
				if hop, ok := earliestTripFrom(rc.tt, boardingRouteStop, notBefore); ok {
					hopTimes := tripStopTimesFor(rc.tt, hop)
					if hopTimes[routeStop.StopSeq].ArrivalEpoch < notBefore {
						h := hop
						currentTrip = &h
					}
				}
			}
		}

		if currentTrip == nil {
			if trip, ok := earliestTripFrom(rc.tt, routeStop, departure.ArrivalEpoch); ok {
				t := trip
				currentTrip = &t
				currentTripStart = routeStop
			}
		}
	}
	return improved
}

// earliestTripFrom binary-searches routeStop's route for the first trip
// departing at or after notBefore. Grounded on
// RouterContext::earliest_trip_from.
func earliestTripFrom(tt timetable.Timetable, routeStop timetable.RouteStop, notBefore uint32) (timetable.Trip, bool) {
	trips := routeTripsFor(tt, routeStop.RouteIndex)
	position := sort.Search(len(trips), func(i int) bool {
		times := tripStopTimesFor(tt, trips[i])
		return times[routeStop.StopSeq].DepartureEpoch >= notBefore
	})
	if position >= len(trips) {
		return timetable.Trip{}, false
	}
	return trips[position], true
}

// exploreRoutesForMarkedStop records, for every route serving
// markedStop, the earliest trip departing at or after notBefore that
// improves on whatever this round has already recorded for that route
// (scanning forward for a first-touch, backward for a re-touch).
// Grounded verbatim on RouterContext::explore_routes_for_marked_stop.
func exploreRoutesForMarkedStop(tt timetable.Timetable, markedRoutes []timetable.TripStopTime, markedStop uint32, notBefore uint32) {
	for _, sr := range stopRoutesFor(tt, markedStop) {
		routeID := sr.RouteIndex
		trips := routeTripsFor(tt, routeID)
		route := tt.Route(routeID)

		if markedRoutes[routeID].TripIndex == timetable.MarkedTripStopTime {
			for _, trip := range trips {
				times := tripStopTimesFor(tt, trip)
				tst := times[sr.StopSeq]
				if tst.DepartureEpoch < notBefore {
					continue
				}
				markedRoutes[routeID] = tst
				break
			}
		} else {
			localIndex := markedRoutes[routeID].TripIndex - route.FirstRouteTrip
			for i := int(localIndex) - 1; i >= 0; i-- {
				times := tripStopTimesFor(tt, trips[i])
				tst := times[sr.StopSeq]
				if tst.DepartureEpoch < notBefore {
					break
				}
				if tst.DepartureEpoch < markedRoutes[routeID].DepartureEpoch {
					markedRoutes[routeID] = tst
				}
			}
		}
	}
}

// costScalingFinalTransfer scales only a trailing transfer leg's
// duration by scalar; a trailing transit leg's arrival is used as-is.
// Grounded verbatim on cost_scaling_final_transfer.
func costScalingFinalTransfer(rc *RouterContext, it *itineraryRef, scalar float64) uint32 {
	last := rc.stepLog[it.lastStep]
	if last.trip != nil {
		return last.arrival
	}
	duration := float64(last.arrival-last.departure) * scalar
	return last.departure + uint32(duration)
}

// pickBestItineraries collects, for every (round, walking-aggressiveness
// scalar) pair, the single best-scoring itinerary among all target
// candidates, deduplicated by final step. Grounded verbatim on
// pick_best_itineraries.
func (r *Router) pickBestItineraries(rc *RouterContext, targets []targetCost) []*itineraryRef {
	type key struct {
		lastStep  int
		finalTime uint32
	}
	type found struct {
		round int
		it    *itineraryRef
	}
	seen := make(map[key]found)
	walkingScalars := [3]float64{0.5, 1.0, 2.0}

	for round := 0; round <= int(rc.round); round++ {
		if round >= len(rc.bestPerRound) {
			break
		}
		for _, scalar := range walkingScalars {
			var best *itineraryRef
			var bestCost float64
			for _, t := range targets {
				it := rc.bestPerRound[round][t.stopID]
				// A target reached only by the origin's access walk
				// (a seed step, previousStep 0) has no leg to report.
				if it == nil || rc.stepLog[it.lastStep].previousStep == 0 {
					continue
				}
				cost := float64(costScalingFinalTransfer(rc, it, scalar)) + float64(t.cost)*scalar
				if best == nil || cost < bestCost {
					best = it
					bestCost = cost
				}
			}
			if best != nil {
				k := key{best.lastStep, best.finalTime}
				if _, ok := seen[k]; !ok {
					seen[k] = found{round: round, it: best}
				}
			}
		}
	}

	out := make([]found, 0, len(seen))
	for _, f := range seen {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].round != out[j].round {
			return out[i].round < out[j].round
		}
		if out[i].it.finalTime != out[j].it.finalTime {
			return out[i].it.finalTime < out[j].it.finalTime
		}
		return out[i].it.lastStep < out[j].it.lastStep
	})

	result := make([]*itineraryRef, len(out))
	for i, f := range out {
		result[i] = f.it
	}
	return result
}

// unwindItinerary walks stepLog backward from it.lastStep to the
// synthetic seed, building legs in forward order. The very first
// recorded step (the walk from the raw origin to the first boarded
// stop) is never emitted as its own leg, matching
// Router::unwind_itinerary: only steps whose previousStep is non-zero
// are walked, so the access walk is absorbed into the itinerary's
// StartTime/StartLocation instead.
func (r *Router) unwindItinerary(rc *RouterContext, it *itineraryRef, startAt time.Time, targets []targetCost, from, to api.Location) (api.Itinerary, error) {
	cursor := it.lastStep
	last := rc.stepLog[cursor]
	if !last.to.isStop {
		return api.Itinerary{}, xerrors.New(xerrors.InconsistentImage, "final step does not end at a stop")
	}

	lastMileCost, err := findTargetCost(targets, last.to.stop.StopIndex)
	if err != nil {
		return api.Itinerary{}, err
	}
	endTime := epochToTime(last.arrival + lastMileCost)

	var reversedLegs []api.Leg
	for rc.stepLog[cursor].previousStep != 0 {
		step := rc.stepLog[cursor]
		if !step.to.isStop || !step.from.isStop {
			return api.Itinerary{}, xerrors.New(xerrors.InconsistentImage, "internal step endpoints are not stops")
		}

		leg, err := r.stepToLeg(rc, step)
		if err != nil {
			return api.Itinerary{}, err
		}
		reversedLegs = append(reversedLegs, leg)
		cursor = step.previousStep
	}

	legs := make([]api.Leg, len(reversedLegs))
	for i, leg := range reversedLegs {
		legs[len(reversedLegs)-1-i] = leg
	}

	return api.Itinerary{
		StartTime:     startAt,
		EndTime:       endTime,
		StartLocation: from,
		EndLocation:   to,
		Legs:          legs,
	}, nil
}

func findTargetCost(targets []targetCost, stopID uint32) (uint32, error) {
	for _, t := range targets {
		if t.stopID == stopID {
			return t.cost, nil
		}
	}
	return 0, xerrors.New(xerrors.InconsistentImage, "target cost not found for final stop")
}

func (r *Router) stepToLeg(rc *RouterContext, step step) (api.Leg, error) {
	fromStop := step.from.stop
	toStop := step.to.stop
	fromMeta, err := rc.tt.StopMetadata(fromStop)
	if err != nil {
		return api.Leg{}, err
	}
	toMeta, err := rc.tt.StopMetadata(toStop)
	if err != nil {
		return api.Leg{}, err
	}
	fromLat, fromLng := step.from.coordinate()
	toLat, toLng := step.to.coordinate()
	fromLoc := api.Location{Lat: fromLat, Lng: fromLng, Stop: fromMeta.Name}
	toLoc := api.Location{Lat: toLat, Lng: toLng, Stop: toMeta.Name}

	if step.route == nil {
		shape := r.transferShape(fromLat, fromLng, toLat, toLng)
		return api.Leg{
			Kind: api.LegTransfer,
			Transfer: &api.TransferLeg{
				StartTime:     epochToTime(step.departure),
				EndTime:       epochToTime(step.arrival),
				StartLocation: fromLoc,
				EndLocation:   toLoc,
				Shape:         shape,
			},
		}, nil
	}

	tripMeta, err := rc.tt.TripMetadata(*step.trip)
	if err != nil {
		return api.Leg{}, err
	}
	shape := r.clipShape(rc, step)
	return api.Leg{
		Kind: api.LegTransit,
		Transit: &api.TransitLeg{
			StartTime:     epochToTime(step.departure),
			EndTime:       epochToTime(step.arrival),
			StartLocation: fromLoc,
			EndLocation:   toLoc,
			RouteName:     tripMeta.RouteName,
			AgencyName:    tripMeta.AgencyName,
			Shape:         shape,
		},
	}, nil
}

func (r *Router) transferShape(fromLat, fromLng, toLat, toLng float64) string {
	if r.transfers == nil {
		return ""
	}
	path, err := r.transfers.TransferPath(context.Background(), geomath.LatLng{Lat: fromLat, Lng: fromLng}, geomath.LatLng{Lat: toLat, Lng: toLng})
	if err != nil {
		r.log.Warnw("transfer path lookup failed", "error", err)
		return ""
	}
	return polyline.Encode(path.Coordinates)
}

// clipShape extracts the portion of a route's published shape between
// the boarding and alighting stops' distance-along-route, falling back
// to nearest-point-on-polyline splicing, and finally to no shape at all.
// Grounded verbatim on Router::clip_shape / Router::closest_point.
func (r *Router) clipShape(rc *RouterContext, step step) string {
	route := *step.route
	shape, err := rc.tt.RouteShape(route)
	if err != nil || len(shape) == 0 {
		return ""
	}

	fromDist, ok := distanceAlongRouteFor(rc.tt, route, step.from.stop.StopIndex)
	if !ok {
		return ""
	}
	toDist, ok := distanceAlongRouteFor(rc.tt, route, step.to.stop.StopIndex)
	if !ok {
		return ""
	}

	var coords []polyline.Coordinate
	skipping := true
	for _, c := range shape {
		d := float64(c.DistanceAlongShape)
		if skipping {
			if math.IsNaN(d) || d < float64(fromDist) {
				continue
			}
			skipping = false
		}
		if !math.IsNaN(d) && d >= float64(toDist) {
			break
		}
		coords = append(coords, polyline.Coordinate{Lat: c.Lat, Lng: c.Lng})
	}

	if len(coords) == 0 {
		fromLat, fromLng := step.from.coordinate()
		toLat, toLng := step.to.coordinate()
		startIdx, startPt, startOK := closestPointOnPolyline(shape, fromLat, fromLng)
		endIdx, endPt, endOK := closestPointOnPolyline(shape, toLat, toLng)
		if !startOK || !endOK || endIdx < startIdx {
			return ""
		}
		coords = append(coords, startPt)
		for i := startIdx + 1; i <= endIdx; i++ {
			coords = append(coords, polyline.Coordinate{Lat: shape[i].Lat, Lng: shape[i].Lng})
		}
		coords = append(coords, endPt)
	}

	return polyline.Encode(coords)
}

func distanceAlongRouteFor(tt timetable.Timetable, route timetable.Route, stopID uint32) (float32, bool) {
	for _, rs := range routeStopsFor(tt, route.RouteIndex) {
		if rs.StopIndex == stopID {
			return rs.DistanceAlongRoute, true
		}
	}
	return 0, false
}

// closestPointOnPolyline finds the shape segment nearest (lat,lng) and
// returns its index and the projected point, grounded on
// Router::closest_point.
func closestPointOnPolyline(shape []timetable.ShapeCoordinate, lat, lng float64) (int, polyline.Coordinate, bool) {
	if len(shape) < 2 {
		return 0, polyline.Coordinate{}, false
	}
	bestIdx := -1
	var bestPt polyline.Coordinate
	bestDist := -1.0
	for i := 0; i+1 < len(shape); i++ {
		pt, dist := closestPointOnSegment(shape[i].Lat, shape[i].Lng, shape[i+1].Lat, shape[i+1].Lng, lat, lng)
		if bestIdx == -1 || dist < bestDist {
			bestIdx = i
			bestPt = pt
			bestDist = dist
		}
	}
	if bestIdx == -1 {
		return 0, polyline.Coordinate{}, false
	}
	return bestIdx, bestPt, true
}

func closestPointOnSegment(lat1, lng1, lat2, lng2, lat, lng float64) (polyline.Coordinate, float64) {
	dx, dy := lng2-lng1, lat2-lat1
	if dx == 0 && dy == 0 {
		return polyline.Coordinate{Lat: lat1, Lng: lng1}, geomath.GreatCircleMeters(lat, lng, lat1, lng1)
	}
	t := ((lng-lng1)*dx + (lat-lat1)*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	projLat := lat1 + t*dy
	projLng := lng1 + t*dx
	return polyline.Coordinate{Lat: projLat, Lng: projLng}, geomath.GreatCircleMeters(lat, lng, projLat, projLng)
}

func epochToTime(epoch uint32) time.Time {
	return time.Unix(int64(epoch), 0).UTC()
}
