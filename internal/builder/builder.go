// Package builder ingests parsed feed records, deduplicates trip
// patterns into RAPTOR routes, expands trips over their service
// calendar, and emits a columnar timetable.InMemory image. Grounded on
// in_memory.rs's InMemoryTimetableBuilder: lookup_stop_data,
// lookup_route_data, preprocess_gtfs, process_routes_trips, process_trip,
// process_stops.
package builder

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/solari-transit/engine/internal/feed"
	"github.com/solari-transit/engine/internal/metrics"
	"github.com/solari-transit/engine/internal/timetable"
	"github.com/solari-transit/engine/internal/xerrors"
)

// Options tunes the builder's behaviour.
type Options struct {
	HorizonDays       int     // typically 8-15, default 14
	FakeWalkSpeedSecPerM float64 // unused by the builder itself; see transfermatrix
	EnforceInvariants bool
}

// DefaultOptions mirrors the reference implementation's defaults.
var DefaultOptions = Options{HorizonDays: 14, FakeWalkSpeedSecPerM: 2.0}

// stagedRoute accumulates one pattern's trips before Stage 3 sorts and
// emits them.
type stagedRoute struct {
	routeID        string // GTFS route id, for metadata only
	shapeID        string // GTFS shape id of the first trip seen on this pattern
	stopSeq        []uint32
	shapeDistances []float32 // per-stop distance_along_route, metres
	trips          []stagedTripInstance
}

type stagedTripInstance struct {
	tripID        string // GTFS trip id, for metadata only
	headsign      string
	routeName     string
	agencyName    string
	stopTimes     []timetable.TripStopTime // RouteStopSeq set, TripIndex filled in later
	departureAtFirstStop uint32
}

// Builder accumulates one feed's patterns and trip instances. It is not
// safe for concurrent use; BuildAll fans out one Builder per feed and
// merges the resulting images single-threadedly, per §5's "drop the
// locks" note — no synchronization primitive appears anywhere in this
// package.
type Builder struct {
	log  *zap.SugaredLogger
	opts Options

	stopIDs    []string          // encounter-order local stop id -> feed stop id
	stopIndex  map[string]uint32 // feed stop id -> local stop id
	stopLat    []float64
	stopLng    []float64
	stopMeta   []timetable.StopMetadata

	patternIndex map[patternKey]uint32
	routes       []*stagedRoute

	shapes map[string][]feed.ShapePoint
}

// New creates an empty builder for one feed.
func New(log *zap.SugaredLogger, opts Options) *Builder {
	if opts.HorizonDays == 0 {
		opts = DefaultOptions
	}
	return &Builder{
		log:          log,
		opts:         opts,
		stopIndex:    make(map[string]uint32),
		patternIndex: make(map[patternKey]uint32),
	}
}

func (b *Builder) lookupStop(s feed.Stop) uint32 {
	if id, ok := b.stopIndex[s.StopID]; ok {
		return id
	}
	id := uint32(len(b.stopIDs))
	b.stopIndex[s.StopID] = id
	b.stopIDs = append(b.stopIDs, s.StopID)
	b.stopLat = append(b.stopLat, s.Lat)
	b.stopLng = append(b.stopLng, s.Lng)
	b.stopMeta = append(b.stopMeta, timetable.StopMetadata{
		Name:         s.Name,
		PlatformCode: s.PlatformCode,
		LocationType: s.LocationType,
	})
	return id
}

func (b *Builder) lookupRoute(key patternKey, routeID, shapeID string, stopSeq []uint32, shapeDistances []float32) uint32 {
	if id, ok := b.patternIndex[key]; ok {
		return id
	}
	id := uint32(len(b.routes))
	b.patternIndex[key] = id
	b.routes = append(b.routes, &stagedRoute{
		routeID:        routeID,
		shapeID:        shapeID,
		stopSeq:        stopSeq,
		shapeDistances: shapeDistances,
	})
	return id
}

// Ingest processes one feed source end to end: Stage 1 (pattern
// discovery) and Stage 2 (service-day expansion). Call Finish afterward
// to run Stage 3 and obtain the resulting image.
func (b *Builder) Ingest(src feed.Source, anchor time.Time) error {
	if len(src.Agencies) == 0 {
		return xerrors.New(xerrors.InvalidFeed, "feed has no agencies")
	}
	agencyTZ := make(map[string]string, len(src.Agencies))
	agencyName := make(map[string]string, len(src.Agencies))
	for _, a := range src.Agencies {
		if a.Timezone == "" {
			return xerrors.New(xerrors.InvalidFeed, "agency missing timezone: "+a.AgencyID)
		}
		agencyTZ[a.AgencyID] = a.Timezone
		agencyName[a.AgencyID] = a.Name
	}
	routeByID := make(map[string]feed.Route, len(src.Routes))
	for _, r := range src.Routes {
		routeByID[r.RouteID] = r
	}
	stopByID := make(map[string]feed.Stop, len(src.Stops))
	for _, s := range src.Stops {
		stopByID[s.StopID] = s
	}
	b.shapes = src.Shapes

	for _, trip := range src.Trips {
		stopTimes := src.StopTimes[trip.TripID]
		if len(stopTimes) < 2 {
			continue
		}
		route, ok := routeByID[trip.RouteID]
		if !ok {
			continue
		}
		tz, ok := agencyTZ[route.AgencyID]
		if !ok {
			return xerrors.New(xerrors.InvalidFeed, "trip references unknown agency: "+trip.TripID)
		}

		stopSeq := make([]uint32, len(stopTimes))
		shapeDist := make([]float32, len(stopTimes))
		for i, st := range stopTimes {
			feedStop, ok := stopByID[st.StopID]
			if !ok {
				return xerrors.New(xerrors.InvalidFeed, "stop_time references unknown stop: "+st.StopID)
			}
			stopSeq[i] = b.lookupStop(feedStop)
			shapeDist[i] = float32(st.ShapeDistTraveled)
		}

		key := makePatternKey(trip.RouteID, stopSeq)
		routeIdx := b.lookupRoute(key, trip.RouteID, trip.ShapeID, stopSeq, shapeDist)
		staged := b.routes[routeIdx]

		dayOffsets := src.Calendar.TripDays(trip.ServiceID, anchor, b.opts.HorizonDays)
		for _, offset := range dayOffsets {
			dayStart, ok := serviceDayStart(anchor, offset, tz)
			if !ok {
				b.log.Warnw("skipping trip instance: non-existent local service day",
					"trip", trip.TripID, "offset", offset)
				continue
			}
			instance := stagedTripInstance{
				tripID:     trip.TripID,
				headsign:   trip.Headsign,
				routeName:  firstNonEmpty(route.ShortName, route.LongName),
				agencyName: agencyName[route.AgencyID],
			}
			instance.stopTimes = make([]timetable.TripStopTime, len(stopTimes))
			prevArrival := int64(-1)
			for i, st := range stopTimes {
				arrival := uint32(dayStart + int64(st.ArrivalSeconds))
				departure := uint32(dayStart + int64(st.DepartureSeconds))
				if b.opts.EnforceInvariants && int64(arrival) < prevArrival {
					return xerrors.New(xerrors.InvalidFeed, "non-monotone arrival in trip "+trip.TripID)
				}
				prevArrival = int64(arrival)
				instance.stopTimes[i] = timetable.TripStopTime{
					RouteStopSeq:   uint32(i),
					ArrivalEpoch:   arrival,
					DepartureEpoch: departure,
				}
			}
			instance.departureAtFirstStop = instance.stopTimes[0].DepartureEpoch
			staged.trips = append(staged.trips, instance)
			metrics.FeedRecordsIngested.WithLabelValues("trip_instance").Inc()
		}
	}
	return nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// sortedRouteOrder returns staged-route indices in the deterministic
// order Stage 3 emits them: by first stop id, then by the route's GTFS
// route id. Go maps have no stable iteration order, so this explicit
// sort is what the original's BTreeMap iteration gave it for free.
func (b *Builder) sortedRouteOrder() []uint32 {
	order := make([]uint32, len(b.routes))
	for i := range order {
		order[i] = uint32(i)
	}
	sort.Slice(order, func(i, j int) bool {
		ri, rj := b.routes[order[i]], b.routes[order[j]]
		if len(ri.stopSeq) == 0 || len(rj.stopSeq) == 0 {
			return order[i] < order[j]
		}
		if ri.stopSeq[0] != rj.stopSeq[0] {
			return ri.stopSeq[0] < rj.stopSeq[0]
		}
		return ri.routeID < rj.routeID
	})
	return order
}
