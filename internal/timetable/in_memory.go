package timetable

import (
	"github.com/solari-transit/engine/internal/spatial"
)

// InMemory is a fully materialised timetable image held in plain slices.
// The builder produces one of these per feed and after merge; tests
// construct them by hand.
type InMemory struct {
	stops         []Stop
	stopRoutes    []StopRoute
	routes        []Route
	routeStops    []RouteStop
	routeTrips    []Trip
	tripStopTimes []TripStopTime
	transferIndex []uint32
	transfers     []Transfer

	stopMetadata map[uint32]StopMetadata
	tripMetadata map[uint32]TripMetadata
	routeShapes  map[uint32][]ShapeCoordinate

	stopIndex *spatial.Index[Stop]
}

// NewInMemory wraps pre-built columns into a Timetable. Callers
// typically build this through builder.Builder rather than directly.
func NewInMemory(
	stops []Stop,
	stopRoutes []StopRoute,
	routes []Route,
	routeStops []RouteStop,
	routeTrips []Trip,
	tripStopTimes []TripStopTime,
	transferIndex []uint32,
	transfers []Transfer,
	stopMetadata map[uint32]StopMetadata,
	tripMetadata map[uint32]TripMetadata,
	routeShapes map[uint32][]ShapeCoordinate,
) *InMemory {
	im := &InMemory{
		stops:         stops,
		stopRoutes:    stopRoutes,
		routes:        routes,
		routeStops:    routeStops,
		routeTrips:    routeTrips,
		tripStopTimes: tripStopTimes,
		transferIndex: transferIndex,
		transfers:     transfers,
		stopMetadata:  stopMetadata,
		tripMetadata:  tripMetadata,
		routeShapes:   routeShapes,
	}
	im.rebuildStopIndex()
	return im
}

// WithTransfers returns a copy of im with its transfer columns replaced.
// The transfer matrix is built in a separate pass after the timetable
// image is assembled (it needs the finished stop spatial index), so
// builder.Finish/MergeImages produce an image with no transfers and the
// build pipeline attaches them here before writing the image out.
func (im *InMemory) WithTransfers(transferIndex []uint32, transfers []Transfer) *InMemory {
	out := *im
	out.transferIndex = transferIndex
	out.transfers = transfers
	return &out
}

func (im *InMemory) rebuildStopIndex() {
	points := make([]spatial.IndexedPoint[Stop], 0, len(im.stops))
	for _, s := range im.stops {
		lat, lng := spatial.LatLngForCellID(s.S2CellID)
		points = append(points, spatial.IndexedPoint[Stop]{Lat: lat, Lng: lng, Data: s})
	}
	im.stopIndex = spatial.Build(points)
}

func (im *InMemory) Route(routeID uint32) Route { return im.routes[routeID] }
func (im *InMemory) Stop(stopID uint32) Stop     { return im.stops[stopID] }
func (im *InMemory) StopCount() int              { return len(im.stops) }
func (im *InMemory) Stops() []Stop               { return im.stops }
func (im *InMemory) Routes() []Route             { return im.routes }
func (im *InMemory) StopRoutes() []StopRoute     { return im.stopRoutes }
func (im *InMemory) RouteStops() []RouteStop     { return im.routeStops }
func (im *InMemory) RouteTrips() []Trip          { return im.routeTrips }
func (im *InMemory) TripStopTimes() []TripStopTime { return im.tripStopTimes }
func (im *InMemory) Transfers() []Transfer       { return im.transfers }
func (im *InMemory) TransferIndex() []uint32     { return im.transferIndex }

func (im *InMemory) TransfersFrom(stopID uint32) []Transfer {
	begin := im.transferIndex[stopID]
	var end uint32
	if int(stopID)+1 < len(im.transferIndex) {
		end = im.transferIndex[stopID+1]
	} else {
		end = uint32(len(im.transfers))
	}
	return im.transfers[begin:end]
}

func (im *InMemory) NearestStops(lat, lng float64, n int) []StopDistance {
	results := im.stopIndex.NearestFunc(lat, lng, 50_000, n, spatial.DefaultCovering, func(s Stop) (float64, float64) {
		return spatial.LatLngForCellID(s.S2CellID)
	})
	out := make([]StopDistance, len(results))
	for i, r := range results {
		out[i] = StopDistance{Stop: r.Data, DistanceMeters: r.DistanceMeters}
	}
	return out
}

func (im *InMemory) StopMetadata(stop Stop) (StopMetadata, error) {
	return im.stopMetadata[stop.StopIndex], nil
}

func (im *InMemory) TripMetadata(trip Trip) (TripMetadata, error) {
	return im.tripMetadata[trip.TripIndex], nil
}

func (im *InMemory) RouteShape(route Route) ([]ShapeCoordinate, error) {
	return im.routeShapes[route.RouteIndex], nil
}
