package timetable

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/solari-transit/engine/internal/kvstore"
	"github.com/solari-transit/engine/internal/spatial"
	"github.com/solari-transit/engine/internal/xerrors"
)

const (
	stopMetadataBucket = "stop_metadata"
	tripMetadataBucket = "trip_metadata"
	routeShapeBucket   = "route_shape"
)

// column file names, matching §6's persisted layout.
const (
	fileStops         = "stops"
	fileStopRoutes     = "stop_routes"
	fileRoutes        = "routes"
	fileRouteStops    = "route_stops"
	fileRouteTrips    = "route_trips"
	fileTripStopTimes = "trip_stop_times"
	fileTransferIndex = "transfer_index"
	fileTransfers     = "transfers"
	fileMetadataDB    = "metadata.db"
)

type mappedColumn struct {
	data []byte
}

func (m *mappedColumn) unmap() error {
	if m.data == nil {
		return nil
	}
	return unix.Munmap(m.data)
}

// Mapped is a read-only, memory-mapped timetable image opened from a
// build output directory.
type Mapped struct {
	basePath string

	stopsCol         mappedColumn
	stopRoutesCol    mappedColumn
	routesCol        mappedColumn
	routeStopsCol    mappedColumn
	routeTripsCol    mappedColumn
	tripStopTimesCol mappedColumn
	transferIndexCol mappedColumn
	transfersCol     mappedColumn

	stops         []Stop
	stopRoutes    []StopRoute
	routes        []Route
	routeStops    []RouteStop
	routeTrips    []Trip
	tripStopTimes []TripStopTime
	transferIndex []uint32
	transfers     []Transfer

	metadata  *kvstore.Store
	stopIndex *spatial.Index[Stop]
}

// Open memory-maps every column file under basePath and opens the
// sidecar metadata store read-only, then rebuilds the in-process stop
// spatial index from the mapped stop column (stops are already sorted
// and cheap to re-derive, so the sphere index over stops is not itself
// persisted).
func Open(basePath string) (*Mapped, error) {
	m := &Mapped{basePath: basePath}

	var err error
	if m.stops, m.stopsCol, err = mapColumn[Stop](basePath, fileStops); err != nil {
		return nil, err
	}
	if m.stopRoutes, m.stopRoutesCol, err = mapColumn[StopRoute](basePath, fileStopRoutes); err != nil {
		return nil, err
	}
	if m.routes, m.routesCol, err = mapColumn[Route](basePath, fileRoutes); err != nil {
		return nil, err
	}
	if m.routeStops, m.routeStopsCol, err = mapColumn[RouteStop](basePath, fileRouteStops); err != nil {
		return nil, err
	}
	if m.routeTrips, m.routeTripsCol, err = mapColumn[Trip](basePath, fileRouteTrips); err != nil {
		return nil, err
	}
	if m.tripStopTimes, m.tripStopTimesCol, err = mapColumn[TripStopTime](basePath, fileTripStopTimes); err != nil {
		return nil, err
	}
	if m.transferIndex, m.transferIndexCol, err = mapColumn[uint32](basePath, fileTransferIndex); err != nil {
		return nil, err
	}
	if m.transfers, m.transfersCol, err = mapColumn[Transfer](basePath, fileTransfers); err != nil {
		return nil, err
	}

	m.metadata, err = kvstore.Open(filepath.Join(basePath, fileMetadataDB), true)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.IoError, err, "opening metadata store")
	}

	if err := m.validate(); err != nil {
		return nil, err
	}

	m.rebuildStopIndex()
	return m, nil
}

// Close unmaps every column and closes the sidecar store.
func (m *Mapped) Close() error {
	cols := []*mappedColumn{
		&m.stopsCol, &m.stopRoutesCol, &m.routesCol, &m.routeStopsCol,
		&m.routeTripsCol, &m.tripStopTimesCol, &m.transferIndexCol, &m.transfersCol,
	}
	var firstErr error
	for _, c := range cols {
		if err := c.unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := m.metadata.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// validate checks the §3.2 cross-column invariants that are cheap to
// verify at open time; a violation is InconsistentImage, fatal.
func (m *Mapped) validate() error {
	for i := 1; i < len(m.routes); i++ {
		if m.routes[i].FirstRouteStop < m.routes[i-1].FirstRouteStop {
			return xerrors.New(xerrors.InconsistentImage, "routes.first_route_stop not monotone")
		}
		if m.routes[i].FirstRouteTrip < m.routes[i-1].FirstRouteTrip {
			return xerrors.New(xerrors.InconsistentImage, "routes.first_route_trip not monotone")
		}
	}
	for i := 1; i < len(m.stops); i++ {
		if m.stops[i].FirstStopRoute < m.stops[i-1].FirstStopRoute {
			return xerrors.New(xerrors.InconsistentImage, "stops.first_stop_route not monotone")
		}
	}
	return nil
}

func (m *Mapped) rebuildStopIndex() {
	points := make([]spatial.IndexedPoint[Stop], 0, len(m.stops))
	for _, s := range m.stops {
		lat, lng := spatial.LatLngForCellID(s.S2CellID)
		points = append(points, spatial.IndexedPoint[Stop]{Lat: lat, Lng: lng, Data: s})
	}
	m.stopIndex = spatial.Build(points)
}

// mapColumn opens base/name read-only, memory-maps it, and reinterprets
// its bytes as a slice of T with no header — len = filesize/record_size.
func mapColumn[T any](base, name string) ([]T, mappedColumn, error) {
	path := filepath.Join(base, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, mappedColumn{}, xerrors.Wrapf(xerrors.IoError, err, "opening column %s", name)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, mappedColumn{}, xerrors.Wrapf(xerrors.IoError, err, "stat column %s", name)
	}
	size := info.Size()
	if size == 0 {
		return nil, mappedColumn{}, nil
	}

	var zero T
	recordSize := int64(unsafe.Sizeof(zero))
	if size%recordSize != 0 {
		return nil, mappedColumn{}, xerrors.New(xerrors.InconsistentImage,
			fmt.Sprintf("column %s size %d not a multiple of record size %d", name, size, recordSize))
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, mappedColumn{}, xerrors.Wrapf(xerrors.IoError, err, "mmap column %s", name)
	}
	_ = unix.Madvise(data, unix.MADV_WILLNEED)

	n := int(size / recordSize)
	slice := unsafe.Slice((*T)(unsafe.Pointer(&data[0])), n)
	return slice, mappedColumn{data: data}, nil
}

func (m *Mapped) Route(routeID uint32) Route { return m.routes[routeID] }
func (m *Mapped) Stop(stopID uint32) Stop     { return m.stops[stopID] }
func (m *Mapped) StopCount() int              { return len(m.stops) }
func (m *Mapped) Stops() []Stop               { return m.stops }
func (m *Mapped) Routes() []Route             { return m.routes }
func (m *Mapped) StopRoutes() []StopRoute     { return m.stopRoutes }
func (m *Mapped) RouteStops() []RouteStop     { return m.routeStops }
func (m *Mapped) RouteTrips() []Trip          { return m.routeTrips }
func (m *Mapped) TripStopTimes() []TripStopTime { return m.tripStopTimes }
func (m *Mapped) Transfers() []Transfer       { return m.transfers }
func (m *Mapped) TransferIndex() []uint32     { return m.transferIndex }

func (m *Mapped) TransfersFrom(stopID uint32) []Transfer {
	begin := m.transferIndex[stopID]
	var end uint32
	if int(stopID)+1 < len(m.transferIndex) {
		end = m.transferIndex[stopID+1]
	} else {
		end = uint32(len(m.transfers))
	}
	return m.transfers[begin:end]
}

func (m *Mapped) NearestStops(lat, lng float64, n int) []StopDistance {
	results := m.stopIndex.NearestFunc(lat, lng, 50_000, n, spatial.DefaultCovering, func(s Stop) (float64, float64) {
		return spatial.LatLngForCellID(s.S2CellID)
	})
	out := make([]StopDistance, len(results))
	for i, r := range results {
		out[i] = StopDistance{Stop: r.Data, DistanceMeters: r.DistanceMeters}
	}
	return out
}

func (m *Mapped) StopMetadata(stop Stop) (StopMetadata, error) {
	v, _, err := kvstore.Get[StopMetadata](m.metadata, stopMetadataBucket, uint64(stop.StopIndex))
	if err != nil {
		return StopMetadata{}, errors.Wrap(err, "reading stop metadata")
	}
	return v, nil
}

func (m *Mapped) TripMetadata(trip Trip) (TripMetadata, error) {
	v, _, err := kvstore.Get[TripMetadata](m.metadata, tripMetadataBucket, uint64(trip.TripIndex))
	if err != nil {
		return TripMetadata{}, errors.Wrap(err, "reading trip metadata")
	}
	return v, nil
}

func (m *Mapped) RouteShape(route Route) ([]ShapeCoordinate, error) {
	v, _, err := kvstore.Get[[]ShapeCoordinate](m.metadata, routeShapeBucket, uint64(route.RouteIndex))
	if err != nil {
		return nil, errors.Wrap(err, "reading route shape")
	}
	return v, nil
}
