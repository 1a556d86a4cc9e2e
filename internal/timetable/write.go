package timetable

import (
	"os"
	"path/filepath"
	"unsafe"

	"github.com/solari-transit/engine/internal/kvstore"
	"github.com/solari-transit/engine/internal/xerrors"
)

// WriteTo persists im to basePath in the layout Open expects: one
// fixed-width packed file per column (no header, native endian) plus a
// metadata.db sidecar holding stop/trip metadata and route shapes.
// Grounded on §6's "persisted layout" table.
func WriteTo(basePath string, im *InMemory) error {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return xerrors.Wrap(xerrors.IoError, err, "creating base path")
	}

	if err := writeColumn(basePath, fileStops, im.stops); err != nil {
		return err
	}
	if err := writeColumn(basePath, fileStopRoutes, im.stopRoutes); err != nil {
		return err
	}
	if err := writeColumn(basePath, fileRoutes, im.routes); err != nil {
		return err
	}
	if err := writeColumn(basePath, fileRouteStops, im.routeStops); err != nil {
		return err
	}
	if err := writeColumn(basePath, fileRouteTrips, im.routeTrips); err != nil {
		return err
	}
	if err := writeColumn(basePath, fileTripStopTimes, im.tripStopTimes); err != nil {
		return err
	}
	if err := writeColumn(basePath, fileTransferIndex, im.transferIndex); err != nil {
		return err
	}
	if err := writeColumn(basePath, fileTransfers, im.transfers); err != nil {
		return err
	}

	store, err := kvstore.Open(filepath.Join(basePath, fileMetadataDB), false)
	if err != nil {
		return xerrors.Wrap(xerrors.IoError, err, "creating metadata store")
	}
	defer store.Close()

	for _, bucket := range []string{stopMetadataBucket, tripMetadataBucket, routeShapeBucket} {
		if err := store.EnsureBucket(bucket); err != nil {
			return xerrors.Wrap(xerrors.IoError, err, "creating metadata bucket")
		}
	}
	for stopID, meta := range im.stopMetadata {
		if err := kvstore.Put(store, stopMetadataBucket, uint64(stopID), meta); err != nil {
			return xerrors.Wrap(xerrors.IoError, err, "writing stop metadata")
		}
	}
	for tripID, meta := range im.tripMetadata {
		if err := kvstore.Put(store, tripMetadataBucket, uint64(tripID), meta); err != nil {
			return xerrors.Wrap(xerrors.IoError, err, "writing trip metadata")
		}
	}
	for routeID, shape := range im.routeShapes {
		if err := kvstore.Put(store, routeShapeBucket, uint64(routeID), shape); err != nil {
			return xerrors.Wrap(xerrors.IoError, err, "writing route shape")
		}
	}
	return nil
}

// writeColumn dumps data's raw bytes to base/name, with no header: the
// reader derives len from filesize/record_size, so the write side just
// needs the slice's backing memory laid out contiguously, which a plain
// Go slice already guarantees for fixed-size element types.
func writeColumn[T any](base, name string, data []T) error {
	f, err := os.Create(filepath.Join(base, name))
	if err != nil {
		return xerrors.Wrapf(xerrors.IoError, err, "creating column %s", name)
	}
	defer f.Close()

	if len(data) == 0 {
		return nil
	}
	var zero T
	recordSize := int(unsafe.Sizeof(zero))
	bytes := unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*recordSize)
	if _, err := f.Write(bytes); err != nil {
		return xerrors.Wrapf(xerrors.IoError, err, "writing column %s", name)
	}
	return nil
}
