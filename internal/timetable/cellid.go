package timetable

import "github.com/solari-transit/engine/internal/spatial"

// CellIDForCoordinate computes the s2_cell_id a Stop record stores for a
// lat/lng, at the spatial index's finest subdivision level.
func CellIDForCoordinate(lat, lng float64) uint64 {
	return spatial.CellIDFor(lat, lng, 30)
}
