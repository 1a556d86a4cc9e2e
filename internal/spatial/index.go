// Package spatial implements the sphere index: a sorted array of
// (cell_id, payload) pairs supporting deterministic radius queries.
// Grounded on solari-spatial's SphereIndex trait: build once, sort by
// cell id, and answer nearest() by covering the query rectangle in cell
// ids and binary-searching the sorted array for each covering cell's
// child range.
package spatial

import (
	"encoding/binary"
	"io"
	"math"
	"sort"

	"github.com/solari-transit/engine/internal/geomath"
)

// IndexedPoint is one (coordinate, payload) pair prior to indexing.
type IndexedPoint[T any] struct {
	Lat, Lng float64
	Data     T
}

type entry[T any] struct {
	cellID uint64
	data   T
}

// Index is a sphere index over payloads of type T.
type Index[T any] struct {
	cells   []uint64
	data    []T
}

// CoveringParams tunes the covering step of Nearest. Defaults mirror the
// original's RegionCoverer{min_level: 18, max_level: 30, max_cells: 10}.
type CoveringParams struct {
	MinLevel int
	MaxLevel int
	MaxCells int
}

// DefaultCovering matches the reference implementation's tuning.
var DefaultCovering = CoveringParams{MinLevel: 18, MaxLevel: 30, MaxCells: 10}

const cosEpsilon = 0.0000001

// metersPerDegreeLat approximates one degree of latitude as a constant
// arc length, matching the approximation NearestFunc already uses to
// turn radiusMeters into a lat/lng bounding box.
const metersPerDegreeLat = 111000.0

// cubeFaceWidthMeters is the ground distance spanned by one face of the
// cube cellid.go projects the sphere onto: a face covers a quarter of
// the sphere's circumference along each axis.
var cubeFaceWidthMeters = 2 * math.Pi * geomath.EarthRadiusMeters / 4

// metersPerCellAtLevel approximates a level-l cell's edge length: each
// level halves the cube face's 2^level x 2^level grid along both axes.
func metersPerCellAtLevel(level int) float64 {
	return cubeFaceWidthMeters / math.Pow(2, float64(level))
}

// Build sorts points by cell id and returns an Index ready for queries.
func Build[T any](points []IndexedPoint[T]) *Index[T] {
	entries := make([]entry[T], len(points))
	for i, p := range points {
		entries[i] = entry[T]{cellID: CellIDFor(p.Lat, p.Lng, maxLevel), data: p.Data}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].cellID < entries[j].cellID })
	idx := &Index[T]{cells: make([]uint64, len(entries)), data: make([]T, len(entries))}
	for i, e := range entries {
		idx.cells[i] = e.cellID
		idx.data[i] = e.data
	}
	return idx
}

// Len reports the number of indexed payloads.
func (idx *Index[T]) Len() int { return len(idx.cells) }

// Result is one ranked nearest-neighbour hit.
type Result[T any] struct {
	DistanceMeters float64
	Data           T
}

// CoordFunc extracts the original lat/lng for a payload, used by
// NearestFunc to re-rank candidates by true great-circle distance.
type CoordFunc[T any] func(T) (lat, lng float64)

// NearestFunc is the primary query entry point: it covers the query
// rectangle in cell ids, gathers candidates from the sorted array, then
// re-ranks by true great-circle distance via coordFn, applies the radius
// cutoff, and truncates to maxCount with a deterministic
// (distance, cellID) tie-break.
func (idx *Index[T]) NearestFunc(lat, lng, radiusMeters float64, maxCount int, params CoveringParams, coordFn CoordFunc[T]) []Result[T] {
	if len(idx.cells) == 0 {
		return nil
	}
	if params == (CoveringParams{}) {
		params = DefaultCovering
	}

	latRad := lat * math.Pi / 180
	cosLat := math.Cos(latRad)
	if math.Abs(cosLat) < cosEpsilon {
		cosLat = cosEpsilon
	}
	latStep := radiusMeters / 111000.0
	lngStep := latStep / math.Abs(cosLat)

	minLat, maxLat := lat-latStep, lat+latStep
	minLng, maxLng := lng-lngStep, lng+lngStep
	covering, level := coverRect(minLat, maxLat, minLng, maxLng, params)

	type ranked struct {
		dist   float64
		cellID uint64
		idx    int
	}
	seen := make(map[int]struct{})
	var ranks []ranked
	for _, cellID := range covering {
		begin, end := ChildRange(cellID, level)
		lo := sort.Search(len(idx.cells), func(i int) bool { return idx.cells[i] >= begin })
		hi := sort.Search(len(idx.cells), func(i int) bool { return idx.cells[i] >= end })
		for i := lo; i < hi; i++ {
			if _, ok := seen[i]; ok {
				continue
			}
			seen[i] = struct{}{}
			plat, plng := coordFn(idx.data[i])
			d := geomath.GreatCircleMeters(lat, lng, plat, plng)
			if d > radiusMeters {
				continue
			}
			ranks = append(ranks, ranked{dist: d, cellID: idx.cells[i], idx: i})
		}
	}

	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].dist != ranks[j].dist {
			return ranks[i].dist < ranks[j].dist
		}
		return ranks[i].cellID < ranks[j].cellID
	})

	if maxCount > 0 && len(ranks) > maxCount {
		ranks = ranks[:maxCount]
	}

	out := make([]Result[T], len(ranks))
	for i, r := range ranks {
		out[i] = Result[T]{DistanceMeters: r.dist, Data: idx.data[r.idx]}
	}
	return out
}

// maxCoverSteps bounds the grid walk in each axis, guarding against a
// pathological rectangle (e.g. spanning the pole) forcing an unbounded
// number of iterations.
const maxCoverSteps = 64

// coverRect derives a set of covering cell ids for the bounding
// rectangle and returns them with their level: it first picks the
// finest level at or below MaxLevel whose cell width keeps the
// rectangle's span to roughly sqrt(MaxCells) cells per axis, then walks
// a grid over the whole rectangle at a quarter of that cell width (not
// just its corners), so every cell the rectangle touches is covered
// (mirroring RegionCoverer's adaptive subdivision in spirit, without a
// full S2 region-coverer implementation). MinLevel is not consulted: a
// rectangle too wide for that many MinLevel cells is covered with
// coarser cells.
func coverRect(minLat, maxLat, minLng, maxLng float64, params CoveringParams) ([]uint64, int) {
	latSpanMeters := (maxLat - minLat) * metersPerDegreeLat
	midLat := (minLat + maxLat) / 2
	cosMidLat := math.Abs(math.Cos(midLat * math.Pi / 180))
	if cosMidLat < cosEpsilon {
		cosMidLat = cosEpsilon
	}
	lngSpanMeters := (maxLng - minLng) * metersPerDegreeLat * cosMidLat

	spanMeters := latSpanMeters
	if lngSpanMeters > spanMeters {
		spanMeters = lngSpanMeters
	}

	cellsPerAxis := math.Sqrt(float64(params.MaxCells))
	if cellsPerAxis < 1 {
		cellsPerAxis = 1
	}

	level := 0
	for l := params.MaxLevel; l >= 0; l-- {
		if spanMeters/metersPerCellAtLevel(l) <= cellsPerAxis {
			level = l
			break
		}
	}

	latStepDeg := metersPerCellAtLevel(level) / 4 / metersPerDegreeLat
	lngStepDeg := latStepDeg / cosMidLat
	latSteps := stepCount(minLat, maxLat, latStepDeg)
	lngSteps := stepCount(minLng, maxLng, lngStepDeg)

	seen := make(map[uint64]struct{})
	var out []uint64
	for i := 0; i <= latSteps; i++ {
		la := minLat + float64(i)*latStepDeg
		if la > maxLat {
			la = maxLat
		}
		for j := 0; j <= lngSteps; j++ {
			lo := minLng + float64(j)*lngStepDeg
			if lo > maxLng {
				lo = maxLng
			}
			id := CellIDFor(la, lo, level)
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out, level
}

// stepCount returns how many steps of stepDeg are needed to cross
// [lo, hi], clamped to maxCoverSteps.
func stepCount(lo, hi, stepDeg float64) int {
	if stepDeg <= 0 || hi <= lo {
		return 0
	}
	n := int(math.Ceil((hi - lo) / stepDeg))
	if n > maxCoverSteps {
		return maxCoverSteps
	}
	return n
}

// WriteTo persists the index using the spec's layout: header { len:u64 }
// followed by cells[len] then data[len], matching
// transfer_node_index.bin. dataWriter marshals one payload at a time so
// callers control the fixed-width encoding of T.
func (idx *Index[T]) WriteTo(w io.Writer, dataWriter func(io.Writer, T) error) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(idx.cells))); err != nil {
		return err
	}
	for _, c := range idx.cells {
		if err := binary.Write(w, binary.LittleEndian, c); err != nil {
			return err
		}
	}
	for _, d := range idx.data {
		if err := dataWriter(w, d); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrom reconstructs an index previously written by WriteTo.
func ReadFrom[T any](r io.Reader, dataReader func(io.Reader) (T, error)) (*Index[T], error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	cells := make([]uint64, n)
	for i := range cells {
		if err := binary.Read(r, binary.LittleEndian, &cells[i]); err != nil {
			return nil, err
		}
	}
	data := make([]T, n)
	for i := range data {
		v, err := dataReader(r)
		if err != nil {
			return nil, err
		}
		data[i] = v
	}
	return &Index[T]{cells: cells, data: data}, nil
}
