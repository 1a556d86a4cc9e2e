package transfergraph

import (
	"math"

	"github.com/pkg/errors"

	"github.com/solari-transit/engine/internal/geomath"
	"github.com/solari-transit/engine/internal/kvstore"
	"github.com/solari-transit/engine/internal/polyline"
)

const edgeLengthBucket = "edge_length"

// Edge is one directed, pedestrian-accessible street segment as read
// from a street tile: an origin and destination coordinate plus the
// polyline geometry connecting them.
type Edge struct {
	FromLat, FromLng  float64
	ToLat, ToLng      float64
	Shape             []polyline.Coordinate
	PedestrianAllowed bool
}

// TileReader streams a tile's edges to yield, stopping early if yield
// returns false, mirroring enumerate_edges's closure-based iteration
// rather than materialising every edge of a region at once.
type TileReader interface {
	Edges(yield func(Edge) bool) error
}

// Builder accumulates directed pedestrian edges from one or more tiles
// into an InputGraph ready for Contract, assigning dense node ids and
// deduplicating parallel edges by keeping only the shortest shape seen
// for each (from, to) pair.
type Builder struct {
	nodeOf     map[[2]int64]uint32 // quantised (lat,lng) -> node id, grounded on ensure_node's coordinate-keyed map
	nodeCoords []geomath.LatLng
	edges      map[[2]uint32]uint64 // (from,to) -> shortest weightMM seen so far
	shapes     *kvstore.Store       // optional; edge shapes + lengths persisted here if non-nil
}

// quantizeScale converts degrees to a fixed-point integer key precise to
// roughly 1cm at the equator, enough to treat two tiles' shared
// intersection coordinates as the same node without float equality
// comparisons.
const quantizeScale = 1e7

// NewBuilder creates an empty transfer-graph builder. shapes may be nil
// to skip edge-shape/length persistence (distance-only graphs).
func NewBuilder(shapes *kvstore.Store) *Builder {
	return &Builder{
		nodeOf: make(map[[2]int64]uint32),
		edges:  make(map[[2]uint32]uint64),
		shapes: shapes,
	}
}

// ensureNode returns the dense node id for a coordinate, assigning a new
// one on first sight, grounded on the original's ensure_node map+counter.
func (b *Builder) ensureNode(lat, lng float64) uint32 {
	key := [2]int64{int64(math.Round(lat * quantizeScale)), int64(math.Round(lng * quantizeScale))}
	if id, ok := b.nodeOf[key]; ok {
		return id
	}
	id := uint32(len(b.nodeCoords))
	b.nodeOf[key] = id
	b.nodeCoords = append(b.nodeCoords, geomath.LatLng{Lat: lat, Lng: lng})
	return id
}

// Ingest streams every edge from reader, assigning node ids and
// recording the shortest shape per (from,to) pair. Non-pedestrian edges
// are skipped entirely.
func (b *Builder) Ingest(reader TileReader) error {
	var ingestErr error
	err := reader.Edges(func(e Edge) bool {
		if !e.PedestrianAllowed {
			return true
		}
		from := b.ensureNode(e.FromLat, e.FromLng)
		to := b.ensureNode(e.ToLat, e.ToLng)
		lengthMeters := shapeLengthMeters(e.Shape)
		weightMM := uint64(math.Round(lengthMeters * 1000))
		if err := b.pushEdge(from, to, weightMM, e.Shape); err != nil {
			ingestErr = err
			return false
		}
		return true
	})
	if err != nil {
		return errors.Wrap(err, "reading street tile")
	}
	return ingestErr
}

// pushEdge records the (from,to) edge only if it is strictly shorter
// than any previously seen edge between the same pair, exactly mirroring
// push_edge's EDGE_LENGTH_TABLE-gated EDGE_SHAPE_TABLE insert: parallel
// edges (e.g. a street tile seam re-reading the same segment) collapse
// to the single shortest geometry rather than accumulating duplicates.
func (b *Builder) pushEdge(from, to uint32, weightMM uint64, shape []polyline.Coordinate) error {
	if existing, ok := b.edges[[2]uint32{from, to}]; ok && existing <= weightMM {
		return nil
	}
	b.edges[[2]uint32{from, to}] = weightMM
	if b.shapes == nil {
		return nil
	}
	if err := kvstore.PutPair(b.shapes, edgeLengthBucket, uint64(from), uint64(to), weightMM); err != nil {
		return errors.Wrap(err, "recording edge length")
	}
	encoded := polyline.Encode(shape)
	if err := kvstore.PutPair(b.shapes, edgeShapeBucket, uint64(from), uint64(to), encoded); err != nil {
		return errors.Wrap(err, "recording edge shape")
	}
	return nil
}

// Finish materialises the accumulated edges into an InputGraph ready
// for Contract, along with the node coordinates needed to build a
// NodeGraph over the contracted result.
func (b *Builder) Finish() (*InputGraph, []geomath.LatLng) {
	g := NewInputGraph(uint32(len(b.nodeCoords)))
	for pair, weightMM := range b.edges {
		g.AddEdge(pair[0], pair[1], weightMM)
	}
	return g, b.nodeCoords
}

func shapeLengthMeters(shape []polyline.Coordinate) float64 {
	var total float64
	for i := 0; i+1 < len(shape); i++ {
		total += geomath.GreatCircleMeters(shape[i].Lat, shape[i].Lng, shape[i+1].Lat, shape[i+1].Lng)
	}
	return total
}
