package transfergraph

import (
	"container/heap"
	"context"

	"github.com/solari-transit/engine/internal/geomath"
	"github.com/solari-transit/engine/internal/kvstore"
	"github.com/solari-transit/engine/internal/polyline"
	"github.com/solari-transit/engine/internal/spatial"
	"github.com/solari-transit/engine/internal/xerrors"
)

const (
	edgeShapeBucket = "edge_shape"
)

// defaultOffRoadFudge scales the Euclidean distance from a query point to
// its nearest graph node, standing in for the fact that the last few
// metres to a door or platform entrance are rarely a straight line
// (§5's "off-road fudge factor").
const defaultOffRoadFudge = 2.0

const (
	defaultNearestRadiusMeters = 50.0
	defaultNearestNodeCount    = 4
)

// NodeGraph is the immutable, queryable transfer graph: the contracted
// hierarchy plus the node coordinates and spatial index needed to snap
// an arbitrary lat/lng onto the nearest graph nodes, and the edge-shape
// store needed to recover polylines for TransferPath. Shared read-only
// across goroutines; search state is allocated per query, so Searchers
// over the same graph can run concurrently.
type NodeGraph struct {
	ch         *ContractedGraph
	nodeCoords []geomath.LatLng
	nodeIndex  *spatial.Index[uint32]
	edgeShapes *kvstore.Store // nil => TransferPath unavailable, TransferDistanceMM still works
	edgeByPair map[[2]uint32]CHEdge
}

// NewNodeGraph builds the query-time wrapper around a contracted graph.
// nodeCoords must be indexed by node id exactly as the InputGraph the
// graph was contracted from. edgeShapes may be nil if only distance
// queries (not path reconstruction) are needed.
func NewNodeGraph(ch *ContractedGraph, nodeCoords []geomath.LatLng, edgeShapes *kvstore.Store) *NodeGraph {
	points := make([]spatial.IndexedPoint[uint32], len(nodeCoords))
	for i, c := range nodeCoords {
		points[i] = spatial.IndexedPoint[uint32]{Lat: c.Lat, Lng: c.Lng, Data: uint32(i)}
	}
	edgeByPair := make(map[[2]uint32]CHEdge)
	for from := uint32(0); from < ch.NumNodes; from++ {
		for _, e := range ch.Up[from] {
			edgeByPair[[2]uint32{from, e.To}] = e
		}
		for _, e := range ch.Down[from] {
			// Down[v] stores edges {To: from} meaning the original directed
			// edge ran from -> v; record it under that original direction.
			edgeByPair[[2]uint32{e.To, from}] = CHEdge{To: from, WeightMM: e.WeightMM, Via: e.Via}
		}
	}
	return &NodeGraph{
		ch:         ch,
		nodeCoords: nodeCoords,
		nodeIndex:  spatial.Build(points),
		edgeShapes: edgeShapes,
		edgeByPair: edgeByPair,
	}
}

func (g *NodeGraph) coordFn(n uint32) (float64, float64) {
	c := g.nodeCoords[n]
	return c.Lat, c.Lng
}

// Path is a reconstructed pedestrian transfer: total distance and the
// concatenated polyline geometry from origin to destination.
type Path struct {
	DistanceMM  uint64
	Coordinates []polyline.Coordinate
}

// Searcher holds the query settings (off-road fudge factor, nearest-node
// radius and count) for bidirectional CH queries against a shared
// NodeGraph; it keeps no scratch arrays between queries.
type Searcher struct {
	graph               *NodeGraph
	offRoadFudge        float64
	nearestRadiusMeters float64
	nearestNodeCount    int
}

// NewSearcher creates a Searcher over graph with the reference
// implementation's default off-road fudge factor and nearest-node
// search radius.
func NewSearcher(graph *NodeGraph) *Searcher {
	return &Searcher{
		graph:               graph,
		offRoadFudge:        defaultOffRoadFudge,
		nearestRadiusMeters: defaultNearestRadiusMeters,
		nearestNodeCount:    defaultNearestNodeCount,
	}
}

// WithOffRoadFudge overrides the default ×2.0 fudge factor, e.g. down to
// ×1.1 for coarse estimates (§5).
func (s *Searcher) WithOffRoadFudge(fudge float64) *Searcher {
	s.offRoadFudge = fudge
	return s
}

// nearestNodes snaps ll onto the k nearest graph nodes within the
// search radius, each weighted by the off-road fudge factor, mirroring
// get_nearest_nodes.
func (s *Searcher) nearestNodes(ll geomath.LatLng) map[uint32]uint64 {
	hits := s.graph.nodeIndex.NearestFunc(ll.Lat, ll.Lng, s.nearestRadiusMeters, s.nearestNodeCount, spatial.DefaultCovering, s.graph.coordFn)
	out := make(map[uint32]uint64, len(hits))
	for _, h := range hits {
		costMM := uint64(h.DistanceMeters * 1000 * s.offRoadFudge)
		if existing, ok := out[h.Data]; !ok || costMM < existing {
			out[h.Data] = costMM
		}
	}
	return out
}

// TransferDistanceMM computes the shortest pedestrian transfer distance
// in millimetres from the coordinate from to the coordinate to,
// snapping each endpoint onto its nearest graph nodes and running a
// bidirectional search over the contracted hierarchy that meets at the
// node settled by both searches with the smallest combined distance, per
// get_nearest_nodes/transfer_distance_mm.
func (s *Searcher) TransferDistanceMM(ctx context.Context, from, to geomath.LatLng) (uint64, error) {
	dist, _, err := s.run(ctx, from, to)
	return dist, err
}

// TransferPath computes the same search as TransferDistanceMM and also
// reconstructs the walked geometry by unpacking CH shortcuts back into
// original edges and concatenating their stored polylines.
func (s *Searcher) TransferPath(ctx context.Context, from, to geomath.LatLng) (*Path, error) {
	dist, nodes, err := s.run(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if s.graph.edgeShapes == nil {
		return &Path{DistanceMM: dist}, nil
	}
	var coords []polyline.Coordinate
	for i := 0; i+1 < len(nodes); i++ {
		segment, err := s.edgeCoordinates(nodes[i], nodes[i+1])
		if err != nil {
			return nil, err
		}
		if i > 0 && len(segment) > 0 && len(coords) > 0 {
			segment = segment[1:] // drop duplicate joint coordinate
		}
		coords = append(coords, segment...)
	}
	return &Path{DistanceMM: dist, Coordinates: coords}, nil
}

// run performs the bidirectional CH search shared by TransferDistanceMM
// and TransferPath, returning the best distance and (when reachable) the
// full node-level path from the chosen source node to the chosen target
// node, with shortcuts unpacked into original edges.
func (s *Searcher) run(ctx context.Context, from, to geomath.LatLng) (uint64, []uint32, error) {
	sources := s.nearestNodes(from)
	targets := s.nearestNodes(to)
	if len(sources) == 0 || len(targets) == 0 {
		return 0, nil, xerrors.New(xerrors.NoRoute, "no graph node within search radius of transfer endpoint")
	}

	fwdDist, fwdPrev := dijkstraUp(ctx, s.graph.ch, sources)
	bwdDist, bwdPrev := dijkstraDown(ctx, s.graph.ch, targets)

	var bestNode uint32
	bestDist := ^uint64(0)
	found := false
	for node, fd := range fwdDist {
		bd, ok := bwdDist[node]
		if !ok {
			continue
		}
		total := fd + bd
		if !found || total < bestDist {
			bestDist = total
			bestNode = node
			found = true
		}
	}
	if !found {
		return 0, nil, xerrors.New(xerrors.NoRoute, "no meeting node found between source and target search frontiers")
	}

	upNodes := reconstructUp(bestNode, fwdPrev)
	downNodes := reconstructUp(bestNode, bwdPrev)
	// reconstructUp returns target -> ... -> bestNode along the reverse
	// search tree; reversed, downNodes runs bestNode -> target and is
	// joined after upNodes (which ends at bestNode) without its first
	// element.
	reverseInPlace(downNodes)
	full := append(upNodes, downNodes[1:]...)

	var nodePath []uint32
	for i := 0; i+1 < len(full); i++ {
		unpacked := unpackEdge(s.graph.edgeByPair, full[i], full[i+1])
		if len(nodePath) > 0 {
			unpacked = unpacked[1:]
		}
		nodePath = append(nodePath, unpacked...)
	}
	if len(nodePath) == 0 {
		nodePath = full
	}
	return bestDist, nodePath, nil
}

func (s *Searcher) edgeCoordinates(from, to uint32) ([]polyline.Coordinate, error) {
	encoded, ok, err := kvstore.GetPair[string](s.graph.edgeShapes, edgeShapeBucket, uint64(from), uint64(to))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.IoError, err, "reading edge shape")
	}
	if !ok {
		return nil, xerrors.New(xerrors.NoRoute, "no shape found for transfer edge")
	}
	coords, err := polyline.Decode(encoded)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.IoError, err, "decoding edge shape")
	}
	return coords, nil
}

// unpackEdge expands a possibly-shortcut edge (from,to) into the
// sequence of original nodes it stands for, recursing through via nodes.
func unpackEdge(byPair map[[2]uint32]CHEdge, from, to uint32) []uint32 {
	e, ok := byPair[[2]uint32{from, to}]
	if !ok || e.Via == noVia {
		return []uint32{from, to}
	}
	left := unpackEdge(byPair, from, e.Via)
	right := unpackEdge(byPair, e.Via, to)
	return append(left, right[1:]...)
}

func reverseInPlace(nodes []uint32) {
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
}

// reconstructUp walks prev pointers from node back to one of the search
// roots (the first node with no recorded predecessor), returning the
// path root -> ... -> node.
func reconstructUp(node uint32, prev map[uint32]uint32) []uint32 {
	path := []uint32{node}
	for {
		p, ok := prev[node]
		if !ok {
			break
		}
		node = p
		path = append(path, node)
	}
	reverseInPlace(path)
	return path
}

// dijkstraUp runs a multi-source Dijkstra over only the CH Up edges
// (towards higher contraction rank), the forward half of a bidirectional
// CH query.
func dijkstraUp(ctx context.Context, g *ContractedGraph, sources map[uint32]uint64) (map[uint32]uint64, map[uint32]uint32) {
	return dijkstraCH(ctx, sources, func(n uint32) []CHEdge { return g.Up[n] })
}

// dijkstraDown runs a multi-source Dijkstra over only the CH Down edges,
// the backward half of a bidirectional CH query: it climbs towards
// higher rank exactly like dijkstraUp, just along the reverse adjacency.
func dijkstraDown(ctx context.Context, g *ContractedGraph, sources map[uint32]uint64) (map[uint32]uint64, map[uint32]uint32) {
	return dijkstraCH(ctx, sources, func(n uint32) []CHEdge { return g.Down[n] })
}

func dijkstraCH(ctx context.Context, sources map[uint32]uint64, neighbors func(uint32) []CHEdge) (map[uint32]uint64, map[uint32]uint32) {
	dist := make(map[uint32]uint64, len(sources))
	prev := make(map[uint32]uint32, len(sources))
	pq := &distHeap{}
	for node, cost := range sources {
		dist[node] = cost
		heap.Push(pq, distItem{node: node, dist: cost})
	}
	for pq.Len() > 0 {
		select {
		case <-ctx.Done():
			return dist, prev
		default:
		}
		cur := heap.Pop(pq).(distItem)
		if d, ok := dist[cur.node]; ok && cur.dist > d {
			continue
		}
		for _, e := range neighbors(cur.node) {
			nd := cur.dist + e.WeightMM
			if existing, ok := dist[e.To]; !ok || nd < existing {
				dist[e.To] = nd
				prev[e.To] = cur.node
				heap.Push(pq, distItem{node: e.To, dist: nd})
			}
		}
	}
	return dist, prev
}
