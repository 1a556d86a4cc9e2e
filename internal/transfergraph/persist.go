package transfergraph

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/solari-transit/engine/internal/geomath"
)

// WriteTo persists the contracted graph as transfer_graph.bin: a header
// {numNodes:u64}, the level array, then per node the up-edge count
// followed by up edges, then the down-edge count followed by down edges.
// Every field is fixed-width, so the file can be read back with plain
// sequential reads without an index (§6).
func (g *ContractedGraph) WriteTo(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(g.NumNodes)); err != nil {
		return errors.Wrap(err, "writing transfer graph header")
	}
	for _, level := range g.Level {
		if err := binary.Write(w, binary.LittleEndian, level); err != nil {
			return errors.Wrap(err, "writing level array")
		}
	}
	for node := uint32(0); node < g.NumNodes; node++ {
		if err := writeEdgeList(w, g.Up[node]); err != nil {
			return errors.Wrap(err, "writing up edges")
		}
	}
	for node := uint32(0); node < g.NumNodes; node++ {
		if err := writeEdgeList(w, g.Down[node]); err != nil {
			return errors.Wrap(err, "writing down edges")
		}
	}
	return nil
}

func writeEdgeList(w io.Writer, edges []CHEdge) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(edges))); err != nil {
		return err
	}
	for _, e := range edges {
		if err := binary.Write(w, binary.LittleEndian, e); err != nil {
			return err
		}
	}
	return nil
}

// ReadContractedGraph reconstructs a graph previously written by
// WriteTo.
func ReadContractedGraph(r io.Reader) (*ContractedGraph, error) {
	var numNodes uint64
	if err := binary.Read(r, binary.LittleEndian, &numNodes); err != nil {
		return nil, errors.Wrap(err, "reading transfer graph header")
	}
	n := uint32(numNodes)

	level := make([]uint32, n)
	for i := range level {
		if err := binary.Read(r, binary.LittleEndian, &level[i]); err != nil {
			return nil, errors.Wrap(err, "reading level array")
		}
	}

	up := make([][]CHEdge, n)
	for node := uint32(0); node < n; node++ {
		edges, err := readEdgeList(r)
		if err != nil {
			return nil, errors.Wrap(err, "reading up edges")
		}
		up[node] = edges
	}
	down := make([][]CHEdge, n)
	for node := uint32(0); node < n; node++ {
		edges, err := readEdgeList(r)
		if err != nil {
			return nil, errors.Wrap(err, "reading down edges")
		}
		down[node] = edges
	}

	return &ContractedGraph{NumNodes: n, Level: level, Up: up, Down: down}, nil
}

// WriteNodeCoords persists the dense node-id -> coordinate array backing
// transfer_node_index.bin, a header {len:u64} followed by packed
// (lat,lng) float64 pairs in node-id order. Kept as a flat array rather
// than the sorted cell-id form spatial.Index.WriteTo produces, since the
// query path needs O(1) node-id -> coordinate lookup (for
// NodeGraph.coordFn) in addition to the spatial.Index rebuilt from it.
func WriteNodeCoords(w io.Writer, coords []geomath.LatLng) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(coords))); err != nil {
		return errors.Wrap(err, "writing node coordinate header")
	}
	for _, c := range coords {
		if err := binary.Write(w, binary.LittleEndian, c.Lat); err != nil {
			return errors.Wrap(err, "writing node coordinate")
		}
		if err := binary.Write(w, binary.LittleEndian, c.Lng); err != nil {
			return errors.Wrap(err, "writing node coordinate")
		}
	}
	return nil
}

// ReadNodeCoords reconstructs the array written by WriteNodeCoords.
func ReadNodeCoords(r io.Reader) ([]geomath.LatLng, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, errors.Wrap(err, "reading node coordinate header")
	}
	coords := make([]geomath.LatLng, n)
	for i := range coords {
		if err := binary.Read(r, binary.LittleEndian, &coords[i].Lat); err != nil {
			return nil, errors.Wrap(err, "reading node coordinate")
		}
		if err := binary.Read(r, binary.LittleEndian, &coords[i].Lng); err != nil {
			return nil, errors.Wrap(err, "reading node coordinate")
		}
	}
	return coords, nil
}

func readEdgeList(r io.Reader) ([]CHEdge, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	edges := make([]CHEdge, count)
	for i := range edges {
		if err := binary.Read(r, binary.LittleEndian, &edges[i]); err != nil {
			return nil, err
		}
	}
	return edges, nil
}
