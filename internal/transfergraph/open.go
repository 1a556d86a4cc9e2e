package transfergraph

import (
	"os"

	"github.com/pkg/errors"

	"github.com/solari-transit/engine/internal/kvstore"
)

// Open loads a previously persisted transfer graph: transfer_graph.bin,
// transfer_node_index.bin, and the edge-shape/length kvstore at
// shapesPath, returning a NodeGraph ready for Searcher queries.
func Open(graphPath, nodeCoordsPath, shapesPath string) (*NodeGraph, error) {
	graphFile, err := os.Open(graphPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening transfer graph")
	}
	defer graphFile.Close()
	ch, err := ReadContractedGraph(graphFile)
	if err != nil {
		return nil, errors.Wrap(err, "decoding transfer graph")
	}

	coordsFile, err := os.Open(nodeCoordsPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening transfer node index")
	}
	defer coordsFile.Close()
	coords, err := ReadNodeCoords(coordsFile)
	if err != nil {
		return nil, errors.Wrap(err, "decoding transfer node index")
	}

	shapes, err := kvstore.Open(shapesPath, true)
	if err != nil {
		return nil, errors.Wrap(err, "opening edge shape store")
	}

	return NewNodeGraph(ch, coords, shapes), nil
}
