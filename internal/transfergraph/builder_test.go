package transfergraph

import (
	"path/filepath"
	"testing"

	"github.com/solari-transit/engine/internal/kvstore"
	"github.com/solari-transit/engine/internal/polyline"
)

type fixedTile struct{ edges []Edge }

func (f fixedTile) Edges(yield func(Edge) bool) error {
	for _, e := range f.edges {
		if !yield(e) {
			break
		}
	}
	return nil
}

func TestBuilderDedupesParallelEdgesByShortestLength(t *testing.T) {
	dir := t.TempDir()
	store, err := kvstore.Open(filepath.Join(dir, "shapes.db"), false)
	if err != nil {
		t.Fatalf("open kvstore: %v", err)
	}
	defer store.Close()
	if err := store.EnsureBucket(edgeShapeBucket); err != nil {
		t.Fatalf("ensure bucket: %v", err)
	}
	if err := store.EnsureBucket(edgeLengthBucket); err != nil {
		t.Fatalf("ensure bucket: %v", err)
	}

	b := NewBuilder(store)
	long := []polyline.Coordinate{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.01}}
	short := []polyline.Coordinate{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0.001}}
	tile := fixedTile{edges: []Edge{
		{FromLat: 0, FromLng: 0, ToLat: 0, ToLng: 0.01, Shape: long, PedestrianAllowed: true},
		{FromLat: 0, FromLng: 0, ToLat: 0, ToLng: 0.01, Shape: short, PedestrianAllowed: true},
		{FromLat: 0, FromLng: 0, ToLat: 0, ToLng: 0.01, Shape: long, PedestrianAllowed: false},
	}}
	if err := b.Ingest(tile); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	g, coords := b.Finish()
	if g.NumNodes() != 2 {
		t.Fatalf("expected 2 nodes, got %d", g.NumNodes())
	}
	if len(coords) != 2 {
		t.Fatalf("expected 2 coordinates, got %d", len(coords))
	}
	neighbors := g.Neighbors(0)
	if len(neighbors) != 1 {
		t.Fatalf("expected 1 deduplicated edge, got %d", len(neighbors))
	}
	encoded, ok, err := kvstore.GetPair[string](store, edgeShapeBucket, 0, 1)
	if err != nil || !ok {
		t.Fatalf("expected shape to be stored: ok=%v err=%v", ok, err)
	}
	decoded, err := polyline.Decode(encoded)
	if err != nil {
		t.Fatalf("decode shape: %v", err)
	}
	if len(decoded) != len(short) || encoded != polyline.Encode(short) {
		t.Fatalf("expected the shorter shape to win, got %d points want %d", len(decoded), len(short))
	}
}

func TestBuilderIgnoresNonPedestrianEdges(t *testing.T) {
	b := NewBuilder(nil)
	tile := fixedTile{edges: []Edge{
		{FromLat: 1, FromLng: 1, ToLat: 2, ToLng: 2, PedestrianAllowed: false},
	}}
	if err := b.Ingest(tile); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	g, _ := b.Finish()
	if g.NumNodes() != 0 {
		t.Fatalf("expected no nodes from a non-pedestrian edge, got %d", g.NumNodes())
	}
}
