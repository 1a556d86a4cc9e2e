package transfergraph

import (
	"bytes"
	"testing"

	"github.com/solari-transit/engine/internal/geomath"
)

func TestContractedGraphWriteReadRoundTrip(t *testing.T) {
	g := chain([]uint64{1000, 2000, 1500})
	ch := Contract(g)

	var buf bytes.Buffer
	if err := ch.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	got, err := ReadContractedGraph(&buf)
	if err != nil {
		t.Fatalf("ReadContractedGraph: %v", err)
	}
	if got.NumNodes != ch.NumNodes {
		t.Fatalf("NumNodes mismatch: got %d want %d", got.NumNodes, ch.NumNodes)
	}
	for i := uint32(0); i < ch.NumNodes; i++ {
		if got.Level[i] != ch.Level[i] {
			t.Fatalf("level mismatch at node %d: got %d want %d", i, got.Level[i], ch.Level[i])
		}
		if len(got.Up[i]) != len(ch.Up[i]) || len(got.Down[i]) != len(ch.Down[i]) {
			t.Fatalf("edge count mismatch at node %d", i)
		}
	}
}

func TestNodeCoordsWriteReadRoundTrip(t *testing.T) {
	coords := []geomath.LatLng{{Lat: 40.7, Lng: -74.0}, {Lat: 40.71, Lng: -74.01}}
	var buf bytes.Buffer
	if err := WriteNodeCoords(&buf, coords); err != nil {
		t.Fatalf("WriteNodeCoords: %v", err)
	}
	got, err := ReadNodeCoords(&buf)
	if err != nil {
		t.Fatalf("ReadNodeCoords: %v", err)
	}
	if len(got) != len(coords) {
		t.Fatalf("got %d coords want %d", len(got), len(coords))
	}
	for i := range coords {
		if got[i] != coords[i] {
			t.Fatalf("coord %d: got %+v want %+v", i, got[i], coords[i])
		}
	}
}
