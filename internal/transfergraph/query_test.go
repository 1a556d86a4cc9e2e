package transfergraph

import (
	"context"
	"testing"

	"github.com/solari-transit/engine/internal/geomath"
)

// squareGraph lays four nodes out as a 100m x 100m square (0 at the
// origin, going clockwise) connected by edges along its perimeter, so a
// transfer from corner 0 to corner 2 must route around rather than
// through empty space.
func squareGraph() (*InputGraph, []geomath.LatLng) {
	const metersPerDegreeLat = 111_320.0
	coords := []geomath.LatLng{
		{Lat: 0, Lng: 0},
		{Lat: 100 / metersPerDegreeLat, Lng: 0},
		{Lat: 100 / metersPerDegreeLat, Lng: 100 / metersPerDegreeLat},
		{Lat: 0, Lng: 100 / metersPerDegreeLat},
	}
	g := NewInputGraph(4)
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		g.AddEdge(uint32(i), uint32(j), 100_000)
		g.AddEdge(uint32(j), uint32(i), 100_000)
	}
	return g, coords
}

func TestTransferDistanceMMRoutesAroundPerimeter(t *testing.T) {
	g, coords := squareGraph()
	ch := Contract(g)
	ng := NewNodeGraph(ch, coords, nil)
	s := NewSearcher(ng).WithOffRoadFudge(1.0)

	dist, err := s.TransferDistanceMM(context.Background(), coords[0], coords[2])
	if err != nil {
		t.Fatalf("TransferDistanceMM: %v", err)
	}
	// Two perimeter edges of 100m each, whichever direction is shorter.
	const want = uint64(200_000)
	if dist != want {
		t.Fatalf("got %d want %d", dist, want)
	}
}

func TestTransferDistanceMMNoNodeInRadius(t *testing.T) {
	g, coords := squareGraph()
	ch := Contract(g)
	ng := NewNodeGraph(ch, coords, nil)
	s := NewSearcher(ng)

	farAway := geomath.LatLng{Lat: 45, Lng: 45}
	if _, err := s.TransferDistanceMM(context.Background(), farAway, coords[0]); err == nil {
		t.Fatal("expected an error when no node is within the search radius")
	}
}
