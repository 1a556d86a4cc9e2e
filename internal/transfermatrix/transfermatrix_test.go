package transfermatrix

import (
	"context"
	"math"
	"testing"

	"github.com/solari-transit/engine/internal/logging"
	"github.com/solari-transit/engine/internal/spatial"
	"github.com/solari-transit/engine/internal/timetable"
)

func buildStopIndex(stops []timetable.Stop) *spatial.Index[timetable.Stop] {
	points := make([]spatial.IndexedPoint[timetable.Stop], len(stops))
	for i, s := range stops {
		lat, lng := spatial.LatLngForCellID(s.S2CellID)
		points[i] = spatial.IndexedPoint[timetable.Stop]{Lat: lat, Lng: lng, Data: s}
	}
	return spatial.Build(points)
}

func TestAnalyticFallbackMatchesDistanceTimesSpeed(t *testing.T) {
	stops := []timetable.Stop{
		{StopIndex: 0, S2CellID: timetable.CellIDForCoordinate(40.70, -74.00)},
		{StopIndex: 1, S2CellID: timetable.CellIDForCoordinate(40.71, -74.00)},
	}
	idx := buildStopIndex(stops)
	b := New(logging.Nop(), DefaultOptions, nil)

	transfers, err := b.BuildFor(context.Background(), stops[0], idx)
	if err != nil {
		t.Fatalf("BuildFor: %v", err)
	}
	if len(transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(transfers))
	}
	lat0, lng0 := spatial.LatLngForCellID(stops[0].S2CellID)
	lat1, lng1 := spatial.LatLngForCellID(stops[1].S2CellID)
	want := AttachAnalyticFallback(DefaultOptions.FakeWalkSpeedSecPerM, lat0, lng0, lat1, lng1)
	got := float64(transfers[0].TimeSeconds)
	if math.Abs(got-want) > 1.0 {
		t.Fatalf("got %f want ~%f", got, want)
	}
}

func TestBuildForExcludesSelfAndBelowMinRadius(t *testing.T) {
	stops := []timetable.Stop{
		{StopIndex: 0, S2CellID: timetable.CellIDForCoordinate(40.70, -74.00)},
		{StopIndex: 1, S2CellID: timetable.CellIDForCoordinate(40.7001, -74.00)}, // ~11m away, below 1km min
	}
	idx := buildStopIndex(stops)
	opts := DefaultOptions
	b := New(logging.Nop(), opts, nil)
	transfers, err := b.BuildFor(context.Background(), stops[0], idx)
	if err != nil {
		t.Fatalf("BuildFor: %v", err)
	}
	if len(transfers) != 0 {
		t.Fatalf("expected no transfers below min radius, got %v", transfers)
	}
}
