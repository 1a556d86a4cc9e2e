package spatial

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

type stopPoint struct {
	ID       uint32
	Lat, Lng float64
}

func coordOf(p stopPoint) (float64, float64) { return p.Lat, p.Lng }

func TestNearestFaithfulness(t *testing.T) {
	points := []IndexedPoint[stopPoint]{
		{Lat: 40.7128, Lng: -74.0060, Data: stopPoint{ID: 1, Lat: 40.7128, Lng: -74.0060}},
		{Lat: 40.7138, Lng: -74.0070, Data: stopPoint{ID: 2, Lat: 40.7138, Lng: -74.0070}},
		{Lat: 41.8781, Lng: -87.6298, Data: stopPoint{ID: 3, Lat: 41.8781, Lng: -87.6298}},
	}
	idx := Build(points)

	results := idx.NearestFunc(40.7128, -74.0060, 2000, 0, DefaultCovering, coordOf)
	found := map[uint32]bool{}
	for _, r := range results {
		found[r.Data.ID] = true
	}
	if !found[1] || !found[2] {
		t.Fatalf("expected both nearby stops within radius, got %v", results)
	}
	if found[3] {
		t.Fatalf("chicago stop should not be within 2km of NYC, got %v", results)
	}
}

func TestNearestEmptyIndexNeverPanics(t *testing.T) {
	idx := Build[stopPoint](nil)
	results := idx.NearestFunc(0, 0, 1000, 5, DefaultCovering, coordOf)
	if results != nil {
		t.Fatalf("expected nil results from empty index, got %v", results)
	}
}

func TestNearestMaxCountTruncates(t *testing.T) {
	var points []IndexedPoint[stopPoint]
	for i := 0; i < 20; i++ {
		lat := 40.70 + float64(i)*0.0001
		points = append(points, IndexedPoint[stopPoint]{Lat: lat, Lng: -74.0, Data: stopPoint{ID: uint32(i), Lat: lat, Lng: -74.0}})
	}
	idx := Build(points)
	results := idx.NearestFunc(40.70, -74.0, 5000, 3, DefaultCovering, coordOf)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].DistanceMeters < results[i-1].DistanceMeters {
			t.Fatalf("results not sorted ascending by distance: %v", results)
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	points := []IndexedPoint[uint32]{
		{Lat: 10, Lng: 10, Data: 7},
		{Lat: -10, Lng: -10, Data: 9},
	}
	idx := Build(points)

	var buf bytes.Buffer
	writeU32 := func(w io.Writer, v uint32) error { return binary.Write(w, binary.LittleEndian, v) }
	if err := idx.WriteTo(&buf, writeU32); err != nil {
		t.Fatalf("write: %v", err)
	}

	readU32 := func(r io.Reader) (uint32, error) {
		var v uint32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	}
	readBack, err := ReadFrom(&buf, readU32)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if readBack.Len() != idx.Len() {
		t.Fatalf("expected %d entries, got %d", idx.Len(), readBack.Len())
	}
}
