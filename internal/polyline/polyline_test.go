package polyline

import (
	"math"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	coords := []Coordinate{
		{Lat: 38.5, Lng: -120.2},
		{Lat: 40.7, Lng: -120.95},
		{Lat: 43.252, Lng: -126.453},
	}
	encoded := Encode(coords)
	if encoded == "" {
		t.Fatal("expected non-empty encoding")
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(coords) {
		t.Fatalf("expected %d coords, got %d", len(coords), len(decoded))
	}
	for i := range coords {
		if math.Abs(decoded[i].Lat-coords[i].Lat) > 1e-5 {
			t.Errorf("lat mismatch at %d: got %f want %f", i, decoded[i].Lat, coords[i].Lat)
		}
		if math.Abs(decoded[i].Lng-coords[i].Lng) > 1e-5 {
			t.Errorf("lng mismatch at %d: got %f want %f", i, decoded[i].Lng, coords[i].Lng)
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	if Encode(nil) != "" {
		t.Fatal("expected empty string for no coordinates")
	}
	decoded, err := Decode("")
	if err != nil || decoded != nil {
		t.Fatalf("expected nil, nil for empty input, got %v, %v", decoded, err)
	}
}
