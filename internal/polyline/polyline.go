// Package polyline wraps github.com/twpayne/go-polyline at the
// precision-5 encoding the engine uses for every shape on the wire and
// in the sidecar metadata store.
package polyline

import gopolyline "github.com/twpayne/go-polyline"

var codec = gopolyline.Codec{Dim: 2, Precision: 5}

// Coordinate is a lat/lng pair in degrees.
type Coordinate struct {
	Lat, Lng float64
}

// Encode renders coordinates as a precision-5 encoded polyline string.
func Encode(coords []Coordinate) string {
	if len(coords) == 0 {
		return ""
	}
	flat := make([][]float64, len(coords))
	for i, c := range coords {
		flat[i] = []float64{c.Lat, c.Lng}
	}
	return string(codec.EncodeCoords(nil, flat))
}

// Decode parses a precision-5 encoded polyline string back into
// coordinates.
func Decode(encoded string) ([]Coordinate, error) {
	if encoded == "" {
		return nil, nil
	}
	flat, _, err := codec.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, err
	}
	coords := make([]Coordinate, len(flat))
	for i, c := range flat {
		coords[i] = Coordinate{Lat: c[0], Lng: c[1]}
	}
	return coords, nil
}
