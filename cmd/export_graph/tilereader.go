package main

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/solari-transit/engine/internal/polyline"
	"github.com/solari-transit/engine/internal/transfergraph"
)

// tileEdge is the on-disk shape of one street-tile edge record. The
// street-tile reader itself is an external collaborator (§1's non-goal
// list); no tile format ships in the reference corpus, so this binary
// reads a plain newline-delimited JSON encoding of transfergraph.Edge
// rather than inventing a binding to a specific vendor's tile format.
type tileEdge struct {
	FromLat           float64    `json:"from_lat"`
	FromLng           float64    `json:"from_lng"`
	ToLat             float64    `json:"to_lat"`
	ToLng             float64    `json:"to_lng"`
	Shape             [][2]float64 `json:"shape"`
	PedestrianAllowed bool       `json:"pedestrian_allowed"`
}

// dirTileReader implements transfergraph.TileReader over a directory of
// ".jsonl" tile files, each line one tileEdge record.
type dirTileReader struct {
	dir string
}

func newDirTileReader(dir string) *dirTileReader {
	return &dirTileReader{dir: dir}
}

func (r *dirTileReader) Edges(yield func(transfergraph.Edge) bool) error {
	files, err := filepath.Glob(filepath.Join(r.dir, "*.jsonl"))
	if err != nil {
		return errors.Wrap(err, "globbing tile directory")
	}
	for _, path := range files {
		if err := r.readFile(path, yield); err != nil {
			return err
		}
	}
	return nil
}

func (r *dirTileReader) readFile(path string, yield func(transfergraph.Edge) bool) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening tile %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw tileEdge
		if err := json.Unmarshal(line, &raw); err != nil {
			return errors.Wrapf(err, "decoding tile edge in %s", path)
		}
		if !yield(toTransferGraphEdge(raw)) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return errors.Wrapf(err, "reading tile %s", path)
	}
	return nil
}

func toTransferGraphEdge(raw tileEdge) transfergraph.Edge {
	return transfergraph.Edge{
		FromLat:           raw.FromLat,
		FromLng:           raw.FromLng,
		ToLat:             raw.ToLat,
		ToLng:             raw.ToLng,
		Shape:             toCoordinates(raw.Shape),
		PedestrianAllowed: raw.PedestrianAllowed,
	}
}

func toCoordinates(points [][2]float64) []polyline.Coordinate {
	coords := make([]polyline.Coordinate, len(points))
	for i, p := range points {
		coords[i] = polyline.Coordinate{Lat: p[0], Lng: p[1]}
	}
	return coords
}
