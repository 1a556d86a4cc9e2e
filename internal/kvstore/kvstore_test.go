package kvstore

import (
	"path/filepath"
	"testing"
)

type sample struct {
	Name string
	N    int
}

func TestPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "meta.db"), false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	if err := store.EnsureBucket("stop_metadata"); err != nil {
		t.Fatalf("ensure bucket: %v", err)
	}
	want := sample{Name: "Union Square", N: 42}
	if err := Put(store, "stop_metadata", 7, want); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := Get[sample](store, "stop_metadata", 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected key to be present")
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}

	_, ok, err = Get[sample](store, "stop_metadata", 99)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if ok {
		t.Fatal("expected missing key to report ok=false")
	}
}

func TestPutPairGetPair(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "graph.db"), false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	if err := store.EnsureBucket("edge_length"); err != nil {
		t.Fatalf("ensure bucket: %v", err)
	}
	if err := PutPair(store, "edge_length", 3, 5, 120.5); err != nil {
		t.Fatalf("put pair: %v", err)
	}
	got, ok, err := GetPair[float64](store, "edge_length", 3, 5)
	if err != nil || !ok || got != 120.5 {
		t.Fatalf("got %v %v %v", got, ok, err)
	}
}
