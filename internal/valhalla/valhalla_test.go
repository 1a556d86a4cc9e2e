package valhalla

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/solari-transit/engine/internal/xerrors"
)

func TestSourcesToTargetsHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		toIdx := 0
		tm := 300
		resp := MatrixResponse{SourcesToTargets: [][]MatrixLineItem{{{ToIndex: &toIdx, Time: &tm}}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	resp, err := c.SourcesToTargets(context.Background(), []Location{{Lat: 1, Lon: 1}}, []Location{{Lat: 2, Lon: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.SourcesToTargets) != 1 || *resp.SourcesToTargets[0][0].Time != 300 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSourcesToTargetsExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	c.backoff = time.Millisecond
	_, err := c.SourcesToTargets(context.Background(), []Location{{Lat: 1, Lon: 1}}, []Location{{Lat: 2, Lon: 2}})
	if err == nil {
		t.Fatal("expected an error")
	}
	if xerrors.KindOf(err) != xerrors.MatrixUnavailable {
		t.Fatalf("expected MatrixUnavailable, got %v", xerrors.KindOf(err))
	}
}
