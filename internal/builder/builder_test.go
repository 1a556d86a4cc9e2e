package builder

import (
	"testing"
	"time"

	"github.com/solari-transit/engine/internal/feed"
	"github.com/solari-transit/engine/internal/logging"
)

type fixedCalendar struct{ days []int }

func (c fixedCalendar) TripDays(serviceID string, anchor time.Time, horizonDays int) []int {
	var out []int
	for _, d := range c.days {
		if d < horizonDays {
			out = append(out, d)
		}
	}
	return out
}

func twoStopSource() feed.Source {
	return feed.Source{
		FeedID:   "f1",
		Agencies: []feed.Agency{{AgencyID: "a1", Name: "Metro", Timezone: "America/New_York"}},
		Stops: []feed.Stop{
			{StopID: "A", Name: "Stop A", Lat: 40.70, Lng: -74.00},
			{StopID: "B", Name: "Stop B", Lat: 40.71, Lng: -74.00},
		},
		Routes: []feed.Route{{RouteID: "R1", AgencyID: "a1", ShortName: "1"}},
		Trips: []feed.Trip{
			{TripID: "T1", RouteID: "R1", ServiceID: "weekday", Headsign: "Downtown"},
			{TripID: "T2", RouteID: "R1", ServiceID: "weekday", Headsign: "Downtown"},
			{TripID: "T3", RouteID: "R1", ServiceID: "weekday", Headsign: "Downtown"},
		},
		StopTimes: map[string][]feed.StopTime{
			"T1": {
				{TripID: "T1", StopID: "A", StopSequence: 0, ArrivalSeconds: 9 * 3600, DepartureSeconds: 9 * 3600},
				{TripID: "T1", StopID: "B", StopSequence: 1, ArrivalSeconds: 9*3600 + 300, DepartureSeconds: 9*3600 + 300},
			},
			"T2": {
				{TripID: "T2", StopID: "A", StopSequence: 0, ArrivalSeconds: 10 * 3600, DepartureSeconds: 10 * 3600},
				{TripID: "T2", StopID: "B", StopSequence: 1, ArrivalSeconds: 10*3600 + 300, DepartureSeconds: 10*3600 + 300},
			},
			"T3": {
				{TripID: "T3", StopID: "A", StopSequence: 0, ArrivalSeconds: 11 * 3600, DepartureSeconds: 11 * 3600},
				{TripID: "T3", StopID: "B", StopSequence: 1, ArrivalSeconds: 11*3600 + 300, DepartureSeconds: 11*3600 + 300},
			},
		},
		Calendar: fixedCalendar{days: []int{0}},
	}
}

func TestIngestAndFinishTwoStopScenario(t *testing.T) {
	b := New(logging.Nop(), DefaultOptions)
	anchor := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	if err := b.Ingest(twoStopSource(), anchor); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	tt, err := b.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if tt.StopCount() != 2 {
		t.Fatalf("expected 2 stops, got %d", tt.StopCount())
	}
	if len(tt.Routes()) != 1 {
		t.Fatalf("expected 1 route (single pattern), got %d", len(tt.Routes()))
	}
	if len(tt.RouteTrips()) != 3 {
		t.Fatalf("expected 3 trip instances, got %d", len(tt.RouteTrips()))
	}
	// trips sorted by departure at first stop
	trips := tt.RouteTrips()
	stopTimes := tt.TripStopTimes()
	for i := 1; i < len(trips); i++ {
		prevDep := stopTimes[trips[i-1].FirstTripStopTime].DepartureEpoch
		curDep := stopTimes[trips[i].FirstTripStopTime].DepartureEpoch
		if curDep <= prevDep {
			t.Fatalf("trips not sorted by departure: %d then %d", prevDep, curDep)
		}
	}
	if errs := Validate(tt); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestPatternClosureBidirectionalSplitsRoutes(t *testing.T) {
	src := twoStopSource()
	// add a return trip B->A on the same published route id: must land
	// in a distinct RAPTOR route since its stop sequence differs.
	src.Trips = append(src.Trips, feed.Trip{TripID: "T4", RouteID: "R1", ServiceID: "weekday"})
	src.StopTimes["T4"] = []feed.StopTime{
		{TripID: "T4", StopID: "B", StopSequence: 0, ArrivalSeconds: 9 * 3600, DepartureSeconds: 9 * 3600},
		{TripID: "T4", StopID: "A", StopSequence: 1, ArrivalSeconds: 9*3600 + 300, DepartureSeconds: 9*3600 + 300},
	}

	b := New(logging.Nop(), DefaultOptions)
	anchor := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	if err := b.Ingest(src, anchor); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	tt, err := b.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if len(tt.Routes()) != 2 {
		t.Fatalf("expected bidirectional line to split into 2 routes, got %d", len(tt.Routes()))
	}
}

func TestInvalidFeedMissingAgencyTimezone(t *testing.T) {
	src := twoStopSource()
	src.Agencies[0].Timezone = ""
	b := New(logging.Nop(), DefaultOptions)
	err := b.Ingest(src, time.Now())
	if err == nil {
		t.Fatal("expected an InvalidFeed error")
	}
}

func TestMergeImagesConcatenatesStops(t *testing.T) {
	anchor := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)

	b1 := New(logging.Nop(), DefaultOptions)
	if err := b1.Ingest(twoStopSource(), anchor); err != nil {
		t.Fatalf("ingest 1: %v", err)
	}
	img1, _ := b1.Finish()

	src2 := twoStopSource()
	src2.FeedID = "f2"
	src2.Stops = []feed.Stop{
		{StopID: "C", Name: "Stop C", Lat: 41.0, Lng: -75.0},
		{StopID: "D", Name: "Stop D", Lat: 41.1, Lng: -75.0},
	}
	for _, sts := range src2.StopTimes {
		for i := range sts {
			if sts[i].StopID == "A" {
				sts[i].StopID = "C"
			} else {
				sts[i].StopID = "D"
			}
		}
	}
	b2 := New(logging.Nop(), DefaultOptions)
	if err := b2.Ingest(src2, anchor); err != nil {
		t.Fatalf("ingest 2: %v", err)
	}
	img2, _ := b2.Finish()

	merged, err := MergeImages(img1, img2)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.StopCount() != img1.StopCount()+img2.StopCount() {
		t.Fatalf("expected union of stop counts, got %d", merged.StopCount())
	}
	if len(merged.Routes()) != len(img1.Routes())+len(img2.Routes()) {
		t.Fatalf("expected union of routes")
	}
}
