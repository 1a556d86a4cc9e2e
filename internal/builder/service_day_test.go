package builder

import (
	"testing"
	"time"
)

func TestServiceDayStartRegularDay(t *testing.T) {
	anchor := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	epoch, ok := serviceDayStart(anchor, 0, "America/New_York")
	if !ok {
		t.Fatal("expected ok for a regular day")
	}
	got := time.Unix(epoch, 0).UTC()
	// EST is UTC-5 in January; local midnight is 05:00 UTC.
	want := time.Date(2026, 1, 15, 5, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestServiceDayStartSpringForward(t *testing.T) {
	// US spring-forward in 2026 is 2026-03-08; noon is never ambiguous
	// or non-existent for that transition (the gap is 02:00-03:00), so
	// service_day_start resolves normally. Ingest places every stop time
	// at this start plus its raw seconds, so a 02:30 local trip on that
	// day is kept, not omitted.
	anchor := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	_, ok := serviceDayStart(anchor, 0, "America/New_York")
	if !ok {
		t.Fatal("expected service day to resolve on the DST transition date")
	}
}

func TestServiceDayStartUnknownTimezone(t *testing.T) {
	_, ok := serviceDayStart(time.Now(), 0, "Not/AZone")
	if ok {
		t.Fatal("expected unknown timezone to fail")
	}
}
