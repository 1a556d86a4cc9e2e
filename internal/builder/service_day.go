package builder

import "time"

// serviceDayStart computes the UTC epoch seconds a trip's raw GTFS
// "seconds since local midnight" figures are measured from: local noon
// on the anchor's calendar date (read in the anchor's own location) plus
// dayOffset days, minus 12 hours. This is GTFS's own
// noon-minus-12 convention and sidesteps midnight's DST ambiguity
// (grounded on preprocess_gtfs's service_day_start computation).
//
// On a spring-forward gap, local noon is never ambiguous (DST gaps in
// practice fall near 02:00-03:00, never near noon), so the only failure
// mode worth handling is a zone database that cannot resolve the day at
// all; ok is false in that case and the caller skips the day with a
// warning, matching LocalResult::None -> bail in the reference
// implementation.
func serviceDayStart(anchor time.Time, dayOffset int, tzName string) (epochSeconds int64, ok bool) {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return 0, false
	}
	day := anchor.AddDate(0, 0, dayOffset)
	noon := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, loc)
	if noon.Hour() != 12 {
		// the zone database normalized the wall-clock hour away from
		// noon, which only happens for a handful of historical zones
		// with non-hour offsets; treat as non-existent for this day.
		return 0, false
	}
	start := noon.Add(-12 * time.Hour)
	return start.Unix(), true
}
