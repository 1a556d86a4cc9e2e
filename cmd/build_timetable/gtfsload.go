package main

import (
	"time"

	"github.com/patrickbr/gtfsparser"
	"github.com/patrickbr/gtfsparser/gtfs"

	"github.com/solari-transit/engine/internal/feed"
	"github.com/solari-transit/engine/internal/xerrors"
)

// loadGTFSZip parses one GTFS static zip into a feed.Source, using the
// same gtfsparser library the corpus's own RAPTOR tests load real feeds
// with (raptor_test.go's gtfsparser.NewFeed/Parse), converting its
// in-memory model into the plain feed.* record shapes the builder
// consumes. The CSV/zip decoding itself lives in gtfsparser, not here —
// this file is just the adapter between that external parser and this
// engine's own feed contract.
func loadGTFSZip(feedID, path string) (feed.Source, error) {
	f := gtfsparser.NewFeed()
	if err := f.Parse(path); err != nil {
		return feed.Source{}, xerrors.Wrapf(xerrors.IoError, err, "parsing gtfs zip %s", path)
	}

	src := feed.Source{
		FeedID:    feedID,
		StopTimes: make(map[string][]feed.StopTime),
		Shapes:    make(map[string][]feed.ShapePoint),
	}

	for _, a := range f.Agencies {
		src.Agencies = append(src.Agencies, feed.Agency{
			AgencyID: a.Id,
			Name:     a.Name,
			Timezone: a.Timezone.GetTzString(),
		})
	}

	for _, s := range f.Stops {
		locationType := 0
		if s.Location_type != 0 {
			locationType = int(s.Location_type)
		}
		src.Stops = append(src.Stops, feed.Stop{
			StopID:       s.Id,
			Name:         s.Name,
			Lat:          float64(s.Lat),
			Lng:          float64(s.Lon),
			PlatformCode: s.Platform_code,
			LocationType: locationType,
		})
	}

	for _, r := range f.Routes {
		agencyID := ""
		if r.Agency != nil {
			agencyID = r.Agency.Id
		}
		src.Routes = append(src.Routes, feed.Route{
			RouteID:   r.Id,
			AgencyID:  agencyID,
			ShortName: r.Short_name,
			LongName:  r.Long_name,
		})
	}

	for id, shape := range f.Shapes {
		points := make([]feed.ShapePoint, 0, len(shape.Points))
		for _, p := range shape.Points {
			points = append(points, feed.ShapePoint{
				ShapeID:           id,
				Lat:               float64(p.Lat),
				Lng:               float64(p.Lon),
				Sequence:          int(p.Sequence),
				ShapeDistTraveled: float64(p.Dist_traveled),
			})
		}
		src.Shapes[id] = points
	}

	for _, t := range f.Trips {
		shapeID := ""
		if t.Shape != nil {
			shapeID = t.Shape.Id
		}
		serviceID := ""
		if t.Service != nil {
			serviceID = t.Service.Id()
		}
		src.Trips = append(src.Trips, feed.Trip{
			TripID:    t.Id,
			RouteID:   t.Route.Id,
			ServiceID: serviceID,
			Headsign:  t.Headsign,
			ShapeID:   shapeID,
		})

		stopTimes := make([]feed.StopTime, 0, len(t.StopTimes))
		for _, st := range t.StopTimes {
			stopTimes = append(stopTimes, feed.StopTime{
				TripID:            t.Id,
				StopID:            st.Stop().Id,
				StopSequence:      st.Sequence(),
				ArrivalSeconds:    st.Arrival_time().SecondsSinceMidnight(),
				DepartureSeconds:  st.Departure_time().SecondsSinceMidnight(),
				ShapeDistTraveled: float64(st.Shape_dist_traveled()),
			})
		}
		src.StopTimes[t.Id] = stopTimes
	}

	src.Calendar = &gtfsCalendar{services: f.Services}
	return src, nil
}

// gtfsCalendar resolves a GTFS service_id against gtfsparser's weekday
// bitmask, mirroring the corpus's own use of Service.RawDaymap()
// (raptor_test.go's TestForwardRaptorLIRR). calendar_dates.txt
// exceptions are folded into gtfsparser's own Service model and are not
// re-interpreted here; this resolver only walks the regular weekday
// pattern over the requested horizon.
type gtfsCalendar struct {
	services map[string]*gtfs.Service
}

func (c *gtfsCalendar) TripDays(serviceID string, anchor time.Time, horizonDays int) []int {
	svc, ok := c.services[serviceID]
	if !ok {
		return nil
	}
	daymap := svc.RawDaymap()

	var days []int
	for offset := 0; offset < horizonDays; offset++ {
		day := anchor.AddDate(0, 0, offset)
		bit := uint8(1) << uint(int(day.Weekday()+6)%7) // Monday = bit 0, per GTFS calendar.txt column order
		if daymap&bit != 0 {
			days = append(days, offset)
		}
	}
	return days
}
