// Package transfermatrix builds each stop's near-neighbour transfer
// list: analytic great-circle estimates, or external matrix-service walk
// times with an analytic fallback on failure (§4.F).
package transfermatrix

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/solari-transit/engine/internal/geomath"
	"github.com/solari-transit/engine/internal/spatial"
	"github.com/solari-transit/engine/internal/timetable"
	"github.com/solari-transit/engine/internal/valhalla"
	"github.com/solari-transit/engine/internal/xerrors"
)

// Options tunes the near-neighbour search and analytic fallback.
type Options struct {
	MinRadiusMeters  float64
	MaxRadiusMeters  float64
	MaxCandidates    int
	FakeWalkSpeedSecPerM float64
}

// DefaultOptions mirrors §4.F's "1-5 km, up to 50 nearest" and the
// reference implementation's FAKE_WALK_SPEED_SECONDS_PER_METER.
var DefaultOptions = Options{MinRadiusMeters: 1000, MaxRadiusMeters: 5000, MaxCandidates: 50, FakeWalkSpeedSecPerM: 2.0}

// Builder computes a transfer list per stop, optionally consulting an
// external matrix service.
type Builder struct {
	log     *zap.SugaredLogger
	opts    Options
	matrix  *valhalla.Client // nil => analytic only
}

// New creates a Builder. matrixClient may be nil to force analytic-only
// mode.
func New(log *zap.SugaredLogger, opts Options, matrixClient *valhalla.Client) *Builder {
	if opts == (Options{}) {
		opts = DefaultOptions
	}
	return &Builder{log: log, opts: opts, matrix: matrixClient}
}

// BuildFor computes the transfer list for one stop against a stop
// spatial index, in arrival order (nearest first), per §4.F step 3.
func (b *Builder) BuildFor(ctx context.Context, stop timetable.Stop, index *spatial.Index[timetable.Stop]) ([]timetable.Transfer, error) {
	lat, lng := spatial.LatLngForCellID(stop.S2CellID)
	candidates := index.NearestFunc(lat, lng, b.opts.MaxRadiusMeters, b.opts.MaxCandidates, spatial.DefaultCovering,
		func(s timetable.Stop) (float64, float64) { return spatial.LatLngForCellID(s.S2CellID) })

	var filtered []spatial.Result[timetable.Stop]
	for _, c := range candidates {
		if c.Data.StopIndex == stop.StopIndex {
			continue
		}
		if c.DistanceMeters < b.opts.MinRadiusMeters {
			continue
		}
		filtered = append(filtered, c)
	}

	if b.matrix == nil {
		return b.analyticTransfers(stop, filtered), nil
	}

	transfers, err := b.matrixTransfers(ctx, stop, filtered)
	if err != nil {
		if xerrors.Is(err, xerrors.MatrixUnavailable) {
			b.log.Warnw("matrix service unavailable, falling back to analytic estimate", "stop", stop.StopIndex, "error", err)
			return b.analyticTransfers(stop, filtered), nil
		}
		return nil, err
	}
	return transfers, nil
}

func (b *Builder) analyticTransfers(stop timetable.Stop, candidates []spatial.Result[timetable.Stop]) []timetable.Transfer {
	out := make([]timetable.Transfer, 0, len(candidates))
	for _, c := range candidates {
		seconds := c.DistanceMeters * b.opts.FakeWalkSpeedSecPerM
		out = append(out, timetable.Transfer{From: stop.StopIndex, To: c.Data.StopIndex, TimeSeconds: uint32(seconds)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeSeconds < out[j].TimeSeconds })
	return out
}

func (b *Builder) matrixTransfers(ctx context.Context, stop timetable.Stop, candidates []spatial.Result[timetable.Stop]) ([]timetable.Transfer, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	srcLat, srcLng := spatial.LatLngForCellID(stop.S2CellID)
	targets := make([]valhalla.Location, len(candidates))
	for i, c := range candidates {
		lat, lng := spatial.LatLngForCellID(c.Data.S2CellID)
		targets[i] = valhalla.Location{Lat: lat, Lon: lng}
	}

	resp, err := b.matrix.SourcesToTargets(ctx, []valhalla.Location{{Lat: srcLat, Lon: srcLng}}, targets)
	if err != nil {
		return nil, err
	}
	if len(resp.SourcesToTargets) == 0 {
		return b.analyticTransfers(stop, candidates), nil
	}

	row := resp.SourcesToTargets[0]
	out := make([]timetable.Transfer, 0, len(row))
	for _, item := range row {
		if item.ToIndex == nil || item.Time == nil {
			b.log.Warnw("dropping invalid matrix line item", "stop", stop.StopIndex)
			continue
		}
		idx := *item.ToIndex
		if idx < 0 || idx >= len(candidates) {
			continue
		}
		out = append(out, timetable.Transfer{
			From:        stop.StopIndex,
			To:          candidates[idx].Data.StopIndex,
			TimeSeconds: uint32(*item.Time),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimeSeconds < out[j].TimeSeconds })
	return out, nil
}

// AttachAnalyticFallback computes a walking cost between two coordinates
// using the same analytic model as BuildFor's fallback (great-circle
// distance times seconds per metre). The router's initialisation step
// computes its start costs inline with the same formula rather than
// calling this function.
func AttachAnalyticFallback(fakeWalkSpeedSecPerM float64, lat1, lng1, lat2, lng2 float64) float64 {
	return geomath.GreatCircleMeters(lat1, lng1, lat2, lng2) * fakeWalkSpeedSecPerM
}
