// Command build_timetable ingests one or more GTFS static feeds and
// emits a memory-mappable timetable image plus its sidecar metadata
// store, per spec §6's persisted layout. A thin shell: flags in,
// internal/builder + internal/transfermatrix do the work, exit code
// maps the resulting error's xerrors.Kind.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solari-transit/engine/internal/builder"
	"github.com/solari-transit/engine/internal/config"
	"github.com/solari-transit/engine/internal/feed"
	"github.com/solari-transit/engine/internal/logging"
	"github.com/solari-transit/engine/internal/spatial"
	"github.com/solari-transit/engine/internal/timetable"
	"github.com/solari-transit/engine/internal/transfermatrix"
	"github.com/solari-transit/engine/internal/valhalla"
	"github.com/solari-transit/engine/internal/xerrors"
)

func main() {
	cmd := &cobra.Command{
		Use:   "build_timetable",
		Short: "Build a timetable image from one or more GTFS feeds",
		RunE:  run,
	}
	flags := cmd.Flags()
	flags.String("base-path", "", "output directory for the built image")
	flags.String("gtfs-path", "", "GTFS zip file, or a directory of GTFS zips")
	flags.String("valhalla-endpoint", "", "optional pedestrian matrix service endpoint")
	flags.Int("num-threads", 0, "build fan-out width (0 = number of CPUs)")
	_ = cmd.MarkFlagRequired("base-path")
	_ = cmd.MarkFlagRequired("gtfs-path")

	if err := cmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func run(cmd *cobra.Command, _ []string) error {
	var cfg config.BuildConfig
	if err := config.Load(cmd.Flags(), &cfg); err != nil {
		return xerrors.Wrap(xerrors.InvalidFeed, err, "loading config")
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 14
	}

	log, err := logging.New("info", "console")
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	zips, err := discoverZips(cfg.GtfsPath)
	if err != nil {
		return err
	}
	if len(zips) == 0 {
		return xerrors.New(xerrors.InvalidFeed, "no GTFS zip found at "+cfg.GtfsPath)
	}

	sources := make([]feed.Source, 0, len(zips))
	for _, path := range zips {
		feedID := uuid.NewString()
		src, err := loadGTFSZip(feedID, path)
		if err != nil {
			log.Warnw("skipping unreadable feed", "path", path, "error", err)
			continue
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return xerrors.New(xerrors.InvalidFeed, "every GTFS feed failed to parse")
	}

	opts := builder.Options{
		HorizonDays:       cfg.HorizonDays,
		FakeWalkSpeedSecPerM: cfg.FakeWalkSpeed,
		EnforceInvariants: cfg.EnforceInvariants,
	}
	if opts.FakeWalkSpeedSecPerM == 0 {
		opts.FakeWalkSpeedSecPerM = builder.DefaultOptions.FakeWalkSpeedSecPerM
	}

	ctx := context.Background()
	anchor := time.Now().UTC()
	image, buildErrs := builder.BuildAll(ctx, log, sources, anchor, opts, cfg.NumThreads)
	for _, e := range buildErrs {
		log.Warnw("feed build error", "error", e)
	}
	if image == nil {
		return xerrors.New(xerrors.InvalidFeed, "no feed produced a usable image")
	}

	if cfg.EnforceInvariants {
		if violations := builder.Validate(image); len(violations) > 0 {
			for _, v := range violations {
				log.Errorw("invariant violation", "error", v)
			}
			return xerrors.New(xerrors.InconsistentImage, "built image failed invariant validation")
		}
	}

	image, err = attachTransfers(ctx, log, image, cfg)
	if err != nil {
		return err
	}

	if err := timetable.WriteTo(cfg.BasePath, image); err != nil {
		return err
	}
	log.Infow("build complete", "base_path", cfg.BasePath, "stops", image.StopCount(), "routes", len(image.Routes()))
	return nil
}

// attachTransfers runs the transfer-matrix builder (§4.F) over every
// stop in the finished image and returns a copy with the resulting
// transfer columns attached.
func attachTransfers(ctx context.Context, log *zap.SugaredLogger, image *timetable.InMemory, cfg config.BuildConfig) (*timetable.InMemory, error) {
	var matrixClient *valhalla.Client
	if cfg.ValhallaEndpoint != "" {
		matrixClient = valhalla.NewClient(cfg.ValhallaEndpoint, cfg.MatrixTimeout)
	}
	tb := transfermatrix.New(log, transfermatrix.DefaultOptions, matrixClient)

	stops := image.Stops()
	points := make([]spatial.IndexedPoint[timetable.Stop], 0, len(stops))
	for _, s := range stops {
		lat, lng := spatial.LatLngForCellID(s.S2CellID)
		points = append(points, spatial.IndexedPoint[timetable.Stop]{Lat: lat, Lng: lng, Data: s})
	}
	index := spatial.Build(points)

	transferIndex := make([]uint32, len(stops))
	var transfers []timetable.Transfer
	for _, s := range stops {
		transferIndex[s.StopIndex] = uint32(len(transfers))
		list, err := tb.BuildFor(ctx, s, index)
		if err != nil {
			log.Warnw("transfer matrix build failed for stop, continuing", "stop", s.StopIndex, "error", err)
			continue
		}
		transfers = append(transfers, list...)
	}
	return image.WithTransfers(transferIndex, transfers), nil
}

func discoverZips(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.IoError, err, "statting gtfs-path")
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	matches, err := filepath.Glob(filepath.Join(path, "*.zip"))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.IoError, err, "globbing gtfs-path")
	}
	return matches, nil
}

func exitCodeFor(err error) int {
	fmt.Fprintln(os.Stderr, err)
	if xerrors.KindOf(err) == xerrors.IoError {
		return 2
	}
	return 1
}
