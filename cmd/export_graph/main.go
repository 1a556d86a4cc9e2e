// Command export_graph builds a pedestrian transfer graph (§4.C) from a
// directory of street tiles: ingest edges, contract the result into a
// CH image, and persist it alongside its node-coordinate index and edge
// shape/length store. A thin shell over internal/transfergraph.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/solari-transit/engine/internal/config"
	"github.com/solari-transit/engine/internal/kvstore"
	"github.com/solari-transit/engine/internal/logging"
	"github.com/solari-transit/engine/internal/transfergraph"
	"github.com/solari-transit/engine/internal/xerrors"
)

const (
	graphFileName  = "transfer_graph.bin"
	nodeIndexFile  = "transfer_node_index.bin"
	graphMetaFile  = "graph_metadata.db"
)

func main() {
	cmd := &cobra.Command{
		Use:   "export_graph",
		Short: "Build a contracted pedestrian transfer graph from street tiles",
		RunE:  run,
	}
	flags := cmd.Flags()
	flags.String("tiles", "", "directory of street-tile files")
	flags.String("output", "", "output directory for the contracted graph")
	flags.Float64("off-road-fudge", 0, "unused by this binary; carried for parity with serve's config")
	flags.Float64("node-search-radius-m", 0, "unused by this binary; carried for parity with serve's config")
	_ = cmd.MarkFlagRequired("tiles")
	_ = cmd.MarkFlagRequired("output")

	if err := cmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func run(cmd *cobra.Command, _ []string) error {
	var cfg config.ExportGraphConfig
	if err := config.Load(cmd.Flags(), &cfg); err != nil {
		return xerrors.Wrap(xerrors.InvalidFeed, err, "loading config")
	}

	log, err := logging.New("info", "console")
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	if _, err := os.Stat(cfg.Tiles); err != nil {
		return xerrors.Wrap(xerrors.IoError, err, "statting tiles directory")
	}
	if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
		return xerrors.Wrap(xerrors.IoError, err, "creating output directory")
	}

	shapes, err := kvstore.Open(filepath.Join(cfg.Output, graphMetaFile), false)
	if err != nil {
		return xerrors.Wrap(xerrors.IoError, err, "creating graph metadata store")
	}
	defer shapes.Close()
	for _, bucket := range []string{"edge_length", "edge_shape"} {
		if err := shapes.EnsureBucket(bucket); err != nil {
			return xerrors.Wrap(xerrors.IoError, err, "creating graph metadata bucket")
		}
	}

	builder := transfergraph.NewBuilder(shapes)
	reader := newDirTileReader(cfg.Tiles)
	if err := builder.Ingest(reader); err != nil {
		return xerrors.Wrap(xerrors.InvalidFeed, err, "ingesting street tiles")
	}

	input, nodeCoords := builder.Finish()
	if input.NumNodes() == 0 {
		return xerrors.New(xerrors.InvalidFeed, "no pedestrian edges found in "+cfg.Tiles)
	}
	log.Infow("ingested street tiles", "nodes", input.NumNodes())

	contracted := transfergraph.Contract(input)
	log.Infow("contracted graph", "nodes", contracted.NumNodes)

	graphFile, err := os.Create(filepath.Join(cfg.Output, graphFileName))
	if err != nil {
		return xerrors.Wrap(xerrors.IoError, err, "creating transfer graph file")
	}
	defer graphFile.Close()
	if err := contracted.WriteTo(graphFile); err != nil {
		return xerrors.Wrap(xerrors.IoError, err, "writing transfer graph")
	}

	nodeIndexFilePath, err := os.Create(filepath.Join(cfg.Output, nodeIndexFile))
	if err != nil {
		return xerrors.Wrap(xerrors.IoError, err, "creating node index file")
	}
	defer nodeIndexFilePath.Close()
	if err := transfergraph.WriteNodeCoords(nodeIndexFilePath, nodeCoords); err != nil {
		return xerrors.Wrap(xerrors.IoError, err, "writing node index")
	}

	log.Infow("export complete", "output", cfg.Output)
	return nil
}

func exitCodeFor(err error) int {
	fmt.Fprintln(os.Stderr, err)
	if xerrors.KindOf(err) == xerrors.IoError {
		return 2
	}
	return 1
}
