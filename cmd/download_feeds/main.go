// Command download_feeds walks a directory of DMFR registry files and
// downloads each listed feed's current static GTFS zip, grounded on
// original_source's download_feeds.rs. A thin shell: one goroutine per
// DMFR file, errors from one file don't abort the others.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/solari-transit/engine/internal/config"
	"github.com/solari-transit/engine/internal/logging"
	"github.com/solari-transit/engine/internal/xerrors"
)

func main() {
	cmd := &cobra.Command{
		Use:   "download_feeds",
		Short: "Download GTFS static zips listed in a directory of DMFR registries",
		RunE:  run,
	}
	flags := cmd.Flags()
	flags.String("dmfr-dir", "", "directory of *.json DMFR registry files")
	flags.String("zip-dir", "", "output directory for downloaded zips (defaults to dmfr-dir)")
	_ = cmd.MarkFlagRequired("dmfr-dir")

	if err := cmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func run(cmd *cobra.Command, _ []string) error {
	var cfg config.DownloadFeedsConfig
	if err := config.Load(cmd.Flags(), &cfg); err != nil {
		return xerrors.Wrap(xerrors.InvalidFeed, err, "loading config")
	}
	zipDir := cfg.ZipDir
	if zipDir == "" {
		zipDir = cfg.DmfrDir
	}

	log, err := logging.New("info", "console")
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	entries, err := os.ReadDir(cfg.DmfrDir)
	if err != nil {
		return xerrors.Wrap(xerrors.IoError, err, "reading dmfr directory")
	}
	if err := os.MkdirAll(zipDir, 0o755); err != nil {
		return xerrors.Wrap(xerrors.IoError, err, "creating zip directory")
	}

	client := &http.Client{Timeout: 5 * time.Second}

	var g errgroup.Group
	for _, entry := range entries {
		entry := entry
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		path := filepath.Join(cfg.DmfrDir, entry.Name())
		g.Go(func() error {
			if err := downloadDMFR(client, path, zipDir); err != nil {
				log.Warnw("failed to download feeds from registry", "path", path, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Infow("download complete", "zip_dir", zipDir)
	return nil
}

// downloadDMFR parses one DMFR registry and fetches every feed's current
// static zip, naming each output file <registry-basename>.<feed-index>.zip
// exactly as download_feeds.rs does.
func downloadDMFR(client *http.Client, path, zipDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return xerrors.Wrap(xerrors.IoError, err, "reading dmfr file")
	}
	var reg registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return xerrors.Wrap(xerrors.InvalidFeed, err, "parsing dmfr file")
	}

	base := filepath.Base(path)
	for i, feed := range reg.Feeds {
		if feed.URLs.StaticCurrent == "" {
			continue
		}
		if err := downloadZip(client, feed.URLs.StaticCurrent, filepath.Join(zipDir, fmt.Sprintf("%s.%d.zip", base, i))); err != nil {
			return xerrors.Wrapf(xerrors.IoError, err, "downloading feed %d", i)
		}
	}
	return nil
}

func downloadZip(client *http.Client, url, destPath string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return err
	}
	return nil
}

func exitCodeFor(err error) int {
	fmt.Fprintln(os.Stderr, err)
	if xerrors.KindOf(err) == xerrors.IoError {
		return 2
	}
	return 1
}
