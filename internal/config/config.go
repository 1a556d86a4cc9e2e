// Package config wraps viper into the typed configuration structs each
// CLI binary builds from flags, environment variables, and an optional
// config file.
package config

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BuildConfig configures cmd/build_timetable.
type BuildConfig struct {
	BasePath         string        `mapstructure:"base-path"`
	GtfsPath         string        `mapstructure:"gtfs-path"`
	ValhallaEndpoint string        `mapstructure:"valhalla-endpoint"`
	NumThreads       int           `mapstructure:"num-threads"`
	HorizonDays      int           `mapstructure:"horizon-days"`
	FakeWalkSpeed    float64       `mapstructure:"fake-walk-speed"`
	EnforceInvariants bool         `mapstructure:"enforce-invariants"`
	MatrixTimeout    time.Duration `mapstructure:"matrix-timeout"`
}

// ExportGraphConfig configures cmd/export_graph.
type ExportGraphConfig struct {
	Tiles           string  `mapstructure:"tiles"`
	Output          string  `mapstructure:"output"`
	OffRoadFudge    float64 `mapstructure:"off-road-fudge"`
	NodeSearchRadiusM float64 `mapstructure:"node-search-radius-m"`
}

// DownloadFeedsConfig configures cmd/download_feeds.
type DownloadFeedsConfig struct {
	DmfrDir string `mapstructure:"dmfr-dir"`
	ZipDir  string `mapstructure:"zip-dir"`
}

// ServeConfig configures cmd/serve.
type ServeConfig struct {
	BasePath      string  `mapstructure:"base-path"`
	Port          int     `mapstructure:"port"`
	MaxTransfers  int     `mapstructure:"max-transfers"`
	TransferDelta int     `mapstructure:"max-transfer-delta"`
	FakeWalkSpeed float64 `mapstructure:"fake-walk-speed"`
}

// Load binds the given flag set into v (env-overridable via the
// SOLARI_ prefix) and unmarshals it into out.
func Load(flags *pflag.FlagSet, out interface{}) error {
	v := viper.New()
	v.SetEnvPrefix("SOLARI")
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return err
	}
	return v.Unmarshal(out)
}
