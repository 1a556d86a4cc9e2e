// Command serve opens a built timetable image and transfer graph and
// wires a single raptor.Router instance behind a minimal query
// endpoint. The HTTP façade itself is out of scope (§1's non-goal
// list): this binary exposes just enough surface — one POST endpoint
// marshalling internal/api's Request/Response — for an external façade
// to sit in front of, per §9/§10's "the HTTP layer owns a single router
// instance".
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solari-transit/engine/internal/api"
	"github.com/solari-transit/engine/internal/config"
	"github.com/solari-transit/engine/internal/logging"
	"github.com/solari-transit/engine/internal/raptor"
	"github.com/solari-transit/engine/internal/timetable"
	"github.com/solari-transit/engine/internal/transfergraph"
	"github.com/solari-transit/engine/internal/xerrors"
)

func main() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve routing queries over a built timetable and transfer graph",
		RunE:  run,
	}
	flags := cmd.Flags()
	flags.String("base-path", "", "directory holding the built timetable and transfer graph")
	flags.Int("port", 8000, "listen port")
	flags.Int("max-transfers", 0, "server-wide RAPTOR round ceiling (0 = unbounded)")
	flags.Int("max-transfer-delta", 0, "extra rounds searched after the first itinerary is found (0 = disabled)")
	flags.Float64("fake-walk-speed", 2.0, "seconds of last-mile walk cost charged per meter between a stop and the query's exact coordinate")
	_ = cmd.MarkFlagRequired("base-path")

	if err := cmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func run(cmd *cobra.Command, _ []string) error {
	var cfg config.ServeConfig
	if err := config.Load(cmd.Flags(), &cfg); err != nil {
		return xerrors.Wrap(xerrors.InvalidFeed, err, "loading config")
	}

	log, err := logging.New("info", "console")
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	tt, err := timetable.Open(cfg.BasePath)
	if err != nil {
		return xerrors.Wrap(xerrors.IoError, err, "opening timetable")
	}
	defer tt.Close()

	graph, err := transfergraph.Open(
		filepath.Join(cfg.BasePath, "transfer_graph.bin"),
		filepath.Join(cfg.BasePath, "transfer_node_index.bin"),
		filepath.Join(cfg.BasePath, "graph_metadata.db"),
	)
	if err != nil {
		return xerrors.Wrap(xerrors.IoError, err, "opening transfer graph")
	}

	router := raptor.New(tt, transfergraph.NewSearcher(graph), raptor.Options{
		MaxTransfers:              cfg.MaxTransfers,
		MaxTransferDelta:          cfg.TransferDelta,
		MaxCandidateStopsEachSide: 4,
		FakeWalkSpeedSecPerM:      cfg.FakeWalkSpeed,
	}, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/route", routeHandler(router, log))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("listening", "port", cfg.Port, "base_path", cfg.BasePath)
		serveErr <- srv.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return xerrors.Wrap(xerrors.IoError, err, "serving")
		}
	case <-ctx.Done():
		log.Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return xerrors.Wrap(xerrors.IoError, err, "shutting down")
		}
	}
	return nil
}

func routeHandler(router *raptor.Router, log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req api.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		resp, err := router.Route(r.Context(), req)
		if err != nil {
			if xerrors.Is(err, xerrors.NoRoute) || xerrors.Is(err, xerrors.TooEarly) || xerrors.Is(err, xerrors.TooLate) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(api.Response{Status: api.StatusNoRoute})
				return
			}
			log.Errorw("routing query failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func exitCodeFor(err error) int {
	fmt.Fprintln(os.Stderr, err)
	if xerrors.KindOf(err) == xerrors.IoError {
		return 2
	}
	return 1
}
