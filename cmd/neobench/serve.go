package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/calvinalkan/neobench"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

const shutdownTimeout = 5 * time.Second

// dashboardData is the /api/data document.
type dashboardData struct {
	// Baseline maps size name to baseline GFLOPS.
	Baseline      map[string]float64 `json:"baseline"`
	Optimizations []optimization     `json:"optimizations"`
	Timestamp     time.Time          `json:"timestamp"`
}

type optimization struct {
	Rank   int     `json:"rank"`
	GFLOPS float64 `json:"gflops"`
	Time   float64 `json:"time"`
	Opt    string  `json:"opt"`
	Arch   string  `json:"arch"`
	Extra  string  `json:"extra"`
	PGO    bool    `json:"pgo"`
	BOLT   bool    `json:"bolt"`
	Size   string  `json:"size"`
	Key    string  `json:"key"`
}

// systemData is the /api/system document.
type systemData struct {
	Processor string    `json:"processor"`
	Cores     int       `json:"cores"`
	Features  []string  `json:"features"`
	GOARCH    string    `json:"goarch"`
	Timestamp time.Time `json:"timestamp"`
}

func (a *app) serveCommand() *cobra.Command {
	var (
		resultsPath string
		addr        string
	)

	cmd := &cobra.Command{
		Use:   "serve --results FILE [flags]",
		Short: "Serve a saved results file as JSON for dashboards",
		Args:  noPositionalArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if resultsPath == "" {
				return &neobench.ConfigError{Field: "results", Reason: "required"}
			}

			return a.serve(cmd.Context(), addr, resultsPath)
		},
	}

	cmd.Flags().StringVar(&resultsPath, "results", "", "results file written by 'neobench run --out'")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	return cmd
}

func (a *app) serve(ctx context.Context, addr, resultsPath string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.dashboardHandler(resultsPath),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.ListenAndServe()
	}()

	fmt.Fprintf(a.stderr, "serving %s on %s\n", resultsPath, addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	listenErr := <-errCh
	if listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", listenErr)
	}

	return nil
}

// dashboardHandler serves /api/data and /api/system. The results file is
// re-read on every request so a new run shows up without a restart.
func (a *app) dashboardHandler(resultsPath string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/data", func(w http.ResponseWriter, _ *http.Request) {
		file, err := neobench.LoadResults(resultsPath)
		if err != nil {
			klog.Warningf("api/data: %v", err)
			http.Error(w, "results unavailable", http.StatusServiceUnavailable)

			return
		}

		writeAPIResponse(w, buildDashboardData(file))
	})

	mux.HandleFunc("GET /api/system", func(w http.ResponseWriter, _ *http.Request) {
		host := a.host()

		writeAPIResponse(w, systemData{
			Processor: host.CPUModel,
			Cores:     host.NumCPU,
			Features:  host.Features,
			GOARCH:    host.GOARCH,
			Timestamp: a.now().UTC(),
		})
	})

	return mux
}

func buildDashboardData(file neobench.ResultsFile) dashboardData {
	report := file.Report(0)
	data := dashboardData{Baseline: map[string]float64{}, Timestamp: file.Timestamp}

	for _, size := range report.Sizes {
		if base, ok := lo.Find(size.Rows, func(r neobench.ReportRow) bool { return r.Baseline }); ok {
			data.Baseline[size.Size.Name] = base.GFLOPS
		}

		for _, row := range size.Rows {
			c := row.Combination

			data.Optimizations = append(data.Optimizations, optimization{
				Rank:   row.Rank,
				GFLOPS: row.GFLOPS,
				Time:   row.WallSeconds,
				Opt:    c.Level.Flag(),
				Arch:   c.Arch.String(),
				Extra:  c.Extra.String(),
				PGO:    c.PGO,
				BOLT:   c.BOLT,
				Size:   c.Size.Name,
				Key:    row.Key,
			})
		}
	}

	return data
}

func writeAPIResponse(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		klog.Warningf("write api response: %v", err)
	}
}
