// Command worker is the Worker process. It is never invoked
// directly by an operator: the Master spawns one per slot with --pipe
// pointing at that slot's FIFO, through which it receives its assigned
// countries and the Aggregator's address.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pantach/patientdb/internal/metrics"
	"github.com/pantach/patientdb/internal/obslog"
	"github.com/pantach/patientdb/internal/workersrv"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "worker",
	Short: "Ingest one set of countries and serve patient queries for them",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	flags := rootCmd.Flags()
	flags.String("pipe", "", "path to the Master's named pipe for this slot (required)")
	flags.String("input-dir", ".", "input directory, one subdirectory per country")
	flags.String("metrics-addr", "", "address for the Prometheus /metrics endpoint (empty disables it)")
	flags.Int("buffer-size", 4096, "chunk size, in bytes, for reads on the Master's pipe (set by the Master at spawn time)")

	rootCmd.MarkFlagRequired("pipe")
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	obslog.Init(obslog.Config{Level: obslog.Level(level), JSONOutput: jsonOut})
}

func run(cmd *cobra.Command, args []string) error {
	pipePath, _ := cmd.Flags().GetString("pipe")
	inputDir, _ := cmd.Flags().GetString("input-dir")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	bufSize, _ := cmd.Flags().GetInt("buffer-size")

	log := obslog.WithComponent("worker")

	w, err := workersrv.NewWorker(workersrv.CLA{PipePath: pipePath, InputDir: inputDir, BufferSize: bufSize})
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	stats := w.IngestAll()

	if err := w.Listen(); err != nil {
		return err
	}
	log.Info().Int("port", w.Port()).Msg("worker listening")

	if err := w.RegisterAndPushStats(stats); err != nil {
		log.Error().Err(err).Msg("initial registration failed")
	}

	return w.Serve()
}
