// Command aggregator is the Aggregator process: it accepts query
// connections from Clients and stats/registration connections from
// Workers on two separate TCP listeners, queues both behind a bounded
// accept queue, and services them from a fixed thread pool.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pantach/patientdb/internal/aggregator"
	"github.com/pantach/patientdb/internal/metrics"
	"github.com/pantach/patientdb/internal/obslog"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "aggregator: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "aggregator",
	Short: "Fan out patient queries to the registered Workers",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	flags := rootCmd.Flags()
	flags.IntP("query-port", "q", 0, "TCP port clients connect to (required)")
	flags.IntP("stats-port", "s", 0, "TCP port workers connect to for registration and stats (required)")
	flags.IntP("threads", "w", 4, "fixed thread-pool size")
	flags.IntP("queue-capacity", "b", 16, "bounded accept-queue capacity")
	flags.String("metrics-addr", "127.0.0.1:9091", "address for the Prometheus /metrics endpoint")

	rootCmd.MarkFlagRequired("query-port")
	rootCmd.MarkFlagRequired("stats-port")
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	obslog.Init(obslog.Config{Level: obslog.Level(level), JSONOutput: jsonOut})
}

func run(cmd *cobra.Command, args []string) error {
	queryPort, _ := cmd.Flags().GetInt("query-port")
	statsPort, _ := cmd.Flags().GetInt("stats-port")
	threads, _ := cmd.Flags().GetInt("threads")
	queueCap, _ := cmd.Flags().GetInt("queue-capacity")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	log := obslog.WithComponent("aggregator")

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Warn().Err(err).Msg("metrics server stopped")
		}
	}()
	log.Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")

	srv := aggregator.New(aggregator.CLA{
		QueryPort: queryPort,
		StatsPort: statsPort,
		Workers:   threads,
		QueueSize: queueCap,
	})
	return srv.Run()
}
