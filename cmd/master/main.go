// Command master is the Master process: it discovers the
// per-country input directories, spawns one Worker process per slot over
// a round-robin country assignment, hands each Worker its pipe
// handshake, and respawns on unexpected child death.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pantach/patientdb/internal/obslog"
	"github.com/pantach/patientdb/internal/supervisor"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "master: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "master",
	Short: "Spawn and supervise the patientdb Worker processes",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	flags := rootCmd.Flags()
	flags.IntP("workers", "w", 0, "number of worker processes to spawn (required)")
	flags.IntP("buffer-size", "b", 64, "per-worker FIFO framed-message buffer size")
	flags.StringP("agg-ip", "s", "", "Aggregator IP address (required)")
	flags.IntP("agg-port", "p", 0, "Aggregator stats port (required)")
	flags.StringP("input-dir", "i", "", "input directory, one subdirectory per country (required)")
	flags.String("worker-binary", "./worker", "path to the worker binary")

	rootCmd.MarkFlagRequired("workers")
	rootCmd.MarkFlagRequired("agg-ip")
	rootCmd.MarkFlagRequired("agg-port")
	rootCmd.MarkFlagRequired("input-dir")
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	obslog.Init(obslog.Config{Level: obslog.Level(level), JSONOutput: jsonOut})
}

func run(cmd *cobra.Command, args []string) error {
	workers, _ := cmd.Flags().GetInt("workers")
	bufSize, _ := cmd.Flags().GetInt("buffer-size")
	aggIP, _ := cmd.Flags().GetString("agg-ip")
	aggPort, _ := cmd.Flags().GetInt("agg-port")
	inputDir, _ := cmd.Flags().GetString("input-dir")
	workerBinary, _ := cmd.Flags().GetString("worker-binary")

	sup, err := supervisor.New(supervisor.CLA{
		WorkersRequested: workers,
		BufferSize:       bufSize,
		InputDir:         inputDir,
		AggregatorAddr:   fmt.Sprintf("%s:%d", aggIP, aggPort),
		WorkerBinary:     workerBinary,
	})
	if err != nil {
		return err
	}

	log := obslog.WithComponent("master")
	log.Info().Int("workers", workers).Str("input_dir", inputDir).Msg("starting master")

	return sup.Run(context.Background())
}
