// Command client is the Client process: it reads a file of query
// lines and dispatches them to the Aggregator in batches of --threads,
// each batch released from a start-barrier together so queries launch
// as close to simultaneously as possible, grounded on
// original_source/client.c's thread-per-query batching.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pantach/patientdb/internal/obslog"
	"github.com/pantach/patientdb/internal/wire"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "client: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "client",
	Short: "Send a batch of patient queries to the Aggregator",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	flags := rootCmd.Flags()
	flags.StringP("query-file", "q", "", "file of query lines, one per line (required)")
	flags.IntP("threads", "w", 1, "number of queries in flight per batch")
	flags.String("sip", "127.0.0.1", "Aggregator IP address")
	flags.Int("sp", 0, "Aggregator query port (required)")

	rootCmd.MarkFlagRequired("query-file")
	rootCmd.MarkFlagRequired("sp")
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	obslog.Init(obslog.Config{Level: obslog.Level(level), JSONOutput: jsonOut})
}

func run(cmd *cobra.Command, args []string) error {
	queryFile, _ := cmd.Flags().GetString("query-file")
	threads, _ := cmd.Flags().GetInt("threads")
	sip, _ := cmd.Flags().GetString("sip")
	sp, _ := cmd.Flags().GetInt("sp")

	queries, err := readLines(queryFile)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", sip, sp)
	log := obslog.WithComponent("client")
	var printMu sync.Mutex

	for batchStart := 0; batchStart < len(queries); batchStart += threads {
		end := batchStart + threads
		if end > len(queries) {
			end = len(queries)
		}
		batch := queries[batchStart:end]

		var startBarrier sync.WaitGroup
		startBarrier.Add(1)
		var wg sync.WaitGroup
		wg.Add(len(batch))

		for _, q := range batch {
			go func(query string) {
				defer wg.Done()
				startBarrier.Wait()
				runQuery(addr, query, &printMu, log)
			}(q)
		}
		startBarrier.Done()
		wg.Wait()
	}

	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

// runQuery dials the Aggregator, sends one query line, and prints the
// framed reply stream under printMu until an empty terminator frame
// arrives or the connection closes.
func runQuery(addr, query string, printMu *sync.Mutex, log zerolog.Logger) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("failed to connect to aggregator")
		return
	}
	defer conn.Close()

	if err := wire.WriteString(conn, query); err != nil {
		log.Error().Err(err).Str("query", query).Msg("failed to send query")
		return
	}

	var out []string
	for {
		reply, err := wire.ReadString(conn)
		if err != nil || reply == "" {
			break
		}
		out = append(out, reply)
	}

	printMu.Lock()
	fmt.Printf("=== %s ===\n", query)
	for _, line := range out {
		fmt.Print(line)
	}
	fmt.Println()
	printMu.Unlock()
}
