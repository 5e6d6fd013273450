// Command pathgo explores the engine from the terminal: generate
// synthetic social graphs, answer degrees-of-separation queries,
// benchmark throughput, and serve the whole thing over HTTP.
//
// Usage:
//
//	pathgo demo --identities 10000 --shards 4
//	pathgo bench --queries 20000 --concurrency 64
//	pathgo serve --port 8080 --preload 10000
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pathgo",
	Short: "Sharded degrees-of-separation engine",
	Long: `PathGo answers "how many hops between two people" questions over a
sharded in-memory social graph, using bidirectional BFS.

The demo and bench commands build synthetic graphs to play with; serve
exposes the engine as a small HTTP API with Prometheus metrics.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
