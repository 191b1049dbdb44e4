// Command vcut partitions a graph file across a virtual process grid, the
// standalone entry point around internal/partitioner — the Cobra-shaped
// counterpart to the teacher's src/main/main.go.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := newRootCmd(log).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
