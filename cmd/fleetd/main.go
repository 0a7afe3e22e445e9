// Command fleetd runs the persistent local coordination daemon: one HTTP
// surface exposing identity, knowledge-graph, task-queue, registry, and
// tool-RPC endpoints, backed by a handful of supervised background
// workers (heartbeat integrity, filesystem watcher, render executor,
// post scheduler). See root.go for the cobra command tree.
package main

import (
	"os"

	"fleetd/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
