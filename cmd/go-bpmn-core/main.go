/*
go-bpmn-core is a CLI for running BPMN processes on an embedded process engine.

Usage:

	go-bpmn-core [flags]
	go-bpmn-core [command]

Available Commands:

	completion       Generate the autocompletion script for the specified shell
	execution        Query and trigger executions
	help             Help about any command
	migrate          Migrate the database schema of a pg engine
	process          Create processes
	process-instance Manage process instances
	run              Create a process from a BPMN file and run an instance of it
	set-time         Set the engine's time
	timer            Query and execute timers
	variable         Get and set variables
	version          Show version

Flags:

	    --config string         YAML config file
	    --database-url string   PostgreSQL URL, required for engine pg
	    --engine engine         Engine type: mem or pg (default mem)
	    --engine-id string      ID of the engine (default "default-engine")
	-h, --help                  help for go-bpmn-core
	    --log-level string      Engine log level (default "error")
	    --worker-id string      Worker ID (default "go-bpmn-core")

Each flag can also be set via an environment variable, e.g. --database-url via GO_BPMN_DATABASE_URL.

Use "go-bpmn-core [command] --help" for more information about a command.
*/
package main

import (
	"os"

	"github.com/gclaussn/go-bpmn-core/cli"
)

var (
	version = "unknown-version"
)

func main() {
	cli := cli.New(version)
	os.Exit(cli.Execute())
}
