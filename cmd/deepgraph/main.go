package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "deepgraph",
		Short: "Multi-step research runs over web search, code execution and a knowledge graph",
		Long: `deepgraph decomposes a request into tasks, executes them with tool-using
workers and synthesizes a final report. Tool results are cached and every
invocation is written to an audit ledger.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (yaml)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newServeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
