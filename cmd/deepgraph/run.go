package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	markdown "github.com/MichaelMure/go-term-markdown"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"deepgraph/internal/config"
	"deepgraph/internal/logging"
	"deepgraph/internal/workflow"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold).SprintFunc()
	dimColor    = color.New(color.FgHiBlack).SprintFunc()
	failColor   = color.New(color.FgRed).SprintFunc()
)

func newRunCmd() *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "run <query>",
		Short: "Execute one research run and print the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger := logging.NewComponentLogger("cli")
			a, err := buildApp(cfg, workflow.ConsoleListener(logger), logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Println(headerColor("deepgraph"), dimColor(query))
			result, err := a.engine.Run(ctx, query)
			if err != nil {
				return err
			}

			printTaskTable(result)
			switch {
			case result.Phase == workflow.PhaseCancelled:
				fmt.Println(failColor("run cancelled"))
			case result.Report == "":
				fmt.Println(dimColor("no report produced"))
			case plain || !isTTY():
				fmt.Println(result.Report)
			default:
				width := 100
				if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
					width = w
				}
				os.Stdout.Write(markdown.Render(result.Report, width, 2))
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print the report without terminal rendering")
	return cmd
}

func printTaskTable(result *workflow.RunResult) {
	fmt.Println()
	for _, t := range result.Tasks {
		status := string(t.Status)
		if t.Status == "failed" || t.Status == "cancelled" {
			status = failColor(status)
		}
		fmt.Printf("  %-28s %s\n", t.Name, status)
	}
	fmt.Println()
}

func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
