// Relay CLI — операторский инструмент подсистемы фоновых задач.
//
// Использование:
//
//	relay [--db-url DSN] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	jobs     Инспекция очереди jobs
//	enqueue  Ручная постановка job
//	series   Просмотр occurrences серии событий
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Relay/internal/cli"
	"github.com/shaiso/Relay/internal/config"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var dbURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "relay",
		Short:         "Relay CLI — background job queue operations",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "Postgres DSN (default: DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	storeFn := func(ctx context.Context) (*cli.Store, error) {
		dsn := dbURL
		if dsn == "" {
			cfg, err := config.Load()
			if err != nil {
				return nil, err
			}
			dsn = cfg.DBURL
		}
		return cli.NewStore(ctx, dsn)
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewJobsCmd(storeFn, outputFn),
		cli.NewEnqueueCmd(storeFn, outputFn),
		cli.NewSeriesCmd(storeFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
