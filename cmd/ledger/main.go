package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/log"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "ledger:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cli.LoadEnvFile()

	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "SQLite database path (overrides SQLITE_DB_PATH)")
	username := fs.String("user", "", "log in as this user instead of prompting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Keep the terminal quiet unless a level was asked for.
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger := cli.SetupLogger(level, stderr, log.ComponentCLI)

	cfg, err := cli.LoadAndValidateConfig(func(c *config.Config) {
		if *dbPath != "" {
			c.SQLiteDBPath = *dbPath
		}
	})
	if err != nil {
		return err
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := backend.NewFactory(logger.Logger).CreateLedger(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer cli.RunCleanup(logger, "ledger", res.Cleanup)

	return newApp(res.Ledger, stdin, stdout, logger, isTerminal(stdin, stdout)).run(ctx, *username)
}

// isTerminal reports whether both ends of the session are a terminal.
func isTerminal(in io.Reader, out io.Writer) bool {
	fin, ok := in.(*os.File)
	if !ok {
		return false
	}
	fout, ok := out.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(fin.Fd())) && term.IsTerminal(int(fout.Fd()))
}
