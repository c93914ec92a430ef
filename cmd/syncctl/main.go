// Command syncctl inspects and drives the relay's local store from the device shell.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prudhvinik1/robotrelay/internal/app"
	"github.com/prudhvinik1/robotrelay/internal/config"
	"github.com/prudhvinik1/robotrelay/internal/models"
	"github.com/spf13/pflag"
)

const usage = `usage: syncctl [--env-file FILE] [-v] <command> [flags]

commands:
  status                 print the last sync outcome and pending count
  sync                   run one sync cycle now
  query [--date DATE]    print stored samples, cloud first
  token --producer NAME  issue a producer token for POST /api/samples
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "syncctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := pflag.NewFlagSet("syncctl", pflag.ContinueOnError)
	global.SetInterspersed(false)
	envFile := global.String("env-file", ".env", "dotenv file to load")
	verbose := global.BoolP("verbose", "v", false, "log to stderr")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return fmt.Errorf("missing command")
	}

	godotenv.Load(*envFile)
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logOut := io.Discard
	if *verbose {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: cfg.LogLevel}))

	command, rest := global.Arg(0), global.Args()[1:]
	if command == "token" {
		// Tokens need only the secret; no store is opened.
		return runToken(cfg, rest, out)
	}

	relay, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer relay.Close()

	switch command {
	case "status":
		return runStatus(ctx, relay, out)
	case "sync":
		return runSync(ctx, relay, out)
	case "query":
		return runQuery(ctx, relay, rest, out)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runStatus(ctx context.Context, relay *app.App, out io.Writer) error {
	status, err := relay.Status.Get(ctx)
	if err != nil {
		return err
	}
	pending, err := relay.Local.CountUnsynced(ctx)
	if err != nil {
		return err
	}
	total, err := relay.Local.Count(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "source:       %s\n", relay.Source.ID)
	fmt.Fprintf(out, "cloud:        %s\n", configured(relay.Cloud.Configured()))
	fmt.Fprintf(out, "samples:      %d (%d pending)\n", total, pending)
	if status.NeverSynced() {
		fmt.Fprintln(out, "last attempt: never")
		return nil
	}
	fmt.Fprintf(out, "last attempt: %s (%s)\n", status.LastAttemptAt.Local().Format(time.RFC3339), outcome(status))
	if status.LastSyncAt != nil {
		fmt.Fprintf(out, "last sync:    %s\n", status.LastSyncAt.Local().Format(time.RFC3339))
	}
	fmt.Fprintf(out, "total synced: %d\n", status.TotalSynced)
	return nil
}

func runSync(ctx context.Context, relay *app.App, out io.Writer) error {
	status := relay.Engine.RunOnce(ctx)
	fmt.Fprintf(out, "%s: %d rows synced, %d pending\n", outcome(status), status.RowsSynced, status.Pending)
	if !status.Success && status.Reason != models.ReasonUnreachable && status.Reason != models.ReasonUnconfigured {
		return fmt.Errorf("sync failed")
	}
	return nil
}

func runQuery(ctx context.Context, relay *app.App, args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("query", pflag.ContinueOnError)
	date := flags.String("date", "", "only samples from this date (YYYY-MM-DD)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	filter, err := models.ParseDateFilter(*date)
	if err != nil {
		return err
	}

	result, err := relay.Query.Query(ctx, filter)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	for _, sample := range result.Samples {
		if err := enc.Encode(sample); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "%d samples from %s\n", len(result.Samples), result.Source)
	return nil
}

func runToken(cfg *config.Config, args []string, out io.Writer) error {
	flags := pflag.NewFlagSet("token", pflag.ContinueOnError)
	producer := flags.String("producer", "", "producer name to embed in the token")
	if err := flags.Parse(args); err != nil {
		return err
	}

	tokens := app.NewTokenService(cfg)
	token, expiresAt, err := tokens.IssueProducerToken(*producer)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}

func outcome(status models.SyncStatus) string {
	if status.Success {
		return "ok"
	}
	if status.Reason == "" {
		return "failed"
	}
	return status.Reason
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "local-only"
}
