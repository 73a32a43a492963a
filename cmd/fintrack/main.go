/*
main.go - FinTrack ledger engine CLI

PURPOSE:
  Wires the configuration, store, ingestor, detector and archiver together
  and exposes the engine's entry points as subcommands.

USAGE:
  fintrack [-config fintrack.yaml] <command> [args]

COMMANDS:
  ingest <file>...     Ingest extracted statement text files (pages split
                       on form-feed), autodetecting the issuer
  detect               Run a full lineage detection pass over the unlinked pool
  archive [-cutoff YYYY-MM-DD]
                       Export transactions older than the cutoff (default:
                       today minus archive.min_age_days) to cold storage
  restore <file>...    Restore cold-storage CSV files into the live ledger
  stats                Print statement/transaction counts

EXAMPLES:
  fintrack ingest statements/sbi-march.txt
  fintrack archive -cutoff 2024-01-01
  fintrack restore data/cold/2023-12-transactions.csv

SEE ALSO:
  - config/config.go: file format and defaults
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fintrack/ledger-engine/archive"
	"github.com/fintrack/ledger-engine/config"
	"github.com/fintrack/ledger-engine/ingest"
	"github.com/fintrack/ledger-engine/ledger"
	"github.com/fintrack/ledger-engine/lineage"
	"github.com/fintrack/ledger-engine/parser"
	"github.com/fintrack/ledger-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "fintrack: %v\n", err)
			os.Exit(1)
		}
	}

	log := newLogger(cfg.Logging.Level)

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer store.Close()

	detector := lineage.New(store, lineage.Config{
		CCPaymentWindowDays: cfg.Lineage.CCPaymentWindowDays,
		RefundWindowDays:    cfg.Lineage.RefundWindowDays,
		SimilarityThreshold: cfg.Lineage.SimilarityThreshold,
	}, log)
	ingestor := ingest.New(store, detector, log)
	archiver := archive.New(store, archive.Config{Dir: cfg.Archive.Dir}, log)

	ctx := context.Background()
	args := flag.Args()

	switch args[0] {
	case "ingest":
		err = runIngest(ctx, ingestor, args[1:])
	case "detect":
		err = runDetect(ctx, detector)
	case "archive":
		err = runArchive(ctx, archiver, cfg, args[1:])
	case "restore":
		err = runRestore(ctx, archiver, detector, args[1:])
	case "stats":
		err = runStats(ctx, store)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", args[0]).Msg("command failed")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: fintrack [-config file] <ingest|detect|archive|restore|stats> [args]")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(lvl).With().Timestamp().Logger()
}

func runIngest(ctx context.Context, ingestor *ingest.Ingestor, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("ingest: at least one statement file required")
	}
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			return err
		}

		// Extracted statement text, one page per form-feed.
		pages := strings.Split(string(raw), "\f")
		parsed, err := parser.Parse(pages)
		if err != nil {
			fmt.Printf("%s: %v\n", file, err)
			continue
		}

		result, err := ingestor.Ingest(ctx, raw, parsed)
		if err != nil {
			return err
		}
		switch {
		case result.IsDuplicate:
			fmt.Printf("%s: already ingested (statement %s)\n", file, short(result.Statement.ID))
		case result.Statement.ParseStatus == ledger.ParseFailed:
			fmt.Printf("%s: parse failed, recorded with no transactions\n", file)
		default:
			fmt.Printf("%s: %d transactions, %d lineage edges, %d issues\n",
				file, result.TransactionsIngested, result.EdgesDetected, len(result.Issues))
		}
		for _, issue := range result.Issues {
			fmt.Printf("  issue: %s\n", issue)
		}
	}
	return nil
}

func runDetect(ctx context.Context, detector *lineage.Detector) error {
	report, err := detector.Detect(ctx, nil)
	if err != nil {
		return err
	}
	fmt.Printf("candidates=%d pairs=%d edges=%d\n",
		report.CandidateCount, report.PairsEvaluated, report.EdgesCreated)
	return nil
}

func runArchive(ctx context.Context, archiver *archive.Manager, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	cutoffFlag := fs.String("cutoff", "", "archive transactions dated before this day (YYYY-MM-DD)")
	fs.Parse(args)

	cutoff := ledger.Today().AddDays(-cfg.Archive.MinAgeDays)
	if *cutoffFlag != "" {
		var err error
		if cutoff, err = ledger.ParseDate(*cutoffFlag); err != nil {
			return fmt.Errorf("bad -cutoff: %w", err)
		}
	}

	result, err := archiver.Archive(ctx, cutoff)
	if err != nil {
		return err
	}
	fmt.Printf("exported %d transactions, manifest %s\n", result.ExportedCount, result.ManifestPath)
	for _, f := range result.Files {
		fmt.Printf("  %s: %d rows\n", f.File, f.Rows)
	}
	for _, e := range result.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	return nil
}

func runRestore(ctx context.Context, archiver *archive.Manager, detector *lineage.Detector, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("restore: at least one archive file required")
	}
	for _, file := range files {
		result, err := archiver.Restore(ctx, file)
		if err != nil {
			return err
		}
		fmt.Printf("%s: restored %d, skipped %d existing\n", file, result.Restored, result.SkippedExisting)
		for _, e := range result.Errors {
			fmt.Printf("  error: %s\n", e)
		}
	}

	// Restored rows re-enter the unlinked pool; give them a full pass.
	report, err := detector.Detect(ctx, nil)
	if err != nil {
		return err
	}
	fmt.Printf("lineage: %d edges created\n", report.EdgesCreated)
	return nil
}

func runStats(ctx context.Context, store ledger.Store) error {
	statements, err := store.ListStatements(ctx)
	if err != nil {
		return err
	}
	count, err := store.CountTransactions(ctx)
	if err != nil {
		return err
	}
	unlinked, err := store.UnlinkedTransactions(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("statements=%d transactions=%d unlinked=%d\n", len(statements), count, len(unlinked))
	for _, st := range statements {
		fmt.Printf("  %s %s %s..%s %s (%d rows)\n",
			short(st.ID), st.Source, st.PeriodStart, st.PeriodEnd, st.ParseStatus, st.TransactionCount)
	}
	return nil
}

func short(id ledger.StatementID) string {
	if len(id) > 12 {
		return string(id[:12])
	}
	return string(id)
}
