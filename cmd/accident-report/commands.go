package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/accident.report/internal/db"
)

const migrateUsage = `Usage: accident-report -db <file> migrate <action>

Actions:
  up       Apply all pending migrations
  down     Roll back the most recent migration
  status   Print the current schema version
  help     Show this help`

const runsUsage = `Usage: accident-report -db <file> runs <action>

Actions:
  list            List recorded runs, newest first
  latest          Print the most recent run
  show <run-id>   Print one run and its stored row counts
  delete <run-id> Remove a run and its rows`

var errNoDBPath = errors.New("no database configured; pass -db or set db_path")

// runMigrate handles the 'migrate' subcommand. The schema is left alone until
// an action asks for a change.
func runMigrate(w io.Writer, dbPath string, args []string) error {
	if len(args) < 1 || args[0] == "help" {
		fmt.Fprintln(w, migrateUsage)
		if len(args) < 1 {
			return errors.New("missing migrate action")
		}
		return nil
	}
	if dbPath == "" {
		return errNoDBPath
	}

	database, err := db.OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action := args[0]; action {
	case "up":
		if err := database.MigrateUp(); err != nil {
			return err
		}
		fmt.Fprintln(w, "✓ All migrations applied successfully")
	case "down":
		if err := database.MigrateDown(); err != nil {
			return err
		}
		fmt.Fprintln(w, "✓ Migration rolled back successfully")
	case "status":
	default:
		fmt.Fprintln(w, migrateUsage)
		return fmt.Errorf("unknown migrate action: %s", action)
	}

	version, dirty, err := database.MigrateVersion()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	fmt.Fprintf(w, "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

// runRuns handles the 'runs' subcommand against an up-to-date store.
func runRuns(ctx context.Context, w io.Writer, dbPath string, args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(w, runsUsage)
		return errors.New("missing runs action")
	}
	if dbPath == "" {
		return errNoDBPath
	}

	store, err := db.NewDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	defer store.Close()

	runID := func() (string, error) {
		if len(args) < 2 {
			return "", fmt.Errorf("usage: accident-report runs %s <run-id>", args[0])
		}
		return args[1], nil
	}

	switch action := args[0]; action {
	case "list":
		runs, err := store.Runs(ctx)
		if err != nil {
			return err
		}
		return printRuns(w, runs)
	case "latest":
		run, err := store.LatestRun(ctx)
		if err != nil {
			return err
		}
		return printRun(ctx, w, store, *run)
	case "show":
		id, err := runID()
		if err != nil {
			return err
		}
		runs, err := store.Runs(ctx)
		if err != nil {
			return err
		}
		for _, r := range runs {
			if r.ID == id {
				return printRun(ctx, w, store, r)
			}
		}
		return fmt.Errorf("run %s not found", id)
	case "delete":
		id, err := runID()
		if err != nil {
			return err
		}
		if err := store.DeleteRun(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(w, "✓ Run %s deleted\n", id)
		return nil
	case "help":
		fmt.Fprintln(w, runsUsage)
		return nil
	default:
		fmt.Fprintln(w, runsUsage)
		return fmt.Errorf("unknown runs action: %s", action)
	}
}

func printRuns(w io.Writer, runs []db.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tROWS\tCLEAN\tCUTOFF\tSOURCE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n", r.ID, r.StartedAt.UTC().Format(time.RFC3339),
			r.RawRows, r.CleanRows, r.CutoffYear, r.SourcePath)
	}
	return tw.Flush()
}

func printRun(ctx context.Context, w io.Writer, store *db.DB, r db.Run) error {
	rows, err := store.Accidents(ctx, r.ID)
	if err != nil {
		return err
	}
	monthly, err := store.MonthlyCounts(ctx, r.ID)
	if err != nil {
		return err
	}
	cells, err := store.ClassSeverityCounts(ctx, r.ID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run:\t%s\n", r.ID)
	fmt.Fprintf(tw, "Source:\t%s\n", r.SourcePath)
	fmt.Fprintf(tw, "Started:\t%s\n", r.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(tw, "Duration:\t%v\n", r.Duration)
	fmt.Fprintf(tw, "Charts:\t%s\n", r.ChartDir)
	fmt.Fprintf(tw, "Rows:\t%d raw, %d clean, %d stored\n", r.RawRows, r.CleanRows, len(rows))
	fmt.Fprintf(tw, "Months:\t%d before %d\n", len(monthly), r.CutoffYear)
	fmt.Fprintf(tw, "Class/severity cells:\t%d\n", len(cells))
	return tw.Flush()
}
