package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"normcode/internal/checkpoint"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tPLAN\tSTATUS\tSTARTED\tFINISHED")
		for _, run := range runs {
			finished := "-"
			if !run.FinishedAt.IsZero() {
				finished = run.FinishedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				run.ID, run.Plan, run.Status,
				run.StartedAt.Format("2006-01-02 15:04:05"), finished)
		}
		return w.Flush()
	},
}

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints [run-id]",
	Short: "List the checkpoint log of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		snaps, err := store.ListCheckpoints(args[0])
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Printf("No checkpoints for run %s.\n", args[0])
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CYCLE\tCOMMITTED\tCONCEPTS\tCOMPLETED\tCREATED")
		for _, snap := range snaps {
			fmt.Fprintf(w, "%d\t%d\t%d\t%v\t%s\n",
				snap.Cycle, len(snap.Tracker), len(snap.CompletedConcepts),
				snap.Completed, snap.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [run-id] [cycle]",
	Short: "Dump one checkpoint snapshot as JSON",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		var snap *checkpoint.Snapshot
		if len(args) == 2 {
			cycle, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid cycle %q: %w", args[1], err)
			}
			snap, err = store.At(args[0], cycle)
			if err != nil {
				return err
			}
		} else {
			snap, err = store.Latest(args[0])
			if err != nil {
				return err
			}
		}

		encoded, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	},
}

func openStore() (*checkpoint.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}
	dbPath := cfg.Checkpoint.DatabasePath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(root, dbPath)
	}
	return checkpoint.Open(dbPath)
}
