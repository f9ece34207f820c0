package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/comunizika/internal/model"
	"github.com/pavelanni/comunizika/internal/store"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Export a learner's evaluation history as JSON",
		RunE:  runHistory,
	}
	f := cmd.Flags()
	f.String("db", "comunizika.db", "SQLite database path")
	f.String("email", "", "Learner email (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)

	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	email := strings.ToLower(strings.TrimSpace(v.GetString("email")))
	learner, err := db.GetLearnerByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find learner: %w", err)
	}
	if learner == nil {
		return fmt.Errorf("no learner with email %q", email)
	}
	p, err := db.LoadProgress(ctx, learner.ID)
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}
	views, err := db.HistoryViews(ctx, p.History)
	if err != nil {
		return fmt.Errorf("resolve history: %w", err)
	}

	export := model.NewHistoryExport(*learner, views, time.Now().UTC())
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
