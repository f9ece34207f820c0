package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pavelanni/comunizika/internal/curriculum"
	"github.com/pavelanni/comunizika/internal/store"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import curriculum YAML files into the database",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.String("db", "comunizika.db", "SQLite database path")
	addGameFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check curriculum YAML files and play them through in memory",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runValidate,
	}
	addGameFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return importCurricula(cmd.Context(), db, args, v.GetInt("sample-size"))
}

// importCurricula appends each file's modules once. A file whose content
// changed after it was imported is skipped, since learners may already hold
// positions in it.
func importCurricula(ctx context.Context, db *store.Store, paths []string, sampleSize int) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(ctx, path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("curriculum file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("curriculum file changed since last import, skipping to avoid moving learners",
				"path", path)
			continue
		}

		f, err := curriculum.Parse(data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if err := f.Validate(sampleSize); err != nil {
			return fmt.Errorf("invalid curriculum %s:\n%w", path, err)
		}
		if err := db.ImportCurriculum(ctx, f); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		if err := db.SetImportedFileHash(ctx, path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported curriculum", "path", path, "modules", len(f.Modules))
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func runValidate(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	cfg := gameConfig(v)
	out := cmd.OutOrStdout()

	failed := 0
	for _, path := range args {
		f, err := curriculum.Load(path)
		if err == nil {
			err = f.Validate(cfg.SampleSize)
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s: FAIL\n%v\n", path, err)
			continue
		}

		rep, err := curriculum.DryRun(cmd.Context(), f, cfg, nil)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s: FAIL\n%v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "%s: ok (%d modules, %d stages, %d boxes built)\n", path, rep.Modules, rep.Stages, rep.Boxes)
	}
	if failed > 0 {
		return errors.New("some curriculum files are invalid")
	}
	return nil
}
