package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sabaini/grns/internal/importexport"
	"github.com/sabaini/grns/internal/store"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write an NDJSON export of every task in the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.Open(cfg.Store.Path, logrus.New())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()

		w := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return importexport.Export(cmd.Context(), db, w)
	},
}

var (
	importFile   string
	importStream bool
	importDedupe string
	importOrphan string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Apply an NDJSON stream (from --file or stdin) against the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.Open(cfg.Store.Path, logrus.New())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()

		r := os.Stdin
		if importFile != "" {
			f, err := os.Open(importFile)
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}

		opts := importexport.Options{
			Stream:         importStream,
			Dedupe:         importexport.Dedupe(importDedupe),
			OrphanHandling: importexport.OrphanHandling(importOrphan),
			DryRun:         importDryRun,
		}
		result, err := importexport.Import(cmd.Context(), db, r, opts)
		if err != nil {
			return err
		}
		fmt.Printf("created=%d skipped=%d errors=%d dry_run=%v\n", result.Created, result.Skipped, result.Errors, result.DryRun)
		for _, m := range result.Messages {
			fmt.Println(" ", m)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: stdout)")

	importCmd.Flags().StringVarP(&importFile, "file", "i", "", "input file (default: stdin)")
	importCmd.Flags().BoolVar(&importStream, "stream", false, "stream records one at a time instead of buffering")
	importCmd.Flags().StringVar(&importDedupe, "dedupe", "skip", "skip|overwrite|error")
	importCmd.Flags().StringVar(&importOrphan, "orphan-handling", "lenient", "strict|lenient")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "roll back all writes, report what would happen")
}
