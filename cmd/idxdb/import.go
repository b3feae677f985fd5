package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adfharrison1/idxdb/pkg/importer"
	"github.com/adfharrison1/idxdb/pkg/storage"
)

func importCmd(flags *rootFlags) *cobra.Command {
	var (
		file        string
		collection  string
		drop        bool
		stopOnError bool
	)
	cmd := &cobra.Command{
		Use:     "import",
		Short:   "import a JSON array of documents into the snapshot file",
		Example: "  idxdb import --file persons.json --collection contacts --drop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if cfg.Storage.DataFile == "" {
				return errors.New("a data file is required to import into")
			}

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			docs, err := importer.Decode(f)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}

			engine := storage.NewStorageEngine(
				storage.WithLogger(log),
				storage.WithBuildBatchSize(cfg.Storage.BuildBatchSize),
			)
			if err := engine.LoadFromFile(cmd.Context(), cfg.Storage.DataFile); err != nil {
				return err
			}
			res, err := importer.Import(cmd.Context(), engine, collection, docs,
				importer.Options{Drop: drop, StopOnError: stopOnError}, log.Named("import"))
			if err != nil {
				return err
			}
			if err := engine.SaveToFile(cfg.Storage.DataFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d document(s) imported successfully. %d document(s) failed to import.\n",
				res.Inserted, res.Rejected)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON array file to import")
	cmd.Flags().StringVar(&collection, "collection", "", "target collection")
	cmd.Flags().BoolVar(&drop, "drop", false, "drop the collection before importing")
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "abort at the first rejected document")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}
