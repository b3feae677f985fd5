package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adfharrison1/idxdb/pkg/domain"
	"github.com/adfharrison1/idxdb/pkg/planner"
	"github.com/adfharrison1/idxdb/pkg/storage"
)

func explainCmd(flags *rootFlags) *cobra.Command {
	var (
		collection string
		filter     string
		sort       string
		limit      int
		verbosity  string
	)
	cmd := &cobra.Command{
		Use:     "explain",
		Short:   "explain a query against the snapshot file",
		Example: `  idxdb explain --collection contacts --filter '{"dob.age": {"$gt": 60}}' --verbosity executionStats`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			req := domain.FindRequest{Limit: limit}
			if filter != "" {
				if err := json.Unmarshal([]byte(filter), &req.Filter); err != nil {
					return fmt.Errorf("--filter: %w", err)
				}
			}
			if sort != "" {
				if err := json.Unmarshal([]byte(sort), &req.Sort); err != nil {
					return fmt.Errorf("--sort: %w", err)
				}
			}

			engine := storage.NewStorageEngine(storage.WithLogger(log))
			if err := engine.LoadFromFile(cmd.Context(), cfg.Storage.DataFile); err != nil {
				return err
			}
			explanation, err := planner.New(engine, planner.WithLogger(log)).
				Explain(cmd.Context(), collection, req, domain.Verbosity(verbosity))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(explanation)
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection to query")
	cmd.Flags().StringVar(&filter, "filter", "", "filter document as JSON")
	cmd.Flags().StringVar(&sort, "sort", "", `sort keys as JSON, e.g. [{"field": "age", "direction": -1}]`)
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum documents to return")
	cmd.Flags().StringVar(&verbosity, "verbosity", string(domain.VerbosityQueryPlanner), "queryPlanner or executionStats")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}
