package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adfharrison1/idxdb/pkg/config"
	"github.com/adfharrison1/idxdb/pkg/logger"
)

type rootFlags struct {
	configPath string
	dataFile   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "idxdb",
		Short:         "idxdb is an in-memory document database with secondary, TTL and text indexes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&flags.dataFile, "data-file", "", "snapshot file, overrides storage.dataFile")

	cmd.AddCommand(serveCmd(flags), importCmd(flags), explainCmd(flags), loadCmd())
	return cmd
}

// load reads the configuration and builds the logger it describes.
func (f *rootFlags) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	if f.dataFile != "" {
		cfg.Storage.DataFile = f.dataFile
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
