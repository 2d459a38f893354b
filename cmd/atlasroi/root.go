package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"atlasroi/pkg/config"
	"atlasroi/pkg/importer"
	"atlasroi/pkg/orientation"
	"atlasroi/pkg/project"
	"atlasroi/pkg/reconstruction"
	"atlasroi/pkg/store"
)

var (
	configPath string
	projectDir string
	storePath  string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "atlasroi.yaml", "Path to the YAML configuration")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "p", "", "Project directory (overrides project.baseDir)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "SQLite database (overrides output.storePath)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

var rootCmd = &cobra.Command{
	Use:           "atlasroi",
	Short:         "Import registered brain atlas regions into image annotation hierarchies",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("project") {
			cfg.Project.BaseDir = projectDir
		}
		if cmd.Flags().Changed("store") {
			cfg.Output.StorePath = storePath
		}
		if cmd.Flags().Changed("verbose") {
			cfg.Output.Verbose = verbose
		}

		level := slog.LevelInfo
		if cfg.Output.Verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return nil
	},
}

func openProject() *project.Project {
	return project.New(cfg.Project.BaseDir, cfg.Project.DataDir)
}

func newImporter() *importer.Importer {
	return importer.New(openProject(), importer.Options{
		RootPolicy:       reconstruction.RootPolicy(cfg.Import.RootPolicy),
		RotationPolicy:   orientation.Policy(cfg.Import.RotationPolicy),
		CoordinatePrefix: cfg.Import.CoordinatePrefix,
		Logger:           logger,
	})
}

// withStore opens the configured store for the duration of fn
func withStore(fn func(s *store.Store) error) (retErr error) {
	s, err := store.NewStore(cfg.Output.StorePath, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close store: %w", cerr)
		}
	}()
	return fn(s)
}

// loadEntry opens an entry together with its stored hierarchy
func loadEntry(ctx context.Context, s *store.Store, im *importer.Importer, id string) (*importer.Entry, error) {
	h, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return im.OpenEntry(id, h)
}
