package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"atlasroi/pkg/config"
	"atlasroi/pkg/store"
)

var replayFrom, replayTo string

func init() {
	replayCmd.Flags().StringVar(&replayFrom, "from", "", "Entry whose workflow is replayed")
	replayCmd.Flags().StringVar(&replayTo, "to", "", "Entry the workflow is applied to (default: --from)")
	_ = replayCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(replayCmd, initConfigCmd)
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-run the recorded import steps of an entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		target := replayTo
		if target == "" {
			target = replayFrom
		}
		ctx := cmd.Context()
		im := newImporter()
		return withStore(func(s *store.Store) error {
			source, err := s.Load(ctx, replayFrom)
			if err != nil {
				return err
			}
			steps := source.Workflow().Steps()

			entry, err := loadEntry(ctx, s, im, target)
			if err != nil {
				return err
			}
			n, err := im.Replay(ctx, entry, steps)
			if err != nil {
				return err
			}
			if err := s.Save(ctx, entry.ID, entry.Hierarchy); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Replayed %d of %d steps from %s on %s\n", n, len(steps), replayFrom, target)
			return nil
		})
	},
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a configuration file with default values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.CreateDefaultConfigFile(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to %s\n", configPath)
		return nil
	},
}
