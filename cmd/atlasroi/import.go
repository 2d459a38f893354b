package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"atlasroi/pkg/importer"
	"atlasroi/pkg/store"
)

var importOpts struct {
	entry            string
	ontology         string
	archive          string
	namingProperty   string
	split            bool
	overwrite        bool
	atlasCoordinates bool
}

func init() {
	f := importCmd.Flags()
	f.StringVarP(&importOpts.entry, "entry", "e", "", "Image entry id")
	f.StringVar(&importOpts.ontology, "ontology", "", "Atlas name (default: first registration of the entry)")
	f.StringVar(&importOpts.archive, "archive", "", "Explicit outline archive path")
	f.StringVar(&importOpts.namingProperty, "naming-property", "", "Ontology attribute used for region names")
	f.BoolVar(&importOpts.split, "split", true, "Split regions into left and right hemispheres")
	f.BoolVar(&importOpts.overwrite, "overwrite", true, "Replace a previous import of the same ontology")
	f.BoolVar(&importOpts.atlasCoordinates, "atlas-coordinates", false, "Add atlas coordinate measurements")
	_ = importCmd.MarkFlagRequired("entry")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the registered atlas regions of an image entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := importer.Request{
			Ontology:         importOpts.ontology,
			Archive:          importOpts.archive,
			NamingProperty:   cfg.Import.NamingProperty,
			SplitHemispheres: cfg.Import.SplitHemispheres,
			Overwrite:        cfg.Import.Overwrite,
			AtlasCoordinates: cfg.Import.AtlasCoordinates,
		}
		f := cmd.Flags()
		if f.Changed("naming-property") {
			req.NamingProperty = importOpts.namingProperty
		}
		if f.Changed("split") {
			req.SplitHemispheres = importOpts.split
		}
		if f.Changed("overwrite") {
			req.Overwrite = importOpts.overwrite
		}
		if f.Changed("atlas-coordinates") {
			req.AtlasCoordinates = importOpts.atlasCoordinates
		}

		ctx := cmd.Context()
		im := newImporter()
		return withStore(func(s *store.Store) error {
			entry, err := loadEntry(ctx, s, im, importOpts.entry)
			if err != nil {
				return err
			}

			start := time.Now()
			tree, err := im.ImportRegions(ctx, entry, req)
			if errors.Is(err, importer.ErrNoRegistration) {
				fmt.Fprintf(cmd.OutOrStdout(), "No registration found for entry %s, nothing imported\n", entry.ID)
				return nil
			}
			if err != nil {
				return err
			}
			if err := s.Save(ctx, entry.ID, entry.Hierarchy); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %s into entry %s in %.2f seconds\n", tree.Ontology, entry.ID, time.Since(start).Seconds())
			fmt.Fprintf(out, "Regions: %d\n", len(tree.Regions()))
			if tree.Left != nil || tree.Right != nil {
				fmt.Fprintf(out, "Left: %d  Right: %d\n", countOrZero(tree.Left), countOrZero(tree.Right))
			}
			fmt.Fprintf(out, "Top-level objects in entry: %d\n", len(entry.Hierarchy.TopLevel()))
			return nil
		})
	},
}
