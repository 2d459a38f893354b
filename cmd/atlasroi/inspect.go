package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"atlasroi/internal/models"
	"atlasroi/pkg/locate"
	"atlasroi/pkg/project"
	"atlasroi/pkg/store"
)

var propertiesOntology string

func init() {
	propertiesCmd.Flags().StringVar(&propertiesOntology, "ontology", "", "Atlas name (default: first ontology of the project)")
	rootCmd.AddCommand(listCmd, propertiesCmd, locateCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List ontologies, registered entries and stored hierarchies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		p := openProject()

		onts, err := p.Ontologies()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Ontologies:")
		for _, o := range onts {
			fmt.Fprintf(out, "  %s\n", o)
		}

		entries, err := p.Entries()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Registered entries:")
		for _, id := range entries {
			regs, err := project.Registrations(p.EntryDir(id))
			if err != nil {
				return err
			}
			transforms, err := project.TransformNames(p.EntryDir(id))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  %s: roi sets %v, transforms %v\n", id, regs, transforms)
		}

		return withStore(func(s *store.Store) error {
			ids, err := s.Entries(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Stored hierarchies:")
			for _, id := range ids {
				h, err := s.Load(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %s: %d objects, %d workflow steps\n", id, h.Count(), h.Workflow().Len())
			}
			return nil
		})
	},
}

var propertiesCmd = &cobra.Command{
	Use:   "properties",
	Short: "Show the naming properties an ontology offers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		im := newImporter()
		name, err := im.ResolveOntology(propertiesOntology)
		if err != nil {
			return err
		}
		o, err := im.LoadOntology(name)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		preferred := o.PreferredNamingProperty()
		fmt.Fprintf(out, "Ontology %s (%d regions)\n", o.Name, o.Len())
		for _, prop := range o.AvailableNamingProperties() {
			marker := " "
			if prop == preferred {
				marker = "*"
			}
			fmt.Fprintf(out, " %s %s\n", marker, prop)
		}
		return nil
	},
}

var locateEntry string

func init() {
	locateCmd.Flags().StringVarP(&locateEntry, "entry", "e", "", "Image entry id")
	_ = locateCmd.MarkFlagRequired("entry")
}

var locateCmd = &cobra.Command{
	Use:   "locate X Y",
	Short: "Show the deepest imported region under a pixel",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid x: %w", err)
		}
		y, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid y: %w", err)
		}
		return withStore(func(s *store.Store) error {
			h, err := s.Load(cmd.Context(), locateEntry)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			region := locate.NewIndex(h.TopLevel()...).RegionAt(x, y)
			if region == nil {
				fmt.Fprintf(out, "No region at (%g, %g)\n", x, y)
				return nil
			}
			printRegion(cmd, region)
			return nil
		})
	},
}

func printRegion(cmd *cobra.Command, a *models.Annotation) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s [%s]\n", a.Name, a.Class)
	for p := a.Parent(); p != nil; p = p.Parent() {
		fmt.Fprintf(out, "  in %s\n", p.Name)
	}
	for _, n := range a.Measurements.Names() {
		v, _ := a.Measurements.Get(n)
		fmt.Fprintf(out, "  %s: %g\n", n, v)
	}
}

func countOrZero(a *models.Annotation) int {
	if a == nil {
		return 0
	}
	return a.Count()
}
