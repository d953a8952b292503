package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"stripd/internal/config"
	"stripd/internal/strips"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured strips and groups",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := config.LoadMerged(config.Options{
			IgnoreConfig: flagIgnoreConfig,
			Debug:        flagDebug,
			Definitions:  flagSourcesDefinitions,
		})
		if err != nil {
			return err
		}

		registry, err := strips.LoadFile(cfg.Definitions)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
		_, _ = fmt.Fprintln(w, "KEY\tNAME\tARTIST\tHOMEPAGE")
		for _, key := range registry.Keys() {
			s := registry.Strip(key)
			name := s.Name
			if s.OnHold {
				name += " (on hold)"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Key, name, s.Artist, s.Homepage)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		for _, gk := range registry.GroupKeys() {
			g := registry.Group(gk)
			fmt.Printf("\nGroup %s:\n", g.Key)
			for _, member := range g.Keys {
				s := registry.Strip(member)
				fmt.Printf(" * %s - %s\n", s.Key, s.Name)
			}
		}

		return nil
	},
}

var flagSourcesDefinitions string

func init() {
	sourcesCmd.Flags().StringVar(&flagSourcesDefinitions, "definitions", "", "strip definitions file")
	rootCmd.AddCommand(sourcesCmd)
}
