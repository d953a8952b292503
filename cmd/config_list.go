package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"stripd/internal/config"
)

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all available profiles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		list, err := config.ListProfiles()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 4, ' ', 0)
		_, _ = fmt.Fprintln(w, "LABEL\tPATH\tACTIVE")

		for _, p := range list {
			mark := ""
			if p.Active {
				mark = "yes"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", p.Label, p.Path, mark)
		}

		return w.Flush()
	},
}

func init() {
	configCmd.AddCommand(configListCmd)
}
