package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"stripd/internal/config"
)

var configRemoveCmd = &cobra.Command{
	Use:   "remove <label>",
	Short: "Remove a configuration profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.RemoveProfile(args[0]); err != nil {
			return err
		}
		fmt.Println("Removed profile:", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configRemoveCmd)
}
