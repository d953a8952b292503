package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stripd/internal/config"
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the Default profile and make it active",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := config.InitDefaultProfile()
		if errors.Is(err, os.ErrExist) {
			fmt.Println("Default profile already exists:", path)
			fmt.Println("Switched to: Default")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Println("Created profile:", path)
		fmt.Println("Switched to: Default")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}
