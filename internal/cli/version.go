package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the assistantd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("assistantd", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
