package cmd

import (
	"fmt"

	"github.com/roffe/canbutton"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available bus controllers",
	Run: func(cmd *cobra.Command, args []string) {
		for _, info := range canbutton.ListControllers() {
			fmt.Println(info.String())
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
