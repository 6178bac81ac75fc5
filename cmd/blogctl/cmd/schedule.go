package cmd

import (
	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "List scheduled blog posts registered on the gateway",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := NewClient().Schedule(cmd.Context())
		if err != nil {
			return err
		}
		return NewPrinter(cmd.OutOrStdout()).PrintSchedule(entries)
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
