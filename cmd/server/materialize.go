package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var materializeCmd = &cobra.Command{
	Use:   "materialize-today",
	Short: "Create today's instances of every routine task once",
	Long: `materialize-today creates the pending instance of each active routine task
that recurs on today's weekday. Running it more than once a day is harmless.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connect(); err != nil {
			return err
		}

		created, err := newTaskService(nil).CreateRoutineInstancesForToday(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "created %d instance(s)\n", created)
		return err
	},
}
