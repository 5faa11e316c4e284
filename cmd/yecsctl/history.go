package main

import (
	"github.com/spf13/cobra"
)

func (c *cli) newHistoryCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "history <user-id>",
		Short: "Show a user's score history, most recent first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format, formatTable, formatJSON); err != nil {
				return err
			}
			a, err := c.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.Service.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if format == formatJSON {
				return writeJSON(c.out, records)
			}
			return writeHistoryTable(c.out, args[0], records)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "o", formatTable, "output format: table or json")
	return cmd
}
