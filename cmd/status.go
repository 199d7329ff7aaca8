package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [user-id]",
	Short: "Show pipeline progress for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		row, err := env.Store.Read(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrap(err, "read status")
		}
		if row == nil {
			fmt.Println("No status recorded for that user.")
			return nil
		}

		out, err := json.MarshalIndent(row, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal status")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
