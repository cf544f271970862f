package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var rosterAll bool

var rosterCmd = &cobra.Command{
	Use:   "roster <company-id>",
	Short: "Show a company's resolved roster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.ListRoster(ctx, args[0], !rosterAll)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	},
}

func init() {
	rosterCmd.Flags().BoolVar(&rosterAll, "all", false, "include ended roles")
	rootCmd.AddCommand(rosterCmd)
}
