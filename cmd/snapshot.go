package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/org-intel/internal/model"
	"github.com/sells-group/org-intel/internal/store"
)

var snapshotJSON bool

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <company-id>",
	Short: "Show a company's latest org chart snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := st.GetLatestSnapshot(ctx, args[0])
		if err != nil {
			return err
		}
		if snap == nil {
			return store.ErrNotFound
		}

		if snapshotJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}

		fmt.Printf("%s  %s  nodes=%d depth=%d\n",
			snap.CompanyID, snap.Date.Format("2006-01-02"), snap.NodeCount, snap.MaxDepth)
		for _, root := range snap.Roots {
			printNode(root, 0)
		}
		return nil
	},
}

func printNode(n *model.OrgNode, depth int) {
	line := fmt.Sprintf("%s%s — %s", strings.Repeat("  ", depth), n.PersonName, n.Title)
	if n.Department != "" {
		line += " (" + n.Department + ")"
	}
	fmt.Println(line)
	for _, c := range n.Children {
		printNode(c, depth+1)
	}
}

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "print the full snapshot as JSON")
	rootCmd.AddCommand(snapshotCmd)
}
