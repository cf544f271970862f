package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/org-intel/internal/model"
)

var (
	changesTypes []string
	changesDays  int
	changesLimit int
	changesXLSX  string
)

var changesCmd = &cobra.Command{
	Use:   "changes <company-id>",
	Short: "Show a company's leadership change feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter := model.ChangeFilter{
			CompanyID: args[0],
			Limit:     changesLimit,
		}
		for _, t := range changesTypes {
			filter.Types = append(filter.Types, model.ChangeType(t))
		}
		if changesDays > 0 {
			since := time.Now().UTC().AddDate(0, 0, -changesDays)
			filter.Since = &since
		}

		events, err := st.ListChangeEvents(ctx, filter)
		if err != nil {
			return err
		}

		if changesXLSX != "" {
			if err := writeChangesXLSX(changesXLSX, events); err != nil {
				return err
			}
			zap.L().Info("wrote change feed",
				zap.String("path", changesXLSX),
				zap.Int("events", len(events)),
			)
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	},
}

func writeChangesXLSX(path string, events []model.ChangeEvent) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Changes")
	if err != nil {
		return eris.Wrap(err, "changes: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"Company", "Person", "Type", "Old Title", "New Title",
		"Level", "Effective Date", "Significance", "Sources",
	} {
		header.AddCell().Value = h
	}

	for _, ev := range events {
		row := sheet.AddRow()
		row.AddCell().Value = ev.CompanyID
		row.AddCell().Value = ev.PersonName
		row.AddCell().Value = string(ev.Type)
		row.AddCell().Value = ev.OldTitle
		row.AddCell().Value = ev.NewTitle
		row.AddCell().Value = string(ev.TitleLevel)
		row.AddCell().Value = ev.EffectiveDate.Format("2006-01-02")
		row.AddCell().SetFloat(ev.Significance)
		sources := row.AddCell()
		for i, s := range ev.Sources {
			if i > 0 {
				sources.Value += ","
			}
			sources.Value += s
		}
	}

	if err := file.Save(path); err != nil {
		return eris.Wrap(err, "changes: save xlsx")
	}
	return nil
}

func init() {
	changesCmd.Flags().StringSliceVar(&changesTypes, "types", nil, "filter by change types (hire,departure,...)")
	changesCmd.Flags().IntVar(&changesDays, "days", 0, "only events from the last N days")
	changesCmd.Flags().IntVar(&changesLimit, "limit", 100, "max events")
	changesCmd.Flags().StringVar(&changesXLSX, "xlsx", "", "write the feed to an XLSX file instead of stdout")
	rootCmd.AddCommand(changesCmd)
}
