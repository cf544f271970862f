package main

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/org-intel/internal/orchestrator"
)

var (
	batchCSV     string
	batchLimit   int
	batchSources []string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run one collection job over a CSV of companies",
	Long: `Reads a CSV with an "id" column and optional "name" column and
submits a single batch job covering every row. Company concurrency is
bounded by batch.max_concurrent_companies.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		refs, err := parseCompanyCSV(batchCSV)
		if err != nil {
			return err
		}
		if batchLimit > 0 && len(refs) > batchLimit {
			refs = refs[:batchLimit]
		}
		if len(refs) == 0 {
			zap.L().Info("no companies in csv")
			return nil
		}

		types, err := parseSourceTypes(batchSources)
		if err != nil {
			return err
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		zap.L().Info("submitting batch",
			zap.Int("companies", len(refs)),
			zap.Int("concurrency", cfg.Batch.MaxConcurrentCompanies),
		)

		job, err := env.Engine.SubmitJob(ctx, refs, types)
		if err != nil {
			return err
		}

		job, runErr := env.Engine.Run(ctx, job.ID)
		if job != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(job); err != nil {
				zap.L().Warn("print job", zap.Error(err))
			}
		}
		return runErr
	},
}

// parseCompanyCSV reads company refs from a CSV with a header row. The
// "id" column is required; "name" is optional.
func parseCompanyCSV(path string) ([]orchestrator.CompanyRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: open csv")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "batch: read header")
	}
	idCol, nameCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "id", "company_id":
			idCol = i
		case "name", "company_name":
			nameCol = i
		}
	}
	if idCol < 0 {
		return nil, eris.New("batch: csv has no id column")
	}

	var refs []orchestrator.CompanyRef
	seen := make(map[string]bool)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "batch: read row")
		}
		if idCol >= len(rec) {
			continue
		}
		id := strings.TrimSpace(rec[idCol])
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ref := orchestrator.CompanyRef{ID: id}
		if nameCol >= 0 && nameCol < len(rec) {
			ref.Name = strings.TrimSpace(rec[nameCol])
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func init() {
	batchCmd.Flags().StringVar(&batchCSV, "csv", "", "path to companies CSV (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max companies to process (0 = all)")
	batchCmd.Flags().StringSliceVar(&batchSources, "sources", nil, "source types to collect; default all")
	batchCmd.MarkFlagRequired("csv") //nolint:errcheck
	rootCmd.AddCommand(batchCmd)
}
