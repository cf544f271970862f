package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/org-intel/internal/model"
	"github.com/sells-group/org-intel/internal/store"
)

var (
	jobsStatus  string
	jobsCompany string
	jobsLimit   int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List collection jobs or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if len(args) == 1 {
			job, err := st.GetJob(ctx, args[0])
			if err != nil {
				return err
			}
			if job == nil {
				return store.ErrNotFound
			}
			return enc.Encode(job)
		}

		jobs, err := st.ListJobs(ctx, store.JobFilter{
			Status:    model.JobStatus(jobsStatus),
			CompanyID: jobsCompany,
			Limit:     jobsLimit,
		})
		if err != nil {
			return err
		}
		return enc.Encode(jobs)
	},
}

func init() {
	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status (pending|running|success|failed)")
	jobsCmd.Flags().StringVar(&jobsCompany, "company", "", "filter by company id")
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 20, "max jobs to list")
	rootCmd.AddCommand(jobsCmd)
}
