package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/org-intel/internal/orchestrator"
)

var (
	collectName    string
	collectSources []string
)

var collectCmd = &cobra.Command{
	Use:   "collect <company-id>",
	Short: "Run a collection job for one company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		types, err := parseSourceTypes(collectSources)
		if err != nil {
			return err
		}

		ref := orchestrator.CompanyRef{ID: args[0], Name: collectName}
		job, err := env.Engine.SubmitJob(ctx, []orchestrator.CompanyRef{ref}, types)
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

func init() {
	collectCmd.Flags().StringVar(&collectName, "name", "", "company display name (sharpens fuzzy matching)")
	collectCmd.Flags().StringSliceVar(&collectSources, "sources", nil, "source types to collect (filing,website,news); default all")
	rootCmd.AddCommand(collectCmd)
}
