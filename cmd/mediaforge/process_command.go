package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediaforge/internal/asset/store"
	"mediaforge/internal/config"
	"mediaforge/internal/notifications"
	"mediaforge/internal/pipeline"
	"mediaforge/internal/services/describer"
	"mediaforge/internal/services/imaging"
	"mediaforge/internal/services/page"
	"mediaforge/internal/services/video"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var identityFlag string
	var trustIdentity bool
	var repoFlag string
	var refFlag string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Run every pending pipeline stage for a media file",
		Long: "Process hashes the file, loads or creates its asset record, and runs the\n" +
			"stages that have not durably completed: naming, derivative generation, and\n" +
			"embed page rendering. Re-running on an unchanged file is a no-op.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			st, err := store.Open(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			pages, err := page.New(cfg.Page, cfg.Paths.OutputDir, logger)
			if err != nil {
				return err
			}

			p := pipeline.New(cfg, st,
				describer.NewClient(describerConfig(cfg)),
				imaging.New(cfg.Imaging, cfg.Paths.OutputDir, logger),
				video.New(cfg.Video, cfg.Paths.OutputDir, logger),
				pages,
				notifications.NewPipelineNotifier(notifications.NewService(cfg), logger),
				logger,
			)

			result, runErr := p.Process(cmd.Context(), pipeline.Request{
				SourcePath:    args[0],
				Identity:      identityFlag,
				TrustIdentity: trustIdentity,
				Repo:          repoFlag,
				Ref:           refFlag,
			})
			if runErr != nil {
				return runErr
			}

			if jsonOut {
				return writeJSON(cmd, processReport(result))
			}
			printProcessResult(cmd, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&identityFlag, "identity", "", "Precomputed content identity (verified against the file)")
	cmd.Flags().BoolVar(&trustIdentity, "trust-identity", false, "Skip hashing and trust the supplied --identity")
	cmd.Flags().StringVar(&repoFlag, "repo", "", "owner/name of the repository hosting derivatives, for raw content URLs")
	cmd.Flags().StringVar(&refFlag, "ref", "main", "Git ref used in raw content URLs")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the run result as JSON")
	return cmd
}

func describerConfig(cfg *config.Config) describer.Config {
	return describer.Config{
		APIKey:         cfg.Describer.APIKey,
		BaseURL:        cfg.Describer.BaseURL,
		Model:          cfg.Describer.Model,
		TimeoutSeconds: cfg.Describer.TimeoutSeconds,
		RetryAttempts:  cfg.Describer.RetryAttempts,
	}
}

type stageFailureReport struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

type runReport struct {
	RunID    string               `json:"runId"`
	Identity string               `json:"identity"`
	BaseName string               `json:"baseName,omitempty"`
	Type     string               `json:"assetType"`
	Complete bool                 `json:"complete"`
	Ran      []string             `json:"stagesRun"`
	Done     []string             `json:"completedStages"`
	Failures []stageFailureReport `json:"failures,omitempty"`
}

func processReport(result *pipeline.Result) runReport {
	report := runReport{
		RunID:    result.RunID,
		Complete: result.Complete(),
		Ran:      []string{},
	}
	for _, stage := range result.Ran {
		report.Ran = append(report.Ran, string(stage))
	}
	for _, failure := range result.Failures {
		report.Failures = append(report.Failures, stageFailureReport{
			Stage: string(failure.Stage),
			Error: failure.Err.Error(),
		})
	}
	if record := result.Record; record != nil {
		report.Identity = record.Identity
		report.BaseName = record.BaseName
		report.Type = string(record.Type)
		report.Done = []string{}
		for _, stage := range record.CompletedStages.Sorted() {
			report.Done = append(report.Done, string(stage))
		}
	}
	return report
}

func printProcessResult(cmd *cobra.Command, result *pipeline.Result) {
	out := cmd.OutOrStdout()
	record := result.Record
	if record == nil {
		fmt.Fprintln(out, "No record produced")
		return
	}

	fmt.Fprintf(out, "Asset %s (%s)\n", record.Identity, record.Type)
	if record.BaseName != "" {
		fmt.Fprintf(out, "Base name: %s\n", record.BaseName)
	}
	fmt.Fprintf(out, "Completed stages: %s\n", joinStages(record.CompletedStages.Sorted()))
	if len(result.Ran) > 0 {
		fmt.Fprintf(out, "Stages run this invocation: %s\n", joinStages(result.Ran))
	} else {
		fmt.Fprintln(out, "Nothing to do; all applicable stages already complete")
	}
	for _, failure := range result.Failures {
		fmt.Fprintf(out, "Stage %s failed (will retry on next run): %v\n", failure.Stage, failure.Err)
	}
	if result.Complete() {
		fmt.Fprintln(out, "Asset fully processed")
	}
}
