package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mediaforge/internal/asset"
	"mediaforge/internal/asset/store"
	"mediaforge/internal/config"
	"mediaforge/internal/identity"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect and repair the asset record index",
	}

	indexCmd.AddCommand(newIndexListCommand(ctx))
	indexCmd.AddCommand(newIndexShowCommand(ctx))
	indexCmd.AddCommand(newIndexVerifyCommand(ctx))
	indexCmd.AddCommand(newIndexResetStageCommand(ctx))
	return indexCmd
}

func newIndexListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every asset record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st store.Store) error {
				records, err := st.Load(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, records)
				}

				headers := []string{"IDENTITY", "BASE NAME", "TYPE", "STAGES", "UPDATED"}
				rows := make([][]string, 0, len(records))
				for _, record := range records {
					rows = append(rows, []string{
						identity.Short(record.Identity),
						record.BaseName,
						string(record.Type),
						fmt.Sprintf("%d/%d", record.CompletedStages.Len(), len(requiredStages(record))),
						record.UpdatedAt.Format("2006-01-02 15:04"),
					})
				}

				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "Index is empty")
					return nil
				}
				if isTerminal(out) {
					fmt.Fprintln(out, renderTable(headers, rows))
				} else {
					for _, row := range rows {
						fmt.Fprintln(out, strings.Join(row, "\t"))
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit records as JSON")
	return cmd
}

func newIndexShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <identity>",
		Short: "Show one asset record (full or short identity)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st store.Store) error {
				record, err := findRecord(cmd.Context(), st, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd, record)
			})
		},
	}
}

func newIndexVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Report records whose outputs are missing or that carry fallback names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st store.Store) error {
				records, err := st.Load(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				problems := 0
				for _, record := range records {
					for _, issue := range verifyRecord(cfg, record) {
						problems++
						fmt.Fprintf(out, "%s: %s\n", identity.Short(record.Identity), issue)
					}
				}
				if problems == 0 {
					fmt.Fprintf(out, "All %d records verified\n", len(records))
					return nil
				}
				return fmt.Errorf("%d problems across %d records", problems, len(records))
			})
		},
	}
}

func newIndexResetStageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stage <identity> <stage>",
		Short: "Clear a completion flag so the next run redoes the stage",
		Long: "The pipeline itself never removes a completed stage. reset-stage is the\n" +
			"out-of-band escape hatch for regenerating outputs after, say, replacing a\n" +
			"derivative template or a broken tool version.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := asset.ParseStage(args[1])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, st store.Store) error {
				record, err := findRecord(cmd.Context(), st, args[0])
				if err != nil {
					return err
				}
				if !record.HasCompleted(stage) {
					fmt.Fprintf(cmd.OutOrStdout(), "Stage %s is not complete for %s; nothing to reset\n",
						stage, identity.Short(record.Identity))
					return nil
				}
				err = st.Mutate(cmd.Context(), record.Identity, func(r *asset.Record) error {
					r.CompletedStages.Remove(stage)
					r.Touch()
					return nil
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stage %s reset for %s\n", stage, identity.Short(record.Identity))
				return nil
			})
		},
	}
}

// findRecord resolves a full identity or an unambiguous prefix.
func findRecord(ctx context.Context, st store.Store, token string) (*asset.Record, error) {
	token = strings.TrimSpace(token)
	if identity.Valid(token) {
		return st.Get(ctx, token)
	}

	records, err := st.Load(ctx)
	if err != nil {
		return nil, err
	}
	var matched *asset.Record
	for _, record := range records {
		if strings.HasPrefix(record.Identity, token) {
			if matched != nil {
				return nil, fmt.Errorf("identity prefix %q is ambiguous", token)
			}
			matched = record
		}
	}
	if matched == nil {
		return nil, fmt.Errorf("no record matches identity %q", token)
	}
	return matched, nil
}

func requiredStages(record *asset.Record) []asset.Stage {
	switch record.Type {
	case asset.TypeImage:
		return []asset.Stage{asset.StageNaming, asset.StageImageDerivatives, asset.StagePageGeneration}
	case asset.TypeVideo:
		return []asset.Stage{asset.StageNaming, asset.StageVideoDerivatives}
	default:
		return []asset.Stage{asset.StageNaming}
	}
}

// verifyRecord cross-checks recorded state against the filesystem. It reports
// divergence; it never mutates the record, matching the bounded role of disk
// state in gating decisions.
func verifyRecord(cfg *config.Config, record *asset.Record) []string {
	var issues []string

	if strings.HasPrefix(record.BaseName, "generic-media") {
		issues = append(issues, fmt.Sprintf("carries fallback name %q; naming still pending", record.BaseName))
	}

	var paths []string
	for _, file := range record.Outputs.ImageFiles {
		paths = append(paths, file.Path)
	}
	for _, file := range record.Outputs.VideoFiles {
		paths = append(paths, file.Path)
	}
	if record.Outputs.PagePath != "" {
		paths = append(paths, record.Outputs.PagePath)
	}
	for _, relative := range paths {
		absolute := filepath.Join(cfg.Paths.OutputDir, relative)
		if _, err := os.Stat(absolute); err != nil {
			issues = append(issues, fmt.Sprintf("recorded output missing on disk: %s", relative))
		}
	}
	return issues
}
