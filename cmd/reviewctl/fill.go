package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"expatdesk/internal/intake"
	"expatdesk/internal/platform/config"
	"expatdesk/internal/platform/logger"
	"expatdesk/internal/review/models"
	dErrors "expatdesk/pkg/domain-errors"
)

func fillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill a review intake section by section and submit it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.IntakeFromEnv()
			server, _ := cmd.Flags().GetString("server")
			if server == "" {
				server = cfg.ServerURL
			}
			token, _ := cmd.Flags().GetString("token")
			path, _ := cmd.Flags().GetString("file")
			submit, _ := cmd.Flags().GetBool("submit")

			answers, err := intake.LoadAnswersFile(path)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logger.New("warn", "console")
			port := intake.NewHTTPPort(server, nil)
			return fill(ctx, cmd, port, token, answers, submit,
				intake.WithInterval(cfg.AutosaveInterval),
				intake.WithAutosaveLogger(log),
			)
		},
	}
	cmd.Flags().String("server", "", "expatdesk base URL (defaults to EXPATDESK_URL)")
	cmd.Flags().StringP("token", "t", "", "review access token")
	cmd.Flags().StringP("file", "f", "", "YAML answers file")
	cmd.Flags().Bool("submit", true, "submit once every section is complete")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// fill walks the wizard in order, answering from the file. An autosaver
// runs for the duration so an interrupted fill keeps what was entered.
func fill(ctx context.Context, cmd *cobra.Command, port intake.Port, token string, answers models.Answers, submit bool, opts ...intake.AutosaveOption) error {
	out := cmd.OutOrStdout()
	draft, err := intake.Resume(ctx, port, token)
	if err != nil {
		return err
	}
	if draft.Submitted() {
		return dErrors.New(dErrors.CodeConflict, "review already submitted")
	}

	autosaveCtx, stopAutosave := context.WithCancel(ctx)
	var g errgroup.Group
	g.Go(func() error {
		intake.NewAutosaver(draft, opts...).Run(autosaveCtx)
		return nil
	})
	defer func() {
		stopAutosave()
		_ = g.Wait()
	}()

	for range models.Sections {
		section := draft.Current()
		for _, q := range models.QuestionsIn(section) {
			if v, ok := answers[q.Key]; ok {
				if err := draft.Set(q.Key, v); err != nil {
					return err
				}
			}
		}
		if _, err := draft.Advance(ctx); err != nil {
			return fmt.Errorf("saving section %s: %w", section, err)
		}
		fmt.Fprintf(out, "saved %s\n", section)
		if models.IsComplete(draft.Progress()) {
			break
		}
	}

	if !submit {
		return nil
	}
	assessment, err := draft.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "submitted")
	printAssessment(out, assessment)
	return nil
}
