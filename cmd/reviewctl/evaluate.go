package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"expatdesk/internal/intake"
	"expatdesk/internal/review/models"
	"expatdesk/internal/review/rules"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run the escalation rules over an answers file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("file")
			answers, err := intake.LoadAnswersFile(path)
			if err != nil {
				return err
			}
			if err := answers.Validate(); err != nil {
				return err
			}
			printAssessment(cmd.OutOrStdout(), rules.Assess(answers))
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "YAML answers file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printAssessment(w io.Writer, a models.Assessment) {
	fmt.Fprintf(w, "Ambiguity score: %d\n", a.AmbiguityScore)
	if len(a.EscalationFlags) == 0 {
		fmt.Fprintln(w, "Escalation flags: none")
		return
	}
	fmt.Fprintln(w, "Escalation flags:")
	for _, f := range a.EscalationFlags {
		summary, _ := rules.Describe(f)
		fmt.Fprintf(w, "  %-32s %s\n", f, summary)
	}
}
