package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/agentindex/ami-cli/internal/gates"
	"github.com/agentindex/ami-cli/internal/model"
)

var assessmentsCmd = &cobra.Command{
	Use:   "assessments",
	Short: "Inspect and import stored assessments",
}

// -- assessments list --

var assessmentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List systems with their latest assessment",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		systems, err := st.ListSystemIDs(ctx)
		if err != nil {
			return eris.Wrap(err, "assessments list")
		}
		if len(systems) == 0 {
			fmt.Fprintln(os.Stderr, "No assessments found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "SYSTEM\tASSESSMENT\tVERSION\tSTATUS\tSCORE\tGRADE")
		for _, sys := range systems {
			latest, err := st.GetLatestAssessment(ctx, sys)
			if err != nil {
				return eris.Wrapf(err, "latest for %s", sys)
			}
			if latest == nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
				sys, latest.AssessmentID, latest.Version, latest.Status,
				formatNullableScore(latest.OverallScore), formatNullableGrade(latest.Grade))
		}
		return w.Flush()
	},
}

// -- assessments show --

var assessmentsShowCmd = &cobra.Command{
	Use:   "show <assessment-id>",
	Short: "Show one assessment as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadAssessmentArg(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	},
}

// -- assessments history --

var assessmentsHistoryCmd = &cobra.Command{
	Use:   "history <system-id>",
	Short: "List all assessment versions of a system, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		versions, err := st.ListAssessments(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "assessments history")
		}
		if len(versions) == 0 {
			fmt.Fprintln(os.Stderr, "No assessments found.")
			return nil
		}

		formatAssessmentsList(os.Stdout, versions)
		return nil
	},
}

// -- assessments import --

var assessmentsImportCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Validate and store assessment files",
	Long:  "Validates each file against the scoring gates and upserts the ones that pass. Invalid files are reported and skipped.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		catalog, rubrics := loadMethodologyData()
		opts := gates.Options{SourceCatalog: catalog, Rubrics: rubrics}

		failed := 0
		for _, path := range args {
			raw, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "read %s", path)
			}
			var a model.Assessment
			if err := json.Unmarshal(raw, &a); err != nil {
				return eris.Wrapf(err, "parse %s", path)
			}

			result := gates.ValidateAssessment(&a, opts)
			if !result.Valid {
				failed++
				fmt.Printf("SKIP  %s\n", path)
				for _, e := range result.Errors {
					fmt.Printf("      - %s\n", e)
				}
				continue
			}

			if err := st.UpsertAssessment(ctx, &a); err != nil {
				return eris.Wrapf(err, "import %s", path)
			}
			fmt.Printf("OK    %s (%s v%d)\n", path, a.AssessmentID, a.Version)
		}

		if failed > 0 {
			return eris.Errorf("import: %d of %d files skipped", failed, len(args))
		}
		return nil
	},
}

// formatAssessmentsList writes a tabular version history to w.
func formatAssessmentsList(out io.Writer, versions []model.Assessment) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ASSESSMENT\tVERSION\tASSESSED\tSTATUS\tSCORE\tGRADE\tREVIEW")
	for i := range versions {
		a := &versions[i]
		reviewState := ""
		if a.Review != nil {
			reviewState = string(a.Review.State)
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			a.AssessmentID, a.Version, a.AssessedAt, a.Status,
			formatNullableScore(a.OverallScore), formatNullableGrade(a.Grade), reviewState)
	}
	_ = w.Flush()
}

func formatNullableScore(s *int) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *s)
}

func formatNullableGrade(g *model.Grade) string {
	if g == nil {
		return "-"
	}
	return string(*g)
}

func init() {
	assessmentsCmd.AddCommand(assessmentsListCmd)
	assessmentsCmd.AddCommand(assessmentsShowCmd)
	assessmentsCmd.AddCommand(assessmentsHistoryCmd)
	assessmentsCmd.AddCommand(assessmentsImportCmd)
	rootCmd.AddCommand(assessmentsCmd)
}
