package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/agentindex/ami-cli/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Evaluate assessments against compliance profiles",
}

var profileEvaluateCmd = &cobra.Command{
	Use:   "evaluate <file-or-assessment-id>",
	Short: "Evaluate one assessment against a profile",
	Long: `Applies a compliance profile to an assessment and reports each
failed rule with its code and severity. Without --profile the default
profile from the profiles file is used. Exits non-zero when the
assessment fails the profile.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		profiles, err := profile.LoadProfiles(cfg.Data.ProfilesPath)
		if err != nil {
			return eris.Wrap(err, "profile evaluate")
		}

		profileID, _ := cmd.Flags().GetString("profile")
		var p = profile.DefaultProfile(profiles)
		if profileID != "" {
			p = profile.ProfileByID(profiles, profileID)
		}
		if p == nil {
			if profileID == "" {
				return eris.Errorf("no default profile in %s", cfg.Data.ProfilesPath)
			}
			return eris.Errorf("profile %q not found in %s", profileID, cfg.Data.ProfilesPath)
		}

		a, err := loadAssessmentArg(ctx, args[0])
		if err != nil {
			return err
		}

		catalog, _ := loadMethodologyData()
		eval := profile.Evaluate(a, catalog, p)

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(eval); err != nil {
				return eris.Wrap(err, "encode evaluation")
			}
		} else {
			formatEvaluation(a.AssessmentID, p.ID, eval)
		}

		if !eval.Pass {
			return eris.Errorf("assessment %s fails profile %s", a.AssessmentID, p.ID)
		}
		return nil
	},
}

func formatEvaluation(assessmentID, profileID string, eval profile.Evaluation) {
	verdict := "PASS"
	if !eval.Pass {
		verdict = "FAIL"
	}
	fmt.Printf("%s  %s against %s\n", verdict, assessmentID, profileID)

	if len(eval.Reasons) == 0 {
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SEVERITY\tCODE\tMESSAGE")
	for _, r := range eval.Reasons {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.Severity, r.Code, r.Message)
	}
	_ = w.Flush()
}

func init() {
	profileEvaluateCmd.Flags().String("profile", "", "profile id (default: the profiles file's default profile)")
	profileEvaluateCmd.Flags().String("format", "table", "output format (table, json)")

	profileCmd.AddCommand(profileEvaluateCmd)
	rootCmd.AddCommand(profileCmd)
}
