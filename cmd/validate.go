package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/agentindex/ami-cli/internal/aggregate"
	"github.com/agentindex/ami-cli/internal/gates"
	"github.com/agentindex/ami-cli/internal/integrity"
	"github.com/agentindex/ami-cli/internal/model"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file-or-assessment-id>...",
	Short: "Validate assessments against the scoring gates",
	Long: `Runs the full validation battery over one or more assessments:
structural checks, the anti-gaming gates, integrity hash verification,
and reviewer signature verification for published assessments.

Arguments that name an existing file are read as assessment JSON;
anything else is looked up in the store by assessment id. Exits
non-zero when any assessment fails, so it can gate CI.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		skipIntegrity, _ := cmd.Flags().GetBool("skip-integrity")

		catalog, rubrics := loadMethodologyData()
		opts := gates.Options{SourceCatalog: catalog, Rubrics: rubrics}

		failed := 0
		for _, arg := range args {
			a, err := loadAssessmentArg(ctx, arg)
			if err != nil {
				return err
			}

			errs := collectValidationErrors(a, opts, skipIntegrity)
			sig := aggregate.ComputeSignals(a, catalog)
			if len(errs) == 0 {
				fmt.Printf("PASS  %s\n", a.AssessmentID)
				for _, warn := range sig.Warnings {
					fmt.Printf("      ! %s\n", warn)
				}
				continue
			}

			failed++
			fmt.Printf("FAIL  %s\n", a.AssessmentID)
			for _, e := range errs {
				fmt.Printf("      - %s\n", e)
			}
		}

		if failed > 0 {
			return eris.Errorf("validate: %d of %d assessments failed", failed, len(args))
		}
		return nil
	},
}

func collectValidationErrors(a *model.Assessment, opts gates.Options, skipIntegrity bool) []string {
	var errs []string

	result := gates.ValidateAssessment(a, opts)
	errs = append(errs, result.Errors...)

	if !skipIntegrity && a.Integrity != nil {
		ok, expected, err := integrity.Verify(a)
		if err != nil {
			errs = append(errs, fmt.Sprintf("integrity: %s", eris.ToString(err, false)))
		} else if !ok {
			errs = append(errs, fmt.Sprintf("integrity: stored hash does not match computed %s", expected[:16]))
		}
	}

	errs = append(errs, integrity.VerifyReviewerSignatures(a)...)
	return errs
}

// loadAssessmentArg resolves a CLI argument to an assessment, reading a
// JSON file when the path exists and falling back to a store lookup.
func loadAssessmentArg(ctx context.Context, arg string) (*model.Assessment, error) {
	if _, err := os.Stat(arg); err == nil {
		raw, err := os.ReadFile(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "read %s", arg)
		}
		var a model.Assessment
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, eris.Wrapf(err, "parse %s", arg)
		}
		return &a, nil
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return nil, err
	}

	a, err := st.GetAssessment(ctx, arg)
	if err != nil {
		return nil, eris.Wrapf(err, "load assessment %s", arg)
	}
	if a == nil {
		return nil, eris.Errorf("assessment %s not found", arg)
	}
	return a, nil
}

func init() {
	validateCmd.Flags().Bool("skip-integrity", false, "skip integrity hash verification")
	rootCmd.AddCommand(validateCmd)
}
