package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/agentindex/ami-cli/internal/model"
	"github.com/agentindex/ami-cli/internal/store"
	"github.com/agentindex/ami-cli/internal/submission"
)

var submissionsCmd = &cobra.Command{
	Use:   "submissions",
	Short: "Manage the submission review queue",
	Long:  "Commands for listing, inspecting, creating, and reviewing correction/challenge/assessment-request submissions.",
}

// -- submissions list --

var submissionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List submissions",
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

		system, _ := cmd.Flags().GetString("system")
		status, _ := cmd.Flags().GetString("status")

		svc := submission.NewService(st)
		subs, err := svc.List(ctx, store.SubmissionFilter{
			SystemID: system,
			Status:   model.SubmissionStatus(status),
		})
		if err != nil {
			return eris.Wrap(err, "submissions list")
		}

		if len(subs) == 0 {
			fmt.Fprintln(os.Stderr, "No submissions found.")
			return nil
		}

		formatSubmissionsList(os.Stdout, subs)
		return nil
	},
}

// -- submissions show --

var submissionsShowCmd = &cobra.Command{
	Use:   "show <submission-id>",
	Short: "Show full details of a submission",
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

		sub, err := submission.NewService(st).Get(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "submissions show")
		}
		if sub == nil {
			return eris.Errorf("submission %s not found", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sub)
	},
}

// -- submissions create --

var submissionsCreateCmd = &cobra.Command{
	Use:   "create <payload.json>",
	Short: "Create a submission from a JSON payload file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}
		var payload submission.CreatePayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return eris.Wrapf(err, "parse %s", args[0])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		sub, err := submission.NewService(st).Create(ctx, payload)
		if err != nil {
			return err
		}

		fmt.Printf("created %s (%s, %s)\n", sub.SubmissionID, sub.Type, sub.Status)
		return nil
	},
}

// -- submissions review --

var submissionsReviewCmd = &cobra.Command{
	Use:   "review <submission-id>",
	Short: "Apply a review decision to a submission",
	Long: `Moves a submission through the review state machine. Accepting a
correction or challenge that targets an assessment creates the next
assessment version; pass --updates with a JSON array of dimension
updates to change scores in the new version.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		status, _ := cmd.Flags().GetString("status")
		reviewerName, _ := cmd.Flags().GetString("reviewer-name")
		reviewerHandle, _ := cmd.Flags().GetString("reviewer-handle")
		reasoning, _ := cmd.Flags().GetString("reasoning")
		updatesPath, _ := cmd.Flags().GetString("updates")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		svc := submission.NewService(st)
		result, err := svc.Review(ctx, args[0], submission.ReviewRequest{
			Status:         model.SubmissionStatus(status),
			ReviewerName:   reviewerName,
			ReviewerHandle: reviewerHandle,
			Reasoning:      reasoning,
		})
		if err != nil {
			return err
		}
		if !result.Success {
			if result.Message != "" {
				return eris.Errorf("review refused: %s (%s)", result.Error, result.Message)
			}
			return eris.Errorf("review refused: %s", result.Error)
		}

		sub := result.Submission
		fmt.Printf("reviewed %s -> %s\n", sub.SubmissionID, sub.Status)

		if sub.Status != model.SubmissionAccepted || sub.AssessmentID == "" {
			return nil
		}
		if sub.Type != model.SubmissionCorrection && sub.Type != model.SubmissionChallenge {
			return nil
		}

		var updates []submission.DimensionUpdate
		if updatesPath != "" {
			raw, err := os.ReadFile(updatesPath)
			if err != nil {
				return eris.Wrapf(err, "read %s", updatesPath)
			}
			if err := json.Unmarshal(raw, &updates); err != nil {
				return eris.Wrapf(err, "parse %s", updatesPath)
			}
		}

		catalog, rubrics := loadMethodologyData()
		next, err := submission.NewVersioner(st, catalog, rubrics).CreateNewVersion(ctx, sub, updates)
		if err != nil {
			return err
		}

		fmt.Printf("created %s (v%d) from %s\n", next.AssessmentID, next.Version, sub.SubmissionID)
		return nil
	},
}

// formatSubmissionsList writes a tabular list of submissions to w.
func formatSubmissionsList(out io.Writer, subs []model.Submission) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tSYSTEM\tSTATUS\tSUBMITTED\tRESULT")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t------\t---------\t------")

	for i := range subs {
		s := &subs[i]
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.SubmissionID, s.Type, s.SystemID, s.Status, s.SubmittedAt, s.ResultingAssessmentID)
	}
	_ = w.Flush()
}

func init() {
	submissionsListCmd.Flags().String("system", "", "filter by system id")
	submissionsListCmd.Flags().String("status", "", "filter by status (received, under_review, accepted, rejected)")

	submissionsReviewCmd.Flags().String("status", "", "target status (under_review, accepted, rejected)")
	submissionsReviewCmd.Flags().String("reviewer-name", "", "reviewer display name")
	submissionsReviewCmd.Flags().String("reviewer-handle", "", "reviewer handle")
	submissionsReviewCmd.Flags().String("reasoning", "", "review reasoning")
	submissionsReviewCmd.Flags().String("updates", "", "JSON file of dimension updates for the new version")
	_ = submissionsReviewCmd.MarkFlagRequired("status")

	submissionsCmd.AddCommand(submissionsListCmd)
	submissionsCmd.AddCommand(submissionsShowCmd)
	submissionsCmd.AddCommand(submissionsCreateCmd)
	submissionsCmd.AddCommand(submissionsReviewCmd)
	rootCmd.AddCommand(submissionsCmd)
}
