package gates

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agentindex/ami-cli/internal/model"
)

var systemIDRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidateSubmission checks an inbound submission payload before it
// enters the review workflow. Like ValidateAssessment, all problems are
// collected rather than short-circuited.
func ValidateSubmission(s *model.Submission) Result {
	if s == nil {
		return Result{Valid: false, Errors: []string{"submission must not be nil"}}
	}

	var errors []string

	validType := false
	for _, t := range model.SubmissionTypes {
		if s.Type == t {
			validType = true
			break
		}
	}
	if !validType {
		names := make([]string, len(model.SubmissionTypes))
		for i, t := range model.SubmissionTypes {
			names[i] = string(t)
		}
		errors = append(errors, "type must be one of: "+strings.Join(names, ", "))
	}

	if !nonEmpty(s.SystemID) {
		errors = append(errors, "system_id is required")
	} else if !systemIDRe.MatchString(s.SystemID) {
		errors = append(errors, "system_id must be lowercase alphanumeric with hyphens/underscores")
	}

	if len(s.Claims) == 0 {
		errors = append(errors, "claims must be a non-empty array")
	}
	for i, claim := range s.Claims {
		if !nonEmpty(claim.Summary) {
			errors = append(errors, fmt.Sprintf("claims[%d].summary is required", i))
		}
		if (s.Type == model.SubmissionCorrection || s.Type == model.SubmissionChallenge) && claim.DimensionID == "" {
			errors = append(errors, fmt.Sprintf(
				"claims[%d].dimension_id is recommended for %s submissions", i, s.Type))
		}
	}

	if len(s.Evidence) == 0 {
		errors = append(errors, "evidence must be a non-empty array with sources")
	}
	for i, ev := range s.Evidence {
		if !nonEmpty(ev.URL) {
			errors = append(errors, fmt.Sprintf("evidence[%d].url is required", i))
		}
		if !nonEmpty(ev.Description) {
			errors = append(errors, fmt.Sprintf("evidence[%d].description is required", i))
		}
	}

	if s.Contact == nil {
		errors = append(errors, "contact is required")
	} else {
		if !nonEmpty(s.Contact.Name) {
			errors = append(errors, "contact.name is required")
		}
		if !nonEmpty(s.Contact.Email) {
			errors = append(errors, "contact.email is required")
		}
	}

	if (s.Type == model.SubmissionCorrection || s.Type == model.SubmissionChallenge) && !nonEmpty(s.AssessmentID) {
		errors = append(errors, "assessment_id is required for correction and challenge submissions")
	}

	return Result{Valid: len(errors) == 0, Errors: errors}
}
