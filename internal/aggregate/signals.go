package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/agentindex/ami-cli/internal/model"
)

// staleEvidenceDays is the age past which the oldest evidence item
// triggers a staleness warning.
const staleEvidenceDays = 180

// Signals carries freshness metrics and anti-gaming warnings for an
// assessment. Ages are measured in days relative to assessed_at.
type Signals struct {
	FreshnessDaysMedian *int     `json:"freshness_days_median"`
	FreshnessDaysMax    *int     `json:"freshness_days_max"`
	WarningsCount       int      `json:"warnings_count"`
	Warnings            []string `json:"warnings"`
}

// ComputeSignals derives freshness metrics and anti-gaming warnings.
// The catalog may be nil, in which case source-reliability warnings are
// skipped.
func ComputeSignals(a *model.Assessment, catalog model.SourceCatalog) Signals {
	var warnings []string
	assessedAt, haveAssessedAt := ParseISOTime(a.AssessedAt)

	var ages []int
	if haveAssessedAt {
		for i := range a.Dimensions {
			for j := range a.Dimensions[i].Evidence {
				ev := &a.Dimensions[i].Evidence[j]
				if ref, ok := evidenceRefTime(ev); ok {
					ages = append(ages, int(assessedAt.Sub(ref).Hours()/24))
				}
			}
		}
	}
	sort.Ints(ages)

	var median, max *int
	if len(ages) > 0 {
		m := ages[len(ages)/2]
		median = &m
		mx := ages[len(ages)-1]
		max = &mx
	}

	// High scores backed exclusively by self-reported sources.
	if catalog != nil && a.Status == model.StatusScored {
		for i := range a.Dimensions {
			dim := &a.Dimensions[i]
			if !dim.IsScored() || *dim.Score < 4 {
				continue
			}
			sids := dim.DistinctSourceIDs()
			if len(sids) == 0 {
				continue
			}
			allSelfReported := true
			for sid := range sids {
				src, ok := catalog[sid]
				if !ok || src.Reliability != model.ReliabilitySelfReported {
					allSelfReported = false
					break
				}
			}
			if allSelfReported {
				warnings = append(warnings, fmt.Sprintf(
					"HIGH_SCORE_SELF_REPORTED_ONLY: dimension %q score %d backed only by self-reported sources",
					dim.DimensionID, *dim.Score))
			}
		}
	}

	if max != nil && *max > staleEvidenceDays {
		warnings = append(warnings, fmt.Sprintf(
			"STALE_EVIDENCE: oldest evidence is %d days before assessment date", *max))
	}

	return Signals{
		FreshnessDaysMedian: median,
		FreshnessDaysMax:    max,
		WarningsCount:       len(warnings),
		Warnings:            warnings,
	}
}

// evidenceRefTime picks the evidence reference date: captured_at when
// parseable, else published_date.
func evidenceRefTime(ev *model.Evidence) (time.Time, bool) {
	if t, ok := ParseISOTime(ev.CapturedAt); ok {
		return t, true
	}
	return ParseISOTime(ev.PublishedDate)
}

// ParseISOTime parses an ISO-8601 date or timestamp.
func ParseISOTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
