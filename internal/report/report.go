// Package report aggregates per-image outcomes into a batch quality report
// suitable for human review or downstream tooling.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/propfoto/propfoto/internal/enhance"
	"github.com/propfoto/propfoto/internal/storage"
)

// Grade buckets a composite quality score for reporting.
type Grade string

const (
	GradeExcellent Grade = "excellent" // score >= 0.8
	GradeGood      Grade = "good"      // score >= 0.6
	GradeFair      Grade = "fair"      // score >= 0.4
	GradePoor      Grade = "poor"      // below the acceptance floor
)

func gradeFor(score float64) Grade {
	switch {
	case score >= 0.8:
		return GradeExcellent
	case score >= 0.6:
		return GradeGood
	case score >= 0.4:
		return GradeFair
	default:
		return GradePoor
	}
}

// Report summarizes the quality outcome of one batch.
type Report struct {
	BatchID   string `json:"batch_id" yaml:"batch_id"`
	ListingID string `json:"listing_id" yaml:"listing_id"`
	Status    string `json:"status" yaml:"status"`
	Total     int    `json:"total" yaml:"total"`
	Accepted  int    `json:"accepted" yaml:"accepted"`
	Rejected  int    `json:"rejected" yaml:"rejected"`
	Errored   int    `json:"errored" yaml:"errored"`

	// Distribution counts accepted and rejected images by quality grade.
	Distribution map[Grade]int `json:"distribution" yaml:"distribution"`

	// Issues counts how often each gate reason appeared across the batch.
	Issues map[string]int `json:"issues" yaml:"issues"`

	// Recommendations are derived from the dominant issues.
	Recommendations []string `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`

	Images []ImageEntry `json:"images" yaml:"images"`
}

// ImageEntry is the per-image line of a report.
type ImageEntry struct {
	ImageID    string   `json:"image_id" yaml:"image_id"`
	SourceName string   `json:"source_name" yaml:"source_name"`
	State      string   `json:"state" yaml:"state"`
	Score      float64  `json:"score" yaml:"score"`
	Grade      Grade    `json:"grade" yaml:"grade"`
	Reasons    []string `json:"reasons,omitempty" yaml:"reasons,omitempty"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
	Attempts   int      `json:"attempts" yaml:"attempts"`
}

// Build assembles a report from the stored batch summary and image records.
func Build(sum storage.BatchSummary, records []storage.ImageRecord) *Report {
	r := &Report{
		BatchID:      sum.BatchID,
		ListingID:    sum.ListingID,
		Status:       sum.Status,
		Total:        sum.Total,
		Accepted:     sum.Accepted,
		Rejected:     sum.Rejected,
		Errored:      sum.Errored,
		Distribution: make(map[Grade]int),
		Issues:       make(map[string]int),
		Images:       make([]ImageEntry, 0, len(records)),
	}

	for _, rec := range records {
		entry := ImageEntry{
			ImageID:    rec.ImageID,
			SourceName: rec.SourceName,
			State:      string(rec.State),
			Score:      rec.Verdict.Score,
			Grade:      gradeFor(rec.Verdict.Score),
			Reasons:    rec.Verdict.Reasons,
			Error:      rec.Error,
			Attempts:   rec.Attempts,
		}
		// Errored images never reached the gate; they carry no grade.
		if rec.State == enhance.StateAccepted || rec.State == enhance.StateRejected {
			r.Distribution[entry.Grade]++
		}
		for _, reason := range rec.Verdict.Reasons {
			r.Issues[issueKey(reason)]++
		}
		r.Images = append(r.Images, entry)
	}
	sort.Slice(r.Images, func(i, j int) bool { return r.Images[i].SourceName < r.Images[j].SourceName })

	r.Recommendations = recommend(r.Issues, len(records))
	return r
}

// issueKey collapses a human-readable gate reason to its leading metric
// name so identical issues with different values aggregate together.
func issueKey(reason string) string {
	if idx := strings.IndexAny(reason, "0123456789"); idx > 0 {
		return strings.TrimSpace(reason[:idx])
	}
	return reason
}

// recommend derives shoot-level advice from issues affecting a meaningful
// share of the batch.
func recommend(issues map[string]int, total int) []string {
	if total == 0 {
		return nil
	}
	var recs []string
	for key, count := range issues {
		if float64(count)/float64(total) < 0.25 {
			continue
		}
		switch {
		case strings.Contains(key, "brightness"):
			recs = append(recs, "many frames are underexposed; reshoot with longer exposure or enable HDR bracketing")
		case strings.Contains(key, "contrast"):
			recs = append(recs, "contrast is extreme across the batch; avoid mixed direct sun and deep shade in one frame")
		case strings.Contains(key, "dynamic range"):
			recs = append(recs, "dynamic range is compressed; check lens flare or haze on the sensor")
		case strings.Contains(key, "exposure"):
			recs = append(recs, "exposure is skewed; review camera metering mode")
		}
	}
	sort.Strings(recs)
	return recs
}

// Summary renders a one-line human summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("batch %s: %s, %d/%d accepted (%d rejected, %d errored)",
		r.BatchID, r.Status, r.Accepted, r.Total, r.Rejected, r.Errored)
}
