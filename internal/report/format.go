package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format renders the report in the requested format: json, yaml or text.
func Format(r *Report, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(r)
	case "yaml":
		return formatYAML(r)
	case "text", "":
		return formatText(r), nil
	default:
		return "", fmt.Errorf("unsupported report format: %q", format)
	}
}

func formatJSON(r *Report) (string, error) {
	bts, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bts), nil
}

func formatYAML(r *Report) (string, error) {
	bts, err := yaml.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(bts), nil
}

func formatText(r *Report) string {
	var out strings.Builder
	out.WriteString(r.Summary())
	out.WriteString("\n")

	if len(r.Distribution) > 0 {
		out.WriteString("\nQuality distribution:\n")
		for _, g := range []Grade{GradeExcellent, GradeGood, GradeFair, GradePoor} {
			if count := r.Distribution[g]; count > 0 {
				out.WriteString(fmt.Sprintf("  %-10s %d\n", g, count))
			}
		}
	}

	if len(r.Issues) > 0 {
		out.WriteString("\nIssues:\n")
		keys := make([]string, 0, len(r.Issues))
		for k := range r.Issues {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out.WriteString(fmt.Sprintf("  %s: %d\n", k, r.Issues[k]))
		}
	}

	if len(r.Recommendations) > 0 {
		out.WriteString("\nRecommendations:\n")
		for _, rec := range r.Recommendations {
			out.WriteString(fmt.Sprintf("  - %s\n", rec))
		}
	}

	if len(r.Images) > 0 {
		out.WriteString("\nImages:\n")
		for _, img := range r.Images {
			line := fmt.Sprintf("  %-30s %-10s score=%.2f", img.SourceName, img.State, img.Score)
			if len(img.Reasons) > 0 {
				line += " (" + strings.Join(img.Reasons, "; ") + ")"
			}
			if img.Error != "" {
				line += " error: " + img.Error
			}
			out.WriteString(line + "\n")
		}
	}

	return out.String()
}
