package fairness

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown formats a report for humans: one section per attribute with a
// verdict line and a per-group table.
func RenderMarkdown(r Report) string {
	var b strings.Builder

	b.WriteString("# YECS Bias Detection Report\n\n")
	fmt.Fprintf(&b, "Generated: %s  \n", r.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Records analyzed: %d  \n", r.TotalRecords)
	fmt.Fprintf(&b, "Tolerance: %.2f, minimum group size: %d\n\n", r.Tolerance, r.MinGroupSize)

	for _, attr := range r.AttributeNames() {
		res := r.Attributes[attr]
		fmt.Fprintf(&b, "## %s\n\n", attributeTitle(attr))
		fmt.Fprintf(&b, "Overall mean score: %.2f  \n", res.OverallMean)
		fmt.Fprintf(&b, "Overall favorable rate: %.1f%%\n\n", 100*res.OverallFavorableRate)

		switch {
		case res.BiasDetected:
			fmt.Fprintf(&b, "**BIAS DETECTED**: disparate-impact ratio %.3f (%s vs %s)\n\n",
				*res.DisparityRatio, res.DisadvantagedGroup, res.ReferenceGroup)
		case res.DisparityRatio == nil:
			b.WriteString("Insufficient sample: fewer than two groups meet the minimum size\n\n")
		default:
			fmt.Fprintf(&b, "No significant bias detected (ratio %.3f)\n\n", *res.DisparityRatio)
		}

		if len(res.Groups) == 0 {
			continue
		}

		b.WriteString("| Group | Count | Mean score | Std dev | Favorable rate | Mean ratio | Note |\n")
		b.WriteString("|---|---:|---:|---:|---:|---:|---|\n")
		for _, name := range res.SortedGroups() {
			g := res.Groups[name]
			note := ""
			if g.InsufficientSample {
				note = "insufficient sample"
			}
			fmt.Fprintf(&b, "| %s | %d | %.2f | %.2f | %.1f%% | %.3f | %s |\n",
				name, g.Count, g.MeanScore, g.StdDevScore, 100*g.FavorableRate, g.MeanRatio, note)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func attributeTitle(attr string) string {
	words := strings.Split(attr, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
