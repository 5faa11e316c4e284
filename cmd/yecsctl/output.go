package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/ZanzyTHEbar/yecs/internal/errors"
	"github.com/ZanzyTHEbar/yecs/internal/fairness"
	"github.com/ZanzyTHEbar/yecs/internal/scoring"
)

const (
	formatTable    = "table"
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

var (
	lowColor      = color.New(color.FgGreen)
	mediumColor   = color.New(color.FgCyan)
	highColor     = color.New(color.FgYellow, color.Bold)
	veryHighColor = color.New(color.FgRed, color.Bold)
	biasColor     = color.New(color.FgRed, color.Bold)
	okColor       = color.New(color.FgGreen)
	mutedColor    = color.New(color.FgHiBlack)
)

func checkFormat(format string, allowed ...string) error {
	if slices.Contains(allowed, format) {
		return nil
	}
	return errors.NewValidationError("format",
		fmt.Sprintf("must be one of %s, got %q", strings.Join(allowed, ", "), format))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func riskLabel(r scoring.RiskLevel) string {
	switch r {
	case scoring.RiskLow:
		return lowColor.Sprint(r)
	case scoring.RiskMedium:
		return mediumColor.Sprint(r)
	case scoring.RiskHigh:
		return highColor.Sprint(r)
	default:
		return veryHighColor.Sprint(r)
	}
}

func writeScoreTable(w io.Writer, rec scoring.ScoreRecord, dryRun bool) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Component", "Score"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	rounded := rec.ComponentScores.Rounded()
	var data [][]string
	for _, comp := range scoring.Components() {
		data = append(data, []string{string(comp), fmt.Sprintf("%.1f", rounded.Value(comp))})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(w, "User %s scored %d (%s), score id %s\n", rec.UserID, rec.YECSScore, riskLabel(rec.RiskLevel), rec.ScoreID)
	if dryRun {
		fmt.Fprintln(w, mutedColor.Sprint("Dry run: record not persisted"))
	}
	return nil
}

func writeHistoryTable(w io.Writer, userID string, records []scoring.ScoreRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintf(w, "No scores recorded for user %s\n", userID)
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Created", "Score ID", "Score", "Risk", "Business", "Payment", "Financial"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, r := range records {
		c := r.ComponentScores.Rounded()
		data = append(data, []string{
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.ScoreID,
			fmt.Sprintf("%d", r.YECSScore),
			riskLabel(r.RiskLevel),
			fmt.Sprintf("%.1f", c.BusinessViability),
			fmt.Sprintf("%.1f", c.PaymentHistory),
			fmt.Sprintf("%.1f", c.FinancialManagement),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Showing %d scores for user %s\n", len(records), userID)
	return err
}

func writeBiasTable(w io.Writer, report fairness.Report) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Attribute", "Ratio", "Reference", "Disadvantaged", "Eligible Groups", "Verdict"})

	var data [][]string
	for _, attr := range report.AttributeNames() {
		res := report.Attributes[attr]
		ratio := "n/a"
		if res.DisparityRatio != nil {
			ratio = fmt.Sprintf("%.3f", *res.DisparityRatio)
		}

		var verdict string
		switch {
		case res.BiasDetected:
			verdict = biasColor.Sprint("BIAS DETECTED")
		case res.InsufficientSample:
			verdict = mutedColor.Sprint("insufficient sample")
		default:
			verdict = okColor.Sprint("ok")
		}

		data = append(data, []string{
			attr,
			ratio,
			res.ReferenceGroup,
			res.DisadvantagedGroup,
			fmt.Sprintf("%d", res.EligibleGroups),
			verdict,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "Analyzed %d records (tolerance %.2f, minimum group size %d)\n",
		report.TotalRecords, report.Tolerance, report.MinGroupSize)
	return err
}
