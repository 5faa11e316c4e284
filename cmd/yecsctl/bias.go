package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/yecs/internal/fairness"
)

// errBiasDetected is returned with --fail-on-bias so CI jobs can gate on audits.
var errBiasDetected = fmt.Errorf("bias detected")

func (c *cli) newBiasCmd() *cobra.Command {
	var (
		format     string
		failOnBias bool
	)

	cmd := &cobra.Command{
		Use:   "bias",
		Short: "Run the disparate-impact analysis over all stored scores.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format, formatTable, formatMarkdown, formatJSON); err != nil {
				return err
			}
			a, err := c.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Service.RunBiasAnalysis(cmd.Context())
			if err != nil {
				return err
			}

			if err := writeReport(c.out, report, format); err != nil {
				return err
			}
			if failOnBias && report.BiasDetected() {
				return errBiasDetected
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "o", formatTable, "output format: table, markdown or json")
	cmd.Flags().BoolVar(&failOnBias, "fail-on-bias", false, "exit non-zero when any attribute is flagged")
	return cmd
}

func writeReport(w io.Writer, report fairness.Report, format string) error {
	switch format {
	case formatJSON:
		return writeJSON(w, report)
	case formatMarkdown:
		_, err := io.WriteString(w, fairness.RenderMarkdown(report))
		return err
	default:
		return writeBiasTable(w, report)
	}
}
