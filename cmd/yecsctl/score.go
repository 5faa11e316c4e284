package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/yecs/internal/errors"
	"github.com/ZanzyTHEbar/yecs/internal/scoring"
)

func (c *cli) newScoreCmd() *cobra.Command {
	var (
		file   string
		dryRun bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "score --file applicant.json",
		Short: "Score an applicant record read from a JSON file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format, formatTable, formatJSON); err != nil {
				return err
			}
			rec, err := readApplicant(file)
			if err != nil {
				return err
			}

			a, err := c.open(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			defer a.Close()

			record, err := a.Service.ScoreApplicant(cmd.Context(), rec)
			if err != nil {
				return err
			}

			if format == formatJSON {
				return writeJSON(c.out, record)
			}
			return writeScoreTable(c.out, record, dryRun)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "applicant record in JSON (- for stdin)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "score without persisting the record")
	cmd.Flags().StringVarP(&format, "format", "o", formatTable, "output format: table or json")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readApplicant(path string) (scoring.ApplicantRecord, error) {
	var rec scoring.ApplicantRecord

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return rec, fmt.Errorf("reading applicant file: %w", err)
	}

	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, errors.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return rec, nil
}
