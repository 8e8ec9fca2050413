package neobench

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ResultsFile is the on-disk record of one batch.
type ResultsFile struct {
	Timestamp time.Time          `json:"ts"`
	Host      HostInfo           `json:"host"`
	Plan      PlanSpec           `json:"plan"`
	Results   []AggregatedResult `json:"results"`
	Failures  []FailureRecord    `json:"failures,omitempty"`
	Notes     []string           `json:"notes,omitempty"`
}

// NewResultsFile records batch together with the plan it ran and the host.
func NewResultsFile(plan RunPlan, exp Expansion, batch Batch, host HostInfo, now time.Time) ResultsFile {
	return ResultsFile{
		Timestamp: now.UTC(),
		Host:      host,
		Plan:      plan.Spec(),
		Results:   batch.Results,
		Failures:  Failures(batch.Failures),
		Notes:     exp.Notes,
	}
}

// Report ranks the stored results per planned size.
func (f ResultsFile) Report(top int) Report {
	return buildReport(f.Results, f.Failures, f.Plan.Sizes, top)
}

// SaveResults writes f to path as indented JSON. The file is replaced
// atomically so concurrent readers never see a partial document.
func SaveResults(path string, f ResultsFile) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}

	_, writeErr := tmp.Write(append(data, '\n'))
	closeErr := tmp.Close()

	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("write results file: %w", err)
	}

	renameErr := os.Rename(tmp.Name(), path)
	if renameErr != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("replace results file: %w", renameErr)
	}

	return nil
}

// LoadResults reads a file written by [SaveResults].
func LoadResults(path string) (ResultsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ResultsFile{}, fmt.Errorf("read results file: %w", err)
	}

	var f ResultsFile

	unmarshalErr := json.Unmarshal(data, &f)
	if unmarshalErr != nil {
		return ResultsFile{}, fmt.Errorf("parse results file %s: %w", path, unmarshalErr)
	}

	return f, nil
}
