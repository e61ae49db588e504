package types

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunResult is produced to the caller when a run reaches a terminal
// state. A failed run still carries the partial history recorded up to
// the failure point.
type RunResult struct {
	RunID        string             `yaml:"run_id" json:"run_id"`
	Status       RunStatus          `yaml:"status" json:"status"`
	FinalCapital float64            `yaml:"final_capital" json:"final_capital"`
	Metrics      PerformanceMetrics `yaml:"metrics" json:"metrics"`
	Trades       []Fill             `yaml:"trades" json:"trades"`
	EquityCurve  []Snapshot         `yaml:"equity_curve" json:"equity_curve"`
	Rejections   []Rejection        `yaml:"rejections" json:"rejections"`
	// Error describes the failure for status=failed runs.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
}

// WriteRunResult writes a run result to a YAML file.
func WriteRunResult(path string, result RunResult) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal run result to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run result to file: %w", err)
	}

	return nil
}
