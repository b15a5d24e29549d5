// internal/pipeline/types.go
package pipeline

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSpiderDisabled is returned when the configuration turns a spider off.
	ErrSpiderDisabled = errors.New("spider is disabled")
	// ErrAlreadyRunning is returned when a run of the spider is in flight.
	ErrAlreadyRunning = errors.New("spider is already running")
)

// ActiveRun identifies a run holding its spider's slot.
type ActiveRun struct {
	RunID     string    `json:"run_id"`
	Spider    string    `json:"spider"`
	StartedAt time.Time `json:"started_at"`
}

// AlreadyRunningError carries the run that holds the slot.
type AlreadyRunningError struct {
	Run ActiveRun
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("%s: %s (run %s)", ErrAlreadyRunning, e.Run.Spider, e.Run.RunID)
}

func (e *AlreadyRunningError) Unwrap() error { return ErrAlreadyRunning }

// RunResult summarizes one spider run.
type RunResult struct {
	RunID      string        `json:"run_id"`
	Spider     string        `json:"spider"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Emitted    int           `json:"emitted"`
	Valid      int           `json:"valid"`
	Invalid    int           `json:"invalid"`
	Duplicates int           `json:"duplicates"`
	Written    int           `json:"written"`
	// IncompleteHours counts written stores without hours for every day.
	IncompleteHours int    `json:"incomplete_hours"`
	Target          string `json:"target"`
	Error           string `json:"error,omitempty"`
}

// reset clears the counters before a retried attempt.
func (r *RunResult) reset() {
	r.Emitted, r.Valid, r.Invalid, r.Duplicates, r.Written, r.IncompleteHours = 0, 0, 0, 0, 0, 0
}
