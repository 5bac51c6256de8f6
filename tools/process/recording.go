package process

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MaxRecordedOutputLength is the max length of stdout or stderr kept in a Record.
const MaxRecordedOutputLength = 2000

// Record describes one finished command.
type Record struct {
	Command     string        `json:"command"`
	Dir         string        `json:"dir,omitempty"`
	Status      string        `json:"status"`
	ExitCode    int           `json:"exitCode"`
	Error       string        `json:"error,omitempty"`
	Stderr      string        `json:"stderr,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt time.Time     `json:"completedAt"`
	Duration    time.Duration `json:"duration"`
}

// RecordingRunner wraps a Runner and records each call. Silent commands are
// recorded like any other.
type RecordingRunner struct {
	inner  Runner
	logger *slog.Logger

	mu      sync.Mutex
	records []Record
}

// NewRecordingRunner wraps a runner with command recording.
func NewRecordingRunner(inner Runner, logger *slog.Logger) *RecordingRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordingRunner{inner: inner, logger: logger}
}

// Run executes the command on the wrapped runner and records the outcome.
func (r *RecordingRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	startedAt := time.Now()
	res, err := r.inner.Run(ctx, cmd)
	completedAt := time.Now()

	record := Record{
		Command:     cmd.String(),
		Dir:         cmd.Dir,
		Status:      "success",
		ExitCode:    res.ExitCode,
		Stderr:      truncate(res.Stderr, MaxRecordedOutputLength),
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(startedAt),
	}
	switch {
	case err != nil:
		record.Status = "error"
		record.Error = err.Error()
	case res.ExitCode != 0:
		record.Status = "failed"
	}

	r.mu.Lock()
	r.records = append(r.records, record)
	r.mu.Unlock()

	r.logger.Debug("Command finished",
		slog.String("command", record.Command),
		slog.String("status", record.Status),
		slog.Int("exit_code", record.ExitCode),
		slog.Duration("duration", record.Duration))

	return res, err
}

// Records returns a copy of the records so far, in call order.
func (r *RecordingRunner) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Failures returns the records of commands that errored or exited non-zero.
func (r *RecordingRunner) Failures() []Record {
	var out []Record
	for _, rec := range r.Records() {
		if rec.Status != "success" {
			out = append(out, rec)
		}
	}
	return out
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
