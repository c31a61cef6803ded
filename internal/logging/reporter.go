package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
)

var (
	passLabel = color.New(color.FgGreen, color.Bold).SprintFunc()
	failLabel = color.New(color.FgRed, color.Bold).SprintFunc()
)

// Reporter sends progress lines through a logger and writes the final
// summary to out, colored when out is a terminal.
type Reporter struct {
	logger *slog.Logger
	out    io.Writer
}

// NewReporter creates a Reporter.
func NewReporter(logger *slog.Logger, out io.Writer) *Reporter {
	return &Reporter{logger: logger.With("component", "reporter"), out: out}
}

// Info logs a progress line.
func (r *Reporter) Info(line string) {
	r.logger.Info(line)
}

// Error logs a failure line.
func (r *Reporter) Error(line string) {
	r.logger.Error(line)
}

// SuccessSummary prints the summary of a run where everything passed.
func (r *Reporter) SuccessSummary(line string) {
	fmt.Fprintf(r.out, "%s %s\n", passLabel("PASS"), line)
}

// ErrorSummary prints the summary of a run with failures.
func (r *Reporter) ErrorSummary(line string) {
	fmt.Fprintf(r.out, "%s %s\n", failLabel("FAIL"), line)
}
