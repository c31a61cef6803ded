package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestReporter(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var logs, out bytes.Buffer
	r := NewReporter(NewLoggerWithWriter(slog.LevelInfo, "text", &logs), &out)

	r.Info("started login")
	r.Error("failed login (1.2s)")
	r.SuccessSummary("2 units: 2 passed")
	r.ErrorSummary("2 units: 1 failed")

	assert.Contains(t, logs.String(), "level=INFO")
	assert.Contains(t, logs.String(), `msg="started login"`)
	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "component=reporter")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{"PASS 2 units: 2 passed", "FAIL 2 units: 1 failed"}, lines)
}
