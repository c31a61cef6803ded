package process

import (
	"testing"

	"github.com/me/relay/pkg/model"
	"github.com/stretchr/testify/assert"
)

func TestResolveResult(t *testing.T) {
	tests := []struct {
		name string
		code int
		ok   bool
		want model.Result
	}{
		{"passed", 0, true, model.ResultPassed},
		{"assertion failed", ExitAssertFailed, true, model.ResultFailed},
		{"error", ExitError, true, model.ResultFailed},
		{"unrecognized code", 42, true, model.ResultFailed},
		{"fatal runtime", ExitFatalRuntime, true, model.ResultFatal},
		{"interrupted", ExitSIGINT, true, model.ResultFatal},
		{"killed", ExitSIGKILL, true, model.ResultFatal},
		{"terminated", ExitSIGTERM, true, model.ResultFatal},
		{"signal", -1, true, model.ResultFatal},
		{"never started", 0, false, model.ResultFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveResult(tt.code, tt.ok))
		})
	}
}
