package process

import "github.com/me/relay/pkg/model"

// Exit codes with a fixed meaning for worker processes.
const (
	ExitPassed       = 0
	ExitAssertFailed = 1
	ExitError        = 2
	ExitFatalRuntime = 255

	// Shells report death by signal N as 128+N.
	ExitSIGINT  = 130
	ExitSIGKILL = 137
	ExitSIGTERM = 143
)

// ResolveResult classifies a process outcome. ok is false when no exit code
// was ever obtained, which happens when the process failed to start.
func ResolveResult(code int, ok bool) model.Result {
	if !ok {
		return model.ResultFailed
	}
	switch {
	case code == ExitPassed:
		return model.ResultPassed
	case code < 0:
		// os/exec reports -1 for a process terminated by a signal.
		return model.ResultFatal
	case code == ExitFatalRuntime, code == ExitSIGINT, code == ExitSIGKILL, code == ExitSIGTERM:
		return model.ResultFatal
	default:
		return model.ResultFailed
	}
}
