// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup starts decoder subprocesses as process group leaders so
// that ffmpeg and anything it forks can be signalled together.
package procgroup

import (
	"errors"
	"os"
	"syscall"
)

// ErrKillFailed is returned when a process group survived SIGKILL.
var ErrKillFailed = errors.New("kill operation failed")

func signalName(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGKILL:
		return "SIGKILL"
	default:
		return sig.String()
	}
}

func gone(err error) bool {
	return errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH)
}
