// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/tempy/internal/metrics"
)

// Terminate stops the process group led by cmd: SIGTERM first, SIGKILL once
// grace has passed without exited being closed. The caller owns cmd.Wait and
// closes exited after it returns; Terminate never reaps.
//
// It returns ErrKillFailed if the group is still alive grace after SIGKILL.
func Terminate(cmd *exec.Cmd, exited <-chan struct{}, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	select {
	case <-exited:
		metrics.IncProcWait("already_exited")
		return nil
	default:
	}

	send(cmd, syscall.SIGTERM)

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-exited:
		metrics.IncProcWait("graceful")
		return nil
	case <-timer.C:
	}

	if err := send(cmd, syscall.SIGKILL); err != nil {
		return fmt.Errorf("%w: %w", ErrKillFailed, err)
	}

	timer.Reset(grace)
	select {
	case <-exited:
		metrics.IncProcWait("forced")
		return nil
	case <-timer.C:
		metrics.IncProcWait("stuck")
		return ErrKillFailed
	}
}

func send(cmd *exec.Cmd, sig syscall.Signal) error {
	err := Kill(cmd, sig)
	switch {
	case err == nil:
		metrics.IncProcTerminate(signalName(sig), "sent")
	case gone(err):
		metrics.IncProcTerminate(signalName(sig), "esrch")
		return nil
	default:
		metrics.IncProcTerminate(signalName(sig), "error")
	}
	return err
}
