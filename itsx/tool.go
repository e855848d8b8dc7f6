// pitsx: a parallel runner for ITSx on large FASTA files.
// Copyright (c) 2017-2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/pitsx/blob/master/LICENSE.txt>.

package itsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// OutputTailSize is the number of bytes of tool output kept in a Result.
const OutputTailSize = 8 * 1024

// killDelay is how long a cancelled job may take to exit after its
// process group was sent SIGTERM before it is killed.
const killDelay = 10 * time.Second

// A Result describes a finished ITSx process.
type Result struct {
	ExitCode int
	Output   []byte // the last OutputTailSize bytes of stdout and stderr
	Duration time.Duration
}

// A RunError is returned when ITSx cannot be started, exits with a
// non-zero status, or is stopped because of cancellation or timeout.
type RunError struct {
	Input    string
	ExitCode int
	Output   []byte
	Err      error
}

func (e *RunError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("ITSx failed on %v with exit code %v: %v", e.Input, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("ITSx failed on %v: %v", e.Input, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// A Tool runs ITSx with a fixed set of validated options.
type Tool struct {
	options Options
}

// NewTool validates options and returns a Tool using them.
func NewTool(options Options) (*Tool, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	options.SaveRegions = append([]string(nil), options.SaveRegions...)
	return &Tool{options: options}, nil
}

// Categories returns the output categories of every job.
func (t *Tool) Categories() []Category {
	return t.options.Categories()
}

// Command returns the command that processes input into files
// starting with prefix. The process gets its own process group, which
// is terminated as a whole when ctx is done.
func (t *Tool) Command(ctx context.Context, input, prefix string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, t.options.Executable, t.options.Args(input, prefix)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if err := unix.Kill(-cmd.Process.Pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
			return err
		}
		return nil
	}
	cmd.WaitDelay = killDelay
	return cmd
}

// Run processes input into files starting with prefix and waits for
// ITSx to exit.
func (t *Tool) Run(ctx context.Context, input, prefix string) (result Result, err error) {
	if t.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.options.Timeout)
		defer cancel()
	}

	tail := newTailBuffer(OutputTailSize)
	var output io.Writer = tail
	if t.options.LogOutput {
		logFile, err := os.OpenFile(prefix+".log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return Result{ExitCode: -1}, &RunError{Input: input, ExitCode: -1, Err: err}
		}
		defer func() {
			if nerr := logFile.Close(); err == nil && nerr != nil {
				err = &RunError{Input: input, ExitCode: result.ExitCode, Err: nerr}
			}
		}()
		output = io.MultiWriter(logFile, tail)
	}

	cmd := t.Command(ctx, input, prefix)
	cmd.Stdout = output
	cmd.Stderr = output

	start := time.Now()
	runErr := cmd.Run()
	result.Duration = time.Since(start)
	result.Output = tail.Bytes()
	result.ExitCode = -1
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			runErr = fmt.Errorf("%w (%v)", ctxErr, runErr)
		}
		return result, &RunError{Input: input, ExitCode: result.ExitCode, Output: result.Output, Err: runErr}
	}
	return result, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(p)
	if n >= t.max {
		t.buf = append(t.buf[:0], p[n-t.max:]...)
		return n, nil
	}
	if over := len(t.buf) + n - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

func (t *tailBuffer) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.buf...)
}
