// Package procutil inspects the OS process table and terminates processes
// found in it.
package procutil

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/shirou/gopsutil/v3/process"
)

// ErrNotFound is returned when a pid is absent from the process table.
var ErrNotFound = errors.New("procutil: process not found")

// Lookup takes a fresh snapshot of the process table and returns the entry
// for pid. Zombies, which have exited but not been reaped, count as absent.
func Lookup(ctx context.Context, pid int) (*process.Process, error) {
	if pid <= 0 || pid > math.MaxInt32 {
		return nil, fmt.Errorf("%w: invalid pid %d", ErrNotFound, pid)
	}

	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("procutil: snapshot process table: %w", err)
	}
	if !slices.Contains(pids, int32(pid)) {
		return nil, fmt.Errorf("%w: pid %d", ErrNotFound, pid)
	}

	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, fmt.Errorf("%w: pid %d: %v", ErrNotFound, pid, err)
	}
	if status, err := proc.StatusWithContext(ctx); err == nil && slices.Contains(status, process.Zombie) {
		return nil, fmt.Errorf("%w: pid %d is a zombie", ErrNotFound, pid)
	}
	return proc, nil
}

// Terminate asks the process to exit: SIGTERM on Unix, TerminateProcess on Windows.
func Terminate(ctx context.Context, proc *process.Process) error {
	return proc.TerminateWithContext(ctx)
}

// TerminateByPID looks pid up and terminates it. It returns ErrNotFound when
// the process is not running.
func TerminateByPID(ctx context.Context, pid int) error {
	proc, err := Lookup(ctx, pid)
	if err != nil {
		return err
	}
	return Terminate(ctx, proc)
}

// IsProcessAlive checks whether a process with the given pid is still running.
func IsProcessAlive(pid int) bool {
	_, err := Lookup(context.Background(), pid)
	return err == nil
}
