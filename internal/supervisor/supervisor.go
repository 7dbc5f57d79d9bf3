// Package supervisor launches plugin child processes and waits for their
// startup handshake.
//
// A plugin announces itself by printing a JSON line such as
// {"port": 4000, "serverKey": "..."} on stdout. Both output streams are
// drained for the whole life of the child; the first stdout line that starts
// with '{' is the only handshake candidate.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/nupi-ai/contentplugins/internal/constants"
	"github.com/nupi-ai/contentplugins/internal/logging"
	"github.com/nupi-ai/contentplugins/internal/manifest"
	"github.com/nupi-ai/contentplugins/internal/pluginpb"
	"github.com/nupi-ai/contentplugins/internal/procutil"
)

var (
	ErrNoOutputStream   = errors.New("supervisor: could not get the child process output streams")
	ErrBadHandshake     = errors.New("supervisor: failed to read startup info from plugin")
	ErrHandshakeTimeout = errors.New("supervisor: plugin process did not output the startup message in time")
)

const maxLineSize = 1 << 20

// RunningPluginInfo is the decoded handshake line.
type RunningPluginInfo = pluginpb.RunningPluginInfo

// StartOptions customises how the plugin process is launched.
type StartOptions struct {
	// HandshakeTimeout bounds the wait for the handshake line. Zero means
	// constants.PluginHandshakeTimeout.
	HandshakeTimeout time.Duration
	// Stdout and Stderr receive a copy of every drained line.
	Stdout io.Writer
	Stderr io.Writer
	// Env overrides the environment. When empty, the parent environment is used.
	Env    []string
	Logger *zap.Logger
}

// ChildPluginProcess is a plugin that completed its handshake.
type ChildPluginProcess struct {
	cmd      *exec.Cmd
	manifest manifest.Manifest
	info     RunningPluginInfo
	logger   *zap.Logger

	done    chan struct{}
	waitErr error
}

type handshakeResult struct {
	info RunningPluginInfo
	err  error
}

// Start launches the plugin described by m and waits for its handshake.
// Cancelling ctx kills the child. On a handshake failure the child is left
// running and its output keeps being drained until it exits.
func Start(ctx context.Context, m *manifest.Manifest, opts *StartOptions) (*ChildPluginProcess, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts == nil {
		opts = &StartOptions{}
	}
	if m == nil {
		return nil, errors.New("supervisor: nil manifest")
	}

	command, args, err := m.Command()
	if err != nil {
		return nil, fmt.Errorf("supervisor: resolve command for %s: %w", m.Name, err)
	}

	cmd := exec.CommandContext(ctx, command, args...)
	if m.Dir != "" {
		cmd.Dir = m.Dir
	}
	if len(opts.Env) > 0 {
		cmd.Env = opts.Env
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout: %v", ErrNoOutputStream, err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr: %v", ErrNoOutputStream, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("supervisor: start plugin %s: %w", m.Name, err)
	}

	pid := cmd.Process.Pid
	logger := logging.OrNop(opts.Logger).Named("supervisor").With(
		zap.String("plugin", m.Name),
		zap.Int("pid", pid),
	)

	proc := &ChildPluginProcess{
		cmd:      cmd,
		manifest: *m,
		logger:   logger,
		done:     make(chan struct{}),
	}

	handshake := make(chan handshakeResult, 1)
	stdoutDone := make(chan struct{})
	stderrDone := make(chan struct{})

	go func() {
		defer close(stdoutDone)
		startupRead := false
		drainLines(stdoutPipe, opts.Stdout, logger.With(zap.String("stream", "stdout")), func(line string) {
			if startupRead {
				return
			}
			trimmed := strings.TrimSpace(line)
			if !strings.HasPrefix(trimmed, "{") {
				return
			}
			startupRead = true
			info, err := parseHandshake(trimmed)
			if err != nil {
				logger.Error("failed to read startup info from plugin", zap.Error(err))
			}
			handshake <- handshakeResult{info: info, err: err}
		})
	}()

	go func() {
		defer close(stderrDone)
		drainLines(stderrPipe, opts.Stderr, logger.With(zap.String("stream", "stderr")), nil)
	}()

	// Wait must only run once both pipes have been read to EOF.
	go func() {
		<-stdoutDone
		<-stderrDone
		proc.waitErr = cmd.Wait()
		logger.Debug("plugin process exited", zap.Error(proc.waitErr))
		close(proc.done)
	}()

	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = constants.PluginHandshakeTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result handshakeResult
	select {
	case result = <-handshake:
	case <-stdoutDone:
		select {
		case result = <-handshake:
		default:
			logger.Error("plugin closed its output before the startup message")
			return nil, fmt.Errorf("%w: stdout closed before the startup message", ErrHandshakeTimeout)
		}
	case <-timer.C:
		logger.Error("timeout waiting to get plugin startup info", zap.Duration("timeout", timeout))
		return nil, fmt.Errorf("%w (%s)", ErrHandshakeTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHandshake, result.err)
	}
	proc.info = result.info
	logger.Debug("plugin started", zap.Uint16("port", result.info.Port))
	return proc, nil
}

func drainLines(r io.Reader, sink io.Writer, logger *zap.Logger, onLine func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		logger.Debug(line)
		if sink != nil {
			_, _ = io.WriteString(sink, line+"\n")
		}
		if onLine != nil {
			onLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("failed to read line from child process output", zap.Error(err))
		_, _ = io.Copy(io.Discard, r)
	}
}

func parseHandshake(line string) (RunningPluginInfo, error) {
	var raw struct {
		Port      *uint16 `json:"port"`
		ServerKey *string `json:"serverKey"`
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(line, &raw); err != nil {
		return RunningPluginInfo{}, err
	}
	if raw.Port == nil {
		return RunningPluginInfo{}, errors.New("missing field `port`")
	}
	if raw.ServerKey == nil {
		return RunningPluginInfo{}, errors.New("missing field `serverKey`")
	}
	return RunningPluginInfo{Port: *raw.Port, ServerKey: *raw.ServerKey}, nil
}

// Port returns the port the plugin's server listens on.
func (p *ChildPluginProcess) Port() uint16 { return p.info.Port }

// ServerKey returns the key the plugin announced in its handshake.
func (p *ChildPluginProcess) ServerKey() string { return p.info.ServerKey }

// Info returns the decoded handshake.
func (p *ChildPluginProcess) Info() RunningPluginInfo { return p.info }

// PID returns the OS process identifier.
func (p *ChildPluginProcess) PID() int { return p.cmd.Process.Pid }

// Manifest returns a copy of the manifest the plugin was started from.
func (p *ChildPluginProcess) Manifest() manifest.Manifest { return p.manifest }

// Done is closed once the process has exited and been reaped.
func (p *ChildPluginProcess) Done() <-chan struct{} { return p.done }

// Wait blocks until the process exits and returns its exit error.
func (p *ChildPluginProcess) Wait() error {
	<-p.done
	return p.waitErr
}

// Kill sends a termination signal to the plugin if it is still in the
// process table. A process that already exited is only logged.
func (p *ChildPluginProcess) Kill() {
	ctx, cancel := context.WithTimeout(context.Background(), constants.Duration5Seconds)
	defer cancel()

	if err := procutil.TerminateByPID(ctx, p.PID()); err != nil {
		if errors.Is(err, procutil.ErrNotFound) {
			p.logger.Warn("child process was not found", zap.Error(err))
		} else {
			p.logger.Warn("failed to terminate child process", zap.Error(err))
		}
		return
	}
	p.logger.Debug("sent termination signal to plugin")
}
