package subprocess

import (
	"context"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sync/errgroup"
)

// outputDrainTimeout bounds how long output is still collected after the
// process has exited, for descendants that inherited the output pipes.
const outputDrainTimeout = 5 * time.Second

// StartOptions describes a child process to start.
type StartOptions struct {
	Invocation Invocation
	WorkingDir string
	// Env is the complete environment of the child, usually built with
	// MergeEnvironment. A nil Env inherits the current environment.
	Env []string
	// Output receives the child's stdout and stderr. A new collector is
	// created when nil.
	Output *OutputCollector
	// GOOS selects the platform bootstrap; defaults to runtime.GOOS.
	GOOS string
}

// Process is a started child process. Its exit outcome is resolved exactly
// once, by a single goroutine that waits on the process. The outcome is
// known as soon as the process exits; its output is collected separately
// and is complete once Wait returns.
type Process struct {
	argv      []string
	cmd       *exec.Cmd
	output    *OutputCollector
	pipes     []*os.File
	startedAt time.Time

	done        chan struct{}
	drained     chan struct{}
	resolved    sync.Once
	mutex       sync.RWMutex
	outcome     ExitOutcome
	exitedAt    time.Time
	waitErr     error
	drainErr    error
	groupKilled bool
}

// Start launches the process described by opts in a process group of its
// own. Failing to start is reported as a *SpawnError and is never retried.
func Start(opts StartOptions) (*Process, error) {
	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	argv, err := BuildArgv(goos, opts.Invocation)
	if err != nil {
		return nil, &SpawnError{Argv: []string{opts.Invocation.Entry}, Cause: err}
	}

	output := opts.Output
	if output == nil {
		output = NewOutputCollector()
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Argv: argv, Cause: errors.Wrap(err, "making stdout pipe")}
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return nil, &SpawnError{Argv: argv, Cause: errors.Wrap(err, "making stderr pipe")}
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = opts.WorkingDir
	cmd.Env = opts.Env
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	setProcessGroup(cmd)

	err = cmd.Start()
	// The child holds its own copies of the write ends.
	closeAll(stdoutW, stderrW)
	if err != nil {
		closeAll(stdoutR, stderrR)
		return nil, &SpawnError{Argv: argv, Cause: err}
	}

	p := &Process{
		argv:      argv,
		cmd:       cmd,
		output:    output,
		pipes:     []*os.File{stdoutR, stderrR},
		startedAt: time.Now(),
		done:      make(chan struct{}),
		drained:   make(chan struct{}),
	}

	grip.Debug(message.Fields{
		"message": "started process",
		"pid":     cmd.Process.Pid,
		"argv":    argv,
		"dir":     cmd.Dir,
	})

	pumps := errgroup.Group{}
	pumps.Go(func() error { return pump(stdoutR, output.Stdout()) })
	pumps.Go(func() error { return pump(stderrR, output.Stderr()) })
	go func() {
		err := pumps.Wait()
		p.mutex.Lock()
		p.drainErr = err
		p.mutex.Unlock()

		output.Seal()
		close(p.drained)
	}()

	go p.reap()

	return p, nil
}

func pump(r *os.File, w io.Writer) error {
	_, err := io.Copy(w, r)
	_ = r.Close()
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return errors.Wrap(err, "reading process output")
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

func (p *Process) reap() {
	err := p.cmd.Wait()
	p.resolve(outcomeFromState(p.cmd.ProcessState), err)

	timer := time.NewTimer(outputDrainTimeout)
	defer timer.Stop()
	select {
	case <-p.drained:
	case <-timer.C:
		grip.Debug(message.Fields{
			"message": "output pipes still open after exit; closing them",
			"pid":     p.PID(),
			"timeout": outputDrainTimeout.String(),
		})
		closeAll(p.pipes...)
	}
}

func (p *Process) resolve(outcome ExitOutcome, err error) {
	p.resolved.Do(func() {
		p.mutex.Lock()
		p.outcome = outcome
		p.exitedAt = time.Now()
		if _, ok := err.(*exec.ExitError); !ok {
			p.waitErr = err
		}
		p.mutex.Unlock()

		close(p.done)

		grip.Debug(message.Fields{
			"message": "process exited",
			"pid":     p.PID(),
			"outcome": outcome.String(),
			"runtime": p.exitedAt.Sub(p.startedAt).String(),
		})
	})
}

// PID returns the operating system process ID.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Argv returns the effective argument vector the process was started with.
func (p *Process) Argv() []string { return append([]string(nil), p.argv...) }

// Output returns the collector capturing the process's output.
func (p *Process) Output() *OutputCollector { return p.output }

// StartedAt returns when the process was started.
func (p *Process) StartedAt() time.Time { return p.startedAt }

// Done is closed once the exit outcome is known.
func (p *Process) Done() <-chan struct{} { return p.done }

// Running reports whether the process has not exited yet.
func (p *Process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Outcome returns the exit outcome without blocking. The second value is
// false while the process is still running.
func (p *Process) Outcome() (ExitOutcome, bool) {
	if p.Running() {
		return ExitOutcome{}, false
	}

	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return p.outcome, true
}

// ExitedAt returns when the outcome was resolved, or the zero time while
// running.
func (p *Process) ExitedAt() time.Time {
	if p.Running() {
		return time.Time{}
	}

	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return p.exitedAt
}

// Wait blocks until the process exits and its output has been collected,
// or the context is done. Errors from the wait itself, other than the
// process exiting unsuccessfully, are returned alongside the outcome.
func (p *Process) Wait(ctx context.Context) (ExitOutcome, error) {
	select {
	case <-ctx.Done():
		return ExitOutcome{}, errors.Wrap(ctx.Err(), "waiting for process to exit")
	case <-p.done:
	}

	p.mutex.RLock()
	outcome := p.outcome
	p.mutex.RUnlock()

	select {
	case <-ctx.Done():
		return outcome, errors.Wrap(ctx.Err(), "waiting for process output")
	case <-p.drained:
	}

	p.mutex.RLock()
	defer p.mutex.RUnlock()

	catcher := grip.NewBasicCatcher()
	catcher.Add(p.waitErr)
	catcher.Add(p.drainErr)
	return outcome, errors.WithStack(catcher.Resolve())
}

// Signal delivers sig to the process. Signalling a process that has already
// exited returns an error wrapping os.ErrProcessDone.
func (p *Process) Signal(sig os.Signal) error {
	if !p.Running() {
		return errors.Wrapf(os.ErrProcessDone, "signaling process %d", p.PID())
	}
	return errors.Wrapf(p.cmd.Process.Signal(sig), "signaling process %d with '%s'", p.PID(), sig)
}

// Terminate force-kills the process, its process group and any other
// descendants it started, then waits for the exit outcome and the remaining
// output. Members of the group that outlived the process are killed too. It
// is safe to call more than once.
func (p *Process) Terminate(ctx context.Context) error {
	running := p.Running()

	// Descendants are collected before the parent dies, since they are
	// reparented afterwards.
	var descendants []*process.Process
	if running {
		descendants = findDescendants(ctx, int32(p.PID()))
	}

	catcher := grip.NewBasicCatcher()
	catcher.Wrapf(p.killGroup(), "killing process group %d", p.PID())
	if running {
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			catcher.Add(errors.Wrapf(err, "killing process %d", p.PID()))
		}
	}
	for _, proc := range descendants {
		if alive, err := proc.IsRunningWithContext(ctx); err != nil || !alive {
			continue
		}
		if err := proc.KillWithContext(ctx); err != nil {
			grip.Debug(message.WrapError(err, message.Fields{
				"message": "could not kill descendant process",
				"pid":     proc.Pid,
				"parent":  p.PID(),
			}))
		}
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		catcher.Add(errors.Wrapf(ctx.Err(), "waiting for process %d to exit after kill", p.PID()))
		return catcher.Resolve()
	}
	select {
	case <-p.drained:
	case <-ctx.Done():
		catcher.Add(errors.Wrapf(ctx.Err(), "waiting for output of process %d after kill", p.PID()))
	}

	grip.DebugWhen(running, message.Fields{
		"message":     "terminated process",
		"pid":         p.PID(),
		"descendants": len(descendants),
	})

	return catcher.Resolve()
}

// killGroup kills the process group once. Later calls do nothing, so a
// group ID the system has since reused is never signaled.
func (p *Process) killGroup() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.groupKilled {
		return nil
	}
	p.groupKilled = true

	return killProcessGroup(p.PID())
}

func findDescendants(ctx context.Context, pid int32) []*process.Process {
	root, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil
	}

	var out []*process.Process
	queue := []*process.Process{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		children, err := current.ChildrenWithContext(ctx)
		if err != nil {
			continue
		}
		out = append(out, children...)
		queue = append(queue, children...)
	}

	return out
}
