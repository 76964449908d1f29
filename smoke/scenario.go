package smoke

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/evergreen-ci/shutdowncheck"
	"github.com/evergreen-ci/shutdowncheck/subprocess"
	"github.com/google/uuid"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/send"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const packageName = "github.com/evergreen-ci/shutdowncheck/smoke"

// tracer uses whichever provider is installed at call time.
func tracer() trace.Tracer { return otel.GetTracerProvider().Tracer(packageName) }

// Result describes one scenario run. It is returned even when the scenario
// fails, filled in as far as the scenario got.
type Result struct {
	ID         string
	Port       int
	PID        int
	Argv       []string
	StateDir   string
	ConfigPath string
	Outcome    subprocess.ExitOutcome
	// ReadyAfter is the time from spawning to the first successful connect.
	ReadyAfter time.Duration
	// ExitAfter is the time from signaling to exit.
	ExitAfter time.Duration
	// ReadyRSS is the gateway's resident memory once it was ready, if it
	// could be read.
	ReadyRSS uint64
	// ExitedBeforeSignal is set when the gateway exited on its own before
	// the termination signal could be sent.
	ExitedBeforeSignal bool
	Output             subprocess.OutputSnapshot
	Trace              *Trace
}

// Fields summarizes the result for logging.
func (r *Result) Fields() message.Fields {
	return message.Fields{
		"scenario":    r.ID,
		"port":        r.Port,
		"pid":         r.PID,
		"outcome":     r.Outcome.String(),
		"ready_after": r.ReadyAfter.String(),
		"exit_after":  r.ExitAfter.String(),
		"output_size": humanize.Bytes(uint64(r.Output.Size())),
		"ready_rss":   humanize.Bytes(r.ReadyRSS),
		"state_dir":   r.StateDir,
		"unsignaled":  r.ExitedBeforeSignal,
	}
}

func (r *Result) String() string {
	return fmt.Sprintf("scenario %s: port %d, ready after %s, exited after %s with %s (%s of output)",
		r.ID, r.Port, r.ReadyAfter, r.ExitAfter, r.Outcome, humanize.Bytes(uint64(r.Output.Size())))
}

// Run performs one shutdown check: it allocates a port, writes an isolated
// gateway config, starts the gateway, waits until it accepts connections,
// sends SIGTERM and verifies a graceful exit. The process is always
// terminated and the state directory removed (unless configured to keep
// it) before Run returns, whatever the outcome. Every error carries the
// gateway's captured output (see Diagnostics).
func Run(ctx context.Context, settings *shutdowncheck.Settings) (result *Result, err error) {
	result = &Result{ID: uuid.New().String(), Trace: &Trace{}}

	ctx, span := tracer().Start(ctx, "shutdown-check", trace.WithAttributes(
		attribute.String("scenario.id", result.ID),
		attribute.String("gateway.binary", settings.Binary),
	))
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "shutdown check failed")
			if output, ok := Diagnostics(err); ok {
				span.SetAttributes(
					attribute.String("gateway.stdout", output.Stdout),
					attribute.String("gateway.stderr", output.Stderr),
				)
			}
		}
	}()

	defer func() {
		recordRunMetrics(context.WithoutCancel(ctx), result, err)
	}()

	if err = settings.ValidateAndDefault(); err != nil {
		return result, &ScenarioError{Stage: StageConfigure, Cause: errors.Wrap(err, "invalid settings")}
	}

	// Mirrors are closed after cleanup has terminated the process.
	output := subprocess.NewOutputCollector()
	if settings.LogOutput {
		stdout := send.MakeWriterSender(grip.GetSender(), level.Info)
		defer stdout.Close()
		stderr := send.MakeWriterSender(grip.GetSender(), level.Warning)
		defer stderr.Close()
		output.SetMirrors(stdout, stderr)
	}

	result.Port, err = subprocess.AllocatePort()
	if err != nil {
		return result, &ScenarioError{Stage: StageAllocate, Cause: err}
	}
	result.Trace.Record(EventPortAllocated, fmt.Sprint(result.Port))
	span.SetAttributes(attribute.Int("gateway.port", result.Port))

	result.StateDir, err = os.MkdirTemp(settings.StateDirParent, "shutdowncheck-"+result.ID[:8]+"-")
	if err != nil {
		return result, &ScenarioError{Stage: StageConfigure, Cause: errors.Wrap(err, "creating state directory")}
	}

	var proc *subprocess.Process
	defer func() {
		if cleanupErr := cleanup(proc, result, settings.KeepStateDir); cleanupErr != nil {
			grip.Warning(message.WrapError(cleanupErr, message.Fields{
				"message":  "problem cleaning up after scenario",
				"scenario": result.ID,
			}))
			if err == nil {
				err = &ScenarioError{Stage: StageCleanup, Cause: cleanupErr, Output: result.Output}
			}
		}
	}()

	result.ConfigPath, err = WriteGatewayConfig(result.StateDir, result.Port, settings.ConfigFormat)
	if err != nil {
		return result, &ScenarioError{Stage: StageConfigure, Cause: err}
	}

	env := GatewayEnvironment(settings.EnvPrefix, result.StateDir, result.ConfigPath, settings.ExtraEnv)
	proc, err = subprocess.Start(subprocess.StartOptions{
		Invocation: subprocess.Invocation{
			Interpreter: settings.Interpreter,
			Entry:       settings.Binary,
			Args:        GatewayArgs(result.Port, settings.ExtraArgs),
		},
		WorkingDir: settings.WorkingDir,
		Env:        subprocess.MergeEnvironment(os.Environ(), env),
		Output:     output,
	})
	if err != nil {
		return result, &ScenarioError{Stage: StageSpawn, Cause: err}
	}
	result.PID = proc.PID()
	result.Argv = proc.Argv()
	result.Trace.Record(EventSpawned, fmt.Sprint(result.PID))
	span.SetAttributes(attribute.Int("gateway.pid", result.PID))

	grip.Info(message.Fields{
		"message":   "started gateway",
		"scenario":  result.ID,
		"pid":       result.PID,
		"port":      result.Port,
		"state_dir": result.StateDir,
	})

	readyCtx, readySpan := tracer().Start(ctx, "wait-for-ready")
	err = WaitForReady(readyCtx, proc, ReadinessOptions{
		Host:        settings.Host,
		Port:        result.Port,
		Timeout:     settings.ReadyTimeout,
		Interval:    settings.PollInterval,
		DialTimeout: settings.DialTimeout,
		Trace:       result.Trace,
	})
	readySpan.End()
	if err != nil {
		return result, err
	}
	if _, ready := result.Trace.Find(EventReady); ready.Kind == EventReady {
		result.ReadyAfter = ready.At.Sub(proc.StartedAt())
	}
	if rss, rssErr := proc.ResidentMemory(ctx); rssErr != nil {
		grip.Debug(message.WrapError(rssErr, message.Fields{
			"message":  "could not read gateway memory usage",
			"scenario": result.ID,
			"pid":      result.PID,
		}))
	} else {
		result.ReadyRSS = rss
	}

	shutdownCtx, shutdownSpan := tracer().Start(ctx, "verify-graceful-shutdown")
	result.Outcome, err = VerifyGracefulShutdown(shutdownCtx, proc, ShutdownOptions{
		Signal:  syscall.SIGTERM,
		Timeout: settings.ShutdownTimeout,
		Trace:   result.Trace,
	})
	shutdownSpan.End()
	if idx, _ := result.Trace.Find(EventExitedBeforeSignal); idx >= 0 {
		result.ExitedBeforeSignal = true
		span.SetAttributes(attribute.Bool("gateway.exited_before_signal", true))
	}
	if _, signaled := result.Trace.Find(EventSignaled); signaled.Kind == EventSignaled && !proc.Running() {
		result.ExitAfter = proc.ExitedAt().Sub(signaled.At)
	}
	if err != nil {
		return result, err
	}

	span.SetAttributes(attribute.String("gateway.outcome", result.Outcome.String()))
	grip.Info(result.Fields())

	return result, nil
}

// cleanup terminates the process if it is still alive and removes the
// state directory. It uses its own context so that a canceled scenario
// still cleans up.
func cleanup(proc *subprocess.Process, result *Result, keepStateDir bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdowncheck.CleanupTimeout)
	defer cancel()

	catcher := grip.NewBasicCatcher()
	if proc != nil {
		if proc.Running() {
			grip.Info(message.Fields{
				"message":  "force-terminating gateway",
				"scenario": result.ID,
				"pid":      proc.PID(),
			})
		}
		catcher.Add(errors.Wrap(proc.Terminate(ctx), "terminating gateway"))
		result.Output = proc.Output().Snapshot()
	}

	if result.StateDir != "" && !keepStateDir {
		catcher.Add(errors.Wrapf(os.RemoveAll(result.StateDir), "removing state directory '%s'", result.StateDir))
	}

	result.Trace.Record(EventCleanedUp, "")
	return catcher.Resolve()
}
