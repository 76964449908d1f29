package operations

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cheynewallace/tabby"
	"github.com/dustin/go-humanize"
	"github.com/evergreen-ci/shutdowncheck"
	"github.com/evergreen-ci/shutdowncheck/smoke"
	"github.com/google/shlex"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/recovery"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

const telemetryFlushTimeout = 10 * time.Second

// Check returns the command that launches a gateway, waits for it to
// accept connections, sends SIGTERM and verifies it exits gracefully.
func Check() cli.Command {
	return cli.Command{
		Name:    "check",
		Aliases: []string{"run", "smoke"},
		Usage:   "verify that a gateway starts and shuts down gracefully",
		Flags: settingsFlag(timingFlags(gatewayFlags(
			cli.StringFlag{
				Name:  stateDirFlagName,
				Usage: "parent directory for per-run state directories",
			},
			cli.BoolFlag{
				Name:  keepStateFlagName,
				Usage: "do not remove state directories after each run",
			},
			cli.StringFlag{
				Name:  otelCollectorFlagName,
				Usage: "OTLP gRPC endpoint to send scenario traces to",
			},
			cli.BoolFlag{
				Name:  otelInsecureFlagName,
				Usage: "connect to the trace collector without TLS",
			},
			cli.BoolFlag{
				Name:  showOutputFlagName,
				Usage: "log the gateway's output as it is produced",
			},
			cli.IntFlag{
				Name:  joinFlagNames(runsFlagName, "n"),
				Usage: "number of isolated runs",
				Value: 1,
			},
			cli.IntFlag{
				Name:  joinFlagNames(parallelFlagName, "j"),
				Usage: "maximum number of runs in flight",
				Value: 1,
			},
		)...)...),
		Before: mergeBeforeFuncs(
			requireBinary,
			requireFileExists(settingsFlagName),
			requirePositive(runsFlagName),
			requirePositive(parallelFlagName),
		),
		Action: func(c *cli.Context) error {
			defer recovery.LogStackTraceAndExit("shutdown check")

			settings, err := settingsFromContext(c)
			if err != nil {
				return errors.Wrap(err, "problem resolving settings")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			closeTracer, err := shutdowncheck.InitTracer(ctx, settings.Tracer)
			if err != nil {
				return errors.Wrap(err, "problem initializing tracer")
			}
			closeMeter, err := shutdowncheck.InitMeter(ctx, settings.Tracer)
			if err != nil {
				grip.Warning(errors.Wrap(closeTracer(context.Background()), "problem closing tracer"))
				return errors.Wrap(err, "problem initializing meter")
			}
			defer func() {
				flushCtx, flushCancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
				defer flushCancel()
				grip.Warning(errors.Wrap(closeMeter(flushCtx), "problem flushing metrics"))
				grip.Warning(errors.Wrap(closeTracer(flushCtx), "problem flushing traces"))
			}()

			reports, err := runChecks(ctx, settings, c.Int(runsFlagName), c.Int(parallelFlagName))
			writeSummary(c.App.Writer, reports)
			return err
		},
	}
}

// settingsFromContext loads the settings file, if any, and applies the
// flags that were set on top of it.
func settingsFromContext(c *cli.Context) (*shutdowncheck.Settings, error) {
	settings := &shutdowncheck.Settings{}
	if path := c.String(settingsFlagName); path != "" {
		var err error
		if settings, err = shutdowncheck.LoadSettings(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet(binaryFlagName) {
		settings.Binary = c.String(binaryFlagName)
	}
	if c.IsSet(workDirFlagName) {
		settings.WorkingDir = c.String(workDirFlagName)
	}
	if c.IsSet(interpreterFlagName) {
		interpreter, err := shlex.Split(c.String(interpreterFlagName))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing --%s", interpreterFlagName)
		}
		settings.Interpreter = interpreter
	}
	if c.IsSet(extraArgsFlagName) {
		args, err := shlex.Split(c.String(extraArgsFlagName))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing --%s", extraArgsFlagName)
		}
		settings.ExtraArgs = append(settings.ExtraArgs, args...)
	}
	if c.IsSet(extraEnvFlagName) {
		env, err := parseEnvPairs(c.StringSlice(extraEnvFlagName))
		if err != nil {
			return nil, err
		}
		if settings.ExtraEnv == nil {
			settings.ExtraEnv = map[string]string{}
		}
		for k, v := range env {
			settings.ExtraEnv[k] = v
		}
	}
	if c.IsSet(configFormatFlagName) {
		settings.ConfigFormat = c.String(configFormatFlagName)
	}
	if c.IsSet(readyTimeoutFlagName) {
		settings.ReadyTimeout = c.Duration(readyTimeoutFlagName)
	}
	if c.IsSet(shutdownTimeoutFlagName) {
		settings.ShutdownTimeout = c.Duration(shutdownTimeoutFlagName)
	}
	if c.IsSet(pollIntervalFlagName) {
		settings.PollInterval = c.Duration(pollIntervalFlagName)
	}
	if c.IsSet(stateDirFlagName) {
		settings.StateDirParent = c.String(stateDirFlagName)
	}
	if c.Bool(keepStateFlagName) {
		settings.KeepStateDir = true
	}
	if c.Bool(showOutputFlagName) {
		settings.LogOutput = true
	}
	if c.IsSet(otelCollectorFlagName) {
		settings.Tracer.Enabled = true
		settings.Tracer.CollectorEndpoint = c.String(otelCollectorFlagName)
		settings.Tracer.Insecure = c.Bool(otelInsecureFlagName)
	}

	return settings, nil
}

func parseEnvPairs(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, errors.Errorf("environment variable '%s' is not of the form KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}

// runReport is the outcome of one run.
type runReport struct {
	Result *smoke.Result
	Err    error
}

// runChecks performs runs independent scenarios, at most parallel at a
// time. Every run gets its own port and state directory and one failing run
// does not stop the others. The reports are in run order.
func runChecks(ctx context.Context, settings *shutdowncheck.Settings, runs, parallel int) ([]runReport, error) {
	reports := make([]runReport, runs)

	group := errgroup.Group{}
	group.SetLimit(parallel)
	for i := 0; i < runs; i++ {
		i := i
		runSettings := *settings
		group.Go(func() error {
			result, err := smoke.Run(ctx, &runSettings)
			reports[i] = runReport{Result: result, Err: err}
			logRun(i, result, err)
			return nil
		})
	}
	_ = group.Wait()

	catcher := grip.NewBasicCatcher()
	for i, report := range reports {
		catcher.Wrapf(report.Err, "run %d of %d", i+1, runs)
	}
	return reports, catcher.Resolve()
}

func logRun(idx int, result *smoke.Result, err error) {
	fields := message.Fields{"run": idx + 1}
	if result != nil {
		fields = result.Fields()
		fields["run"] = idx + 1
	}
	fields["verdict"] = smoke.RunVerdict(result, err)

	if err != nil {
		fields["message"] = "shutdown check failed"
		grip.Error(message.WrapError(err, fields))
		return
	}
	fields["message"] = "shutdown check passed"
	grip.Info(fields)
}

func writeSummary(w io.Writer, reports []runReport) {
	t := tabby.NewCustom(tabwriter.NewWriter(w, 0, 0, 2, ' ', 0))
	t.AddHeader("Run", "Verdict", "Port", "PID", "Ready After", "Exit After", "Outcome", "Output")
	for idx, report := range reports {
		result := report.Result
		if result == nil {
			result = &smoke.Result{}
		}
		t.AddLine(idx+1, smoke.RunVerdict(report.Result, report.Err), result.Port, result.PID,
			result.ReadyAfter, result.ExitAfter, result.Outcome, humanize.Bytes(uint64(result.Output.Size())))
	}
	t.Print()

	passed := 0
	for _, report := range reports {
		if report.Err == nil {
			passed++
		}
	}
	fmt.Fprintf(w, "%d of %d runs passed\n", passed, len(reports))
}
