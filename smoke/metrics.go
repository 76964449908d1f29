package smoke

import (
	"context"

	"github.com/evergreen-ci/shutdowncheck/subprocess"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	runsInstrument      = "shutdowncheck.scenario.runs"
	readyTimeInstrument = "shutdowncheck.gateway.ready_time"
	exitTimeInstrument  = "shutdowncheck.gateway.exit_time"
	memoryRSSInstrument = "shutdowncheck.gateway.memory.rss"

	verdictAttribute = "verdict"
)

// Verdicts of a run, as reported in metrics and the summary.
// VerdictPassedUnsignaled is a passing run whose gateway exited on its own
// before the termination signal reached it.
const (
	VerdictPassed             = "passed"
	VerdictPassedUnsignaled   = "passed-unsignaled"
	VerdictProcessExitedEarly = "process-exited-early"
	VerdictTimedOut           = "timed-out"
	VerdictUnexpectedExit     = "unexpected-exit"
	VerdictCanceled           = "canceled"
	VerdictSpawnError         = "spawn-error"
	VerdictError              = "error"
)

// Verdict classifies the error returned by Run.
func Verdict(err error) string {
	var (
		exitedEarly *ProcessExitedEarlyError
		timedOut    *TimedOutError
		unexpected  *UnexpectedExitError
		canceled    *CanceledError
		spawnErr    *subprocess.SpawnError
	)
	switch {
	case err == nil:
		return VerdictPassed
	case errors.As(err, &exitedEarly):
		return VerdictProcessExitedEarly
	case errors.As(err, &timedOut):
		return VerdictTimedOut
	case errors.As(err, &unexpected):
		return VerdictUnexpectedExit
	case errors.As(err, &canceled):
		return VerdictCanceled
	case errors.As(err, &spawnErr):
		return VerdictSpawnError
	default:
		return VerdictError
	}
}

// RunVerdict is Verdict, except that a passing run whose gateway was never
// signaled is reported as VerdictPassedUnsignaled.
func RunVerdict(result *Result, err error) string {
	if err == nil && result != nil && result.ExitedBeforeSignal {
		return VerdictPassedUnsignaled
	}
	return Verdict(err)
}

func recordRunMetrics(ctx context.Context, result *Result, err error) {
	meter := otel.GetMeterProvider().Meter(packageName)
	catcher := grip.NewBasicCatcher()

	runs, merr := meter.Int64Counter(runsInstrument, metric.WithDescription("Completed shutdown checks by verdict"))
	catcher.Wrap(merr, "making runs counter")
	if merr == nil {
		runs.Add(ctx, 1, metric.WithAttributes(attribute.String(verdictAttribute, RunVerdict(result, err))))
	}

	if result.ReadyAfter > 0 {
		readyTime, merr := meter.Float64Histogram(readyTimeInstrument, metric.WithUnit("s"),
			metric.WithDescription("Time from spawning the gateway until it accepted a connection"))
		catcher.Wrap(merr, "making ready time histogram")
		if merr == nil {
			readyTime.Record(ctx, result.ReadyAfter.Seconds())
		}
	}
	if result.ExitAfter > 0 {
		exitTime, merr := meter.Float64Histogram(exitTimeInstrument, metric.WithUnit("s"),
			metric.WithDescription("Time from signaling the gateway until it exited"))
		catcher.Wrap(merr, "making exit time histogram")
		if merr == nil {
			exitTime.Record(ctx, result.ExitAfter.Seconds())
		}
	}
	if result.ReadyRSS > 0 {
		rss, merr := meter.Int64Histogram(memoryRSSInstrument, metric.WithUnit("By"),
			metric.WithDescription("Resident memory of the gateway once it was ready"))
		catcher.Wrap(merr, "making memory histogram")
		if merr == nil {
			rss.Record(ctx, int64(result.ReadyRSS))
		}
	}

	grip.Warning(errors.Wrap(catcher.Resolve(), "recording scenario metrics"))
}
