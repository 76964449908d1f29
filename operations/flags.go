package operations

import (
	"strings"

	"github.com/urfave/cli"
)

const (
	settingsFlagName        = "settings"
	binaryFlagName          = "binary"
	interpreterFlagName     = "interpreter"
	workDirFlagName         = "workdir"
	extraArgsFlagName       = "extra-args"
	extraEnvFlagName        = "env"
	configFormatFlagName    = "config-format"
	readyTimeoutFlagName    = "ready-timeout"
	shutdownTimeoutFlagName = "shutdown-timeout"
	pollIntervalFlagName    = "poll-interval"
	stateDirFlagName        = "state-dir"
	keepStateFlagName       = "keep-state"
	showOutputFlagName      = "show-output"
	runsFlagName            = "runs"
	parallelFlagName        = "parallel"
	otelCollectorFlagName   = "otel-collector"
	otelInsecureFlagName    = "otel-insecure"
)

func joinFlagNames(ids ...string) string { return strings.Join(ids, ", ") }

func settingsFlag(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  joinFlagNames(settingsFlagName, "s", "conf"),
		Usage: "path to a YAML settings file; flags override its values",
	})
}

func gatewayFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags,
		cli.StringFlag{
			Name:  joinFlagNames(binaryFlagName, "b"),
			Usage: "gateway executable or script entry point",
		},
		cli.StringFlag{
			Name:  interpreterFlagName,
			Usage: "command line prepended to the gateway invocation (e.g. 'node --no-warnings')",
		},
		cli.StringFlag{
			Name:  joinFlagNames(workDirFlagName, "C"),
			Usage: "directory to start the gateway in",
		},
		cli.StringFlag{
			Name:  extraArgsFlagName,
			Usage: "additional gateway arguments, split like a shell would",
		},
		cli.StringSliceFlag{
			Name:  joinFlagNames(extraEnvFlagName, "e"),
			Usage: "additional KEY=VALUE environment for the gateway; may be specified more than once",
		},
		cli.StringFlag{
			Name:  configFormatFlagName,
			Usage: "format of the generated gateway config file (json or yaml)",
		},
	)
}

func timingFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags,
		cli.DurationFlag{
			Name:  readyTimeoutFlagName,
			Usage: "how long the gateway may take to accept connections",
		},
		cli.DurationFlag{
			Name:  shutdownTimeoutFlagName,
			Usage: "how long the gateway may take to exit after SIGTERM",
		},
		cli.DurationFlag{
			Name:  pollIntervalFlagName,
			Usage: "pause between readiness probes",
		},
	)
}
