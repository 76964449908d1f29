package testutil

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/evergreen-ci/shutdowncheck"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FakeGatewayModeEnv, when set in a test binary's environment, turns the
// binary into a fake gateway (see RunFakeGatewayIfRequested).
const FakeGatewayModeEnv = "SHUTDOWNCHECK_FAKE_GATEWAY_MODE"

// Behaviors of the fake gateway.
const (
	// FakeGatewayGraceful traps SIGTERM and exits 0.
	FakeGatewayGraceful = "graceful"
	// FakeGatewayDefaultSignal leaves SIGTERM at its default disposition.
	FakeGatewayDefaultSignal = "default-signal"
	// FakeGatewayExitNonzero traps SIGTERM and exits 3.
	FakeGatewayExitNonzero = "exit-nonzero"
	// FakeGatewaySelfKill answers SIGTERM by killing itself with SIGKILL.
	FakeGatewaySelfKill = "self-kill"
	// FakeGatewayCrash exits 7 before listening.
	FakeGatewayCrash = "crash"
	// FakeGatewayNeverReady never listens.
	FakeGatewayNeverReady = "never-ready"
	// FakeGatewaySlowReady waits before listening, then behaves like
	// FakeGatewayGraceful.
	FakeGatewaySlowReady = "slow-ready"
	// FakeGatewayIgnoreTerm listens and ignores SIGTERM.
	FakeGatewayIgnoreTerm = "ignore-term"
	// FakeGatewayQuiet is FakeGatewayGraceful without any output.
	FakeGatewayQuiet = "quiet"

	// FakeGatewaySlowReadyDelay is how long FakeGatewaySlowReady waits.
	FakeGatewaySlowReadyDelay = 300 * time.Millisecond

	fakeGatewayBadInvocation = 4
)

// RunFakeGatewayIfRequested turns the current process into a fake gateway
// and exits when FakeGatewayModeEnv is set. Call it first thing in TestMain;
// otherwise it returns immediately.
func RunFakeGatewayIfRequested() {
	mode := os.Getenv(FakeGatewayModeEnv)
	if mode == "" {
		return
	}
	os.Exit(runFakeGateway(mode, os.Args[1:], os.Stdout, os.Stderr))
}

func runFakeGateway(mode string, args []string, stdout, stderr io.Writer) int {
	port, err := checkGatewayInvocation(args)
	if err != nil {
		fmt.Fprintf(stderr, "invalid gateway invocation: %v\n", err)
		return fakeGatewayBadInvocation
	}

	if mode != FakeGatewayQuiet {
		fmt.Fprintf(stdout, "gateway starting on port %d in mode %s\n", port, mode)
	}

	switch mode {
	case FakeGatewayCrash:
		fmt.Fprintln(stderr, "fatal: gateway crashed during startup")
		return 7
	case FakeGatewayNeverReady:
		time.Sleep(time.Hour)
		return 0
	case FakeGatewaySlowReady:
		time.Sleep(FakeGatewaySlowReadyDelay)
	}

	terms := make(chan os.Signal, 1)
	switch mode {
	case FakeGatewayDefaultSignal:
	case FakeGatewayIgnoreTerm:
		signal.Ignore(syscall.SIGTERM)
	default:
		signal.Notify(terms, syscall.SIGTERM)
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(shutdowncheck.LoopbackHost, strconv.Itoa(port)))
	if err != nil {
		fmt.Fprintf(stderr, "listening: %v\n", err)
		return 1
	}
	go acceptAndClose(listener)

	if mode == FakeGatewayDefaultSignal || mode == FakeGatewayIgnoreTerm {
		time.Sleep(time.Hour)
		return 0
	}

	<-terms
	_ = listener.Close()

	switch mode {
	case FakeGatewayExitNonzero:
		fmt.Fprintln(stderr, "shutdown failed: could not flush state")
		return 3
	case FakeGatewaySelfKill:
		self, err := os.FindProcess(os.Getpid())
		if err == nil {
			_ = self.Kill()
		}
		time.Sleep(time.Hour)
		return 0
	case FakeGatewayQuiet:
		return 0
	default:
		fmt.Fprintln(stdout, "received SIGTERM, shutting down")
		return 0
	}
}

func acceptAndClose(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		_ = conn.Close()
	}
}

// checkGatewayInvocation verifies the arguments, environment and config
// file a launcher is expected to provide, and returns the requested port.
func checkGatewayInvocation(args []string) (int, error) {
	if len(args) == 0 || args[0] != shutdowncheck.GatewayCommand {
		return 0, errors.Errorf("expected '%s' command, got %v", shutdowncheck.GatewayCommand, args)
	}

	flags := flag.NewFlagSet(shutdowncheck.GatewayCommand, flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	port := flags.Int("port", 0, "")
	bind := flags.String("bind", "", "")
	allowUnconfigured := flags.Bool("allow-unconfigured", false, "")
	if err := flags.Parse(args[1:]); err != nil {
		return 0, errors.Wrap(err, "parsing flags")
	}

	if *port <= 0 {
		return 0, errors.New("missing --port")
	}
	if *bind != shutdowncheck.GatewayBindMode {
		return 0, errors.Errorf("expected --bind %s, got '%s'", shutdowncheck.GatewayBindMode, *bind)
	}
	if !*allowUnconfigured {
		return 0, errors.New("missing --allow-unconfigured")
	}

	env := func(name string) string {
		return os.Getenv(shutdowncheck.EnvName(shutdowncheck.DefaultEnvPrefix, name))
	}
	for _, name := range []string{
		shutdowncheck.EnvNoRespawn,
		shutdowncheck.EnvSkipChannels,
		shutdowncheck.EnvSkipBrowserControlServer,
		shutdowncheck.EnvSkipCanvasHost,
	} {
		if env(name) != "1" {
			return 0, errors.Errorf("expected %s=1", shutdowncheck.EnvName(shutdowncheck.DefaultEnvPrefix, name))
		}
	}
	if env(shutdowncheck.EnvBridgeHost) != shutdowncheck.LoopbackHost || env(shutdowncheck.EnvBridgePort) != "0" {
		return 0, errors.New("bridge must be configured on loopback with port 0")
	}
	if info, err := os.Stat(env(shutdowncheck.EnvStateDir)); err != nil || !info.IsDir() {
		return 0, errors.Errorf("state directory '%s' is missing", env(shutdowncheck.EnvStateDir))
	}

	data, err := os.ReadFile(env(shutdowncheck.EnvConfigPath))
	if err != nil {
		return 0, errors.Wrap(err, "reading config file")
	}
	// JSON is valid YAML, so one decoder covers both formats.
	var conf struct {
		Gateway struct {
			Mode string `yaml:"mode"`
			Port int    `yaml:"port"`
		} `yaml:"gateway"`
	}
	if err = yaml.Unmarshal(data, &conf); err != nil {
		return 0, errors.Wrap(err, "parsing config file")
	}
	if conf.Gateway.Mode != shutdowncheck.GatewayMode || conf.Gateway.Port != *port {
		return 0, errors.Errorf("config file has mode '%s' and port %d, want '%s' and %d",
			conf.Gateway.Mode, conf.Gateway.Port, shutdowncheck.GatewayMode, *port)
	}

	return *port, nil
}
