package smoke

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/evergreen-ci/shutdowncheck"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// GatewayConfig is the config file the harness writes for the gateway.
type GatewayConfig struct {
	Gateway GatewaySection `json:"gateway" yaml:"gateway"`
}

// GatewaySection selects the gateway's operating mode and port.
type GatewaySection struct {
	Mode string `json:"mode" yaml:"mode"`
	Port int    `json:"port" yaml:"port"`
}

// GatewayArgs returns the gateway command line for port, followed by any
// extra arguments.
func GatewayArgs(port int, extra []string) []string {
	args := []string{
		shutdowncheck.GatewayCommand,
		"--port", strconv.Itoa(port),
		"--bind", shutdowncheck.GatewayBindMode,
		"--allow-unconfigured",
	}
	return append(args, extra...)
}

// GatewayEnvironment returns the variables that isolate a gateway under
// test: no respawning, private state and config, optional subsystems off
// and the bridge on a loopback port of its own choosing. Extra variables
// are applied last.
func GatewayEnvironment(prefix, stateDir, configPath string, extra map[string]string) map[string]string {
	name := func(n string) string { return shutdowncheck.EnvName(prefix, n) }

	env := map[string]string{
		name(shutdowncheck.EnvNoRespawn):                "1",
		name(shutdowncheck.EnvStateDir):                 stateDir,
		name(shutdowncheck.EnvConfigPath):               configPath,
		name(shutdowncheck.EnvSkipChannels):             "1",
		name(shutdowncheck.EnvSkipBrowserControlServer): "1",
		name(shutdowncheck.EnvSkipCanvasHost):           "1",
		name(shutdowncheck.EnvBridgeHost):               shutdowncheck.LoopbackHost,
		name(shutdowncheck.EnvBridgePort):               "0",
	}
	for k, v := range extra {
		env[k] = v
	}
	return env
}

// WriteGatewayConfig writes a local-mode config for port into dir and
// returns its path.
func WriteGatewayConfig(dir string, port int, format string) (string, error) {
	conf := GatewayConfig{Gateway: GatewaySection{Mode: shutdowncheck.GatewayMode, Port: port}}

	var (
		data []byte
		err  error
	)
	switch format {
	case shutdowncheck.ConfigFormatJSON, "":
		format = shutdowncheck.ConfigFormatJSON
		data, err = json.MarshalIndent(conf, "", "  ")
	case shutdowncheck.ConfigFormatYAML:
		data, err = yaml.Marshal(conf)
	default:
		return "", errors.Errorf("unsupported config format '%s'", format)
	}
	if err != nil {
		return "", errors.Wrapf(err, "marshalling %s gateway config", format)
	}

	path := filepath.Join(dir, shutdowncheck.GatewayConfigFileBaseName+"."+format)
	if err = os.WriteFile(path, data, 0600); err != nil {
		return "", errors.Wrapf(err, "writing gateway config '%s'", path)
	}

	return path, nil
}

// ReadGatewayConfig reads a config written by WriteGatewayConfig. The format
// is taken from the file extension.
func ReadGatewayConfig(path string) (*GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading gateway config '%s'", path)
	}

	conf := &GatewayConfig{}
	switch filepath.Ext(path) {
	case "." + shutdowncheck.ConfigFormatJSON:
		err = json.Unmarshal(data, conf)
	case "." + shutdowncheck.ConfigFormatYAML:
		err = yaml.Unmarshal(data, conf)
	default:
		return nil, errors.Errorf("cannot determine format of gateway config '%s'", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parsing gateway config '%s'", path)
	}

	return conf, nil
}
