package shutdowncheck

import "time"

const (
	// ClientVersion is the version reported by the command line tool.
	ClientVersion = "2026-10-18"

	// DefaultSettingsFileName is the settings file the CLI looks for when
	// none is given.
	DefaultSettingsFileName = "shutdowncheck.yml"

	// LoopbackHost is the only address the gateway is asked to bind to and
	// the only address readiness is probed on.
	LoopbackHost = "127.0.0.1"

	// DefaultEnvPrefix prefixes every environment variable the harness sets
	// for the gateway.
	DefaultEnvPrefix = "GATEWAY"

	// GatewayCommand selects the gateway operating mode of the service.
	GatewayCommand = "gateway"
	// GatewayBindMode is the bind-address token passed to the gateway.
	GatewayBindMode = "loopback"
	// GatewayMode is written to the gateway section of the config file.
	GatewayMode = "local"
	// GatewayConfigFileBaseName is the config file name inside the state
	// directory, without extension.
	GatewayConfigFileBaseName = "gateway"

	ConfigFormatJSON = "json"
	ConfigFormatYAML = "yaml"

	DefaultReadyTimeout    = 150 * time.Second
	DefaultPollInterval    = 10 * time.Millisecond
	DefaultDialTimeout     = 250 * time.Millisecond
	DefaultShutdownTimeout = 30 * time.Second

	// CleanupTimeout bounds forced termination and state directory removal
	// at the end of a scenario.
	CleanupTimeout = 10 * time.Second
)

// Environment variable names, without the prefix, understood by the
// gateway.
const (
	EnvNoRespawn                = "NO_RESPAWN"
	EnvStateDir                 = "STATE_DIR"
	EnvConfigPath               = "CONFIG_PATH"
	EnvSkipChannels             = "SKIP_CHANNELS"
	EnvSkipBrowserControlServer = "SKIP_BROWSER_CONTROL_SERVER"
	EnvSkipCanvasHost           = "SKIP_CANVAS_HOST"
	EnvBridgeHost               = "BRIDGE_HOST"
	EnvBridgePort               = "BRIDGE_PORT"
)

// ValidConfigFormats lists the formats the gateway config file can be
// written in.
var ValidConfigFormats = []string{ConfigFormatJSON, ConfigFormatYAML}

// EnvName joins a prefix and a variable name.
func EnvName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}
