package shutdowncheck

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evergreen-ci/utility"
	"github.com/mitchellh/go-homedir"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// Settings describes one shutdown check: which gateway binary to launch,
// how to launch it, and how long each phase may take.
type Settings struct {
	// Binary is the gateway executable or script entry point.
	Binary string `yaml:"binary"`
	// Interpreter, if set, is prepended to the invocation (e.g. ["node"]).
	Interpreter []string `yaml:"interpreter,omitempty"`
	// WorkingDir is the directory the gateway is started in.
	WorkingDir string `yaml:"working_dir,omitempty"`

	Host         string            `yaml:"host,omitempty"`
	EnvPrefix    string            `yaml:"env_prefix,omitempty"`
	ExtraArgs    []string          `yaml:"extra_args,omitempty"`
	ExtraEnv     map[string]string `yaml:"extra_env,omitempty"`
	ConfigFormat string            `yaml:"config_format,omitempty"`

	ReadyTimeout    time.Duration `yaml:"ready_timeout,omitempty"`
	PollInterval    time.Duration `yaml:"poll_interval,omitempty"`
	DialTimeout     time.Duration `yaml:"dial_timeout,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`

	// StateDirParent is where the per-scenario state directory is created.
	// Defaults to the system temporary directory.
	StateDirParent string `yaml:"state_dir_parent,omitempty"`
	KeepStateDir   bool   `yaml:"keep_state_dir,omitempty"`
	// LogOutput mirrors the gateway's output into the harness log as it
	// arrives.
	LogOutput bool `yaml:"log_output,omitempty"`

	Tracer TracerConfig `yaml:"tracer,omitempty"`
}

// LoadSettings reads settings from a YAML file. The result has not been
// validated.
func LoadSettings(path string) (*Settings, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrapf(err, "expanding settings path '%s'", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading settings file '%s'", path)
	}

	settings := &Settings{}
	if err = yaml.Unmarshal(data, settings); err != nil {
		return nil, errors.Wrapf(err, "unmarshalling settings file '%s'", path)
	}

	return settings, nil
}

// ValidateAndDefault fills in defaults for unset fields and reports every
// invalid field at once.
func (s *Settings) ValidateAndDefault() error {
	catcher := grip.NewSimpleCatcher()

	if s.Host == "" {
		s.Host = LoopbackHost
	}
	if s.EnvPrefix == "" {
		s.EnvPrefix = DefaultEnvPrefix
	}
	if s.ConfigFormat == "" {
		s.ConfigFormat = ConfigFormatJSON
	}
	if s.ReadyTimeout == 0 {
		s.ReadyTimeout = DefaultReadyTimeout
	}
	if s.PollInterval == 0 {
		s.PollInterval = DefaultPollInterval
	}
	if s.DialTimeout == 0 {
		s.DialTimeout = DefaultDialTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}

	// A binary that cannot be started is reported when spawning it. Bare
	// command names are looked up on PATH at that point.
	var err error
	if s.Binary == "" {
		catcher.Add(errors.New("gateway binary must be specified"))
	} else if isPath(s.Binary) {
		if s.Binary, err = expandPath(s.Binary); err != nil {
			catcher.Add(errors.Wrap(err, "expanding gateway binary path"))
		}
	}

	if s.WorkingDir != "" {
		if s.WorkingDir, err = expandPath(s.WorkingDir); err != nil {
			catcher.Add(errors.Wrap(err, "expanding working directory"))
		} else if !utility.FileExists(s.WorkingDir) {
			catcher.Add(errors.Errorf("working directory '%s' does not exist", s.WorkingDir))
		}
	}
	if s.StateDirParent != "" {
		if s.StateDirParent, err = expandPath(s.StateDirParent); err != nil {
			catcher.Add(errors.Wrap(err, "expanding state directory parent"))
		}
	}

	if !utility.StringSliceContains(ValidConfigFormats, s.ConfigFormat) {
		catcher.Add(errors.Errorf("config format '%s' is not one of %v", s.ConfigFormat, ValidConfigFormats))
	}
	if s.ReadyTimeout < 0 {
		catcher.Add(errors.New("ready timeout cannot be negative"))
	}
	if s.PollInterval < 0 {
		catcher.Add(errors.New("poll interval cannot be negative"))
	}
	if s.DialTimeout < 0 {
		catcher.Add(errors.New("dial timeout cannot be negative"))
	}
	if s.ShutdownTimeout < 0 {
		catcher.Add(errors.New("shutdown timeout cannot be negative"))
	}
	catcher.Wrap(s.Tracer.ValidateAndDefault(), "invalid tracer config")

	return catcher.Resolve()
}

func isPath(name string) bool {
	return strings.HasPrefix(name, "~") || strings.ContainsAny(name, `/\`)
}

func expandPath(path string) (string, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(path)
}
