package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const (
	// DefaultConfigDir is the directory mounted into the container that
	// carries the worker configuration and environment overrides.
	DefaultConfigDir = "/config"

	defaultEnvFile      = "env-variables"
	defaultWorkerConfig = "gdal_warper.yaml"
	defaultStopSignal   = "SIGTERM"
	defaultAPIAddr      = "127.0.0.1:9464"
)

var defaultWorkerCommand = []string{"gdal_warper.py"}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// Manifest mirrors the warpinit.yaml document structure. Every field has a
// working default so that a container can run without a manifest at all.
type Manifest struct {
	Version  string       `yaml:"version"`
	Worker   WorkerSpec   `yaml:"worker"`
	API      APISpec      `yaml:"api"`
	Sampling SamplingSpec `yaml:"sampling"`
}

// WorkerSpec describes the single worker process the supervisor launches.
type WorkerSpec struct {
	// Command is the worker argv. The worker configuration file path is
	// appended as the final argument at spawn time.
	Command []string `yaml:"command"`

	// ConfigFile is passed through to the worker untouched; its contents
	// are opaque to the supervisor.
	ConfigFile string `yaml:"configFile"`

	// EnvFile holds shell-sourceable KEY=VALUE overrides. The file must
	// exist; an empty file is valid.
	EnvFile string `yaml:"envFile"`

	// PathPrepend lists directories prepended to the worker's PATH,
	// making a bundled toolchain resolvable without mutating the
	// supervisor's own environment.
	PathPrepend []string `yaml:"pathPrepend"`

	Workdir string `yaml:"workdir"`

	// StopSignal names the signal forwarded to the worker when the
	// supervisor is asked to terminate.
	StopSignal string `yaml:"stopSignal"`
}

// APISpec configures the optional admin HTTP endpoint.
type APISpec struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// SamplingSpec configures worker resource sampling.
type SamplingSpec struct {
	Interval Duration `yaml:"interval"`
}

// Default returns a manifest populated with the stock container layout.
func Default() *Manifest {
	m := &Manifest{}
	m.ApplyDefaults()
	return m
}

// ApplyDefaults fills unset fields with their container defaults.
func (m *Manifest) ApplyDefaults() {
	configDir := DefaultConfigDir
	if dir := os.Getenv("WARPINIT_CONFIG_DIR"); dir != "" {
		configDir = dir
	}
	if len(m.Worker.Command) == 0 {
		m.Worker.Command = append([]string(nil), defaultWorkerCommand...)
	}
	if m.Worker.ConfigFile == "" {
		m.Worker.ConfigFile = filepath.Join(configDir, defaultWorkerConfig)
	}
	if m.Worker.EnvFile == "" {
		m.Worker.EnvFile = filepath.Join(configDir, defaultEnvFile)
	}
	if m.Worker.StopSignal == "" {
		m.Worker.StopSignal = defaultStopSignal
	}
	if m.API.Addr == "" {
		m.API.Addr = defaultAPIAddr
	}
	if !m.Sampling.Interval.IsSet() {
		m.Sampling.Interval = Duration{Duration: 15 * time.Second}
	}
}

// Validate checks the manifest for values the supervisor cannot act on.
func (m *Manifest) Validate() error {
	if len(m.Worker.Command) == 0 {
		return fmt.Errorf("worker.command must not be empty")
	}
	if strings.TrimSpace(m.Worker.Command[0]) == "" {
		return fmt.Errorf("worker.command[0] must name an executable")
	}
	if m.Worker.EnvFile == "" {
		return fmt.Errorf("worker.envFile must not be empty")
	}
	if _, err := ParseSignal(m.Worker.StopSignal); err != nil {
		return fmt.Errorf("worker.stopSignal: %w", err)
	}
	if m.Sampling.Interval.Duration < 0 {
		return fmt.Errorf("sampling.interval must not be negative")
	}
	return nil
}

// WorkerArgv returns the full argv used to spawn the worker, with the
// worker configuration file appended as the final argument.
func (m *Manifest) WorkerArgv() []string {
	argv := append([]string(nil), m.Worker.Command...)
	if m.Worker.ConfigFile != "" {
		argv = append(argv, m.Worker.ConfigFile)
	}
	return argv
}

var signalNames = map[string]syscall.Signal{
	"SIGHUP":  syscall.SIGHUP,
	"SIGINT":  syscall.SIGINT,
	"SIGQUIT": syscall.SIGQUIT,
	"SIGTERM": syscall.SIGTERM,
}

// ParseSignal resolves a textual signal name, with or without the SIG
// prefix, to the signal forwarded to the worker.
func ParseSignal(name string) (syscall.Signal, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	if normalized == "" {
		return 0, fmt.Errorf("signal name must not be empty")
	}
	if !strings.HasPrefix(normalized, "SIG") {
		normalized = "SIG" + normalized
	}
	sig, ok := signalNames[normalized]
	if !ok {
		return 0, fmt.Errorf("unsupported signal %q", name)
	}
	return sig, nil
}
