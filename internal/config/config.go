// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire harness configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Target    TargetConfig    `mapstructure:"target" yaml:"target"`
	Connect   ConnectConfig   `mapstructure:"connect" yaml:"connect"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	Scenario  ScenarioConfig  `mapstructure:"scenario" yaml:"scenario"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	Console   ConsoleConfig   `mapstructure:"console" yaml:"console"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// TargetConfig describes how to launch and supervise the application under test.
type TargetConfig struct {
	Command    string   `mapstructure:"command" yaml:"command"`
	Args       []string `mapstructure:"args" yaml:"args"`
	WorkingDir string   `mapstructure:"working_dir" yaml:"working_dir"`
	DebugPort  int      `mapstructure:"debug_port" yaml:"debug_port"`
	// StartupWait bounds how long the harness waits for the debugging
	// endpoint to start answering after the process is spawned.
	StartupWait time.Duration `mapstructure:"startup_wait" yaml:"startup_wait"`
	GracePeriod time.Duration `mapstructure:"grace_period" yaml:"grace_period"`
	// SkipLaunch attaches to an operator-managed instance instead of
	// spawning one. Teardown is skipped in that case as well.
	SkipLaunch bool `mapstructure:"skip_launch" yaml:"skip_launch"`
}

// ConnectConfig tunes the debug session connector.
type ConnectConfig struct {
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// ExecPath and ExecArgs feed the fresh-launch fallback strategy, which
	// starts an automation-owned instance when attaching fails.
	ExecPath string   `mapstructure:"exec_path" yaml:"exec_path"`
	ExecArgs []string `mapstructure:"exec_args" yaml:"exec_args"`
}

// DiscoveryConfig tunes browsing-context discovery.
type DiscoveryConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ViewTimeout  time.Duration `mapstructure:"view_timeout" yaml:"view_timeout"`
}

// ScenarioConfig tunes the interaction scenario.
type ScenarioConfig struct {
	// TriggerLabel is the text expected on the control that opens the
	// secondary content view (e.g. "GitHub").
	TriggerLabel string        `mapstructure:"trigger_label" yaml:"trigger_label"`
	StepTimeout  time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
	SettleDelay  time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// ArtifactsConfig controls checkpoint capture output.
type ArtifactsConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`
	FullSurface bool   `mapstructure:"full_surface" yaml:"full_surface"`
	Quality     int    `mapstructure:"quality" yaml:"quality"`
}

// ConsoleConfig controls the console-log collector.
type ConsoleConfig struct {
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size"`
}

// Load unmarshals the fully-resolved viper state into a Config.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the harness cannot act on.
func (c *Config) Validate() error {
	if c.Target.DebugPort <= 0 || c.Target.DebugPort > 65535 {
		return fmt.Errorf("target.debug_port %d is out of range", c.Target.DebugPort)
	}
	if !c.Target.SkipLaunch && c.Target.Command == "" {
		return fmt.Errorf("target.command is required unless target.skip_launch is set")
	}
	if c.Console.BufferSize <= 0 {
		return fmt.Errorf("console.buffer_size must be positive")
	}
	return nil
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "reflow")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// Target process defaults. The port matches the application's fixed
	// remote-debugging flag.
	v.SetDefault("target.command", "")
	v.SetDefault("target.args", []string{})
	v.SetDefault("target.working_dir", ".")
	v.SetDefault("target.debug_port", 9223)
	v.SetDefault("target.startup_wait", "15s")
	v.SetDefault("target.grace_period", "5s")
	v.SetDefault("target.skip_launch", false)

	// Connector defaults
	v.SetDefault("connect.endpoint", "http://localhost:9223")
	v.SetDefault("connect.timeout", "5s")
	v.SetDefault("connect.exec_path", "")
	v.SetDefault("connect.exec_args", []string{})

	// Discovery defaults
	v.SetDefault("discovery.poll_interval", "250ms")
	v.SetDefault("discovery.view_timeout", "10s")

	// Scenario defaults
	v.SetDefault("scenario.trigger_label", "GitHub")
	v.SetDefault("scenario.step_timeout", "10s")
	v.SetDefault("scenario.settle_delay", "3s")

	// Artifact defaults
	v.SetDefault("artifacts.dir", "test_screenshots")
	v.SetDefault("artifacts.full_surface", true)
	v.SetDefault("artifacts.quality", 90)

	// Console collector defaults. The trailing window mirrors the
	// diagnostics the run summary prints.
	v.SetDefault("console.buffer_size", 10)
}
