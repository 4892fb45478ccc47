package executor

import (
	"strings"
	"time"

	"github.com/kbukum/actionexec/config"
	"github.com/kbukum/actionexec/observability"
	"github.com/kbukum/actionexec/timeout"
	"github.com/kbukum/actionexec/validation"
	"github.com/kbukum/actionexec/version"
)

// ServiceName is the config and environment prefix of the executor.
const ServiceName = "actionexec"

// Config is the executor's full configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Executor ExecutorConfig             `yaml:"executor" mapstructure:"executor"`
	Tracing  observability.TracerConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics  observability.MeterConfig  `yaml:"metrics" mapstructure:"metrics"`
}

// ExecutorConfig tunes command execution.
type ExecutorConfig struct {
	// WorkDir is the working directory for commands that do not set one.
	WorkDir string `yaml:"work_dir" mapstructure:"work_dir"`
	// DefaultTimeout applies to commands without a timeout. Zero disables it.
	DefaultTimeout time.Duration `yaml:"default_timeout" mapstructure:"default_timeout" validate:"nonneg_duration"`
	// TimeoutFactor scales every timeout, for slow machines.
	TimeoutFactor float64 `yaml:"timeout_factor" mapstructure:"timeout_factor" validate:"gt=0,lte=100"`
	// GracePeriod bounds the output drain after a kill.
	GracePeriod time.Duration `yaml:"grace_period" mapstructure:"grace_period" validate:"nonneg_duration"`
	// MaxConcurrent limits concurrently running children.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent" validate:"gte=1"`
	// QueueTimeout bounds how long a command waits for a slot. Zero waits
	// until the caller gives up; negative rejects immediately when full.
	QueueTimeout time.Duration `yaml:"queue_timeout" mapstructure:"queue_timeout"`
	// LaunchAttempts is how often a launch failing with a transient error is tried.
	LaunchAttempts int `yaml:"launch_attempts" mapstructure:"launch_attempts" validate:"gte=1,lte=20"`

	Handler HandlerConfig `yaml:"handler" mapstructure:"handler"`
	Breaker BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

// HandlerConfig selects and configures the timeout handler.
type HandlerConfig struct {
	// Name is a registered handler name; unknown names fall back to the
	// default. A comma-separated list picks the first available handler.
	Name string `yaml:"name" mapstructure:"name"`
	// Timeout bounds a single handler invocation.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"nonneg_duration"`

	timeout.HandlerConfig `yaml:",inline" mapstructure:",squash"`
}

// BreakerConfig stops running a failing timeout handler for a while.
type BreakerConfig struct {
	// MaxFailures opens the breaker after this many consecutive failures.
	// Zero disables the breaker.
	MaxFailures int `yaml:"max_failures" mapstructure:"max_failures" validate:"gte=0"`
	// Cooldown is how long the breaker stays open.
	Cooldown time.Duration `yaml:"cooldown" mapstructure:"cooldown" validate:"nonneg_duration"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = ServiceName
	}
	if c.Version == "" {
		c.Version = version.Short()
	}
	c.ServiceConfig.ApplyDefaults()

	e := &c.Executor
	if e.TimeoutFactor == 0 {
		e.TimeoutFactor = 1
	}
	if e.GracePeriod == 0 {
		e.GracePeriod = 5 * time.Second
	}
	if e.MaxConcurrent == 0 {
		e.MaxConcurrent = 4
	}
	if e.LaunchAttempts == 0 {
		e.LaunchAttempts = 4
	}
	e.Handler.Name = strings.TrimSpace(e.Handler.Name)
	if e.Handler.Name == "" {
		e.Handler.Name = timeout.HandlerDefault
	}
	if e.Handler.Timeout == 0 {
		e.Handler.Timeout = timeout.HandlerTimeout
	}
	if e.Breaker.MaxFailures > 0 && e.Breaker.Cooldown == 0 {
		e.Breaker.Cooldown = 5 * time.Minute
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = c.Name
	}
	if c.Tracing.Environment == "" {
		c.Tracing.Environment = c.Environment
	}
	if c.Tracing.ServiceVersion == "" {
		c.Tracing.ServiceVersion = c.Version
	}
	if c.Metrics.ServiceName == "" {
		c.Metrics.ServiceName = c.Name
	}
	if c.Metrics.Environment == "" {
		c.Metrics.Environment = c.Environment
	}
	if c.Metrics.ServiceVersion == "" {
		c.Metrics.ServiceVersion = c.Version
	}
}

// Validate checks the configuration after ApplyDefaults.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := validation.Validate(c); err != nil {
		return err
	}
	v := validation.New().
		Custom(!c.Tracing.Enabled || c.Tracing.Endpoint != "", "tracing.endpoint", "is required when tracing is enabled").
		Custom(!c.Metrics.Enabled || c.Metrics.Endpoint != "", "metrics.endpoint", "is required when metrics are enabled")
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// defaults are registered with the loader so every key can be set from the
// environment, e.g. ACTIONEXEC_EXECUTOR_DEFAULT_TIMEOUT=2m.
var defaults = map[string]any{
	"executor.work_dir":             "",
	"executor.default_timeout":      "0s",
	"executor.timeout_factor":       1.0,
	"executor.grace_period":         "5s",
	"executor.max_concurrent":       4,
	"executor.queue_timeout":        "0s",
	"executor.launch_attempts":      4,
	"executor.handler.name":         timeout.HandlerDefault,
	"executor.handler.timeout":      timeout.HandlerTimeout.String(),
	"executor.handler.runtime_root": "",
	"executor.handler.output_dir":   "",
	"executor.handler.tool":         timeout.DefaultTool,
	"executor.handler.args":         timeout.DefaultArgs,
	"executor.breaker.max_failures": 0,
	"executor.breaker.cooldown":     "0s",
	"tracing.enabled":               false,
	"tracing.endpoint":              "localhost:4318",
	"tracing.insecure":              true,
	"tracing.sample_rate":           1.0,
	"metrics.enabled":               false,
	"metrics.endpoint":              "localhost:4318",
	"metrics.insecure":              true,
	"metrics.interval":              "15s",
}

// LoadConfig reads the executor configuration from files and the
// environment, then applies defaults and validates it.
func LoadConfig(opts ...config.LoaderOption) (Config, error) {
	var cfg Config
	opts = append([]config.LoaderOption{config.WithDefaults(defaults)}, opts...)
	if err := config.LoadConfig(ServiceName, &cfg, opts...); err != nil {
		return cfg, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
