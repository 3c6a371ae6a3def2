package protocol

import (
	"fmt"
	"os"
	"time"

	"github.com/MalekiRe/bevy-editor/pkg/consts"
	werrors "github.com/MalekiRe/bevy-editor/pkg/errors"
	"github.com/MalekiRe/bevy-editor/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Default returns a configuration with every field set to its default.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads a YAML config file, fills in defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, werrors.New(werrors.ErrCodeConfigRead, "LoadConfig", "cannot read "+path, err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes, fills in defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, werrors.New(werrors.ErrCodeConfigInvalid, "LoadConfig", "malformed yaml", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if len(c.Child.Command) == 0 {
		c.Child.Command = []string{consts.DefaultChildLauncher, consts.DefaultChildSubcmd}
	}
	if c.Ports.Min == 0 && c.Ports.Max == 0 {
		c.Ports.Min = consts.DefaultPortMin
		c.Ports.Max = consts.DefaultPortMax
	}
	if c.Handshake.MaxAttempts == 0 {
		c.Handshake.MaxAttempts = consts.DefaultDialAttempts
	}
	if c.Handshake.LogAfter == nil {
		logAfter := consts.DefaultDialLogAfter
		c.Handshake.LogAfter = &logAfter
	}
	if c.Handshake.RetryInterval == "" {
		c.Handshake.RetryInterval = consts.DefaultRetryInterval.String()
	}
	if c.Relay.PollInterval == "" {
		c.Relay.PollInterval = consts.DefaultPollInterval.String()
	}
	if c.Relay.Echo == nil {
		echo := true
		c.Relay.Echo = &echo
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = consts.DefaultLogLevel
	}
}

// Validate checks the config for values the watcher cannot run with.
func (c *Config) Validate() error {
	invalid := func(msg string) error {
		return werrors.New(werrors.ErrCodeConfigInvalid, "ValidateConfig", msg, nil)
	}

	if len(c.Child.Command) == 0 || c.Child.Command[0] == "" {
		return invalid("child.command must name an executable")
	}
	if c.Ports.Min < 1 || c.Ports.Max > 65536 {
		return invalid(fmt.Sprintf("ports range [%d, %d) outside 1..65535", c.Ports.Min, c.Ports.Max))
	}
	if c.Ports.Max-c.Ports.Min < 2 {
		return invalid("ports range must hold at least two ports")
	}
	if c.Handshake.MaxAttempts < 1 {
		return invalid("handshake.max_attempts must be positive")
	}
	if c.Handshake.LogAfter != nil && *c.Handshake.LogAfter < 0 {
		return invalid("handshake.log_after must not be negative")
	}
	if d, err := time.ParseDuration(c.Handshake.RetryInterval); err != nil || d < 0 {
		return invalid("handshake.retry_interval is not a valid duration")
	}
	if d, err := time.ParseDuration(c.Relay.PollInterval); err != nil || d <= 0 {
		return invalid("relay.poll_interval must be a positive duration")
	}
	if !logger.ValidLevel(c.Observability.LogLevel) {
		return invalid("observability.log_level must be debug, info, warn or error")
	}
	for _, kv := range c.Child.Env {
		if !validEnvPair(kv) {
			return invalid("child.env entry " + kv + " is not KEY=VALUE")
		}
	}
	return nil
}

// RetryInterval returns the parsed handshake retry interval.
func (c *Config) RetryInterval() time.Duration {
	d, err := time.ParseDuration(c.Handshake.RetryInterval)
	if err != nil {
		return consts.DefaultRetryInterval
	}
	return d
}

// PollInterval returns the parsed relay poll interval.
func (c *Config) PollInterval() time.Duration {
	d, err := time.ParseDuration(c.Relay.PollInterval)
	if err != nil || d <= 0 {
		return consts.DefaultPollInterval
	}
	return d
}

// DialLogAfter returns the attempt index from which failed dials are logged.
func (c *Config) DialLogAfter() int {
	if c.Handshake.LogAfter == nil {
		return consts.DefaultDialLogAfter
	}
	return *c.Handshake.LogAfter
}

// EchoEnabled reports whether child output is echoed to the watcher's stdout.
func (c *Config) EchoEnabled() bool {
	return c.Relay.Echo == nil || *c.Relay.Echo
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func validEnvPair(kv string) bool {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return i > 0
		}
	}
	return false
}

// Personal.AI order the ending
