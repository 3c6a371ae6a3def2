package protocol

// Config represents the root configuration of the hot-reload watcher
type Config struct {
	Version       string              `yaml:"version"`
	Child         ChildConfig         `yaml:"child"`
	Ports         PortsConfig         `yaml:"ports"`
	Handshake     HandshakeConfig     `yaml:"handshake"`
	Relay         RelayConfig         `yaml:"relay"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ChildConfig struct {
	Command []string `yaml:"command"` // Launched in the project directory
	Env     []string `yaml:"env"`     // Extra KEY=VALUE pairs
}

// PortsConfig is the half-open range [Min, Max) the port broker draws from.
type PortsConfig struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

type HandshakeConfig struct {
	MaxAttempts   int    `yaml:"max_attempts"`
	LogAfter      *int   `yaml:"log_after"` // Attempts from this index on log the dial error; 0 logs all
	RetryInterval string `yaml:"retry_interval"`
}

type RelayConfig struct {
	PollInterval string `yaml:"poll_interval"`
	Echo         *bool  `yaml:"echo"` // Echo child output to our stdout, default true
}

type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Personal.AI order the ending
