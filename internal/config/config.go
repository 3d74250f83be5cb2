// Package config provides the configuration schema and loader for the
// livevoice session pipeline.
package config

// LogLevel controls log verbosity for the livevoice process.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Audio     AudioConfig     `yaml:"audio"`
	Flows     []FlowConfig    `yaml:"flows"`
}

// ServerConfig holds logging and telemetry settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address the Prometheus /metrics endpoint
	// listens on (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// ProvidersConfig declares which provider implementation to use for each
// concern.
type ProvidersConfig struct {
	// Live is the bidirectional voice backend used during sessions.
	Live ProviderEntry `yaml:"live"`

	// LLM is the completion backend used for post-session analysis.
	LLM ProviderEntry `yaml:"llm"`
}

// ProviderEntry is the common configuration block shared by all provider
// types.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "gemini-live", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`
}

// AudioConfig tunes the capture pipeline.
type AudioConfig struct {
	// BlockSize is the number of samples per encoded microphone frame.
	// Zero means the built-in default.
	BlockSize int `yaml:"block_size"`

	// FrameBuffer is how many encoded frames may queue before the pipeline
	// starts dropping. Zero means the built-in default.
	FrameBuffer int `yaml:"frame_buffer"`
}

// FlowConfig describes one selectable conversation flow: the agent's
// instructions, voice, and whether the session ends with transcript analysis.
type FlowConfig struct {
	// Name is the unique identifier used to select the flow (e.g.,
	// "support", "interview").
	Name string `yaml:"name"`

	// Instructions is the system-level prompt defining the agent's role
	// for the whole session.
	Instructions string `yaml:"instructions"`

	// Voice selects the provider's prebuilt voice. Empty means the
	// provider default.
	Voice string `yaml:"voice"`

	// ClosingPhrase, when non-empty, ends the session automatically once
	// the agent speaks it (matched fuzzily against the transcript).
	ClosingPhrase string `yaml:"closing_phrase"`

	// Feedback enables post-session transcript analysis through the LLM
	// provider.
	Feedback bool `yaml:"feedback"`

	// Job describes the position an interview flow is conducted for.
	// Required when Feedback is enabled.
	Job *JobConfig `yaml:"job"`
}

// JobConfig describes the position for interview-style flows.
type JobConfig struct {
	Title       string `yaml:"title"`
	Company     string `yaml:"company"`
	Description string `yaml:"description"`
}

// Flow returns the flow with the given name and true, or a zero FlowConfig
// and false when no flow matches.
func (c *Config) Flow(name string) (FlowConfig, bool) {
	for _, f := range c.Flows {
		if f.Name == name {
			return f, true
		}
	}
	return FlowConfig{}, false
}
