package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"live": {"gemini-live"},
	"llm":  {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// References like ${GEMINI_API_KEY} in the provider api_key and base_url
// fields are expanded from the environment after decoding, so API keys can
// stay out of the file. Expansion is limited to those fields: a literal
// dollar sign in prompt text is left alone.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	expandProviderEnv(&cfg.Providers.Live)
	expandProviderEnv(&cfg.Providers.LLM)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func expandProviderEnv(e *ProviderEntry) {
	e.APIKey = os.ExpandEnv(e.APIKey)
	e.BaseURL = os.ExpandEnv(e.BaseURL)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("live", cfg.Providers.Live.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)

	if cfg.Providers.Live.Name == "" && len(cfg.Flows) > 0 {
		errs = append(errs, errors.New("providers.live is required when flows are configured"))
	}

	// Audio
	if cfg.Audio.BlockSize < 0 {
		errs = append(errs, fmt.Errorf("audio.block_size %d must not be negative", cfg.Audio.BlockSize))
	}
	if cfg.Audio.FrameBuffer < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_buffer %d must not be negative", cfg.Audio.FrameBuffer))
	}

	// Flow duplicate name detection.
	flowNamesSeen := make(map[string]int, len(cfg.Flows))

	for i, flow := range cfg.Flows {
		prefix := fmt.Sprintf("flows[%d]", i)
		if flow.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := flowNamesSeen[flow.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of flows[%d]", prefix, flow.Name, prev))
			}
			flowNamesSeen[flow.Name] = i
		}
		if flow.Instructions == "" {
			errs = append(errs, fmt.Errorf("%s.instructions is required", prefix))
		}

		// Feedback ↔ provider cross-validation.
		if flow.Feedback {
			if cfg.Providers.LLM.Name == "" {
				errs = append(errs, fmt.Errorf("%s: feedback requires an LLM provider but providers.llm is not configured", prefix))
			}
			if flow.Job == nil || flow.Job.Title == "" {
				errs = append(errs, fmt.Errorf("%s.job.title is required when feedback is enabled", prefix))
			}
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
