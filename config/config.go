package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"harmony-kit/encoding"
	"harmony-kit/parser"
)

// Environment keys read by LoadConfig.
const (
	EnvStartDelimiter   = "HARMONY_START_DELIMITER"
	EnvMessageDelimiter = "HARMONY_MESSAGE_DELIMITER"
	EnvEndDelimiter     = "HARMONY_END_DELIMITER"
	EnvEncoding         = "HARMONY_ENCODING"
	EnvLogLevel         = "LOG_LEVEL"
	EnvLogDir           = "LOG_DIR"
	EnvMaxBufferBytes   = "STREAM_MAX_BUFFER_BYTES"
	EnvResetOnComplete  = "STREAM_RESET_ON_COMPLETE"
	EnvMetricsEnabled   = "METRICS_ENABLED"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// StreamConfig controls the live extraction path
type StreamConfig struct {
	MaxBufferBytes  int  `yaml:"max_buffer_bytes" json:"max_buffer_bytes"`   // 0 means unbounded
	ResetOnComplete bool `yaml:"reset_on_complete" json:"reset_on_complete"` // Reset the extractor after a complete snapshot
}

// Config holds every setting for the Harmony tools
type Config struct {
	Delimiters     parser.Delimiters `yaml:"delimiters" json:"delimiters"`
	Encoding       string            `yaml:"encoding" json:"encoding"`
	LogLevel       string            `yaml:"log_level" json:"log_level"`
	LogDir         string            `yaml:"log_dir" json:"log_dir"` // Empty logs to stderr
	Stream         StreamConfig      `yaml:"stream" json:"stream"`
	MetricsEnabled bool              `yaml:"metrics_enabled" json:"metrics_enabled"`
}

// GetDefaultConfig returns the default configuration
func GetDefaultConfig() *Config {
	return &Config{
		Delimiters:     parser.DefaultDelimiters(),
		Encoding:       string(encoding.HarmonyTextV1),
		LogLevel:       "info",
		LogDir:         "",
		Stream:         StreamConfig{},
		MetricsEnabled: false,
	}
}

// LoadConfig builds a Config from defaults, an optional YAML file, an
// optional .env file, and finally the process environment. Empty paths and
// missing files are skipped.
func LoadConfig(yamlPath, envPath string) (*Config, error) {
	cfg := GetDefaultConfig()

	if yamlPath != "" {
		if err := cfg.loadYAML(yamlPath); err != nil {
			return nil, err
		}
	}

	envVars := make(map[string]string)
	if envPath != "" {
		fileVars, err := loadEnvFile(envPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", envPath, err)
		}
		for k, v := range fileVars {
			envVars[k] = v
		}
	}
	for _, key := range []string{
		EnvStartDelimiter, EnvMessageDelimiter, EnvEndDelimiter, EnvEncoding,
		EnvLogLevel, EnvLogDir, EnvMaxBufferBytes, EnvResetOnComplete, EnvMetricsEnabled,
	} {
		if value, ok := os.LookupEnv(key); ok && value != "" {
			envVars[key] = value
		}
	}

	if err := cfg.applyEnv(envVars); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	c.Delimiters = c.Delimiters.OrDefault()
	return nil
}

func (c *Config) applyEnv(envVars map[string]string) error {
	if v, ok := envVars[EnvStartDelimiter]; ok && v != "" {
		c.Delimiters.Start = v
	}
	if v, ok := envVars[EnvMessageDelimiter]; ok && v != "" {
		c.Delimiters.Message = v
	}
	if v, ok := envVars[EnvEndDelimiter]; ok && v != "" {
		c.Delimiters.End = v
	}
	if v, ok := envVars[EnvEncoding]; ok && v != "" {
		c.Encoding = v
	}
	if v, ok := envVars[EnvLogLevel]; ok && v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v, ok := envVars[EnvLogDir]; ok {
		c.LogDir = v
	}
	if v, ok := envVars[EnvMaxBufferBytes]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvMaxBufferBytes, v, err)
		}
		c.Stream.MaxBufferBytes = n
	}
	if v, ok := envVars[EnvResetOnComplete]; ok {
		c.Stream.ResetOnComplete = parseBool(v)
	}
	if v, ok := envVars[EnvMetricsEnabled]; ok {
		c.MetricsEnabled = parseBool(v)
	}
	return nil
}

// Validate checks delimiter distinctness, log level and stream limits
func (c *Config) Validate() error {
	if err := c.Delimiters.Validate(); err != nil {
		return fmt.Errorf("invalid delimiters: %w", err)
	}
	if c.Encoding == "" {
		return fmt.Errorf("encoding is empty")
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.Stream.MaxBufferBytes < 0 {
		return fmt.Errorf("stream max_buffer_bytes must not be negative, got %d", c.Stream.MaxBufferBytes)
	}
	return nil
}

// EncodingName returns the configured encoding as an encoding.Name
func (c *Config) EncodingName() encoding.Name {
	return encoding.Name(c.Encoding)
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// loadEnvFile loads KEY=VALUE pairs from a .env style file
func loadEnvFile(path string) (map[string]string, error) {
	envVars := make(map[string]string)

	file, err := os.Open(path)
	if err != nil {
		return envVars, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Delimiters are usually quoted since they may contain '#'
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		} else if commentIndex := strings.Index(value, " #"); commentIndex != -1 {
			value = strings.TrimSpace(value[:commentIndex])
		}

		envVars[key] = value
	}

	return envVars, scanner.Err()
}
