package recognizer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Environment variables consulted when no explicit configuration is given
const (
	// ServerPathEnv names the recognizer server executable
	ServerPathEnv = "RECOGNIZER_MCP_PATH"

	// ToolNameEnv overrides the MCP tool invoked for detection
	ToolNameEnv = "RECOGNIZER_MCP_TOOL"
)

// Config holds the tunables for calls to the recognizer server
type Config struct {
	// Name of the MCP tool to invoke
	ToolName string

	// Per-call timeout covering all retry attempts
	Timeout time.Duration

	// Number of retries after a failed call
	RetryCount int

	// Base delay for exponential backoff between retries
	RetryBackoff time.Duration

	// Maximum document size accepted for a single call, in bytes
	MaxContentSize int

	// Rate limiting across calls from this client
	RateLimitEnabled  bool
	RequestsPerMinute int
}

// LoadConfig merges defaults into config. A nil config gets the full
// default set, including environment overrides; explicitly provided
// values always take precedence.
func LoadConfig(config *Config) *Config {
	if config == nil {
		config = &Config{
			ToolName:     "recognizer.detect",
			RetryCount:   2,
			RetryBackoff: 500 * time.Millisecond,
		}

		if toolName := os.Getenv(ToolNameEnv); toolName != "" {
			config.ToolName = toolName
		}
	}

	if config.ToolName == "" {
		config.ToolName = "recognizer.detect"
	}

	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxContentSize == 0 {
		config.MaxContentSize = 32768 // 32KB
	}

	if config.RateLimitEnabled && config.RequestsPerMinute == 0 {
		config.RequestsPerMinute = 60
	}

	return config
}

// ResolveServerPath returns the recognizer server executable to launch.
// An explicit path takes precedence, then RECOGNIZER_MCP_PATH, then a
// few common installation locations.
func ResolveServerPath(serverPath string) (string, error) {
	if serverPath != "" {
		return serverPath, nil
	}

	if envPath := os.Getenv(ServerPathEnv); envPath != "" {
		return envPath, nil
	}

	commonPaths := []string{
		"./recognizer-server",
		filepath.Join(os.Getenv("HOME"), ".local/bin/recognizer-server"),
		"/usr/local/bin/recognizer-server",
	}

	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no recognizer server found; pass a path or set %s", ServerPathEnv)
}
