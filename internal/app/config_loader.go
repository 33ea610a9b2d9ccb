package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/yourusername/medialink-go/internal/domain"
)

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	// Start with default config
	config := domain.DefaultConfig()

	// Set up viper
	v := viper.New()
	v.SetConfigType("yaml")

	// If config path is provided, use it
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.medialink")
		v.AddConfigPath("/etc/medialink")
	}

	// Read environment variables
	v.SetEnvPrefix("MEDIALINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults
	}

	// Unmarshal into config struct
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Expand environment variables in paths
	config = expandPaths(config)

	config.Tool.GracefulExitCodes = normalizeGracefulCodes(config.Tool.GracefulExitCodes)

	// Validate config
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Tool.BinaryPath = expandPath(config.Tool.BinaryPath)
	config.Transfer.LogsDir = expandPath(config.Transfer.LogsDir)
	config.Transfer.HistoryPath = expandPath(config.Transfer.HistoryPath)

	if config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	path = os.ExpandEnv(path)

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	if strings.Contains(path, "$HOME") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return path
}

// normalizeGracefulCodes folds platform-specific representations of the
// tool's cooperative-shutdown exit status onto the canonical 255: the
// unsigned-wrapped 4294967295 and the signed -1 both denote the same exit.
// Negative codes must never survive here, because -1 is also what a failed
// reap reports and would turn reap failures into false cancellations.
func normalizeGracefulCodes(codes []int) []int {
	out := make([]int, 0, len(codes))
	for _, c := range codes {
		if c == 4294967295 || c == -1 {
			c = 255
		}
		out = append(out, c)
	}
	return out
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Tool.BinaryPath == "" {
		return fmt.Errorf("tool binary path not configured")
	}

	if config.Progress.SpeedWindow <= 0 {
		return fmt.Errorf("speed window must be positive")
	}

	if config.Progress.EmitInterval <= 0 {
		return fmt.Errorf("emit interval must be positive")
	}

	if config.Cancel.GraceTimeout <= 0 || config.Cancel.ForceTimeout <= config.Cancel.GraceTimeout {
		return fmt.Errorf("force timeout must exceed grace timeout")
	}

	if config.Transfer.MinFreeMB < 0 {
		return fmt.Errorf("min free space cannot be negative")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}
