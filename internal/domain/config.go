package domain

import "time"

// Config represents the host configuration
type Config struct {
	Tool         ToolConfig         `mapstructure:"tool"`
	Transfer     TransferConfig     `mapstructure:"transfer"`
	Progress     ProgressConfig     `mapstructure:"progress"`
	Cancel       CancelConfig       `mapstructure:"cancel"`
	Host         HostConfig         `mapstructure:"host"`
	API          APIConfig          `mapstructure:"api"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ToolConfig describes the external media tool
type ToolConfig struct {
	BinaryPath string `mapstructure:"binary_path"`
	// QuitCommand is the cooperative shutdown request written to the tool's
	// stdin control channel when one is open.
	QuitCommand string `mapstructure:"quit_command"`
	// GracefulExitCodes are the tool's documented exit codes for an honored
	// cooperative shutdown, including platform unsigned-wrapped variants.
	GracefulExitCodes []int `mapstructure:"graceful_exit_codes"`
}

// TransferConfig contains transfer-related configuration
type TransferConfig struct {
	LogsDir     string `mapstructure:"logs_dir"`
	MinFreeMB   int64  `mapstructure:"min_free_mb"`
	HistoryPath string `mapstructure:"history_path"`
}

// ProgressConfig tunes progress inference and emission
type ProgressConfig struct {
	SpeedWindow  time.Duration `mapstructure:"speed_window"`
	EmitInterval time.Duration `mapstructure:"emit_interval"`
	PercentDelta float64       `mapstructure:"percent_delta"`
}

// CancelConfig tunes the termination escalation timers
type CancelConfig struct {
	GraceTimeout time.Duration `mapstructure:"grace_timeout"`
	ForceTimeout time.Duration `mapstructure:"force_timeout"`
}

// HostConfig contains host lifecycle configuration
type HostConfig struct {
	IdleShutdown time.Duration `mapstructure:"idle_shutdown"`
}

// APIConfig contains the local status API configuration
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// NotificationConfig contains desktop notification configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send, etc.
}

// LoggingConfig contains logging-related configuration.
// Stdout belongs to the message transport, so logs default to stderr.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stderr or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Tool: ToolConfig{
			BinaryPath:  "ffmpeg",
			QuitCommand: "q",
			// 255 is the tool's exit code after an interrupt-driven clean
			// stop. Unsigned-wrapped forms of it are folded onto 255 at
			// config load.
			GracefulExitCodes: []int{255},
		},
		Transfer: TransferConfig{
			LogsDir:     "$HOME/.medialink/logs",
			MinFreeMB:   50,
			HistoryPath: "$HOME/.medialink/history.db",
		},
		Progress: ProgressConfig{
			SpeedWindow:  5 * time.Second,
			EmitInterval: 250 * time.Millisecond,
			PercentDelta: 0.5,
		},
		Cancel: CancelConfig{
			GraceTimeout: 5 * time.Second,
			ForceTimeout: 15 * time.Second,
		},
		Host: HostConfig{
			IdleShutdown: 2 * time.Minute,
		},
		API: APIConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8654",
		},
		Notification: NotificationConfig{
			Enabled: false,
			Sound:   false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stderr",
		},
	}
}
