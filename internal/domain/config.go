package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Library   LibraryConfig   `mapstructure:"library"`
	Downloads DownloadsConfig `mapstructure:"downloads"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LibraryConfig contains catalog and storage configuration
type LibraryConfig struct {
	BaseDir      string `mapstructure:"base_dir"`
	MediaDir     string `mapstructure:"media_dir"`
	IncomingDir  string `mapstructure:"incoming_dir"`
	LogsDir      string `mapstructure:"logs_dir"`
	DatabasePath string `mapstructure:"database_path"`
}

// DownloadsConfig contains fetch runner configuration
type DownloadsConfig struct {
	YTDLPBinary     string        `mapstructure:"ytdlp_binary"`
	AudioFormat     string        `mapstructure:"audio_format"`
	CookieFile      string        `mapstructure:"cookie_file"`
	ConcurrentLimit int           `mapstructure:"concurrent_limit"`
	StallTimeout    time.Duration `mapstructure:"stall_timeout"`
}

// NotifyConfig contains desktop notification configuration
type NotifyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send, etc.
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // rotation threshold for file output
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Library: LibraryConfig{
			BaseDir:      "$HOME/Music/tunevault",
			MediaDir:     "$HOME/Music/tunevault/media",
			IncomingDir:  "$HOME/Music/tunevault/incoming",
			LogsDir:      "$HOME/Music/tunevault/logs",
			DatabasePath: "$HOME/Music/tunevault/library.db",
		},
		Downloads: DownloadsConfig{
			YTDLPBinary:     "yt-dlp",
			AudioFormat:     "mp3",
			CookieFile:      "",
			ConcurrentLimit: 3,
			StallTimeout:    5 * time.Minute,
		},
		Notify: NotifyConfig{
			Enabled: false,
			Sound:   true,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
			MaxSizeMB:  20,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
	}
}
