// Package logger provides a context-aware zap logger wrapper
// Modules are bound at creation time; call sites only pass ctx
package logger

// Config logger configuration
type Config struct {
	// AppName application name, injected into every record
	AppName string `mapstructure:"app_name"`

	// Level log level: debug, info, warn, error
	Level string `mapstructure:"level"`

	// Format output format: json, console
	Format string `mapstructure:"format"`

	// Output target: stdout, file, both
	Output string `mapstructure:"output"`

	// FilePath log file path (required when Output is file/both)
	FilePath string `mapstructure:"file_path"`

	// MaxSizeMB single file size limit before rotation
	MaxSizeMB int `mapstructure:"max_size_mb"`

	// MaxBackups number of rotated files to retain
	MaxBackups int `mapstructure:"max_backups"`

	// MaxAgeDays retention in days for rotated files
	MaxAgeDays int `mapstructure:"max_age_days"`

	// Compress whether rotated files are gzipped
	Compress bool `mapstructure:"compress"`

	// EnableTraceID whether trace_id is extracted from ctx into records
	EnableTraceID bool `mapstructure:"enable_trace_id"`
}

// DefaultConfig development-friendly defaults
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		Format:        "console",
		Output:        "stdout",
		FilePath:      "logs/app.log",
		MaxSizeMB:     100,
		MaxBackups:    5,
		MaxAgeDays:    30,
		Compress:      true,
		EnableTraceID: true,
	}
}

// ApplyDefaults fills zero values
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Level == "" {
		c.Level = def.Level
	}
	if c.Format == "" {
		c.Format = def.Format
	}
	if c.Output == "" {
		c.Output = def.Output
	}
	if c.FilePath == "" {
		c.FilePath = def.FilePath
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = def.MaxSizeMB
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = def.MaxBackups
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = def.MaxAgeDays
	}
}
