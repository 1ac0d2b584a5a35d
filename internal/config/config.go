package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/shrinkfs/shrinkfs/pkg/types"
)

// Config represents the complete application configuration
type Config struct {
	Scan        ScanConfig        `yaml:"scan"`
	Compression CompressionConfig `yaml:"compression"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	API         APIConfig         `yaml:"api"`
}

// ScanConfig controls which files are considered compression candidates
type ScanConfig struct {
	Root            string   `yaml:"root"`
	Recursive       bool     `yaml:"recursive"`
	AllowExtensions []string `yaml:"allow_extensions"`
	DenyExtensions  []string `yaml:"deny_extensions"`
	MinFileSize     int64    `yaml:"min_file_size"`
	MinPriority     float64  `yaml:"min_priority"`
}

// CompressionConfig selects the compression method and level
type CompressionConfig struct {
	Method string `yaml:"method"`
	Level  int    `yaml:"level"`
}

// MonitorConfig controls the background disk-pressure monitor
type MonitorConfig struct {
	// Path is the filesystem whose usage is sampled. Empty means the
	// scan root.
	Path             string        `yaml:"path"`
	ThresholdPercent float64       `yaml:"threshold_percent"`
	Interval         time.Duration `yaml:"interval"`
	BatchLimit       int           `yaml:"batch_limit"`
	StopTimeout      time.Duration `yaml:"stop_timeout"`
}

// LedgerConfig locates the compression metadata document
type LedgerConfig struct {
	Directory string `yaml:"directory"`
	Filename  string `yaml:"filename"`
}

// MaintenanceConfig controls the scheduled janitor
type MaintenanceConfig struct {
	// Schedule is a cron expression (robfig/cron/v3 syntax, @every
	// forms included). Empty disables scheduled maintenance.
	Schedule        string        `yaml:"schedule"`
	BackupRetention time.Duration `yaml:"backup_retention"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	RingSize   int    `yaml:"ring_size"`
}

// MetricsConfig represents Prometheus metrics settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
}

// APIConfig represents the embedded status API settings
type APIConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	EnableCORS   bool          `yaml:"enable_cors"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Config {
	return &Config{
		Scan: ScanConfig{
			Root:      ".",
			Recursive: true,
			AllowExtensions: []string{
				".txt", ".log", ".json", ".csv", ".xml", ".yaml", ".yml",
			},
			DenyExtensions: []string{
				".gz", ".zz", ".zip", ".rar", ".7z", ".bz2", ".xz",
				".jpg", ".jpeg", ".png", ".gif", ".mp4", ".avi", ".mp3",
				".exe", ".dll", ".so",
			},
			MinFileSize: 1024,
			MinPriority: 0.3,
		},
		Compression: CompressionConfig{
			Method: "gzip",
			Level:  -1,
		},
		Monitor: MonitorConfig{
			Path:             "",
			ThresholdPercent: 90.0,
			Interval:         60 * time.Second,
			BatchLimit:       50,
			StopTimeout:      5 * time.Second,
		},
		Ledger: LedgerConfig{
			Directory: "metadata",
			Filename:  "compression_metadata.json",
		},
		Maintenance: MaintenanceConfig{
			Schedule:        "@every 6h",
			BackupRetention: 72 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:      "INFO",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			RingSize:   500,
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Address:   "localhost:9090",
			Namespace: "shrinkfs",
		},
		API: APIConfig{
			Enabled:      false,
			Address:      "localhost:8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			EnableCORS:   true,
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration overrides from environment variables
func (c *Config) LoadFromEnv() error {
	// Scan settings
	if val := os.Getenv("SHRINKFS_SCAN_ROOT"); val != "" {
		c.Scan.Root = val
	}
	if val := os.Getenv("SHRINKFS_SCAN_RECURSIVE"); val != "" {
		c.Scan.Recursive = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("SHRINKFS_MIN_FILE_SIZE"); val != "" {
		if size, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.Scan.MinFileSize = size
		}
	}
	if val := os.Getenv("SHRINKFS_MIN_PRIORITY"); val != "" {
		if priority, err := strconv.ParseFloat(val, 64); err == nil {
			c.Scan.MinPriority = priority
		}
	}

	// Compression settings
	if val := os.Getenv("SHRINKFS_COMPRESSION_METHOD"); val != "" {
		c.Compression.Method = strings.ToLower(val)
	}
	if val := os.Getenv("SHRINKFS_COMPRESSION_LEVEL"); val != "" {
		if level, err := strconv.Atoi(val); err == nil {
			c.Compression.Level = level
		}
	}

	// Monitor settings
	if val := os.Getenv("SHRINKFS_MONITOR_PATH"); val != "" {
		c.Monitor.Path = val
	}
	if val := os.Getenv("SHRINKFS_THRESHOLD_PERCENT"); val != "" {
		if threshold, err := strconv.ParseFloat(val, 64); err == nil {
			c.Monitor.ThresholdPercent = threshold
		}
	}
	if val := os.Getenv("SHRINKFS_MONITOR_INTERVAL"); val != "" {
		if interval, err := time.ParseDuration(val); err == nil {
			c.Monitor.Interval = interval
		}
	}
	if val := os.Getenv("SHRINKFS_BATCH_LIMIT"); val != "" {
		if limit, err := strconv.Atoi(val); err == nil {
			c.Monitor.BatchLimit = limit
		}
	}

	// Ledger settings
	if val := os.Getenv("SHRINKFS_LEDGER_DIR"); val != "" {
		c.Ledger.Directory = val
	}
	if val := os.Getenv("SHRINKFS_LEDGER_FILE"); val != "" {
		c.Ledger.Filename = val
	}

	// Maintenance settings
	if val := os.Getenv("SHRINKFS_MAINTENANCE_SCHEDULE"); val != "" {
		c.Maintenance.Schedule = val
	}

	// Logging settings
	if val := os.Getenv("SHRINKFS_LOG_LEVEL"); val != "" {
		c.Logging.Level = strings.ToUpper(val)
	}
	if val := os.Getenv("SHRINKFS_LOG_FILE"); val != "" {
		c.Logging.File = val
	}

	// Metrics settings
	if val := os.Getenv("SHRINKFS_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("SHRINKFS_METRICS_ADDRESS"); val != "" {
		c.Metrics.Address = val
	}

	// API settings
	if val := os.Getenv("SHRINKFS_API_ENABLED"); val != "" {
		c.API.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("SHRINKFS_API_ADDRESS"); val != "" {
		c.API.Address = val
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MonitorPath returns the path the disk monitor samples, falling back to
// the scan root when no explicit monitor path is configured.
func (c *Config) MonitorPath() string {
	if c.Monitor.Path != "" {
		return c.Monitor.Path
	}
	return c.Scan.Root
}

// LedgerPath returns the full path of the metadata document
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Ledger.Directory, c.Ledger.Filename)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Scan.Root == "" {
		return fmt.Errorf("scan root must not be empty")
	}

	if c.Scan.MinFileSize < 0 {
		return fmt.Errorf("min_file_size must not be negative")
	}

	if c.Scan.MinPriority < 0 || c.Scan.MinPriority > 1 {
		return fmt.Errorf("min_priority must be between 0.0 and 1.0")
	}

	if !types.Method(c.Compression.Method).Valid() {
		return fmt.Errorf("invalid compression method: %s (must be one of: gzip, deflate)",
			c.Compression.Method)
	}

	if c.Compression.Level < -2 || c.Compression.Level > 9 {
		return fmt.Errorf("compression level must be between -2 and 9")
	}

	if c.Monitor.ThresholdPercent <= 0 || c.Monitor.ThresholdPercent > 100 {
		return fmt.Errorf("threshold_percent must be between 0 and 100")
	}

	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor interval must be greater than 0")
	}

	if c.Monitor.BatchLimit <= 0 {
		return fmt.Errorf("batch_limit must be greater than 0")
	}

	if c.Ledger.Directory == "" || c.Ledger.Filename == "" {
		return fmt.Errorf("ledger directory and filename must not be empty")
	}

	if c.Maintenance.BackupRetention < 0 {
		return fmt.Errorf("backup_retention must not be negative")
	}

	validLogLevels := []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if c.Logging.Level == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)",
			c.Logging.Level, strings.Join(validLogLevels, ", "))
	}

	return nil
}
