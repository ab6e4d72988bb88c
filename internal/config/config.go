package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/ericpauley/ec2-autostop/internal/activity"
)

const (
	BackendSDK = "sdk"
	BackendCLI = "cli"

	DefaultAWSCLIPath     = "aws"
	DefaultMaxIdleMinutes = 15
)

var ErrMissingAWSSettings = errors.New(`missing "aws_settings" in config`)

// AWSSettings selects the region and credentials used for EC2 calls. When
// both keys are empty the default credential chain is used.
type AWSSettings struct {
	Region          string `json:"region" yaml:"region" validate:"required"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id" validate:"required_with=SecretAccessKey"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key" validate:"required_with=AccessKeyID"`
	RoleARN         string `json:"role_arn" yaml:"role_arn"`
}

type Config struct {
	AWSCLIPath      string       `json:"aws_cli_path" yaml:"aws_cli_path" validate:"required"`
	AWSSettings     *AWSSettings `json:"aws_settings" yaml:"aws_settings"`
	WatchPaths      []string     `json:"watch_paths" yaml:"watch_paths"`
	Hibernate       bool         `json:"hibernate" yaml:"hibernate"`
	MaxIdleMinutes  float64      `json:"max_idle_minutes" yaml:"max_idle_minutes" validate:"gt=0"`
	Backend         string       `json:"backend" yaml:"backend" validate:"oneof=sdk cli"`
	DetectProcesses bool         `json:"detect_processes" yaml:"detect_processes"`
	UtmpPath        string       `json:"utmp_path" yaml:"utmp_path" validate:"required"`
	MetricsTextfile string       `json:"metrics_textfile" yaml:"metrics_textfile"`
	LogLevel        string       `json:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
}

func defaults() Config {
	return Config{
		AWSCLIPath:     DefaultAWSCLIPath,
		MaxIdleMinutes: DefaultMaxIdleMinutes,
		Backend:        BackendSDK,
		UtmpPath:       activity.DefaultUtmpPath,
		LogLevel:       "info",
	}
}

// Load reads the config file at path. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON with comments allowed. A missing
// aws_settings block is not an error here; see Settings.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data according to the file extension ext and applies
// defaults for absent keys.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := defaults()
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Settings returns the aws_settings block or ErrMissingAWSSettings.
func (c *Config) Settings() (AWSSettings, error) {
	if c.AWSSettings == nil {
		return AWSSettings{}, ErrMissingAWSSettings
	}
	return *c.AWSSettings, nil
}

// Threshold is the idle time after which the instance is stopped.
func (c *Config) Threshold() time.Duration {
	return time.Duration(c.MaxIdleMinutes * float64(time.Minute))
}
