// Package config loads playdwh configuration from defaults, a YAML file,
// PLAYDWH_ environment variables and command-line flags.
package config

import (
	"time"

	"github.com/leapstack-labs/playdwh/internal/pipeline"
	"github.com/leapstack-labs/playdwh/internal/runner"
	"github.com/leapstack-labs/playdwh/internal/schema"
	"github.com/leapstack-labs/playdwh/pkg/core"
)

// Config holds all CLI configuration options.
type Config struct {
	Cluster   ClusterConfig   `koanf:"cluster"`
	IAMRole   IAMRoleConfig   `koanf:"iam_role"`
	S3        S3Config        `koanf:"s3"`
	Transform TransformConfig `koanf:"transform"`
	Warehouse WarehouseConfig `koanf:"warehouse"`
	History   HistoryConfig   `koanf:"history"`

	Verbose      bool   `koanf:"verbose"`
	LogFormat    string `koanf:"log_format"`
	OutputFormat string `koanf:"output"`

	// File is the configuration file that was read, if any.
	File string `koanf:"-"`
}

// ClusterConfig is the warehouse connection.
type ClusterConfig struct {
	Type     string            `koanf:"type"`
	Host     string            `koanf:"host"`
	DBName   string            `koanf:"db_name"`
	User     string            `koanf:"db_user"`
	Password string            `koanf:"db_password"`
	Port     int               `koanf:"db_port"`
	Path     string            `koanf:"path"`
	Options  map[string]string `koanf:"options"`
	Params   map[string]any    `koanf:"params"`
}

// IAMRoleConfig holds the role the warehouse assumes to read S3.
type IAMRoleConfig struct {
	ARN string `koanf:"arn"`
}

// S3Config holds the source locations.
type S3Config struct {
	LogData     string `koanf:"log_data"`
	LogJSONPath string `koanf:"log_jsonpath"`
	SongData    string `koanf:"song_data"`
	Region      string `koanf:"region"`
}

// TransformConfig tunes the insert statements.
type TransformConfig struct {
	SongplayMatch string `koanf:"songplay_match"`
}

// WarehouseConfig tunes statement execution.
type WarehouseConfig struct {
	Commit           string        `koanf:"commit"`
	StatementTimeout time.Duration `koanf:"statement_timeout"`
	Preflight        bool          `koanf:"preflight"`
}

// HistoryConfig enables the local run history.
type HistoryConfig struct {
	Path string `koanf:"path"`
}

// Default configuration values.
const (
	DefaultWarehouse    = pipeline.DefaultWarehouse
	DefaultRedshiftPort = 5439
	DefaultCommit       = "statement"
	DefaultLogFormat    = "text"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// WarehouseConnection returns the adapter connection settings.
func (c *Config) WarehouseConnection() core.WarehouseConfig {
	return core.WarehouseConfig{
		Type:             c.Cluster.Type,
		Path:             c.Cluster.Path,
		Host:             c.Cluster.Host,
		Port:             c.Cluster.Port,
		Database:         c.Cluster.DBName,
		Username:         c.Cluster.User,
		Password:         c.Cluster.Password,
		Options:          c.Cluster.Options,
		Params:           c.Cluster.Params,
		StatementTimeout: c.Warehouse.StatementTimeout,
	}
}

// SchemaConfig returns the values interpolated into statement text.
func (c *Config) SchemaConfig() schema.Config {
	return schema.Config{
		RoleARN:       c.IAMRole.ARN,
		LogData:       c.S3.LogData,
		LogJSONPath:   c.S3.LogJSONPath,
		SongData:      c.S3.SongData,
		Region:        c.S3.Region,
		SongplayMatch: schema.SongplayMatch(c.Transform.SongplayMatch),
	}
}

// PipelineConfig assembles the pipeline configuration. Preflight checkers
// and observers are attached by the caller.
func (c *Config) PipelineConfig() (pipeline.Config, error) {
	policy, err := runner.ParseCommitPolicy(c.Warehouse.Commit)
	if err != nil {
		return pipeline.Config{}, &core.ConfigError{Field: "warehouse.commit", Value: c.Warehouse.Commit, Reason: err.Error()}
	}
	return pipeline.Config{
		Warehouse: c.WarehouseConnection(),
		Schema:    c.SchemaConfig(),
		Commit:    policy,
	}, nil
}
