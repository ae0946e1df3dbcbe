package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/playdwh/internal/schema"
	"github.com/leapstack-labs/playdwh/internal/secrets"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment overrides. Sections are separated by a
// double underscore: PLAYDWH_CLUSTER__DB_PASSWORD sets cluster.db_password.
const EnvPrefix = "PLAYDWH_"

// configFiles are looked up in the working directory, in order.
var configFiles = []string{"playdwh.yaml", "playdwh.yml", "dwh.yaml", "dwh.yml"}

// flagKeys maps command-line flags to configuration keys. Flags not listed
// here are command options and never reach the configuration.
var flagKeys = map[string]string{
	"verbose":    "verbose",
	"log-format": "log_format",
	"output":     "output",
	"warehouse":  "cluster.type",
	"commit":     "warehouse.commit",
	"preflight":  "warehouse.preflight",
	"history":    "history.path",
}

// findConfigFile returns the explicit path, or the first config file present
// in the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range configFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"cluster.type":             DefaultWarehouse,
		"s3.log_jsonpath":          schema.AutoFormat,
		"transform.songplay_match": string(schema.MatchTitleOrArtist),
		"warehouse.commit":         DefaultCommit,
		"log_format":               DefaultLogFormat,
		"output":                   DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Environment: PLAYDWH_S3__LOG_DATA -> s3.log_data
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, only those explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used

	applyDefaults(&cfg)
	expandSecretEnvVars(&cfg)
	if used != "" {
		resolveRelativePaths(&cfg, filepath.Dir(used))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(c *Config) {
	c.Cluster.Type = strings.ToLower(c.Cluster.Type)
	if c.Cluster.Type == "redshift" && c.Cluster.Port == 0 {
		c.Cluster.Port = DefaultRedshiftPort
	}
}

// resolveRelativePaths anchors local files named in the config file to the
// file's directory. s3:// locations and absolute paths are left alone.
func resolveRelativePaths(c *Config, baseDir string) {
	resolve := func(p *string) {
		if *p == "" || *p == ":memory:" || *p == schema.AutoFormat || strings.Contains(*p, "://") ||
			secrets.IsReference(*p) || filepath.IsAbs(*p) {
			return
		}
		*p = filepath.Join(baseDir, *p)
	}
	if c.Cluster.Type != "redshift" {
		resolve(&c.Cluster.Path)
		resolve(&c.S3.LogData)
		resolve(&c.S3.LogJSONPath)
		resolve(&c.S3.SongData)
	}
	resolve(&c.History.Path)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unset variables are left as written.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

// expandSecretEnvVars expands ${VAR} in the fields that usually carry
// credentials or per-environment endpoints.
func expandSecretEnvVars(c *Config) {
	for _, p := range c.secretFields() {
		*p = expandEnvVars(*p)
	}
}

func (c *Config) secretFields() []*string {
	return []*string{&c.Cluster.Host, &c.Cluster.DBName, &c.Cluster.User, &c.Cluster.Password, &c.IAMRole.ARN}
}

// HasSecretReferences reports whether any credential field names an SSM parameter.
func (c *Config) HasSecretReferences() bool {
	for _, p := range c.secretFields() {
		if secrets.IsReference(*p) {
			return true
		}
	}
	return false
}

// ResolveSecrets replaces ssm: references in credential fields with their
// parameter values.
func (c *Config) ResolveSecrets(ctx context.Context, r *secrets.Resolver) error {
	if err := r.ResolveAll(ctx, c.secretFields()...); err != nil {
		return fmt.Errorf("failed to resolve secrets: %w", err)
	}
	return nil
}

// configKey is used to store config in context.
type configKey struct{}

// loggerKey is used to store logger in context.
type loggerKey struct{}

// NewContext returns ctx carrying cfg and logger.
func NewContext(ctx context.Context, cfg *Config, logger *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, configKey{}, cfg)
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetConfig retrieves the config from the command context. A context without
// one yields the defaults.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	cfg, err := Load("", nil)
	if err != nil {
		return &Config{Cluster: ClusterConfig{Type: DefaultWarehouse, Port: DefaultRedshiftPort}, OutputFormat: DefaultOutput}
	}
	return cfg
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}
