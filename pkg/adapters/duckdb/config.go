package duckdb

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/playdwh/pkg/adapters/duckdb/dialect"
)

// Params holds DuckDB-specific configuration.
// Parsed from core.WarehouseConfig.Params using mapstructure.
type Params struct {
	// Extensions to install and load (e.g., "httpfs" to read s3:// sources, "json")
	Extensions []string `mapstructure:"extensions"`

	// Secrets for cloud storage authentication
	Secrets []SecretConfig `mapstructure:"secrets"`

	// Settings to apply at session level (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// SecretConfig defines a DuckDB secret for cloud storage.
type SecretConfig struct {
	// Type: "s3", "gcs", "r2"
	Type string `mapstructure:"type"`

	// Provider: "config", "credential_chain"
	Provider string `mapstructure:"provider"`

	Region string `mapstructure:"region,omitempty"`

	// Scope limits the secret to specific paths (string or []string)
	Scope any `mapstructure:"scope,omitempty"`

	// KeyID and Secret are explicit credentials (prefer credential_chain)
	KeyID  string `mapstructure:"key_id,omitempty"`
	Secret string `mapstructure:"secret,omitempty"`

	// Endpoint for S3-compatible services (MinIO, etc.)
	Endpoint string `mapstructure:"endpoint,omitempty"`

	// URLStyle: "vhost" or "path" for S3
	URLStyle string `mapstructure:"url_style,omitempty"`

	UseSSL *bool `mapstructure:"use_ssl,omitempty"`
}

func parseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	return p, nil
}

// setupStatements renders the statements that prepare a fresh session:
// extensions first, then settings (sorted by name), then secrets.
func (p *Params) setupStatements() ([]string, error) {
	var stmts []string
	for _, ext := range p.Extensions {
		if !isIdentifier(ext) {
			return nil, fmt.Errorf("invalid extension name %q", ext)
		}
		stmts = append(stmts, "INSTALL "+ext, "LOAD "+ext)
	}

	keys := make([]string, 0, len(p.Settings))
	for k := range p.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !isIdentifier(k) {
			return nil, fmt.Errorf("invalid setting name %q", k)
		}
		stmts = append(stmts, fmt.Sprintf("SET %s = %s", k, dialect.DuckDB.QuoteLiteral(p.Settings[k])))
	}

	for i, s := range p.Secrets {
		stmt, err := s.createStatement(fmt.Sprintf("playdwh_secret_%d", i))
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func (s SecretConfig) createStatement(name string) (string, error) {
	if !isIdentifier(s.Type) {
		return "", fmt.Errorf("secret %s: invalid type %q", name, s.Type)
	}
	lit := dialect.DuckDB.QuoteLiteral
	opts := []string{"TYPE " + s.Type}
	if s.Provider != "" {
		if !isIdentifier(s.Provider) {
			return "", fmt.Errorf("secret %s: invalid provider %q", name, s.Provider)
		}
		opts = append(opts, "PROVIDER "+s.Provider)
	}
	add := func(key, value string) {
		if value != "" {
			opts = append(opts, key+" "+lit(value))
		}
	}
	add("KEY_ID", s.KeyID)
	add("SECRET", s.Secret)
	add("REGION", s.Region)
	add("ENDPOINT", s.Endpoint)
	add("URL_STYLE", s.URLStyle)
	if s.UseSSL != nil {
		opts = append(opts, fmt.Sprintf("USE_SSL %t", *s.UseSSL))
	}
	switch scope := s.Scope.(type) {
	case nil:
	case string:
		add("SCOPE", scope)
	case []any:
		for _, v := range scope {
			add("SCOPE", fmt.Sprint(v))
		}
	case []string:
		for _, v := range scope {
			add("SCOPE", v)
		}
	default:
		return "", fmt.Errorf("secret %s: scope must be a string or list, got %T", name, s.Scope)
	}
	return fmt.Sprintf("CREATE OR REPLACE SECRET %s (%s)", name, strings.Join(opts, ", ")), nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
