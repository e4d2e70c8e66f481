package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	BaardDir        string   `mapstructure:"BAARD_DIR"`
	Env             string   `mapstructure:"ENV"`
	SourcesFile     string   `mapstructure:"SOURCES_FILE"`
	OutputDir       string   `mapstructure:"OUTPUT_DIR"`
	SheetName       string   `mapstructure:"SHEET_NAME"`
	LoadConcurrency int      `mapstructure:"LOAD_CONCURRENCY"`
	DatabaseURL     string   `mapstructure:"DATABASE_URL"`
	DBSchema        string   `mapstructure:"DB_SCHEMA"`
	DBMaxConns      int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32    `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir   string   `mapstructure:"MIGRATIONS_DIR"`
	Port            string   `mapstructure:"PORT"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
	AuthSigningKey  string   `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer      string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience    string   `mapstructure:"AUTH_AUDIENCE"`
}

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"baard-dir":  "BAARD_DIR",
	"sources":    "SOURCES_FILE",
	"output-dir": "OUTPUT_DIR",
	"sheet-name": "SHEET_NAME",
}

// Load reads .env and the environment. Flags present in flags and listed in
// flagKeys take precedence when set. BAARD_DIR is required.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("OUTPUT_DIR", ".")
	v.SetDefault("SHEET_NAME", "baard_master_sheet")
	v.SetDefault("LOAD_CONCURRENCY", 4)
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("PORT", "8000")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"BAARD_DIR", "ENV", "SOURCES_FILE", "OUTPUT_DIR", "SHEET_NAME", "LOAD_CONCURRENCY",
		"DATABASE_URL", "DB_SCHEMA", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
		"PORT", "CORS_ORIGINS", "AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE",
	} {
		v.BindEnv(key)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if cfg.BaardDir == "" {
		return nil, fmt.Errorf("BAARD_DIR is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// HasDatabase reports whether a PostgreSQL sink is configured.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.BaardDir == "" {
		return fmt.Errorf("BAARD_DIR is required")
	}
	if c.LoadConcurrency < 1 {
		return fmt.Errorf("LOAD_CONCURRENCY must be at least 1, got %d", c.LoadConcurrency)
	}
	if c.SheetName == "" {
		return fmt.Errorf("SHEET_NAME must not be empty")
	}
	if c.DBMinConns < 0 || c.DBMaxConns < 1 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid pool size: DB_MIN_CONNS=%d DB_MAX_CONNS=%d", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}

// ValidateServer adds the checks for serving the API. Outside development
// every request must carry a token signed with AUTH_SIGNING_KEY.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters, got %d", len(c.AuthSigningKey))
	}
	return nil
}
