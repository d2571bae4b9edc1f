// Package config loads process configuration from defaults, an optional
// .env file and SYLLABUS_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Backends accepted by Config.Backend.
const (
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Config is the typed view of the loaded settings.
type Config struct {
	Addr      string
	Debug     bool
	LogLevel  string
	JWTSecret string

	Backend     string
	AWSRegion   string
	AWSEndpoint string
	AWSProfile  string
	TablePrefix string
	NumShards   int

	CacheSize int
}

func defaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("addr", ":8080")
	v.SetDefault("debug", false)
	v.SetDefault("logLevel", "info")
	v.SetDefault("jwtSecret", "")
	v.SetDefault("backend", BackendDynamoDB)
	v.SetDefault("awsRegion", "us-east-1")
	v.SetDefault("awsEndpoint", "")
	v.SetDefault("awsProfile", "")
	v.SetDefault("tablePrefix", "")
	v.SetDefault("numShards", 1)
	v.SetDefault("cacheSize", 1024)
}

// Load reads dotEnvPath when it exists, then the environment.
// An empty dotEnvPath means ".env".
func Load(dotEnvPath string) (*Config, error) {
	if dotEnvPath == "" {
		dotEnvPath = ".env"
	}
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: stat %s: %w", dotEnvPath, err)
	}

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix("SYLLABUS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	c := &Config{
		Addr:        v.GetString("addr"),
		Debug:       v.GetBool("debug"),
		LogLevel:    v.GetString("logLevel"),
		JWTSecret:   v.GetString("jwtSecret"),
		Backend:     strings.ToLower(v.GetString("backend")),
		AWSRegion:   v.GetString("awsRegion"),
		AWSEndpoint: v.GetString("awsEndpoint"),
		AWSProfile:  v.GetString("awsProfile"),
		TablePrefix: v.GetString("tablePrefix"),
		NumShards:   v.GetInt("numShards"),
		CacheSize:   v.GetInt("cacheSize"),
	}
	return c, c.Validate()
}

// Validate rejects settings the process cannot start with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendDynamoDB, BackendMemory:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("config: cache size must be positive, got %d", c.CacheSize)
	}
	return nil
}

// ValidateServer adds the checks only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: SYLLABUS_JWTSECRET is required")
	}
	return nil
}
