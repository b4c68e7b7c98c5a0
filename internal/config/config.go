package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/ipregistry/internal/domain"
)

// Config holds the ipregistry API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Auth       AuthConfig       `yaml:"auth"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Ledger drivers.
const (
	LedgerEthereum = "ethereum"
	LedgerStore    = "store"
)

// LedgerConfig selects and configures the record ledger.
type LedgerConfig struct {
	Driver          string `yaml:"driver"` // ethereum, store (default: store)
	RPCURL          string `yaml:"rpc_url"`
	ContractAddress string `yaml:"contract_address"`
	ABIPath         string `yaml:"abi_path"`
	PrivateKey      string `yaml:"private_key"`
	ChainID         int64  `yaml:"chain_id"` // 0 = ask the node
	// WriteEnabled lets the API append registrations on-ledger. Requires private_key.
	WriteEnabled   bool          `yaml:"write_enabled"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"` // 0 = unlimited
	RateLimitBurst int           `yaml:"rate_limit_burst"`
	CallTimeoutSec int           `yaml:"call_timeout_sec"`
	MineTimeoutSec int           `yaml:"mine_timeout_sec"`
	Methods        MethodsConfig `yaml:"methods"`
}

// MethodsConfig overrides contract method names.
type MethodsConfig struct {
	Count           string `yaml:"count"`
	Details         string `yaml:"details"`
	Register        string `yaml:"register"`
	RegisteredEvent string `yaml:"registered_event"`
}

// SimilarityConfig holds duplicate gate settings.
type SimilarityConfig struct {
	Threshold   float64 `yaml:"threshold"`
	Parallelism int     `yaml:"parallelism"`
	// CacheDescriptions keeps ledger descriptions in the document store.
	CacheDescriptions bool `yaml:"cache_descriptions"`
	CacheTTLSec       int  `yaml:"cache_ttl_sec"` // 0 = no expiry
	ScanParallelism   int  `yaml:"scan_parallelism"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(fmt.Sprintf("load config %q: %v", env, err))
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = LedgerStore
	}
	if c.Ledger.CallTimeoutSec <= 0 {
		c.Ledger.CallTimeoutSec = 10
	}
	if c.Ledger.MineTimeoutSec <= 0 {
		c.Ledger.MineTimeoutSec = 120
	}
	if c.Ledger.RateLimitRPS > 0 && c.Ledger.RateLimitBurst <= 0 {
		c.Ledger.RateLimitBurst = 1
	}
	if c.Similarity.Threshold == 0 {
		c.Similarity.Threshold = domain.DefaultSimilarityThreshold
	}
	if c.Similarity.Parallelism <= 0 {
		c.Similarity.Parallelism = 1
	}
	if c.Similarity.ScanParallelism <= 0 {
		c.Similarity.ScanParallelism = 4
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = domain.DefaultKeyPrefix
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Database.Driver != "redis" {
		return fmt.Errorf("database.driver must be \"redis\", got %q", c.Database.Driver)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if !(c.Similarity.Threshold > 0 && c.Similarity.Threshold <= 1) {
		return fmt.Errorf("similarity.threshold must be in (0, 1], got %v", c.Similarity.Threshold)
	}
	if c.Similarity.CacheTTLSec < 0 {
		return fmt.Errorf("similarity.cache_ttl_sec must not be negative, got %d", c.Similarity.CacheTTLSec)
	}

	switch c.Ledger.Driver {
	case LedgerStore:
		if c.Similarity.CacheDescriptions {
			return fmt.Errorf("similarity.cache_descriptions requires ledger.driver %q", LedgerEthereum)
		}
	case LedgerEthereum:
		if c.Ledger.RPCURL == "" {
			return fmt.Errorf("ledger.rpc_url is required for the ethereum driver")
		}
		if c.Ledger.ContractAddress == "" {
			return fmt.Errorf("ledger.contract_address is required for the ethereum driver")
		}
		if c.Ledger.ABIPath == "" {
			return fmt.Errorf("ledger.abi_path is required for the ethereum driver")
		}
		if c.Ledger.WriteEnabled && c.Ledger.PrivateKey == "" {
			return fmt.Errorf("ledger.write_enabled requires ledger.private_key")
		}
		if c.Ledger.RateLimitRPS < 0 {
			return fmt.Errorf("ledger.rate_limit_rps must not be negative, got %v", c.Ledger.RateLimitRPS)
		}
	default:
		return fmt.Errorf("ledger.driver must be %q or %q, got %q", LedgerEthereum, LedgerStore, c.Ledger.Driver)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
