package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	Server     Server     `mapstructure:"server" yaml:"server"`
	Log        Log        `mapstructure:"log" yaml:"log"`
	Thresholds Thresholds `mapstructure:"thresholds" yaml:"thresholds"`
	Session    Session    `mapstructure:"session" yaml:"session"`
	ERT        ERT        `mapstructure:"ert" yaml:"ert"`
	Narrative  Narrative  `mapstructure:"narrative" yaml:"narrative"`
	HTTP       HTTP       `mapstructure:"http" yaml:"http"`
	Storage    Storage    `mapstructure:"storage" yaml:"storage"`
}

type Server struct {
	Addr          string   `mapstructure:"addr" yaml:"addr"`
	UploadDir     string   `mapstructure:"upload_dir" yaml:"upload_dir"`
	MaxUploadMB   int      `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	PublicBaseURL string   `mapstructure:"public_base_url" yaml:"public_base_url"`
	CORSOrigins   []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

type Log struct {
	Mode string `mapstructure:"mode" yaml:"mode"`
}

// Thresholds holds the default classification cutoffs for new sessions.
type Thresholds struct {
	FavorableCostCeiling    float64 `mapstructure:"favorable_cost_ceiling" yaml:"favorable_cost_ceiling"`
	FavorableYieldFloor     float64 `mapstructure:"favorable_yield_floor" yaml:"favorable_yield_floor"`
	ProblematicYieldCeiling float64 `mapstructure:"problematic_yield_ceiling" yaml:"problematic_yield_ceiling"`
	ProblematicCostFloor    float64 `mapstructure:"problematic_cost_floor" yaml:"problematic_cost_floor"`
}

type Session struct {
	Backend    string `mapstructure:"backend" yaml:"backend"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	RedisAddr  string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisDB    int    `mapstructure:"redis_db" yaml:"redis_db"`
	TTLHours   int    `mapstructure:"ttl_hours" yaml:"ttl_hours"`
}

type ERT struct {
	InversionCommand string `mapstructure:"inversion_command" yaml:"inversion_command"`
	TimeoutSec       int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

type Narrative struct {
	Provider   string `mapstructure:"provider" yaml:"provider"`
	Model      string `mapstructure:"model" yaml:"model"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
	MaxTokens  int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// HTTP/Retry configuration for outbound narrative calls.
type HTTP struct {
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
}

type Storage struct {
	Backend        string `mapstructure:"backend" yaml:"backend"`
	Bucket         string `mapstructure:"bucket" yaml:"bucket"`
	MinioEndpoint  string `mapstructure:"minio_endpoint" yaml:"minio_endpoint"`
	MinioAccessKey string `mapstructure:"minio_access_key" yaml:"minio_access_key"`
	MinioSecretKey string `mapstructure:"minio_secret_key" yaml:"minio_secret_key"`
	MinioSecure    bool   `mapstructure:"minio_secure" yaml:"minio_secure"`
	PublicBaseURL  string `mapstructure:"public_base_url" yaml:"public_base_url"`
}

// DefaultPath returns ~/.bhea/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".bhea", "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.bhea/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from .env, env, config file, and defaults.
// Precedence: env > config file > defaults. A .env file in the working
// directory is loaded into the environment first when present.
func Load(cfgFile string) (*Global, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("BHEA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, ".bhea"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" && !asNotFound(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// ResolveAPIKey returns the configured key, or the conventional environment
// variable of the given provider when none is set. It is resolved at use time
// so a provider chosen on the command line finds its own key.
func (n Narrative) ResolveAPIKey(provider string) string {
	if n.APIKey != "" {
		return n.APIKey
	}
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gemini":
		return os.Getenv("AI_STUDIO_API_KEY")
	case "openrouter":
		return os.Getenv("OPENROUTER_API_KEY")
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.upload_dir", filepath.Join(os.TempDir(), "bhea-uploads"))
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("server.public_base_url", "")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("log.mode", "dev")

	v.SetDefault("thresholds.favorable_cost_ceiling", 1700.0)
	v.SetDefault("thresholds.favorable_yield_floor", 1.7)
	v.SetDefault("thresholds.problematic_yield_ceiling", 1.0)
	v.SetDefault("thresholds.problematic_cost_floor", 2500.0)

	v.SetDefault("session.backend", "sqlite")
	v.SetDefault("session.sqlite_path", filepath.Join(os.TempDir(), "bhea-sessions.db"))
	v.SetDefault("session.redis_addr", "127.0.0.1:6379")
	v.SetDefault("session.redis_db", 0)
	v.SetDefault("session.ttl_hours", 72)

	v.SetDefault("ert.inversion_command", "")
	v.SetDefault("ert.timeout_sec", 300)

	v.SetDefault("narrative.provider", "")
	v.SetDefault("narrative.model", "gemini-1.5-flash")
	v.SetDefault("narrative.api_key", "")
	v.SetDefault("narrative.base_url", "")
	v.SetDefault("narrative.ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("narrative.timeout_sec", 30)
	v.SetDefault("narrative.max_tokens", 1024)

	v.SetDefault("http.retry_max_attempts", 3)
	v.SetDefault("http.retry_base_delay_ms", 500)
	v.SetDefault("http.retry_max_delay_ms", 4000)

	v.SetDefault("storage.backend", "none")
	v.SetDefault("storage.bucket", "bhea-artifacts")
	v.SetDefault("storage.minio_endpoint", "")
	v.SetDefault("storage.minio_access_key", "")
	v.SetDefault("storage.minio_secret_key", "")
	v.SetDefault("storage.minio_secure", false)
	v.SetDefault("storage.public_base_url", "")
}

func asNotFound(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return os.IsNotExist(err)
}
