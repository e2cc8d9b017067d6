package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig               `mapstructure:"server"`
	Mailbox    MailboxConfig              `mapstructure:"mailbox"`
	Upstream   UpstreamConfig             `mapstructure:"upstream"`
	Providers  map[string]ProviderConfig  `mapstructure:"providers"`
	RateLimits map[string]RateLimitConfig `mapstructure:"rate_limits"`
	RateLimit  RateLimiterConfig          `mapstructure:"rate_limit"`
	Redis      RedisConfig                `mapstructure:"redis"`
	Tracing    TracingConfig              `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
	// per-client token bucket in front of the /api group, 0 disables it
	IngressRPS   float64 `mapstructure:"ingress_rps"`
	IngressBurst int     `mapstructure:"ingress_burst"`
}

type MailboxConfig struct {
	Dir            string        `mapstructure:"dir"`
	Watch          bool          `mapstructure:"watch"`
	SettleDelay    time.Duration `mapstructure:"settle_delay"`
	RecoverOnStart bool          `mapstructure:"recover_on_start"`
}

type UpstreamConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ProviderConfig represents the configuration for a single upstream provider.
type ProviderConfig struct {
	ID           string            `mapstructure:"-"`
	APIKey       string            `mapstructure:"api_key"`
	BaseURL      string            `mapstructure:"base_url" validate:"omitempty,url"`
	DefaultModel string            `mapstructure:"default_model"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	Enabled      bool              `mapstructure:"enabled"`
	Config       map[string]string `mapstructure:"config"`
}

// RateLimitConfig is the sliding window of one provider. Requests <= 0 means unlimited.
type RateLimitConfig struct {
	Requests int   `mapstructure:"requests"`
	WindowMS int64 `mapstructure:"window_ms"`
}

func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowMS) * time.Millisecond
}

type RateLimiterConfig struct {
	Backend string `mapstructure:"backend"` // memory, redis
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	// fraction of root traces kept, 1 keeps everything
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

var defaultProviders = map[string]ProviderConfig{
	"claude": {BaseURL: "https://api.anthropic.com/v1", DefaultModel: "claude-3-sonnet-20240229", Enabled: true},
	"openai": {BaseURL: "https://api.openai.com/v1", DefaultModel: "gpt-3.5-turbo", Enabled: true},
	"ollama": {BaseURL: "http://localhost:11434", DefaultModel: "codellama", Enabled: true},
	"gemini": {BaseURL: "https://generativelanguage.googleapis.com/v1beta", DefaultModel: "gemini-1.5-flash", Enabled: false},
	"custom": {DefaultModel: "default", Enabled: false},
}

var defaultRateLimits = map[string]RateLimitConfig{
	"claude": {Requests: 100, WindowMS: 60000},
	"openai": {Requests: 60, WindowMS: 60000},
	"ollama": {Requests: 1000, WindowMS: 60000},
}

// legacy variable names of the bridge deployment, still honored
var envAliases = map[string][]string{
	"server.port":               {"SERVER_PORT", "PORT"},
	"mailbox.dir":               {"MAILBOX_DIR", "ARMA_PROFILE_PATH"},
	"providers.claude.api_key":  {"PROVIDERS_CLAUDE_API_KEY", "CLAUDE_API_KEY"},
	"providers.openai.api_key":  {"PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY"},
	"providers.gemini.api_key":  {"PROVIDERS_GEMINI_API_KEY", "GEMINI_API_KEY"},
	"providers.custom.api_key":  {"PROVIDERS_CUSTOM_API_KEY", "CUSTOM_API_KEY"},
	"providers.custom.base_url": {"PROVIDERS_CUSTOM_BASE_URL", "CUSTOM_ENDPOINT"},
}

// LoadConfig reads configuration from file or environment variables.
// An explicit path (or CONFIG_FILE) takes precedence over the search path.
func LoadConfig(path string) (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	// Environment Variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// the search path is optional, an explicit file is not
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Resolve API Keys
	for id, p := range cfg.Providers {
		p.ID = id
		if strings.HasPrefix(p.APIKey, "ENV:") {
			envVar := strings.TrimPrefix(p.APIKey, "ENV:")
			// Check process environment first (explicit override)
			val := os.Getenv(envVar)
			if val == "" {
				val = v.GetString(envVar)
			}
			p.APIKey = val
		}
		cfg.Providers[id] = p
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3001")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.ingress_rps", 50.0)
	v.SetDefault("server.ingress_burst", 100)

	v.SetDefault("mailbox.dir", "./data")
	v.SetDefault("mailbox.watch", true)
	v.SetDefault("mailbox.settle_delay", 100*time.Millisecond)
	v.SetDefault("mailbox.recover_on_start", true)

	v.SetDefault("upstream.timeout", 60*time.Second)

	// defaults must be per-key so env overrides of nested keys reach Unmarshal
	for id, p := range defaultProviders {
		prefix := "providers." + id + "."
		v.SetDefault(prefix+"api_key", "")
		v.SetDefault(prefix+"base_url", p.BaseURL)
		v.SetDefault(prefix+"default_model", p.DefaultModel)
		v.SetDefault(prefix+"timeout", time.Duration(0))
		v.SetDefault(prefix+"enabled", p.Enabled)
	}
	// every provider gets a window key, zero meaning unlimited, so RATE_LIMITS_<ID>_* is seen
	for id := range defaultProviders {
		l := defaultRateLimits[id]
		v.SetDefault("rate_limits."+id+".requests", l.Requests)
		v.SetDefault("rate_limits."+id+".window_ms", l.WindowMS)
	}

	v.SetDefault("rate_limit.backend", "memory")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "model-bridge:ratelimit")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "model-bridge")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// EnabledProviders returns the enabled provider configs ordered by id.
func (c *Config) EnabledProviders() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(c.Providers))
	for _, p := range c.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
