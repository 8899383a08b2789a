package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full runtime configuration for a deepgraph process.
// Values are resolved from (lowest to highest precedence): built-in defaults,
// an optional yaml config file, and environment variables.
type Config struct {
	// Reasoning service.
	OpenAIAPIKey  string `mapstructure:"openai_api_key"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`

	PlannerModel  string `mapstructure:"planner_model"`
	WorkerModel   string `mapstructure:"worker_model"`
	ReporterModel string `mapstructure:"reporter_model"`
	ToolModel     string `mapstructure:"tool_model"`

	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`

	// Agent loop.
	MaxIterations int `mapstructure:"max_iterations"`

	// Workflow.
	RunTimeout time.Duration `mapstructure:"run_timeout"`

	// Tool capabilities.
	TavilyAPIKey string `mapstructure:"tavily_api_key"`

	NebulaHost     string `mapstructure:"nebula_host"`
	NebulaPort     int    `mapstructure:"nebula_port"`
	NebulaUser     string `mapstructure:"nebula_user"`
	NebulaPassword string `mapstructure:"nebula_password"`
	NebulaSpace    string `mapstructure:"nebula_space"`

	// Cache / ledger backing store.
	RedisAddr     string        `mapstructure:"redis_addr"`
	ToolCacheTTL  time.Duration `mapstructure:"tool_cache_ttl"`
	ToolCacheSize int           `mapstructure:"tool_cache_size"`

	// Planner knowledge base.
	KnowledgePath string `mapstructure:"knowledge_path"`

	// Dashboard server.
	ServerHost string `mapstructure:"server_host"`
	ServerPort int    `mapstructure:"server_port"`
}

// Load reads configuration from the optional config file and environment.
// path may be empty, in which case only defaults and environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("planner_model", "qwen-max-latest")
	v.SetDefault("worker_model", "qwen-max-latest")
	v.SetDefault("reporter_model", "qwen-max-latest")
	v.SetDefault("tool_model", "qwen-turbo")
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max_tokens", 4096)
	v.SetDefault("max_iterations", 5)
	v.SetDefault("run_timeout", 15*time.Minute)
	v.SetDefault("nebula_host", "127.0.0.1")
	v.SetDefault("nebula_port", 9669)
	v.SetDefault("nebula_user", "root")
	v.SetDefault("nebula_password", "nebula")
	v.SetDefault("nebula_space", "financial_reports")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("tool_cache_ttl", 48*time.Hour)
	v.SetDefault("tool_cache_size", 256)
	v.SetDefault("knowledge_path", "config/analysis_frame.json")
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 9000)

	v.SetEnvPrefix("deepgraph")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Accept the conventional unprefixed names for external credentials.
	for key, env := range map[string]string{
		"openai_api_key":  "OPENAI_API_KEY",
		"openai_base_url": "OPENAI_BASE_URL",
		"tavily_api_key":  "TAVILY_KEY",
		"redis_addr":      "REDIS_ADDR",
		"nebula_host":     "NEBULA_HOST",
		"nebula_port":     "NEBULA_PORT",
		"nebula_user":     "NEBULA_USER",
		"nebula_password": "NEBULA_PASSWORD",
		"nebula_space":    "NEBULA_SPACE",
	} {
		if err := v.BindEnv(key, "DEEPGRAPH_"+strings.ToUpper(key), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("deepgraph")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.deepgraph")
		if err := v.ReadInConfig(); err != nil {
			// A missing default config file is fine; defaults and env apply.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 5
	}
	if cfg.ToolCacheTTL <= 0 {
		cfg.ToolCacheTTL = 48 * time.Hour
	}

	return &cfg, nil
}
