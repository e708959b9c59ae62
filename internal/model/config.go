package model

import "time"

// Config is the full arbiter configuration, assembled by the CLI layer and
// passed read-only into the components that need it.
type Config struct {
	Service     ServiceConfig     `yaml:"service" mapstructure:"service"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Judge       JudgeConfig       `yaml:"judge" mapstructure:"judge"`
	Verify      VerifyConfig      `yaml:"verify" mapstructure:"verify"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// ServiceConfig configures the LLM and search endpoints plus the shared
// retry budget and throttles.
type ServiceConfig struct {
	LLMModel      string        `yaml:"llm_model" mapstructure:"llm_model"`
	LLMAPIKey     string        `yaml:"llm_api_key,omitempty" mapstructure:"llm_api_key"`
	LLMBaseURL    string        `yaml:"llm_base_url,omitempty" mapstructure:"llm_base_url"` // e.g. OpenRouter
	SearchAPIKey  string        `yaml:"search_api_key,omitempty" mapstructure:"search_api_key"`
	SearchBaseURL string        `yaml:"search_base_url,omitempty" mapstructure:"search_base_url"`
	MaxRetries    int           `yaml:"max_retries" mapstructure:"max_retries"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"` // Per-call deadline

	// Concurrency ceilings per capability. Callers over the ceiling block.
	LLMConcurrency    int `yaml:"llm_concurrency" mapstructure:"llm_concurrency"`
	SearchConcurrency int `yaml:"search_concurrency" mapstructure:"search_concurrency"`

	// Requests per second per capability, with burst.
	LLMRate    float64 `yaml:"llm_rate" mapstructure:"llm_rate"`
	SearchRate float64 `yaml:"search_rate" mapstructure:"search_rate"`
	Burst      int     `yaml:"burst" mapstructure:"burst"`

	// Proxy settings for outbound HTTP. Empty falls back to environment.
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig configures the rubric cache store.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
}

// JudgeConfig configures point-wise scoring.
type JudgeConfig struct {
	ScoreMin    float64 `yaml:"score_min" mapstructure:"score_min"`
	ScoreMax    float64 `yaml:"score_max" mapstructure:"score_max"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
}

// VerifyConfig configures claim verification.
type VerifyConfig struct {
	MaxRounds             int           `yaml:"max_rounds" mapstructure:"max_rounds"` // Search refinement rounds per claim
	FanOut                int           `yaml:"fan_out" mapstructure:"fan_out"`       // Concurrent claims per report
	UnverifiableThreshold int           `yaml:"unverifiable_threshold" mapstructure:"unverifiable_threshold"`
	FetchPages            bool          `yaml:"fetch_pages" mapstructure:"fetch_pages"` // Scrape top result for page text
	FetchTimeout          time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`
	UserAgent             string        `yaml:"user_agent" mapstructure:"user_agent"`
}

// ConcurrencyConfig bounds the outer worker pool.
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig controls where records land and how chatty the CLI is.
type OutputConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			LLMModel:          "gpt-4o-mini",
			MaxRetries:        4,
			Timeout:           90 * time.Second,
			LLMConcurrency:    8,
			SearchConcurrency: 4,
			LLMRate:           4,
			SearchRate:        2,
			Burst:             4,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "", // Defaults to ~/.arbiter/cache at startup
			MemoryTTL: 30 * time.Minute,
		},
		Judge: JudgeConfig{
			ScoreMin:    0,
			ScoreMax:    10,
			MaxTokens:   4096,
			Temperature: 0.1,
		},
		Verify: VerifyConfig{
			MaxRounds:             3,
			FanOut:                8,
			UnverifiableThreshold: 3,
			FetchPages:            false,
			FetchTimeout:          15 * time.Second,
			UserAgent:             "Arbiter/0.1 (+https://github.com/arbiterhq/arbiter)",
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Output: OutputConfig{
			Dir: "./arbiter-results",
		},
	}
}
