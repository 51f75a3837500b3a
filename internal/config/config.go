package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Addr           string        `env:"ADDR"            envDefault:"127.0.0.1:5005"`
	DBPath         string        `env:"DB_PATH"`
	RunRetention   time.Duration `env:"RUN_RETENTION"   envDefault:"168h"`
	RetentionSpec  string        `env:"RETENTION_SPEC"  envDefault:"0 * * * *"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5m"`

	LLMProvider   string `env:"LLM_PROVIDER"    envDefault:"openai"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL"    envDefault:"gpt-3.5-turbo"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	GeminiAPIKey  string `env:"GEMINI_API_KEY"`
	GeminiModel   string `env:"GEMINI_MODEL"    envDefault:"gemini-2.0-flash"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL"`

	ChunkSize    int `env:"CHUNK_SIZE"    envDefault:"500"`
	ResponseSize int `env:"RESPONSE_SIZE" envDefault:"1500"`
	MaxInFlight  int `env:"MAX_IN_FLIGHT" envDefault:"8"`

	BrowserEnabled bool          `env:"BROWSER_ENABLED"  envDefault:"true"`
	BrowserBin     string        `env:"BROWSER_BIN"`
	FetchTimeout   time.Duration `env:"FETCH_TIMEOUT"    envDefault:"30s"`
	FetchCacheSize int           `env:"FETCH_CACHE_SIZE" envDefault:"64"`
	FetchCacheTTL  time.Duration `env:"FETCH_CACHE_TTL"  envDefault:"10m"`

	PromptsFile string `env:"PROMPTS_FILE"`
}

// Prompts holds optional template overrides read from PROMPTS_FILE.
type Prompts struct {
	Requirements string `yaml:"requirements"`
	TestCases    string `yaml:"test_cases"`
}

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env file: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))

	return cfg, nil
}

// Validate checks settings needed by the pipeline. requireKey is false for
// commands that never call the model.
func (c Config) Validate(requireKey bool) error {
	var errs []error

	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if c.ResponseSize <= 0 || c.ResponseSize > math.MaxInt32 {
		errs = append(errs, fmt.Errorf("RESPONSE_SIZE must be between 1 and %d, got %d", math.MaxInt32, c.ResponseSize))
	}
	if c.MaxInFlight <= 0 {
		errs = append(errs, fmt.Errorf("MAX_IN_FLIGHT must be positive, got %d", c.MaxInFlight))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout))
	}

	switch c.LLMProvider {
	case ProviderOpenAI:
		if requireKey && strings.TrimSpace(c.OpenAIAPIKey) == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case ProviderGemini:
		if requireKey && strings.TrimSpace(c.GeminiAPIKey) == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q",
			ProviderOpenAI, ProviderGemini, c.LLMProvider))
	}

	return errors.Join(errs...)
}

// LoadPrompts reads PROMPTS_FILE. An unset path yields empty overrides.
func (c Config) LoadPrompts() (Prompts, error) {
	path := strings.TrimSpace(c.PromptsFile)
	if path == "" {
		return Prompts{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("read prompts file: %w", err)
	}

	var p Prompts
	if err = yaml.Unmarshal(data, &p); err != nil {
		return Prompts{}, fmt.Errorf("parse prompts file (path = %s): %w", path, err)
	}

	return p, nil
}
