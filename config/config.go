package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendWhisper  = "whisper"
	BackendDeepgram = "deepgram"

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	PolicyAllOrNothing = "all_or_nothing"
	PolicyPartial      = "partial"

	// GeminiBaseURL is Gemini's OpenAI-compatible endpoint.
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

type Config struct {
	Server        Server        `mapstructure:"server"`
	Log           Log           `mapstructure:"log"`
	Artifact      Artifact      `mapstructure:"artifact"`
	Transcription Transcription `mapstructure:"transcription"`
	Generation    Generation    `mapstructure:"generation"`
	Pipeline      Pipeline      `mapstructure:"pipeline"`
}

type Server struct {
	Port         int    `mapstructure:"port"`
	BodyLimitMB  int    `mapstructure:"body_limit_mb"`
	AllowOrigins string `mapstructure:"allow_origins"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Artifact struct {
	Dir string `mapstructure:"dir"`
}

type Transcription struct {
	Backend  string        `mapstructure:"backend"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Model    string        `mapstructure:"model"`
	Language string        `mapstructure:"language"`
	Endpoint string        `mapstructure:"endpoint"` // deepgram listen URL
	Timeout  time.Duration `mapstructure:"timeout"`
	Workers  int           `mapstructure:"workers"`
}

type Generation struct {
	Provider        string        `mapstructure:"provider"`
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Workers         int           `mapstructure:"workers"`
	VerifyOnStartup bool          `mapstructure:"verify_on_startup"`
}

type Pipeline struct {
	AnalysisPolicy string `mapstructure:"analysis_policy"`
}

// Load reads configuration from an optional YAML file, a .env file in the
// working directory and the process environment, in increasing precedence.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("[config] no .env file found, falling back to environment variables")
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.body_limit_mb", 100)
	v.SetDefault("server.allow_origins", "*")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("artifact.dir", "temp")

	v.SetDefault("transcription.backend", BackendWhisper)
	v.SetDefault("transcription.api_key", "")
	v.SetDefault("transcription.base_url", "")
	v.SetDefault("transcription.model", "")
	v.SetDefault("transcription.language", "")
	v.SetDefault("transcription.endpoint", "")
	v.SetDefault("transcription.timeout", 10*time.Minute)
	v.SetDefault("transcription.workers", 2)

	v.SetDefault("generation.provider", ProviderGemini)
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.base_url", "")
	v.SetDefault("generation.model", "")
	v.SetDefault("generation.timeout", 2*time.Minute)
	v.SetDefault("generation.workers", 4)
	v.SetDefault("generation.verify_on_startup", true)

	v.SetDefault("pipeline.analysis_policy", PolicyAllOrNothing)
}

// bindLegacyEnv keeps the variable names the service has always read working
// next to the structured SECTION_KEY names.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"generation.api_key":    {"GENERATION_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY"},
		"transcription.api_key": {"TRANSCRIPTION_API_KEY"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("binding env for %s: %w", key, err)
		}
	}
	return nil
}

// ApplyDefaults fills backend-dependent values that cannot be expressed as
// static viper defaults.
func (c *Config) ApplyDefaults() {
	c.Transcription.Backend = strings.ToLower(strings.TrimSpace(c.Transcription.Backend))
	c.Generation.Provider = strings.ToLower(strings.TrimSpace(c.Generation.Provider))

	if c.Transcription.APIKey == "" {
		switch c.Transcription.Backend {
		case BackendWhisper:
			c.Transcription.APIKey = os.Getenv("OPENAI_API_KEY")
		case BackendDeepgram:
			c.Transcription.APIKey = os.Getenv("DEEPGRAM_API_KEY")
		}
	}
	if c.Transcription.Model == "" {
		switch c.Transcription.Backend {
		case BackendWhisper:
			c.Transcription.Model = "whisper-1"
		case BackendDeepgram:
			c.Transcription.Model = "nova-2"
		}
	}

	switch c.Generation.Provider {
	case ProviderGemini:
		if c.Generation.BaseURL == "" {
			c.Generation.BaseURL = GeminiBaseURL
		}
		if c.Generation.Model == "" {
			c.Generation.Model = "gemini-1.5-flash"
		}
	case ProviderOpenAI:
		if c.Generation.Model == "" {
			c.Generation.Model = "gpt-4o-mini"
		}
	}

	c.Pipeline.AnalysisPolicy = strings.ToLower(strings.TrimSpace(c.Pipeline.AnalysisPolicy))
}

// Validate rejects values the service cannot start with. A missing
// generation API key is not an error here: it is surfaced per request.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive (got: %d)", c.Server.Port)
	}
	if c.Artifact.Dir == "" {
		return fmt.Errorf("artifact.dir is required")
	}
	switch c.Transcription.Backend {
	case BackendWhisper, BackendDeepgram:
	default:
		return fmt.Errorf("transcription.backend must be one of [whisper, deepgram] (got: %s)", c.Transcription.Backend)
	}
	switch c.Generation.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("generation.provider must be one of [gemini, openai] (got: %s)", c.Generation.Provider)
	}
	switch c.Pipeline.AnalysisPolicy {
	case PolicyAllOrNothing, PolicyPartial:
	default:
		return fmt.Errorf("pipeline.analysis_policy must be one of [all_or_nothing, partial] (got: %s)", c.Pipeline.AnalysisPolicy)
	}
	if c.Transcription.Workers <= 0 {
		return fmt.Errorf("transcription.workers must be positive (got: %d)", c.Transcription.Workers)
	}
	if c.Generation.Workers <= 0 {
		return fmt.Errorf("generation.workers must be positive (got: %d)", c.Generation.Workers)
	}
	if c.Transcription.Timeout <= 0 || c.Generation.Timeout <= 0 {
		return fmt.Errorf("transcription.timeout and generation.timeout must be positive")
	}
	return nil
}
