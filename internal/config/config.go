package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for biabot.
type Config struct {
	General GeneralConfig `json:"general"`
	Queue   QueueConfig   `json:"queue"`
	Backend BackendConfig `json:"backend"`
	OpenAI  OpenAIConfig  `json:"openai"`
	OCR     OCRConfig     `json:"ocr"`
	Twilio  TwilioConfig  `json:"twilio"`
	Meta    MetaConfig    `json:"meta"`
	Gateway GatewayConfig `json:"gateway"`
}

type GeneralConfig struct {
	LogLevel  string `json:"logLevel"`
	LogFormat string `json:"logFormat"` // text | json
	Workers   int    `json:"workers"`
	// Notifier selects the outbound WhatsApp sender: "twilio" | "meta".
	Notifier string `json:"notifier"`
}

type QueueConfig struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	DLQName  string `json:"dlqName"`
	Prefetch int    `json:"prefetch"`
	// MaxRetries and RetryDelaySeconds bound in-process retries of
	// dead-letter-class failures before an entry is rejected to the DLQ.
	MaxRetries        int `json:"maxRetries"`
	RetryDelaySeconds int `json:"retryDelaySeconds"`
}

type BackendConfig struct {
	BaseURL        string `json:"baseUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type OpenAIConfig struct {
	APIKey         string  `json:"apiKey"`
	APIBase        string  `json:"apiBase,omitempty"`
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"maxTokens"`
	TimeoutSeconds int     `json:"timeoutSeconds"`
	// CategoriesFile optionally overrides the built-in category catalog
	// with a YAML file.
	CategoriesFile string `json:"categoriesFile,omitempty"`
}

type OCRConfig struct {
	Enabled bool `json:"enabled"`
	// Model is the vision model used for receipt transcription; empty
	// means the interpretation model.
	Model          string `json:"model,omitempty"`
	Language       string `json:"language"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type TwilioConfig struct {
	AccountSID     string `json:"accountSid,omitempty"`
	AuthToken      string `json:"authToken,omitempty"`
	WhatsAppNumber string `json:"whatsappNumber,omitempty"`
}

type MetaConfig struct {
	AccessToken   string `json:"accessToken,omitempty"`
	PhoneNumberID string `json:"phoneNumberId,omitempty"`
	VerifyToken   string `json:"verifyToken,omitempty"`
	AppSecret     string `json:"appSecret,omitempty"`
	WebhookPath   string `json:"webhookPath,omitempty"`
}

type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DefaultConfigDir returns the default config directory (~/.biabot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".biabot"
	}
	return filepath.Join(home, ".biabot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Queue.URL == "" {
		errs = append(errs, "queue.url is required")
	}
	if cfg.Queue.Name == "" {
		errs = append(errs, "queue.name is required")
	}
	if cfg.Queue.DLQName == "" {
		errs = append(errs, "queue.dlqName is required")
	}
	if cfg.Queue.Prefetch < 1 {
		errs = append(errs, "queue.prefetch must be >= 1")
	}
	if cfg.Queue.MaxRetries < 0 {
		errs = append(errs, "queue.maxRetries must be >= 0")
	}
	if cfg.Queue.RetryDelaySeconds < 0 {
		errs = append(errs, "queue.retryDelaySeconds must be >= 0")
	}

	if cfg.General.Workers < 1 || cfg.General.Workers > 100 {
		errs = append(errs, "general.workers must be between 1 and 100")
	}
	switch cfg.General.Notifier {
	case "twilio", "meta":
		// valid
	default:
		errs = append(errs, "general.notifier must be one of: twilio, meta")
	}

	if cfg.Backend.BaseURL == "" {
		errs = append(errs, "backend.baseUrl is required")
	} else if !strings.HasPrefix(cfg.Backend.BaseURL, "http://") && !strings.HasPrefix(cfg.Backend.BaseURL, "https://") {
		errs = append(errs, "backend.baseUrl must be an http(s) URL")
	}
	if cfg.Backend.TimeoutSeconds < 1 {
		errs = append(errs, "backend.timeoutSeconds must be >= 1")
	}

	if cfg.OpenAI.Model == "" {
		errs = append(errs, "openai.model is required")
	}
	if cfg.OpenAI.TimeoutSeconds < 1 {
		errs = append(errs, "openai.timeoutSeconds must be >= 1")
	}

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		errs = append(errs, "gateway.port must be between 0 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
