// Package config defines the typed configuration tree for the assistant
// runtime: server bind address, chat/embedding model providers, skill
// sandboxes, storage paths, memory recall tuning, auth, and the optional
// messaging-transport sections. Configuration round-trips through YAML on
// disk (see Parse/Serialize) and is mutated exclusively through the
// reload pipeline in internal/reload.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultHost            = "127.0.0.1"
	defaultPort            = 3000
	defaultDatabase        = "assistant.db"
	defaultSystemPrompt    = "You are a helpful, friendly AI assistant."
	defaultAutoRetrieve    = true
	defaultAutoRetrieveLim = 3
	defaultSimilarity      = 0.5
)

// Config is the full on-disk configuration tree.
type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	Models     ModelsConfig     `yaml:"models" json:"models"`
	Chat       ChatConfig       `yaml:"chat" json:"chat"`
	Skills     SkillsConfig     `yaml:"skills" json:"skills"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Memory     MemoryConfig     `yaml:"memory" json:"memory"`
	Auth       AuthConfig       `yaml:"auth" json:"auth"`
	Interfaces InterfacesConfig `yaml:"interfaces" json:"interfaces"`
	Tracing    TracingConfig    `yaml:"tracing,omitempty" json:"tracing,omitempty"`
}

// ServerConfig is the HTTP bind address.
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// ModelsConfig groups the chat and (optional) embedding provider chains.
type ModelsConfig struct {
	Chat      ModelSlot  `yaml:"chat" json:"chat"`
	Embedding *ModelSlot `yaml:"embedding,omitempty" json:"embedding,omitempty"`
}

// ModelSlot is an ordered list of provider entries tried in sequence
// (the provider chain).
type ModelSlot struct {
	Providers []ProviderEntry `yaml:"providers" json:"providers"`
}

// ProviderEntry configures one LLM or embedding backend.
type ProviderEntry struct {
	Type      string `yaml:"type" json:"type"`
	Model     string `yaml:"model" json:"model"`
	Endpoint  string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	APIKey    string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
}

// ResolveAPIKey returns the API key to use for this entry: a non-empty
// inline APIKey wins, otherwise the named environment variable is looked
// up, otherwise the empty string (valid for providers that don't require
// a key, e.g. lmstudio/ollama).
func (p ProviderEntry) ResolveAPIKey() (string, error) {
	if p.APIKey != "" {
		return p.APIKey, nil
	}
	if p.APIKeyEnv == "" {
		return "", nil
	}
	v, ok := os.LookupEnv(p.APIKeyEnv)
	if !ok {
		return "", fmt.Errorf("environment variable %q is not set (required by api_key_env)", p.APIKeyEnv)
	}
	return v, nil
}

// RequiresAPIKey reports whether this provider type must resolve a
// non-empty key.
func (p ProviderEntry) RequiresAPIKey() bool {
	switch strings.ToLower(p.Type) {
	case "lmstudio", "ollama", "local":
		return false
	default:
		return true
	}
}

// ChatConfig holds chat-wide prompt settings.
type ChatConfig struct {
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt"`
}

// StorageConfig holds the conversation database path.
type StorageConfig struct {
	Database string `yaml:"database" json:"database"`
}

// SkillsConfig gates which built-in skills are registered. A skill whose
// section is nil is not registered (except the memory skills, which
// register whenever an embedder and vector store exist).
type SkillsConfig struct {
	ReadFile  *ReadFileConfig  `yaml:"read_file,omitempty" json:"read_file,omitempty"`
	WriteFile *WriteFileConfig `yaml:"write_file,omitempty" json:"write_file,omitempty"`
	FetchURL  *FetchURLConfig  `yaml:"fetch_url,omitempty" json:"fetch_url,omitempty"`
}

// ReadFileConfig sandboxes the read_file skill.
type ReadFileConfig struct {
	AllowedDirectories []string        `yaml:"allowed_directories" json:"allowed_directories"`
	Approval           *ApprovalPolicy `yaml:"approval,omitempty" json:"approval,omitempty"`
}

// WriteFileConfig sandboxes the write_file skill.
type WriteFileConfig struct {
	AllowedDirectories []string        `yaml:"allowed_directories" json:"allowed_directories"`
	Approval           *ApprovalPolicy `yaml:"approval,omitempty" json:"approval,omitempty"`
}

// FetchURLConfig allowlists hosts for the fetch_url skill.
type FetchURLConfig struct {
	AllowedDomains []string        `yaml:"allowed_domains" json:"allowed_domains"`
	Approval       *ApprovalPolicy `yaml:"approval,omitempty" json:"approval,omitempty"`
}

// ApprovalPolicy mirrors chatmodel.ApprovalPolicy for config-file
// round-tripping (kept as a distinct string type here so the config
// package has no dependency on chatmodel).
type ApprovalPolicy string

const (
	ApprovalAlways ApprovalPolicy = "always"
	ApprovalOnce   ApprovalPolicy = "once"
	ApprovalTrust  ApprovalPolicy = "trust"
)

// MemoryConfig tunes automatic recall into the chat prompt.
type MemoryConfig struct {
	AutoRetrieve        bool    `yaml:"auto_retrieve" json:"auto_retrieve"`
	AutoRetrieveLimit   int     `yaml:"auto_retrieve_limit" json:"auto_retrieve_limit"`
	SimilarityThreshold float32 `yaml:"similarity_threshold" json:"similarity_threshold"`
}

// AuthConfig holds the shared-secret bearer token hash.
type AuthConfig struct {
	TokenHash string `yaml:"token_hash,omitempty" json:"token_hash,omitempty"`
}

// InterfacesConfig holds the (unimplemented-here) transport sections;
// they round-trip through config even though this module doesn't run
// the transports themselves.
type InterfacesConfig struct {
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp" json:"whatsapp"`
}

// TracingConfig controls OpenTelemetry span export. An empty Endpoint
// (the default) disables export: the runtime still builds a Tracer, but
// every span is a no-op.
type TracingConfig struct {
	Endpoint       string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	ServiceName    string  `yaml:"service_name,omitempty" json:"service_name,omitempty"`
	Environment    string  `yaml:"environment,omitempty" json:"environment,omitempty"`
	SamplingRate   float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty"`
	EnableInsecure bool    `yaml:"enable_insecure,omitempty" json:"enable_insecure,omitempty"`
}

// TelegramConfig names the bot-token environment variable for the
// Telegram transport front-end.
type TelegramConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	BotTokenEnv string `yaml:"bot_token_env" json:"bot_token_env"`
}

// WhatsAppConfig names the webhook credentials for the WhatsApp
// transport front-end.
type WhatsAppConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	APITokenEnv   string `yaml:"api_token_env" json:"api_token_env"`
	AppSecretEnv  string `yaml:"app_secret_env" json:"app_secret_env"`
	PhoneNumberID string `yaml:"phone_number_id,omitempty" json:"phone_number_id,omitempty"`
	VerifyToken   string `yaml:"verify_token,omitempty" json:"verify_token,omitempty"`
	WebhookPort   int    `yaml:"webhook_port" json:"webhook_port"`
}

// Default returns a Config with every default applied but no chat
// provider configured (callers must set Models.Chat.Providers).
func Default() Config {
	return Config{
		Server: ServerConfig{Host: defaultHost, Port: defaultPort},
		Chat:   ChatConfig{SystemPrompt: defaultSystemPrompt},
		Storage: StorageConfig{Database: defaultDatabase},
		Memory: MemoryConfig{
			AutoRetrieve:        defaultAutoRetrieve,
			AutoRetrieveLimit:   defaultAutoRetrieveLim,
			SimilarityThreshold: defaultSimilarity,
		},
		Interfaces: InterfacesConfig{
			Telegram: TelegramConfig{BotTokenEnv: "TELEGRAM_BOT_TOKEN"},
			WhatsApp: WhatsAppConfig{
				APITokenEnv:  "WHATSAPP_API_TOKEN",
				AppSecretEnv: "WHATSAPP_APP_SECRET",
				WebhookPort:  8444,
			},
		},
	}
}

// Parse decodes YAML bytes into a Config, applying defaults for any
// section left unset, then validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromFile reads and parses a config file from disk.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	return Parse(data)
}

// Serialize renders a Config back to YAML bytes.
func Serialize(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Validate checks the minimal invariants: at least one chat provider, and
// (if present) a bindable server port.
func Validate(cfg Config) error {
	if len(cfg.Models.Chat.Providers) == 0 {
		return fmt.Errorf("invalid config: models.chat.providers must not be empty")
	}
	for _, p := range cfg.Models.Chat.Providers {
		if p.Model == "" {
			return fmt.Errorf("invalid config: provider entry missing model")
		}
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port must be in 1..65535")
	}
	return nil
}

// BindAddress returns "host:port" for http.ListenAndServe.
func (c Config) BindAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsLoopback reports whether the server binds only to the local machine.
func (c Config) IsLoopback() bool {
	h := strings.ToLower(c.Server.Host)
	return h == "127.0.0.1" || h == "localhost" || h == "::1"
}
