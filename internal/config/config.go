package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/ilyakaznacheev/cleanenv"

	bgmodel "github.com/zhouzirui/adventure-chat/backend/internal/model/background"
	"github.com/zhouzirui/adventure-chat/backend/internal/storage"
)

// Config aggregates every setting of the service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Chat       ChatConfig       `yaml:"chat"`
	Background BackgroundConfig `yaml:"background"`
	Game       GameConfig       `yaml:"game"`
	AI         AIConfig         `yaml:"ai"`
	Log        LogConfig        `yaml:"log"`
}

// Load reads the optional YAML file at path, then the environment.
// Environment variables win over the file.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := cfg.AI.loadSampling(); err != nil {
		return nil, err
	}

	if _, err := cfg.Background.Catalog(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port            string        `yaml:"port" env:"PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	Addr            string        `yaml:"-"`
}

// normalizeAddr accepts "8080", ":8080" or "127.0.0.1:8080".
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// StorageConfig selects the snapshot driver.
type StorageConfig struct {
	Driver        string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"file"`
	Path          string `yaml:"path" env:"STORAGE_PATH" env-default:"data/snapshots"`
	QuotaBytes    int    `yaml:"quota_bytes" env:"STORAGE_QUOTA_BYTES" env-default:"5242880"`
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
	PostgresDSN   string `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
}

// Options converts the section into storage.Open options.
func (c StorageConfig) Options() storage.Options {
	return storage.Options{
		Driver:        storage.Driver(strings.ToLower(strings.TrimSpace(c.Driver))),
		Path:          c.Path,
		QuotaBytes:    c.QuotaBytes,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		PostgresDSN:   c.PostgresDSN,
	}
}

// ChatConfig describes chat persistence and the fallback document.
type ChatConfig struct {
	SnapshotKey      string        `yaml:"snapshot_key" env:"CHAT_SNAPSHOT_KEY" env-default:"savedChatHistoryApp"`
	FallbackDocument string        `yaml:"fallback_document" env:"FALLBACK_DOCUMENT"`
	EchoDelay        time.Duration `yaml:"echo_delay" env:"CHAT_ECHO_DELAY" env-default:"500ms"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout" env:"CHAT_FETCH_TIMEOUT" env-default:"10s"`
}

// BackgroundConfig describes the background catalog. Lists are separated by
// ";" because gradients contain commas. Empty paths select the built-in
// catalog.
type BackgroundConfig struct {
	Paths        []string      `yaml:"paths" env:"BACKGROUND_PATHS" env-separator:";"`
	Gradients    []string      `yaml:"gradients" env:"BACKGROUND_GRADIENTS" env-separator:";"`
	Labels       []string      `yaml:"labels" env:"BACKGROUND_LABELS" env-separator:";"`
	AssetBaseURL string        `yaml:"asset_base_url" env:"ASSET_BASE_URL"`
	AssetDir     string        `yaml:"asset_dir" env:"ASSET_DIR"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" env:"ASSET_PROBE_TIMEOUT" env-default:"5s"`
}

// Catalog builds the configured background catalog.
func (c BackgroundConfig) Catalog() (*bgmodel.Catalog, error) {
	if len(c.Paths) == 0 {
		return bgmodel.NewCatalog(bgmodel.Seed())
	}
	catalog, err := bgmodel.FromLists(c.Paths, c.Gradients, c.Labels)
	if err != nil {
		return nil, fmt.Errorf("invalid background configuration: %w", err)
	}
	return catalog, nil
}

// GameConfig describes the game connectivity check. An empty URL checks the
// bundled response.json; "off" leaves every session disconnected.
type GameConfig struct {
	ProbeURL     string        `yaml:"probe_url" env:"GAME_PROBE_URL"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" env:"GAME_PROBE_TIMEOUT" env-default:"5s"`
}

// LogConfig describes log output.
type LogConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Pretty     bool   `yaml:"pretty" env:"LOG_PRETTY" env-default:"true"`
	File       string `yaml:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB" env-default:"50"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS" env-default:"3"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS" env-default:"28"`
}

// AIConfig describes the Ark model backing the narrator.
type AIConfig struct {
	APIKey       string `yaml:"-" env:"ARK_API_KEY"`
	AccessKey    string `yaml:"-" env:"ARK_ACCESS_KEY"`
	SecretKey    string `yaml:"-" env:"ARK_SECRET_KEY"`
	Model        string `yaml:"model" env:"ARK_MODEL,Model"`
	BaseURL      string `yaml:"base_url" env:"ARK_BASE_URL" env-default:"https://ark.cn-beijing.volces.com/api/v3"`
	Region       string `yaml:"region" env:"ARK_REGION" env-default:"cn-beijing"`
	Narrator     bool   `yaml:"narrator" env:"NARRATOR_ENABLED" env-default:"false"`
	SystemPrompt string `yaml:"system_prompt" env:"NARRATOR_SYSTEM_PROMPT"`
	HistoryLimit int    `yaml:"history_limit" env:"NARRATOR_HISTORY_LIMIT" env-default:"10"`

	Temperature *float64 `yaml:"-"`
	TopP        *float64 `yaml:"-"`
	MaxTokens   *int     `yaml:"-"`
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel creates a model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY and ARK_MODEL, or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// loadSampling reads the optional sampling knobs, which stay nil when unset
// so the model's own defaults apply.
func (c *AIConfig) loadSampling() error {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return err
	}

	c.Temperature = temperature
	c.TopP = topP
	c.MaxTokens = maxTokens
	return nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
