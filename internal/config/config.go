package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/fx"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

const (
	BudgetMonthly = "monthly"
	BudgetDaily   = "daily"
	BudgetAllTime = "all-time"
)

// ErrMissingCredentials is returned when neither an API key nor an
// email/password pair is configured for the OpenAI backend.
var ErrMissingCredentials = errors.New(
	"missing OpenAI credentials: set OPENAI_API_KEY or OPENAI_EMAIL and OPENAI_PASSWORD",
)

// Config holds all configuration from environment variables.
type Config struct {
	Token string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`

	Email          string        `envconfig:"OPENAI_EMAIL"`
	Password       string        `envconfig:"OPENAI_PASSWORD"`
	APIKey         string        `envconfig:"OPENAI_API_KEY"`
	BaseURL        string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	AuthURL        string        `envconfig:"OPENAI_AUTH_URL" default:"https://auth.openai.com/oauth/token"`
	ClientID       string        `envconfig:"OPENAI_CLIENT_ID"`
	Provider       string        `envconfig:"AI_PROVIDER" default:"openai"`
	Model          string        `envconfig:"OPENAI_MODEL" default:"gpt-3.5-turbo"`
	OllamaModel    string        `envconfig:"OLLAMA_MODEL" default:"llama3"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`

	// Generation settings
	Temperature      float64 `envconfig:"TEMPERATURE" default:"1.0"`
	MaxTokens        int     `envconfig:"MAX_TOKENS" default:"1200"`
	NChoices         int     `envconfig:"N_CHOICES" default:"1"`
	PresencePenalty  float64 `envconfig:"PRESENCE_PENALTY" default:"0"`
	FrequencyPenalty float64 `envconfig:"FREQUENCY_PENALTY" default:"0"`

	// Conversation settings
	MaxHistorySize     int           `envconfig:"MAX_HISTORY_SIZE" default:"15"`
	MaxConversationAge time.Duration `envconfig:"MAX_CONVERSATION_AGE" default:"3h"`
	ShowUsage          bool          `envconfig:"SHOW_USAGE" default:"false"`

	// Access and budgets
	AllowedUserIDs []int64 `envconfig:"ALLOWED_TELEGRAM_USER_IDS"`
	AdminUserIDs   []int64 `envconfig:"ADMIN_USER_IDS"`
	UserBudget     float64 `envconfig:"USER_BUDGET" default:"0"`
	BudgetPeriod   string  `envconfig:"BUDGET_PERIOD" default:"monthly"`
	TokenPrice     float64 `envconfig:"TOKEN_PRICE" default:"0.002"` // USD per 1K tokens
	ImagePrice     float64 `envconfig:"IMAGE_PRICE" default:"0.018"` // USD per image

	TranscriptionPrice float64 `envconfig:"TRANSCRIPTION_PRICE" default:"0.006"` // USD per minute

	EnableImageGeneration bool   `envconfig:"ENABLE_IMAGE_GENERATION" default:"true"`
	ImageSize             string `envconfig:"IMAGE_SIZE" default:"512x512"`
	GroupTriggerKeyword   string `envconfig:"GROUP_TRIGGER_KEYWORD" default:""`

	// Voice notes, audio and video
	EnableTranscription       bool `envconfig:"ENABLE_TRANSCRIPTION" default:"true"`
	IgnoreGroupTranscriptions bool `envconfig:"IGNORE_GROUP_TRANSCRIPTIONS" default:"true"`
	TranscriptOnly            bool `envconfig:"VOICE_REPLY_WITH_TRANSCRIPT_ONLY" default:"false"`

	// Storage
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`
	UsageDBPath string `envconfig:"USAGE_DB_PATH" default:"usage.db"`

	// HTTP listener for the admin API and webhook delivery
	HTTPAddr      string `envconfig:"HTTP_ADDR" default:""`
	WebhookURL    string `envconfig:"WEBHOOK_URL" default:""`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET" default:""`

	// Admin API. Without a token the usage routes are not served.
	AdminAPIToken       string   `envconfig:"ADMIN_API_TOKEN" default:""`
	AdminAllowedOrigins []string `envconfig:"ADMIN_ALLOWED_ORIGINS"`

	// Path to config.toml file
	ConfigFile string `envconfig:"CONFIG_FILE" default:"config.toml"`

	// Prompts loaded from config.toml
	Prompts Prompts

	// Messages loaded from config.toml
	Messages Messages
}

// Prompts holds system prompts loaded from config.toml.
type Prompts struct {
	Assistant string `toml:"assistant"`
	Summarise string `toml:"summarise"`
}

// Messages holds the user-facing texts loaded from config.toml.
type Messages struct {
	Start        string `toml:"start"`
	Help         string `toml:"help"`
	Reset        string `toml:"reset"`
	Error        string `toml:"error"`
	EmptyPrompt  string `toml:"empty_prompt"`
	Disallowed   string `toml:"disallowed"`
	BudgetLimit  string `toml:"budget_limit"`
	ResendFailed string `toml:"resend_failed"`
	ImageFailed  string `toml:"image_failed"`
	ImageOff     string `toml:"image_disabled"`
	ImageEmpty   string `toml:"image_empty"`
	Unknown      string `toml:"unknown_command"`

	DownloadFailed   string `toml:"download_failed"`
	TranscribeFailed string `toml:"transcribe_failed"`
	Transcript       string `toml:"transcript"`
	Answer           string `toml:"answer"`
	InlineTitle      string `toml:"inline_title"`
	InlineButton     string `toml:"inline_button"`
	Loading          string `toml:"loading"`
}

// FileConfig represents the structure of config.toml.
type FileConfig struct {
	Prompts  Prompts  `toml:"prompts"`
	Messages Messages `toml:"messages"`
}

// DefaultPrompts provides fallback prompts if config.toml is not found.
var DefaultPrompts = Prompts{
	Assistant: "You are a helpful assistant.",
	Summarise: "Summarize this conversation in 700 characters or less",
}

// DefaultMessages provides fallback texts if config.toml is not found.
var DefaultMessages = Messages{
	Start:        "Hi! I'm a ChatGPT bot. Send me a message and I'll answer.",
	Help:         "/start - Start the bot\n/reset - Reset the conversation\n/stats - Show your usage\n/resend - Resend the last message\n/image <prompt> - Generate an image\n/chat <prompt> - Talk to the bot in a group\n/help - Show this help\n\nSend a voice message or audio file to have it transcribed.",
	Reset:        "Done!",
	Error:        "Something went wrong, please try again later.",
	EmptyPrompt:  "Please send me some text to talk about.",
	Disallowed:   "Sorry, you are not allowed to use this bot.",
	BudgetLimit:  "Sorry, you have reached your usage limit.",
	ResendFailed: "You have nothing to resend.",
	ImageFailed:  "Failed to generate the image, please try again later.",
	ImageOff:     "Image generation is disabled.",
	ImageEmpty:   "Please provide a prompt, e.g. /image a cat wearing a hat",
	Unknown:      "Unknown command. Use /help to see the available commands.",

	DownloadFailed:   "Failed to download the file, it may be too large.",
	TranscribeFailed: "Failed to transcribe the audio, please try again later.",
	Transcript:       "Transcript",
	Answer:           "Answer",
	InlineTitle:      "Ask ChatGPT",
	InlineButton:     "🤖 Get answer",
	Loading:          "Loading...",
}

// LoadEnv loads the configuration from environment variables.
func (c Config) LoadEnv() (Config, error) {
	cfg := c

	if err := envconfig.Process("", &cfg); err != nil {
		return c, err
	}

	return cfg, nil
}

// LoadFile loads prompts and messages from the config.toml file.
func (c *Config) LoadFile() error {
	c.Prompts = DefaultPrompts
	c.Messages = DefaultMessages

	// Try to find config file
	configPath := c.ConfigFile
	if !filepath.IsAbs(configPath) {
		// Try current directory first
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			// Try executable directory
			execPath, err := os.Executable()
			if err == nil {
				configPath = filepath.Join(filepath.Dir(execPath), c.ConfigFile)
			}
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	var fileConfig FileConfig
	if _, err := toml.DecodeFile(configPath, &fileConfig); err != nil {
		return fmt.Errorf("failed to decode %s: %w", configPath, err)
	}

	mergeString(&c.Prompts.Assistant, fileConfig.Prompts.Assistant)
	mergeString(&c.Prompts.Summarise, fileConfig.Prompts.Summarise)

	m := fileConfig.Messages
	mergeString(&c.Messages.Start, m.Start)
	mergeString(&c.Messages.Help, m.Help)
	mergeString(&c.Messages.Reset, m.Reset)
	mergeString(&c.Messages.Error, m.Error)
	mergeString(&c.Messages.EmptyPrompt, m.EmptyPrompt)
	mergeString(&c.Messages.Disallowed, m.Disallowed)
	mergeString(&c.Messages.BudgetLimit, m.BudgetLimit)
	mergeString(&c.Messages.ResendFailed, m.ResendFailed)
	mergeString(&c.Messages.ImageFailed, m.ImageFailed)
	mergeString(&c.Messages.ImageOff, m.ImageOff)
	mergeString(&c.Messages.ImageEmpty, m.ImageEmpty)
	mergeString(&c.Messages.Unknown, m.Unknown)
	mergeString(&c.Messages.DownloadFailed, m.DownloadFailed)
	mergeString(&c.Messages.TranscribeFailed, m.TranscribeFailed)
	mergeString(&c.Messages.Transcript, m.Transcript)
	mergeString(&c.Messages.Answer, m.Answer)
	mergeString(&c.Messages.InlineTitle, m.InlineTitle)
	mergeString(&c.Messages.InlineButton, m.InlineButton)
	mergeString(&c.Messages.Loading, m.Loading)

	return nil
}

func mergeString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

// Validate checks the combinations envconfig cannot express with tags.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if !c.HasOpenAICredentials() {
			return ErrMissingCredentials
		}
	case ProviderOllama:
		// Images and transcription still talk to OpenAI.
		if !c.HasOpenAICredentials() {
			c.EnableImageGeneration = false
			c.EnableTranscription = false
		}
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.Provider)
	}

	switch c.BudgetPeriod {
	case BudgetMonthly, BudgetDaily, BudgetAllTime:
	default:
		return fmt.Errorf("unknown BUDGET_PERIOD %q", c.BudgetPeriod)
	}

	if c.NChoices < 1 {
		return fmt.Errorf("N_CHOICES must be at least 1, got %d", c.NChoices)
	}

	if c.WebhookURL != "" && c.HTTPAddr == "" {
		return errors.New("WEBHOOK_URL requires HTTP_ADDR")
	}

	return nil
}

// HasOpenAICredentials reports whether an API key or a full login is set.
func (c *Config) HasOpenAICredentials() bool {
	return c.APIKey != "" || (c.Email != "" && c.Password != "")
}

// UseSession reports whether the email/password login flow is used.
func (c *Config) UseSession() bool {
	return c.APIKey == "" && c.Email != "" && c.Password != ""
}

// IsAllowed reports whether a Telegram user may talk to the bot.
// An empty allow list admits everyone.
func (c *Config) IsAllowed(userID int64) bool {
	if len(c.AllowedUserIDs) == 0 {
		return true
	}
	return c.IsAdmin(userID) || contains(c.AllowedUserIDs, userID)
}

// IsAdmin reports whether a Telegram user is an administrator.
func (c *Config) IsAdmin(userID int64) bool {
	return contains(c.AdminUserIDs, userID)
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func NewConfig() (*Config, error) {
	var cfg Config
	loadedCfg, err := cfg.LoadEnv()
	if err != nil {
		return nil, err
	}

	// Load prompts and texts from config.toml
	if err := loadedCfg.LoadFile(); err != nil {
		return nil, err
	}

	if err := loadedCfg.Validate(); err != nil {
		return nil, err
	}

	return &loadedCfg, nil
}

func Module() fx.Option {
	return fx.Module(
		"config",
		fx.Provide(
			NewConfig,
		),
	)
}
