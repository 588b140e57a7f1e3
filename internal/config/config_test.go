package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("OPENAI_EMAIL", "me@example.com")
	t.Setenv("OPENAI_PASSWORD", "secret")
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
}

func TestNewConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Token)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-3.5-turbo", cfg.Model)
	assert.Equal(t, 1, cfg.NChoices)
	assert.Equal(t, 15, cfg.MaxHistorySize)
	assert.Equal(t, 3*time.Hour, cfg.MaxConversationAge)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, BudgetMonthly, cfg.BudgetPeriod)
	assert.True(t, cfg.UseSession())
	assert.True(t, cfg.EnableTranscription)
	assert.True(t, cfg.IgnoreGroupTranscriptions)
	assert.InDelta(t, 0.006, cfg.TranscriptionPrice, 1e-9)
	assert.Empty(t, cfg.AdminAPIToken)
	assert.Equal(t, DefaultPrompts, cfg.Prompts)
	assert.Equal(t, DefaultMessages, cfg.Messages)
}

func TestNewConfig_MissingToken(t *testing.T) {
	setRequired(t)
	os.Unsetenv("TELEGRAM_BOT_TOKEN")

	_, err := NewConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")
}

func TestNewConfig_MissingCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("OPENAI_PASSWORD", "")

	_, err := NewConfig()
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestNewConfig_APIKeyPreferred(t *testing.T) {
	setRequired(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.True(t, cfg.HasOpenAICredentials())
	assert.False(t, cfg.UseSession())
}

func TestNewConfig_OllamaDisablesImagesWithoutCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("OPENAI_EMAIL", "")
	t.Setenv("OPENAI_PASSWORD", "")
	t.Setenv("AI_PROVIDER", "ollama")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.False(t, cfg.EnableImageGeneration)
	assert.False(t, cfg.EnableTranscription)
}

func TestNewConfig_AdminAPI(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_API_TOKEN", "s3cret")
	t.Setenv("ADMIN_ALLOWED_ORIGINS", "https://admin.example.com,https://ops.example.com")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.AdminAPIToken)
	assert.Equal(t, []string{"https://admin.example.com", "https://ops.example.com"}, cfg.AdminAllowedOrigins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"unknown provider", func(c *Config) { c.Provider = "bard" }, false},
		{"unknown budget period", func(c *Config) { c.BudgetPeriod = "weekly" }, false},
		{"zero choices", func(c *Config) { c.NChoices = 0 }, false},
		{"webhook without listener", func(c *Config) { c.WebhookURL = "https://example.com/hook" }, false},
		{"webhook with listener", func(c *Config) {
			c.WebhookURL = "https://example.com/hook"
			c.HTTPAddr = ":8080"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				APIKey:       "sk-test",
				Provider:     ProviderOpenAI,
				BudgetPeriod: BudgetDaily,
				NChoices:     1,
			}
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNewConfig_UserLists(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_TELEGRAM_USER_IDS", "10,20")
	t.Setenv("ADMIN_USER_IDS", "99")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsAllowed(10))
	assert.True(t, cfg.IsAllowed(20))
	assert.True(t, cfg.IsAllowed(99))
	assert.False(t, cfg.IsAllowed(30))
	assert.True(t, cfg.IsAdmin(99))
	assert.False(t, cfg.IsAdmin(10))
}

func TestIsAllowed_EmptyListAdmitsEveryone(t *testing.T) {
	cfg := Config{}
	assert.True(t, cfg.IsAllowed(12345))
}

func TestLoadFile_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[prompts]
assistant = "You are a pirate."

[messages]
error = "Arr, something broke."
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := Config{ConfigFile: path}
	require.NoError(t, cfg.LoadFile())

	assert.Equal(t, "You are a pirate.", cfg.Prompts.Assistant)
	assert.Equal(t, DefaultPrompts.Summarise, cfg.Prompts.Summarise)
	assert.Equal(t, "Arr, something broke.", cfg.Messages.Error)
	assert.Equal(t, DefaultMessages.Start, cfg.Messages.Start)
}

func TestLoadFile_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[prompts\nassistant = "), 0o644))

	cfg := Config{ConfigFile: path}
	assert.Error(t, cfg.LoadFile())
}
