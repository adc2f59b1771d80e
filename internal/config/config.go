package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no config path is given. Its absence is not an error.
const DefaultFile = "apptconfirm.yaml"

// Config holds everything the commands need. Values come from defaults, then
// the YAML file, then environment variables (highest precedence).
type Config struct {
	Google   GoogleConfig   `yaml:"google"`
	CalDAV   CalDAVConfig   `yaml:"caldav"`
	LLM      LLMConfig      `yaml:"llm"`
	Mail     MailConfig     `yaml:"mail"`
	Template TemplateConfig `yaml:"template"`

	CalendarSource string `yaml:"calendarSource"` // "google" or "caldav"
	Timezone       string `yaml:"timezone"`
	OutboxDB       string `yaml:"outboxDB"` // empty disables the sent-mail log
	LogLevel       string `yaml:"logLevel"`

	envErrs []error // unparsable environment values, reported by Validate
}

// GoogleConfig contains OAuth and calendar settings
type GoogleConfig struct {
	ClientID     string `yaml:"clientID"`
	ClientSecret string `yaml:"clientSecret"`
	TokenFile    string `yaml:"tokenFile"`
	CalendarID   string `yaml:"calendarID"`
}

// CalDAVConfig contains settings for a CalDAV (iCloud) calendar
type CalDAVConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	CalendarName string `yaml:"calendarName"`
}

// LLMConfig selects the generative backend
type LLMConfig struct {
	Provider        string        `yaml:"provider"` // "gemini" or "anthropic"
	Model           string        `yaml:"model"`
	GeminiAPIKey    string        `yaml:"geminiAPIKey"`
	AnthropicAPIKey string        `yaml:"anthropicAPIKey"`
	Delay           time.Duration `yaml:"delay"`
}

// MailConfig selects the delivery backend
type MailConfig struct {
	Sender       string `yaml:"sender"` // "gmail" or "resend"
	From         string `yaml:"from"`
	ResendAPIKey string `yaml:"resendAPIKey"`
}

// TemplateConfig customizes the generated emails
type TemplateConfig struct {
	Organization    string `yaml:"organization"`
	Signature       string `yaml:"signature"`
	ParticipantName string `yaml:"participantName"`
	ProviderName    string `yaml:"providerName"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Google: GoogleConfig{
			TokenFile:  "token.json",
			CalendarID: "primary",
		},
		CalDAV: CalDAVConfig{
			Endpoint: "https://caldav.icloud.com/",
		},
		LLM: LLMConfig{
			Provider: "gemini",
			Delay:    2 * time.Second,
		},
		Mail: MailConfig{
			Sender: "gmail",
		},
		Template: TemplateConfig{
			ParticipantName: "Student",
			ProviderName:    "Teacher",
		},
		CalendarSource: "google",
		Timezone:       "America/New_York",
		OutboxDB:       "apptconfirm.db",
		LogLevel:       "info",
	}
}

// Load builds the configuration. When path is empty DefaultFile is tried and
// silently skipped if missing; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	file := path
	if file == "" {
		file = DefaultFile
	}
	if err := cfg.loadFile(file); err != nil {
		if path != "" || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.Google.ClientID, "GOOGLE_CLIENT_ID")
	setString(&c.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&c.Google.TokenFile, "GOOGLE_TOKEN_FILE")
	setString(&c.Google.CalendarID, "GOOGLE_CALENDAR_ID")

	setString(&c.CalDAV.Endpoint, "CALDAV_ENDPOINT")
	setString(&c.CalDAV.Username, "ICLOUD_USERNAME")
	setString(&c.CalDAV.Password, "ICLOUD_APP_SPECIFIC_PASSWORD")
	setString(&c.CalDAV.CalendarName, "ICLOUD_CALENDAR_NAME")

	setString(&c.LLM.Provider, "LLM_PROVIDER")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.LLM.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	c.setDuration(&c.LLM.Delay, "GENERATION_DELAY")

	setString(&c.Mail.Sender, "MAIL_SENDER")
	setString(&c.Mail.From, "MAIL_FROM")
	setString(&c.Mail.ResendAPIKey, "RESEND_API_KEY")

	setString(&c.Template.Organization, "ORGANIZATION_NAME")
	setString(&c.Template.Signature, "EMAIL_SIGNATURE")
	setString(&c.Template.ParticipantName, "PARTICIPANT_NAME")
	setString(&c.Template.ProviderName, "PROVIDER_NAME")

	setString(&c.CalendarSource, "CALENDAR_SOURCE")
	setString(&c.Timezone, "PRIMARY_TIMEZONE")
	setString(&c.LogLevel, "LOG_LEVEL")

	// OUTBOX_DB may be set to an empty value to disable the log.
	if v, ok := os.LookupEnv("OUTBOX_DB"); ok {
		c.OutboxDB = v
	}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	if err := errors.Join(c.envErrs...); err != nil {
		return err
	}
	switch c.CalendarSource {
	case "google", "caldav":
	default:
		return fmt.Errorf("invalid calendar source %q (want google or caldav)", c.CalendarSource)
	}
	switch c.Mail.Sender {
	case "gmail", "resend":
	default:
		return fmt.Errorf("invalid mail sender %q (want gmail or resend)", c.Mail.Sender)
	}
	if c.LLM.Delay < 0 {
		return fmt.Errorf("generation delay must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the timezone used for day filters.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	return loc, nil
}

// LLMAPIKey returns the key for the selected provider.
func (c *Config) LLMAPIKey() string {
	if c.LLM.Provider == "anthropic" {
		return c.LLM.AnthropicAPIKey
	}
	return c.LLM.GeminiAPIKey
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setDuration accepts Go durations ("1500ms") or plain seconds ("2").
func (c *Config) setDuration(dst *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		c.envErrs = append(c.envErrs, fmt.Errorf("invalid %s '%s' (want a duration like 2s or a number of seconds)", key, v))
		return
	}
	*dst = time.Duration(secs * float64(time.Second))
}
