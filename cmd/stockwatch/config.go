package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/fwojciec/stockwatch"
	"github.com/fwojciec/stockwatch/email"
	"github.com/fwojciec/stockwatch/watch"
	"github.com/titanous/json5"
)

// Config file names. The legacy name is read when the default is absent.
const (
	DefaultConfigFile = "config.json5"
	LegacyConfigFile  = "config.json"
)

// Store and fetcher choices.
const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"

	FetcherHTTP    = "http"
	FetcherBrowser = "browser"

	ScopePage = "page"
	ScopeText = "text"
	ScopeMain = "main"

	ExtractorTrafilatura = "trafilatura"
	ExtractorReadability = "readability"
)

// Config is the watcher configuration. Durations are in seconds.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Email    EmailConfig    `json:"email"`

	Store          string `json:"store"`
	DBPath         string `json:"dbPath"`
	TargetsFile    string `json:"targetsFile"`
	LegacyURLsFile string `json:"legacyUrlsFile"`

	Fetcher      string  `json:"fetcher"`
	FetchTimeout int     `json:"fetchTimeout"`
	RenderDelay  int     `json:"renderDelay"` // milliseconds, browser fetcher only
	UserAgent    string  `json:"userAgent"`
	HostRate     float64 `json:"hostRate"` // requests per second per host, negative disables

	CheckInterval         int      `json:"checkInterval"`
	Cooldown              int      `json:"cooldown"`
	Concurrency           int      `json:"concurrency"`
	RepeatNotificationCap int      `json:"repeatNotificationCap"`
	OutOfStockKeywords    []string `json:"outOfStockKeywords"`
	ClassifyScope         string   `json:"classifyScope"`
	Extractor             string   `json:"extractor"` // main-content extractor for classifyScope "main"

	// Keys written by earlier releases.
	LegacyBotToken      string `json:"bot_token"`
	LegacyChatID        ChatID `json:"chat_id"`
	LegacyCheckInterval int    `json:"check_interval"`
}

// TelegramConfig holds the bot credentials.
type TelegramConfig struct {
	BotToken string `json:"botToken"`
	ChatID   ChatID `json:"chatId"`
}

// EmailConfig holds optional SMTP settings.
type EmailConfig struct {
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

// Enabled reports whether email notifications are configured.
func (c EmailConfig) Enabled() bool {
	return c.Host != ""
}

// SMTP converts the settings for the email package.
func (c EmailConfig) SMTP() email.Config {
	return email.Config{
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		From:     c.From,
		To:       c.To,
	}
}

// ChatID is a Telegram chat ID, written either as a number or a string.
type ChatID string

// UnmarshalJSON accepts numbers and strings.
func (id *ChatID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) >= 2 && (data[0] == '"' || data[0] == '\'') && data[len(data)-1] == data[0] {
		*id = ChatID(data[1 : len(data)-1])
		return nil
	}
	if _, err := strconv.ParseInt(string(data), 10, 64); err != nil {
		return fmt.Errorf("chat ID must be a number or a string, got %s", data)
	}
	*id = ChatID(data)
	return nil
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		Store:                 StoreSQLite,
		DBPath:                defaultDBPath(),
		TargetsFile:           "targets.json",
		LegacyURLsFile:        "urls.txt",
		Fetcher:               FetcherHTTP,
		FetchTimeout:          int(watch.DefaultFetchTimeout / time.Second),
		HostRate:              1,
		CheckInterval:         int(watch.DefaultInterval / time.Second),
		Cooldown:              int(watch.DefaultCooldown / time.Second),
		Concurrency:           watch.DefaultConcurrency,
		RepeatNotificationCap: stockwatch.DefaultRepeatCap,
		OutOfStockKeywords:    append([]string(nil), stockwatch.DefaultOutOfStockKeywords...),
		ClassifyScope:         ScopePage,
		Extractor:             ExtractorTrafilatura,
	}
}

// LoadConfig reads the config file at path, merged with its ".local"
// sibling, over the defaults, then applies environment overrides. A missing
// file is not an error.
func LoadConfig(path string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	file, err := ReadConfig[Config](path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("no config file, using defaults", "path", path)
	case err != nil:
		return nil, stockwatch.Errorf(stockwatch.EINVALID, "read config %s: %v", path, err)
	}
	file.foldLegacy()
	if err := mergo.Merge(&cfg, file, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge config: %w", err)
	}

	if v := getenv("STOCKWATCH_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = ChatID(v)
	}

	cfg.ClassifyScope = strings.ToLower(cfg.ClassifyScope)
	cfg.Store = strings.ToLower(cfg.Store)
	cfg.Fetcher = strings.ToLower(cfg.Fetcher)
	cfg.Extractor = strings.ToLower(cfg.Extractor)
	return &cfg, nil
}

// foldLegacy moves keys from earlier releases into their current place.
func (c *Config) foldLegacy() {
	if c.Telegram.BotToken == "" {
		c.Telegram.BotToken = c.LegacyBotToken
	}
	if c.Telegram.ChatID == "" {
		c.Telegram.ChatID = c.LegacyChatID
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = c.LegacyCheckInterval
	}
	c.LegacyBotToken, c.LegacyChatID, c.LegacyCheckInterval = "", "", 0
}

// Validate returns an error if the configuration cannot be used.
func (c *Config) Validate() error {
	if c.CheckInterval <= 0 {
		return stockwatch.Errorf(stockwatch.EINVALID, "checkInterval must be positive")
	}
	if c.RepeatNotificationCap < 1 {
		return stockwatch.Errorf(stockwatch.EINVALID, "repeatNotificationCap must be at least 1")
	}
	if c.FetchTimeout <= 0 {
		return stockwatch.Errorf(stockwatch.EINVALID, "fetchTimeout must be positive")
	}
	if c.Concurrency < 1 {
		return stockwatch.Errorf(stockwatch.EINVALID, "concurrency must be at least 1")
	}
	switch c.Store {
	case StoreSQLite, StoreFile:
	default:
		return stockwatch.Errorf(stockwatch.EINVALID, "store must be %q or %q", StoreSQLite, StoreFile)
	}
	switch c.Fetcher {
	case FetcherHTTP, FetcherBrowser:
	default:
		return stockwatch.Errorf(stockwatch.EINVALID, "fetcher must be %q or %q", FetcherHTTP, FetcherBrowser)
	}
	switch c.ClassifyScope {
	case ScopePage, ScopeText, ScopeMain:
	default:
		return stockwatch.Errorf(stockwatch.EINVALID, "classifyScope must be %q, %q or %q", ScopePage, ScopeText, ScopeMain)
	}
	switch c.Extractor {
	case ExtractorTrafilatura, ExtractorReadability:
	default:
		return stockwatch.Errorf(stockwatch.EINVALID, "extractor must be %q or %q", ExtractorTrafilatura, ExtractorReadability)
	}
	if c.Email.Enabled() {
		if err := c.Email.SMTP().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateNotifications returns an error unless at least one notification
// channel is configured.
func (c *Config) ValidateNotifications() error {
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return stockwatch.Errorf(stockwatch.EINVALID, "telegram.chatId required with a bot token")
	}
	if c.Telegram.BotToken == "" && !c.Email.Enabled() {
		return stockwatch.Errorf(stockwatch.EINVALID, "no notification channel configured, set TELEGRAM_BOT_TOKEN or email settings")
	}
	return nil
}

// Interval returns the check interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.CheckInterval) * time.Second
}

// ReadConfig reads a json5 configuration file. Settings from a sibling
// file with ".local" before the extension override those of the main file.
// It returns os.ErrNotExist when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	var out T
	found := false

	data, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(data) > 0 {
		if err := json5.Unmarshal(data, &out); err != nil {
			return out, err
		}
		found = true
	}

	local := localConfigPath(name)
	data, err = os.ReadFile(local)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(data) > 0 {
		var override T
		if err := json5.Unmarshal(data, &override); err != nil {
			return out, err
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, err
		}
		slog.Debug("merged config with local overrides", "local", local)
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ResolveConfigPath returns path unless it names the default config file
// and neither it nor its local override exists, in which case a legacy
// config.json in the same directory is used instead.
func ResolveConfigPath(path string) string {
	if filepath.Base(path) != DefaultConfigFile || fileExists(path) || fileExists(localConfigPath(path)) {
		return path
	}
	legacy := filepath.Join(filepath.Dir(path), LegacyConfigFile)
	if fileExists(legacy) {
		return legacy
	}
	return path
}

// localConfigPath returns the override file for name: config.json5 becomes
// config.local.json5.
func localConfigPath(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "stockwatch.db"
	}
	return filepath.Join(home, ".stockwatch", "stockwatch.db")
}
