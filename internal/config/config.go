// Package config loads the run configuration from an optional YAML file and
// the environment. A loaded Config is treated as immutable.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deusflow/newsledger/internal/classify"
	"github.com/deusflow/newsledger/internal/news"
	"github.com/deusflow/newsledger/internal/titlekey"
)

// ErrInvalid marks configuration errors. They are reported before any table
// is touched and map to their own exit status.
var ErrInvalid = errors.New("invalid configuration")

const (
	configPathEnv = "NEWSLEDGER_CONFIG"

	defaultTimezone = "Asia/Tokyo"
	defaultStore    = StoreSheets
	defaultProvider = ProviderGemini

	StoreSheets = "sheets"
	StoreFile   = "file"

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	FeedSheet = "sheet"
	FeedRSS   = "rss"
)

var spreadsheetID = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}$`)

type Config struct {
	InputSpreadsheetID  string `yaml:"inputSpreadsheetId"`
	OutputSpreadsheetID string `yaml:"outputSpreadsheetId"`

	// Credentials is the service-account JSON, from GOOGLE_CREDENTIALS or
	// read from CredentialsFile.
	Credentials     []byte `yaml:"-"`
	CredentialsFile string `yaml:"credentialsFile"`

	Store     string `yaml:"store"`
	StoreFile string `yaml:"storeFile"`

	Timezone        string         `yaml:"timezone"`
	location        *time.Location `yaml:"-"`
	TitleNormalizer string         `yaml:"titleNormalizer"`

	Feeds      []FeedConfig     `yaml:"feeds"`
	Header     []string         `yaml:"header"`
	Classifier ClassifierConfig `yaml:"classifier"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
	Debug     bool   `yaml:"debug"`
}

// FeedConfig is one source feed. Kind "sheet" reads the sheet called Name
// from the input workbook; kind "rss" reads URL.
type FeedConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	URL  string `yaml:"url"`
}

type ClassifierConfig struct {
	Provider     string   `yaml:"provider"`
	GeminiAPIKey string   `yaml:"-"`
	GeminiModel  string   `yaml:"geminiModel"`
	OpenAIAPIKey string   `yaml:"-"`
	OpenAIModel  string   `yaml:"openaiModel"`
	BatchSize    int      `yaml:"batchSize"`
	MaxRequests  int      `yaml:"maxRequests"` // per run, 0 = unlimited
	Categories   []string `yaml:"categories"`
	Instructions string   `yaml:"instructions"`
}

// APIKey returns the key of the selected provider.
func (c ClassifierConfig) APIKey() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

// Enabled reports whether a classifier can be built. A missing key is not an
// error; the run just skips labeling.
func (c ClassifierConfig) Enabled() bool {
	return c.APIKey() != ""
}

// Model returns the model name of the selected provider.
func (c ClassifierConfig) Model() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIModel
	}
	return c.GeminiModel
}

// Location is the civil zone the window and day key are computed in.
func (c Config) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// DefaultFeeds are the three sheets of the input workbook, in priority order.
func DefaultFeeds() []FeedConfig {
	return []FeedConfig{
		{Name: "MSN", Kind: FeedSheet},
		{Name: "Google", Kind: FeedSheet},
		{Name: "Yahoo", Kind: FeedSheet},
	}
}

func defaultConfig() Config {
	return Config{
		Store:           defaultStore,
		StoreFile:       "newsledger.json",
		Timezone:        defaultTimezone,
		TitleNormalizer: titlekey.RichName,
		Feeds:           DefaultFeeds(),
		Header:          append([]string(nil), news.DefaultHeader...),
		Classifier: ClassifierConfig{
			Provider:  defaultProvider,
			BatchSize: classify.DefaultBatchSize,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load builds the configuration. path names a YAML file; when empty,
// NEWSLEDGER_CONFIG is consulted, and without either only defaults and the
// environment apply. All failures wrap ErrInvalid.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: cannot read %s: %v", ErrInvalid, path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: cannot parse %s: %v", ErrInvalid, path, err)
		}
		if len(cfg.Feeds) == 0 {
			cfg.Feeds = DefaultFeeds()
		}
		if len(cfg.Header) == 0 {
			cfg.Header = append([]string(nil), news.DefaultHeader...)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.loadCredentials(); err != nil {
		return Config{}, err
	}
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnvOverrides() {
	c.InputSpreadsheetID = getEnvOrDefault("INPUT_SPREADSHEET_ID", c.InputSpreadsheetID)
	c.OutputSpreadsheetID = getEnvOrDefault("OUTPUT_SPREADSHEET_ID", c.OutputSpreadsheetID)
	c.CredentialsFile = getEnvOrDefault("GOOGLE_CREDENTIALS_FILE", c.CredentialsFile)
	if v := os.Getenv("GOOGLE_CREDENTIALS"); strings.TrimSpace(v) != "" {
		c.Credentials = []byte(v)
	}

	c.Store = getEnvOrDefault("NEWSLEDGER_STORE", c.Store)
	c.StoreFile = getEnvOrDefault("NEWSLEDGER_STORE_FILE", c.StoreFile)
	c.Timezone = getEnvOrDefault("NEWSLEDGER_TIMEZONE", c.Timezone)
	c.TitleNormalizer = getEnvOrDefault("TITLE_NORMALIZER", c.TitleNormalizer)

	c.Classifier.Provider = getEnvOrDefault("CLASSIFIER_PROVIDER", c.Classifier.Provider)
	c.Classifier.GeminiAPIKey = getEnvOrDefault("GEMINI_API_KEY", c.Classifier.GeminiAPIKey)
	c.Classifier.GeminiModel = getEnvOrDefault("GEMINI_MODEL", c.Classifier.GeminiModel)
	c.Classifier.OpenAIAPIKey = getEnvOrDefault("OPENAI_API_KEY", c.Classifier.OpenAIAPIKey)
	c.Classifier.OpenAIModel = getEnvOrDefault("OPENAI_MODEL", c.Classifier.OpenAIModel)
	c.Classifier.BatchSize = getEnvIntOrDefault("CLASSIFIER_BATCH_SIZE", c.Classifier.BatchSize)
	c.Classifier.MaxRequests = getEnvIntOrDefault("MAX_CLASSIFIER_REQUESTS", c.Classifier.MaxRequests)

	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvOrDefault("LOG_FORMAT", c.LogFormat)
	if debug := os.Getenv("DEBUG"); debug == "true" {
		c.Debug = true
	}
}

func (c *Config) loadCredentials() error {
	if len(c.Credentials) > 0 || c.CredentialsFile == "" {
		return nil
	}
	raw, err := os.ReadFile(c.CredentialsFile)
	if err != nil {
		return fmt.Errorf("%w: cannot read credentials file: %v", ErrInvalid, err)
	}
	c.Credentials = raw
	return nil
}

func (c *Config) bindTimezone() error {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalid, c.Timezone)
	}
	c.location = loc
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (c Config) Validate() error {
	if err := validateID("INPUT_SPREADSHEET_ID", c.InputSpreadsheetID); err != nil {
		return err
	}
	if err := validateID("OUTPUT_SPREADSHEET_ID", c.OutputSpreadsheetID); err != nil {
		return err
	}

	switch c.Store {
	case StoreSheets:
		if len(c.Credentials) == 0 {
			return fmt.Errorf("%w: GOOGLE_CREDENTIALS or GOOGLE_CREDENTIALS_FILE is required", ErrInvalid)
		}
		if !json.Valid(c.Credentials) {
			return fmt.Errorf("%w: Google credentials are not valid JSON", ErrInvalid)
		}
	case StoreFile:
		if c.StoreFile == "" {
			return fmt.Errorf("%w: NEWSLEDGER_STORE_FILE is required for the file store", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: NEWSLEDGER_STORE must be %q or %q, got %q", ErrInvalid, StoreSheets, StoreFile, c.Store)
	}

	if _, err := titlekey.Select(c.TitleNormalizer); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if len(c.Header) != news.LedgerColumns {
		return fmt.Errorf("%w: header must have %d columns, got %d", ErrInvalid, news.LedgerColumns, len(c.Header))
	}

	seen := make(map[string]bool, len(c.Feeds))
	for i, f := range c.Feeds {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("%w: feed %d has no name", ErrInvalid, i+1)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: feed %q listed twice", ErrInvalid, f.Name)
		}
		seen[f.Name] = true
		switch f.Kind {
		case FeedSheet, "":
		case FeedRSS:
			if f.URL == "" {
				return fmt.Errorf("%w: rss feed %q has no url", ErrInvalid, f.Name)
			}
		default:
			return fmt.Errorf("%w: feed %q has unknown kind %q", ErrInvalid, f.Name, f.Kind)
		}
	}

	switch c.Classifier.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: CLASSIFIER_PROVIDER must be %q or %q, got %q", ErrInvalid, ProviderGemini, ProviderOpenAI, c.Classifier.Provider)
	}
	if c.Classifier.BatchSize <= 0 {
		return fmt.Errorf("%w: CLASSIFIER_BATCH_SIZE must be positive", ErrInvalid)
	}
	if c.Classifier.MaxRequests < 0 {
		return fmt.Errorf("%w: MAX_CLASSIFIER_REQUESTS must not be negative", ErrInvalid)
	}
	return nil
}

func validateID(name, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalid, name)
	}
	if !spreadsheetID.MatchString(id) {
		return fmt.Errorf("%w: %s %q is not a spreadsheet id", ErrInvalid, name, id)
	}
	return nil
}
