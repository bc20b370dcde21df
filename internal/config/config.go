package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"marketingest/internal/alphavantage"
	"marketingest/internal/coinmarketcap"
	"marketingest/internal/coordinator"
	"marketingest/internal/logger"
	"marketingest/internal/openexchangerates"
	"marketingest/internal/ratelimit"
	"marketingest/internal/retry"
	"marketingest/internal/wikipedia"
	"marketingest/internal/yahoo"
)

// Sink types
const (
	SinkFile = "file"
	SinkS3   = "s3"
)

// Stock sources
const (
	StockSourceYahoo        = "yahoo"
	StockSourceAlphaVantage = "alphavantage"
)

// ErrInvalid marks every validation failure returned by this package
var ErrInvalid = errors.New("invalid configuration")

// RetryConfig holds the fetch retry policy
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Factor      float64       `mapstructure:"factor"`
	Jitter      float64       `mapstructure:"jitter"`
}

// SinkConfig selects where artifacts are written
type SinkConfig struct {
	Type   string `mapstructure:"type"`
	Dir    string `mapstructure:"dir"`
	Bucket string `mapstructure:"bucket"`
	Region string `mapstructure:"region"`
}

// StocksConfig configures the stocks command
type StocksConfig struct {
	Symbols             []string `mapstructure:"symbols"`
	SymbolLimit         int      `mapstructure:"symbol_limit"`
	Source              string   `mapstructure:"source"`
	Interval            string   `mapstructure:"interval"`
	Range               string   `mapstructure:"range"`
	YahooBaseURL        string   `mapstructure:"yahoo_base_url"`
	WikipediaURL        string   `mapstructure:"wikipedia_url"`
	AlphavantageAPIKey  string   `mapstructure:"alphavantage_api_key"`
	AlphavantageBaseURL string   `mapstructure:"alphavantage_base_url"`
}

// RatesConfig configures the rates command
type RatesConfig struct {
	AppID   string   `mapstructure:"app_id"`
	Bases   []string `mapstructure:"bases"`
	BaseURL string   `mapstructure:"base_url"`
}

// CryptoConfig configures the crypto command
type CryptoConfig struct {
	Limit int    `mapstructure:"limit"`
	URL   string `mapstructure:"url"`
}

// LogConfig configures the process logger
type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

// Config holds all configuration for the ingestion commands.
type Config struct {
	Concurrency int           `mapstructure:"concurrency"`
	ItemTimeout time.Duration `mapstructure:"item_timeout"`
	Retry       RetryConfig   `mapstructure:"retry"`
	Sink        SinkConfig    `mapstructure:"sink"`
	Stocks      StocksConfig  `mapstructure:"stocks"`
	Rates       RatesConfig   `mapstructure:"rates"`
	Crypto      CryptoConfig  `mapstructure:"crypto"`
	Log         LogConfig     `mapstructure:"log"`

	// RateLimits overrides requests per second per source name
	RateLimits map[string]float64 `mapstructure:"rate_limits"`
}

// envBindings maps configuration keys to their environment variables
var envBindings = map[string]string{
	"concurrency":                  "INGEST_CONCURRENCY",
	"item_timeout":                 "INGEST_ITEM_TIMEOUT",
	"retry.max_attempts":           "INGEST_RETRY_MAX_ATTEMPTS",
	"retry.base_delay":             "INGEST_RETRY_BASE_DELAY",
	"retry.factor":                 "INGEST_RETRY_FACTOR",
	"retry.jitter":                 "INGEST_RETRY_JITTER",
	"sink.type":                    "INGEST_SINK",
	"sink.dir":                     "INGEST_OUTPUT_DIR",
	"sink.bucket":                  "S3_BUCKET",
	"sink.region":                  "AWS_REGION",
	"stocks.symbols":               "STOCK_SYMBOLS",
	"stocks.symbol_limit":          "SYMBOL_LIMIT",
	"stocks.source":                "STOCK_SOURCE",
	"stocks.interval":              "STOCK_INTERVAL",
	"stocks.range":                 "STOCK_RANGE",
	"stocks.yahoo_base_url":        "YAHOO_BASE_URL",
	"stocks.wikipedia_url":         "WIKIPEDIA_URL",
	"stocks.alphavantage_api_key":  "ALPHAVANTAGE_API_KEY",
	"stocks.alphavantage_base_url": "ALPHAVANTAGE_BASE_URL",
	"rates.app_id":                 "OPENEXCHANGERATES_APP_ID",
	"rates.bases":                  "RATE_BASES",
	"rates.base_url":               "OPENEXCHANGERATES_BASE_URL",
	"crypto.limit":                 "CRYPTO_LIMIT",
	"crypto.url":                   "COINMARKETCAP_URL",
	"log.json":                     "INGEST_LOG_JSON",
	"log.level":                    "INGEST_LOG_LEVEL",
}

// flagBindings maps command-line flags to the keys they override
var flagBindings = map[string]string{
	"concurrency":  "concurrency",
	"item-timeout": "item_timeout",
	"sink":         "sink.type",
	"output-dir":   "sink.dir",
	"log-json":     "log.json",
	"log-level":    "log.level",
}

// Load reads configuration from flags, environment variables, and an
// optional config file, in that order of precedence.
//
// The config file is config.yaml in the working directory or
// $HOME/.marketingest unless flags carry an explicit --config path, in
// which case that file must exist.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	explicit := ""
	if flags != nil {
		if f := flags.Lookup("config"); f != nil {
			explicit = f.Value.String()
		}
	}

	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", explicit)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.marketingest")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "failed to read config file")
			}
		}
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, errors.Wrapf(err, "failed to bind %s", env)
		}
	}

	if flags != nil {
		for name, key := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "failed to bind flag --%s", name)
				}
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	def := retry.Default()

	v.SetDefault("concurrency", coordinator.DefaultConcurrency)
	v.SetDefault("item_timeout", coordinator.DefaultItemTimeout)
	v.SetDefault("retry.max_attempts", def.MaxAttempts)
	v.SetDefault("retry.base_delay", def.BaseDelay)
	v.SetDefault("retry.factor", def.Factor)
	v.SetDefault("retry.jitter", def.Jitter)
	v.SetDefault("sink.type", SinkFile)
	v.SetDefault("sink.dir", "./data")
	v.SetDefault("stocks.symbol_limit", 10)
	v.SetDefault("stocks.source", StockSourceYahoo)
	v.SetDefault("stocks.interval", "1m")
	v.SetDefault("stocks.range", "7d")
	v.SetDefault("stocks.yahoo_base_url", yahoo.DefaultBaseURL)
	v.SetDefault("stocks.wikipedia_url", wikipedia.DefaultURL)
	v.SetDefault("stocks.alphavantage_base_url", alphavantage.DefaultBaseURL)
	v.SetDefault("rates.bases", []string{"USD"})
	v.SetDefault("rates.base_url", openexchangerates.DefaultBaseURL)
	v.SetDefault("crypto.limit", 10)
	v.SetDefault("crypto.url", coinmarketcap.DefaultURL)
	v.SetDefault("log.level", "info")
}

// normalize trims list entries that came from comma-separated env values
func (c *Config) normalize() {
	c.Stocks.Symbols = cleanList(c.Stocks.Symbols, false)
	c.Rates.Bases = cleanList(c.Rates.Bases, true)
	c.Sink.Type = strings.ToLower(strings.TrimSpace(c.Sink.Type))
	c.Stocks.Source = strings.ToLower(strings.TrimSpace(c.Stocks.Source))
}

func cleanList(in []string, upper bool) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if upper {
				part = strings.ToUpper(part)
			}
			out = append(out, part)
		}
	}
	return out
}

// Validate checks settings shared by every command and reports all problems at once
func (c *Config) Validate() error {
	var problems []string

	if c.Concurrency < 1 {
		problems = append(problems, "concurrency must be at least 1")
	}
	if c.ItemTimeout < 0 {
		problems = append(problems, "item_timeout must not be negative")
	}
	if c.Retry.MaxAttempts < 1 {
		problems = append(problems, "retry.max_attempts must be at least 1")
	}
	if c.Retry.BaseDelay < 0 {
		problems = append(problems, "retry.base_delay must not be negative")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		problems = append(problems, "retry.jitter must be between 0 and 1")
	}

	switch c.Sink.Type {
	case SinkFile:
		if c.Sink.Dir == "" {
			problems = append(problems, "sink.dir (INGEST_OUTPUT_DIR) is required for the file sink")
		}
	case SinkS3:
		if c.Sink.Bucket == "" {
			problems = append(problems, "sink.bucket (S3_BUCKET) is required for the s3 sink")
		}
	default:
		problems = append(problems, "sink.type must be file or s3, got "+c.Sink.Type)
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}

	for name := range c.RateLimits {
		if _, ok := ratelimit.DefaultRates[ratelimit.Source(name)]; !ok {
			problems = append(problems, "rate_limits has unknown source "+name)
		}
	}

	return invalid(problems)
}

// ValidateStocks checks settings required by the stocks command
func (c *Config) ValidateStocks() error {
	var problems []string

	switch c.Stocks.Source {
	case StockSourceYahoo:
	case StockSourceAlphaVantage:
		if c.Stocks.AlphavantageAPIKey == "" {
			problems = append(problems, "ALPHAVANTAGE_API_KEY is required for the alphavantage source")
		}
	default:
		problems = append(problems, "stocks.source must be yahoo or alphavantage, got "+c.Stocks.Source)
	}
	if len(c.Stocks.Symbols) == 0 && c.Stocks.SymbolLimit < 1 {
		problems = append(problems, "stocks.symbol_limit must be at least 1")
	}

	return invalid(problems)
}

// ValidateRates checks settings required by the rates command
func (c *Config) ValidateRates() error {
	var problems []string
	if c.Rates.AppID == "" {
		problems = append(problems, "OPENEXCHANGERATES_APP_ID is required")
	}
	if len(c.Rates.Bases) == 0 {
		problems = append(problems, "rates.bases must name at least one currency")
	}
	return invalid(problems)
}

// ValidateCrypto checks settings required by the crypto command
func (c *Config) ValidateCrypto() error {
	if c.Crypto.Limit < 1 {
		return invalid([]string{"crypto.limit must be at least 1"})
	}
	return nil
}

func invalid(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return errors.Mark(
		errors.Newf("invalid configuration: %s", strings.Join(problems, "; ")),
		ErrInvalid,
	)
}

// RetryPolicy builds the fetch retry policy
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay,
		Factor:      c.Retry.Factor,
		Jitter:      c.Retry.Jitter,
	}
}

// LimiterRates merges configured overrides into the default per-source rates
func (c *Config) LimiterRates() map[ratelimit.Source]float64 {
	rates := make(map[ratelimit.Source]float64, len(ratelimit.DefaultRates))
	for src, rps := range ratelimit.DefaultRates {
		rates[src] = rps
	}
	for name, rps := range c.RateLimits {
		rates[ratelimit.Source(name)] = rps
	}
	return rates
}
