package internal

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/crown/internal/address"
)

const (
	// ApplicationName is reported in logs and telemetry.
	ApplicationName = "Crown Logistics"

	// AppVersion is the release reported when SENTRY_RELEASE is unset.
	AppVersion = "0.1"

	// DefaultConfigFile is read when CROWN_CONFIG_FILE is not set.
	DefaultConfigFile = ".crown_logistics.env"
)

type Config struct {
	App    AppConfig
	FedEx  FedExConfig
	Sentry SentryConfig
}

// AppConfig is the application section (CROWN_LOGISTICS_*).
type AppConfig struct {
	Env      string
	Port     uint16
	LogFile  string // Empty means stdout
	LogLevel string

	// CORSOrigins lists browser origins allowed to call the API. Empty
	// disables CORS headers.
	CORSOrigins []string

	// RateLimitRPS and RateLimitBurst throttle carrier-backed routes per
	// client IP. A zero RPS disables the limiter.
	RateLimitRPS   float64
	RateLimitBurst int
}

// FedExConfig is the carrier section (FEDEX_*).
type FedExConfig struct {
	ClientID     string
	ClientSecret string

	// AuthPayload is the form body sent to the token endpoint. The first "{}"
	// is replaced with the client id and the second with the client secret.
	// When empty a standard client_credentials body is built.
	AuthPayload string

	AuthTokenURL         string
	AddressValidationURL string

	// ExpireEarly is subtracted from the token lifetime reported by the carrier.
	ExpireEarly time.Duration

	// RequestTimeout bounds every outbound call to the carrier.
	RequestTimeout time.Duration

	// RefreshInterval is how often the background refresher checks the
	// cached token. Zero disables it.
	RefreshInterval time.Duration

	Locale string

	// TestAddress is validated by GET /api_v1/validate_address.
	TestAddress address.Address
}

// SentryConfig holds configuration for Sentry error tracking
type SentryConfig struct {
	DSN         string
	Enabled     bool
	Environment string
	Release     string
	SampleRate  float64
}

// knownKeys lists every setting NewConfig understands. Anything else found in
// the config file is reported and ignored.
var knownKeys = []string{
	"CROWN_LOGISTICS_ENV",
	"CROWN_LOGISTICS_PORT",
	"CROWN_LOGISTICS_LOG_FILE",
	"CROWN_LOGISTICS_LOG_LEVEL",
	"CROWN_LOGISTICS_CORS_ORIGINS",
	"CROWN_LOGISTICS_RATE_LIMIT_RPS",
	"CROWN_LOGISTICS_RATE_LIMIT_BURST",
	"FEDEX_CLIENT_ID",
	"FEDEX_CLIENT_SECRET",
	"FEDEX_AUTH_PAYLOAD",
	"FEDEX_AUTH_TOKEN_API_URL",
	"FEDEX_ADDRESS_VALIDATION_API_URL",
	"FEDEX_EXPIRE_EARLY",
	"FEDEX_REQUEST_TIMEOUT",
	"FEDEX_REFRESH_INTERVAL",
	"FEDEX_LOCALE",
	"FEDEX_TEST_STREET_LINES",
	"FEDEX_TEST_CITY",
	"FEDEX_TEST_STATE",
	"FEDEX_TEST_POSTAL_CODE",
	"FEDEX_TEST_COUNTRY",
	"SENTRY_DSN",
	"SENTRY_ENABLED",
	"SENTRY_ENVIRONMENT",
	"SENTRY_RELEASE",
	"SENTRY_SAMPLE_RATE",
}

// LoadConfig reads the file named by CROWN_CONFIG_FILE, or DefaultConfigFile.
func LoadConfig() (*Config, error) {
	path := os.Getenv("CROWN_CONFIG_FILE")
	if path == "" {
		path = DefaultConfigFile
	}
	return NewConfig(path)
}

// NewConfig reads settings from a dotenv-formatted file. Process environment
// variables take precedence over values from the file. A missing or unreadable
// file is an error; the caller is expected to exit.
func NewConfig(path string) (*Config, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read configuration file %s: %w", path, err)
	}

	for key := range values {
		if !slices.Contains(knownKeys, key) {
			slog.Default().Warn("Ignoring unknown setting", slog.String("key", key), slog.String("file", path))
		}
	}

	s := settings(values)

	expireEarly, err := s.getInt("FEDEX_EXPIRE_EARLY", 0)
	if err != nil {
		return nil, err
	}
	timeout, err := s.getDuration("FEDEX_REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	refresh, err := s.getDuration("FEDEX_REFRESH_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	port, err := s.getInt("CROWN_LOGISTICS_PORT", 8000)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("CROWN_LOGISTICS_PORT out of range: %d", port)
	}
	burst, err := s.getInt("CROWN_LOGISTICS_RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Env:      s.get("CROWN_LOGISTICS_ENV", "dev"),
			Port:     uint16(port),
			LogFile:  s.get("CROWN_LOGISTICS_LOG_FILE", ""),
			LogLevel: normalizeLogLevel(s.get("CROWN_LOGISTICS_LOG_LEVEL", "info")),

			CORSOrigins:    splitList(s.get("CROWN_LOGISTICS_CORS_ORIGINS", "")),
			RateLimitRPS:   s.getFloat("CROWN_LOGISTICS_RATE_LIMIT_RPS", 2),
			RateLimitBurst: burst,
		},
		FedEx: FedExConfig{
			ClientID:             s.get("FEDEX_CLIENT_ID", ""),
			ClientSecret:         s.get("FEDEX_CLIENT_SECRET", ""),
			AuthPayload:          s.get("FEDEX_AUTH_PAYLOAD", ""),
			AuthTokenURL:         s.get("FEDEX_AUTH_TOKEN_API_URL", "https://apis-sandbox.fedex.com/oauth/token"),
			AddressValidationURL: s.get("FEDEX_ADDRESS_VALIDATION_API_URL", "https://apis-sandbox.fedex.com/address/v1/addresses/resolve"),
			ExpireEarly:          time.Duration(expireEarly) * time.Second,
			RequestTimeout:       timeout,
			RefreshInterval:      refresh,
			Locale:               s.get("FEDEX_LOCALE", "en_US"),
			TestAddress: address.Address{
				StreetLines: splitStreetLines(s.get("FEDEX_TEST_STREET_LINES", "8 John Perry Dr|")),
				City:        s.get("FEDEX_TEST_CITY", "Danbury"),
				State:       s.get("FEDEX_TEST_STATE", "CT"),
				PostalCode:  s.get("FEDEX_TEST_POSTAL_CODE", "06811"),
				Country:     s.get("FEDEX_TEST_COUNTRY", "US"),
			},
		},
		Sentry: SentryConfig{
			DSN:         s.get("SENTRY_DSN", ""),
			Enabled:     s.getBool("SENTRY_ENABLED", false),
			Environment: s.get("SENTRY_ENVIRONMENT", "development"),
			Release:     s.get("SENTRY_RELEASE", AppVersion),
			SampleRate:  s.getFloat("SENTRY_SAMPLE_RATE", 1.0),
		},
	}

	// Validate env
	if cfg.App.Env != "dev" && cfg.App.Env != "prod" {
		slog.Default().Warn("Invalid environment. Using default: prod", slog.String("env", cfg.App.Env))
		cfg.App.Env = "prod"
	}

	if cfg.FedEx.ClientID == "" || cfg.FedEx.ClientSecret == "" {
		return nil, fmt.Errorf("FEDEX_CLIENT_ID and FEDEX_CLIENT_SECRET are required")
	}
	if cfg.FedEx.ExpireEarly < 0 {
		return nil, fmt.Errorf("FEDEX_EXPIRE_EARLY must not be negative")
	}
	if cfg.FedEx.RequestTimeout <= 0 {
		return nil, fmt.Errorf("FEDEX_REQUEST_TIMEOUT must be positive")
	}
	if cfg.FedEx.RefreshInterval < 0 {
		return nil, fmt.Errorf("FEDEX_REFRESH_INTERVAL must not be negative")
	}
	if err := address.Check(cfg.FedEx.TestAddress); err != nil {
		return nil, fmt.Errorf("invalid test address: %w", err)
	}

	return cfg, nil
}

// settings resolves a key from the process environment first, then the file.
type settings map[string]string

func (s settings) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value := s[key]; value != "" {
		return value
	}
	return defaultValue
}

func (s settings) getInt(key string, defaultValue int) (int, error) {
	value := s.get(key, "")
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

// getDuration accepts Go durations ("45s") and bare seconds ("45").
func (s settings) getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := strings.TrimSpace(s.get(key, ""))
	if value == "" {
		return defaultValue, nil
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func (s settings) getBool(key string, defaultValue bool) bool {
	if value := s.get(key, ""); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func (s settings) getFloat(key string, defaultValue float64) float64 {
	if value := s.get(key, ""); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// normalizeLogLevel maps numeric levels (10 debug, 20 info, 30 warn, 40 error)
// onto the names NewLogger understands. Unknown values fall back to info.
func normalizeLogLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "10":
		return "debug"
	case "info", "20":
		return "info"
	case "warn", "warning", "30":
		return "warn"
	case "error", "critical", "40", "50":
		return "error"
	default:
		slog.Default().Warn("Invalid log level. Using default: info", slog.String("value", level))
		return "info"
	}
}

func splitStreetLines(value string) []string {
	return strings.Split(value, "|")
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
