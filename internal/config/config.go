package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/tradeportal/portal_auth/internal/phone"
)

const (
	defaultAppName         = "PortalAuth"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultLoginRateLimit  = 10
	defaultOTPRateLimit    = 3
	defaultVerifyRateLimit = 5
	defaultOTPTimeout      = 10 * time.Second
	defaultMailFromName    = "Portal"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"

	// DevJWTSecret is only accepted when APP_ENV is development.
	DevJWTSecret = "dev-only-insecure-secret"
)

// OTPGateway configures the WhatsApp OTP provider used for password resets.
type OTPGateway struct {
	URL         string
	SendPath    string
	VerifyPath  string
	IDHeader    string
	ID          string
	KeyHeader   string
	Key         string
	Template    string
	Language    string
	CallbackURL string
	Timeout     time.Duration
}

// Enabled reports whether a gateway endpoint is configured.
func (g OTPGateway) Enabled() bool { return g.URL != "" }

// Twilio holds SMS credentials for self-issued verification codes.
type Twilio struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

func (t Twilio) Enabled() bool { return t.AccountSID != "" && t.AuthToken != "" }

// Mail holds MailerSend credentials for account security notices.
type Mail struct {
	APIKey    string
	FromName  string
	FromEmail string
}

func (m Mail) Enabled() bool { return m.APIKey != "" && m.FromEmail != "" }

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	NATSURL        string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	JWTSecret          string
	BcryptCost         int
	DefaultCountryCode string
	LoginRateLimit     int
	OTPRateLimit       int
	// VerifyRateLimit caps code verification attempts per phone in a 10 minute window.
	VerifyRateLimit int

	OTPGateway OTPGateway
	Twilio     Twilio
	Mail       Mail
}

// IsDevelopment reports whether relaxed defaults apply.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == defaultAppEnv || c.AppEnv == "dev" || c.AppEnv == "local"
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv populates a Config from environment variables only.
func FromEnv() (Config, error) {
	cfg := Config{
		AppName:            getEnv("APP_NAME", defaultAppName),
		AppEnv:             strings.ToLower(getEnv("APP_ENV", defaultAppEnv)),
		Port:               getEnv("PORT", defaultPort),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		NATSURL:            os.Getenv("NATS_URL"),
		ShutdownPeriod:     defaultShutdownDelay,
		IdempotencyTTL:     defaultIdempotencyTTL,
		JWTSecret:          getEnv("JWT_SECRET", DevJWTSecret),
		BcryptCost:         bcrypt.DefaultCost,
		DefaultCountryCode: phone.DefaultCountryCode,
		LoginRateLimit:     defaultLoginRateLimit,
		OTPRateLimit:       defaultOTPRateLimit,
		VerifyRateLimit:    defaultVerifyRateLimit,
		OTPGateway: OTPGateway{
			URL:         strings.TrimRight(os.Getenv("OTP_GATEWAY_URL"), "/"),
			SendPath:    getEnv("OTP_GATEWAY_SEND_PATH", "/send"),
			VerifyPath:  getEnv("OTP_GATEWAY_VERIFY_PATH", "/verify"),
			IDHeader:    getEnv("OTP_GATEWAY_ID_HEADER", "App-ID"),
			ID:          os.Getenv("OTP_GATEWAY_ID"),
			KeyHeader:   getEnv("OTP_GATEWAY_KEY_HEADER", "API-Key"),
			Key:         os.Getenv("OTP_GATEWAY_KEY"),
			Template:    os.Getenv("OTP_GATEWAY_TEMPLATE"),
			Language:    getEnv("OTP_GATEWAY_LANG", "id"),
			CallbackURL: os.Getenv("OTP_GATEWAY_CALLBACK_URL"),
			Timeout:     defaultOTPTimeout,
		},
		Twilio: Twilio{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
		},
		Mail: Mail{
			APIKey:    os.Getenv("MAILERSEND_API_KEY"),
			FromName:  getEnv("MAIL_FROM_NAME", defaultMailFromName),
			FromEmail: os.Getenv("MAIL_FROM_EMAIL"),
		},
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("OTP_GATEWAY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid OTP_GATEWAY_TIMEOUT: %q", v)
		}
		cfg.OTPGateway.Timeout = d
	}
	if cfg.BcryptCost, err = intEnv("BCRYPT_COST", cfg.BcryptCost); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return Config{}, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if cfg.LoginRateLimit, err = intEnv("LOGIN_RATE_LIMIT_PER_MIN", cfg.LoginRateLimit); err != nil {
		return Config{}, err
	}
	if cfg.OTPRateLimit, err = intEnv("OTP_RATE_LIMIT_PER_MIN", cfg.OTPRateLimit); err != nil {
		return Config{}, err
	}
	if cfg.VerifyRateLimit, err = intEnv("VERIFY_RATE_LIMIT", cfg.VerifyRateLimit); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("DEFAULT_COUNTRY_CODE"); v != "" {
		cc, err := phone.NormalizeCountryCode(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DEFAULT_COUNTRY_CODE: %w", err)
		}
		cfg.DefaultCountryCode = cc
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.IsDevelopment() {
		return nil
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL must be set")
	}
	if c.JWTSecret == DevJWTSecret || len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be set to at least 32 characters outside development")
	}
	if !c.OTPGateway.Enabled() {
		return fmt.Errorf("OTP_GATEWAY_URL must be set outside development")
	}
	return nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// durationEnv prefers the integer-seconds variable over the Go duration one.
func durationEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}
