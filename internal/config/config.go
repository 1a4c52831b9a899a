package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName       = "StanceVote"
	defaultAppEnv        = "development"
	defaultPort          = "8080"
	defaultLogLevel      = "info"
	defaultShutdownDelay = 10 * time.Second

	defaultCodeLength      = 6
	defaultCodeTTL         = 5 * time.Minute
	defaultCodeMaxAttempts = 3

	defaultCredentialTTL = 5 * time.Minute

	defaultBallotLinkTTL  = 12 * time.Hour
	defaultDeviceSlotCap  = 3
	defaultLookupTimeout  = 3 * time.Second
	defaultCaptchaTimeout = 5 * time.Second

	defaultCodesPerPhonePerHour   = 3
	defaultConfirmsPerPhonePerMin = 10
	defaultLinksPerPhonePerDay    = 2
	defaultGlobalSMSPerHour       = 500
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration

	// Secrets. Neither may ever appear in logs or responses.
	FingerprintSalt string
	TokenSecret     string

	CodeLength      int
	CodeTTL         time.Duration
	CodeMaxAttempts int

	CredentialTTL time.Duration

	BallotLinkTTL time.Duration
	BallotBaseURL string
	DeviceSlotCap int

	CaptchaURL     string
	CaptchaSecret  string
	CaptchaTimeout time.Duration
	LookupURL      string
	LookupTimeout  time.Duration

	CodesPerPhonePerHour   int
	ConfirmsPerPhonePerMin int
	LinksPerPhonePerDay    int
	GlobalSMSPerHour       int

	// AdminEmail receives fire-and-forget candidate-event pings when set.
	AdminEmail string
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		ShutdownPeriod: defaultShutdownDelay,

		FingerprintSalt: os.Getenv("FINGERPRINT_SALT"),
		TokenSecret:     os.Getenv("TOKEN_SECRET"),

		CodeLength:      defaultCodeLength,
		CodeTTL:         defaultCodeTTL,
		CodeMaxAttempts: defaultCodeMaxAttempts,

		CredentialTTL: defaultCredentialTTL,

		BallotLinkTTL: defaultBallotLinkTTL,
		BallotBaseURL: getEnv("BALLOT_BASE_URL", "https://stancevote.example/b"),
		DeviceSlotCap: defaultDeviceSlotCap,

		CaptchaURL:     os.Getenv("CAPTCHA_VERIFY_URL"),
		CaptchaSecret:  os.Getenv("CAPTCHA_SECRET"),
		CaptchaTimeout: defaultCaptchaTimeout,
		LookupURL:      os.Getenv("PHONE_LOOKUP_URL"),
		LookupTimeout:  defaultLookupTimeout,

		CodesPerPhonePerHour:   defaultCodesPerPhonePerHour,
		ConfirmsPerPhonePerMin: defaultConfirmsPerPhonePerMin,
		LinksPerPhonePerDay:    defaultLinksPerPhonePerDay,
		GlobalSMSPerHour:       defaultGlobalSMSPerHour,

		AdminEmail: os.Getenv("ADMIN_EMAIL"),
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv("SHUTDOWN_TIMEOUT", cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.CodeTTL, err = durationEnv("SMS_CODE_TTL", cfg.CodeTTL); err != nil {
		return Config{}, err
	}
	if cfg.CredentialTTL, err = durationEnv("CREDENTIAL_TTL", cfg.CredentialTTL); err != nil {
		return Config{}, err
	}
	if cfg.BallotLinkTTL, err = durationEnv("BALLOT_LINK_TTL", cfg.BallotLinkTTL); err != nil {
		return Config{}, err
	}
	if cfg.CodeMaxAttempts, err = intEnv("SMS_MAX_ATTEMPTS", cfg.CodeMaxAttempts); err != nil {
		return Config{}, err
	}
	if cfg.CodeLength, err = intEnv("SMS_CODE_LENGTH", cfg.CodeLength); err != nil {
		return Config{}, err
	}
	if cfg.DeviceSlotCap, err = intEnv("DEVICE_SLOT_CAP", cfg.DeviceSlotCap); err != nil {
		return Config{}, err
	}
	if cfg.CodesPerPhonePerHour, err = intEnv("RL_CODES_PER_PHONE_HOUR", cfg.CodesPerPhonePerHour); err != nil {
		return Config{}, err
	}
	if cfg.ConfirmsPerPhonePerMin, err = intEnv("RL_CONFIRMS_PER_PHONE_MIN", cfg.ConfirmsPerPhonePerMin); err != nil {
		return Config{}, err
	}
	if cfg.LinksPerPhonePerDay, err = intEnv("RL_LINKS_PER_PHONE_DAY", cfg.LinksPerPhonePerDay); err != nil {
		return Config{}, err
	}
	if cfg.GlobalSMSPerHour, err = intEnv("RL_GLOBAL_SMS_HOUR", cfg.GlobalSMSPerHour); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.FingerprintSalt == "" {
		return Config{}, fmt.Errorf("FINGERPRINT_SALT must be set")
	}
	if cfg.TokenSecret == "" {
		return Config{}, fmt.Errorf("TOKEN_SECRET must be set")
	}

	return cfg, nil
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

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
