package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName         = "FoodVoucher"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultLocale          = "es"
	defaultCountryCode     = "+34"
	defaultFailNumber      = "660555444"
	defaultMinPhoneLength  = 9
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultRunTTL          = 30 * time.Minute
	defaultPhoneCheck      = 1500 * time.Millisecond
	defaultSIMCheck        = 1000 * time.Millisecond
	defaultBiometric       = 1000 * time.Millisecond
	defaultSettleDelay     = 1000 * time.Millisecond
	defaultStepTimeout     = 10 * time.Second
	defaultStepRetries     = 1
	defaultSIMRisk         = 0.10
	defaultCardAllowance   = 25_000
	defaultVerifyPerMinute = 5
	defaultSweepSchedule   = "@every 1m"
	defaultExecutorMode    = ExecutorDelay
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	runTTLSecondsEnvVar    = "RUN_TTL_SECONDS"
	runTTLDurEnvVar        = "RUN_TTL"
	simRiskEnvVar          = "SIM_RISK_PROBABILITY"
	stepRetriesEnvVar      = "STEP_RETRIES"
	minPhoneLengthEnvVar   = "MIN_PHONE_LENGTH"
	cardAllowanceEnvVar    = "CARD_ALLOWANCE_CENTS"
	verifyPerMinuteEnvVar  = "VERIFY_RATE_LIMIT_PER_MINUTE"
	executorModeEnvVar     = "VERIFICATION_EXECUTOR"
	phoneCheckEnvVar       = "PHONE_CHECK_DURATION"
	simCheckEnvVar         = "SIM_CHECK_DURATION"
	biometricEnvVar        = "BIOMETRIC_DURATION"
	settleDelayEnvVar      = "SETTLE_DELAY"
	stepTimeoutEnvVar      = "STEP_TIMEOUT"
)

// Executor modes select how verification steps are awaited.
const (
	// ExecutorDelay waits a fixed per-step duration and draws local verdicts.
	ExecutorDelay = "delay"
	// ExecutorGateway calls the verification gateway provider.
	ExecutorGateway = "gateway"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	AMQPURL        string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	RunTTL         time.Duration
	SweepSchedule  string

	Verification  Verification
	CardAllowance int64
	VerifyPerMin  int
}

// Verification holds the tunables of the verification sequencer.
type Verification struct {
	Locale             string
	CountryCode        string
	FailNumber         string
	MinPhoneLength     int
	PhoneCheckDuration time.Duration
	SIMCheckDuration   time.Duration
	BiometricDuration  time.Duration
	SettleDelay        time.Duration
	StepTimeout        time.Duration
	StepRetries        int
	SIMRiskProbability float64
	Executor           string
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
		AMQPURL:        os.Getenv("AMQP_URL"),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		RunTTL:         defaultRunTTL,
		SweepSchedule:  getEnv("SWEEP_SCHEDULE", defaultSweepSchedule),
		Verification: Verification{
			Locale:             strings.ToLower(getEnv("LOCALE", defaultLocale)),
			CountryCode:        getEnv("COUNTRY_CODE", defaultCountryCode),
			FailNumber:         getEnv("FAIL_NUMBER", defaultFailNumber),
			MinPhoneLength:     defaultMinPhoneLength,
			PhoneCheckDuration: defaultPhoneCheck,
			SIMCheckDuration:   defaultSIMCheck,
			BiometricDuration:  defaultBiometric,
			SettleDelay:        defaultSettleDelay,
			StepTimeout:        defaultStepTimeout,
			StepRetries:        defaultStepRetries,
			SIMRiskProbability: defaultSIMRisk,
			Executor:           strings.ToLower(getEnv(executorModeEnvVar, defaultExecutorMode)),
		},
		CardAllowance: defaultCardAllowance,
		VerifyPerMin:  defaultVerifyPerMinute,
	}

	var err error
	if cfg.ShutdownPeriod, err = secondsOrDuration(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = secondsOrDuration(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.RunTTL, err = secondsOrDuration(runTTLSecondsEnvVar, runTTLDurEnvVar, cfg.RunTTL); err != nil {
		return Config{}, err
	}

	v := &cfg.Verification
	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{phoneCheckEnvVar, &v.PhoneCheckDuration},
		{simCheckEnvVar, &v.SIMCheckDuration},
		{biometricEnvVar, &v.BiometricDuration},
		{settleDelayEnvVar, &v.SettleDelay},
		{stepTimeoutEnvVar, &v.StepTimeout},
	} {
		if raw := os.Getenv(d.key); raw != "" {
			parsed, err := time.ParseDuration(raw)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
			}
			*d.dst = parsed
		}
	}

	if raw := os.Getenv(simRiskEnvVar); raw != "" {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", simRiskEnvVar, err)
		}
		if p < 0 || p > 1 {
			return Config{}, fmt.Errorf("%s must be within [0,1]", simRiskEnvVar)
		}
		v.SIMRiskProbability = p
	}

	if v.StepRetries, err = intEnv(stepRetriesEnvVar, v.StepRetries); err != nil {
		return Config{}, err
	}
	if v.MinPhoneLength, err = intEnv(minPhoneLengthEnvVar, v.MinPhoneLength); err != nil {
		return Config{}, err
	}
	if cfg.VerifyPerMin, err = intEnv(verifyPerMinuteEnvVar, cfg.VerifyPerMin); err != nil {
		return Config{}, err
	}
	allowance, err := intEnv(cardAllowanceEnvVar, int(cfg.CardAllowance))
	if err != nil {
		return Config{}, err
	}
	cfg.CardAllowance = int64(allowance)

	switch v.Executor {
	case ExecutorDelay, ExecutorGateway:
	default:
		return Config{}, fmt.Errorf("%s must be %q or %q", executorModeEnvVar, ExecutorDelay, ExecutorGateway)
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

// IsDev reports whether the service runs in a development environment where
// Postgres and Redis may be absent.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func secondsOrDuration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
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

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
