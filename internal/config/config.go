package config

import (
	"time"

	autherrors "github.com/jrsteele09/ses-client-auth/internal/errors"
)

const (
	EnvDev  = "DEV"
	EnvProd = "PROD"
)

// Config is built once at process start and passed by reference to every component.
type Config struct {
	Env          string
	Port         string
	AppName      string
	LogLevel     string
	DatabaseURL  string
	StoreTimeout time.Duration
	Security     Security
	Cors         Cors
	RateLimit    RateLimit

	// TrustedProxies are the peers allowed to report the client address in X-Forwarded-For.
	TrustedProxies TrustedProxies

	loadErr error
}

// RateLimit configures the per-client token bucket on the authentication endpoints.
type RateLimit struct {
	PerSecond float64
	Burst     int
}

// Load reads the configuration from the environment. It does not validate; call Validate.
func Load() *Config {
	env := EnvVars{}
	proxies, proxiesErr := ParseTrustedProxies(GetEnv(trustedProxiesVar, ""))
	return &Config{
		Env:          env.GetEnv(),
		Port:         env.GetPort(),
		AppName:      env.GetAppName(),
		LogLevel:     env.GetLogLevel(),
		DatabaseURL:  env.GetDatabaseURL(),
		StoreTimeout: env.GetStoreTimeout(),
		Security: Security{
			AccessTokenSecret:  GetEnv(accessSecretVar, ""),
			RefreshTokenSecret: GetEnv(refreshSecretVar, ""),
			Issuer:             GetEnv(issuerVar, "ses-client-portal"),
		},
		Cors: Cors{AllowedOrigins: parseOrigins(GetEnv(corsOriginsVar, ""))},
		RateLimit: RateLimit{
			PerSecond: env.GetLoginRatePerSecond(),
			Burst:     env.GetLoginRateBurst(),
		},
		TrustedProxies: proxies,
		loadErr:        proxiesErr,
	}
}

// IsProduction reports whether the process runs with production hardening.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProd
}

// Validate checks the configuration and returns a ConfigurationError when the service must not start.
func (c *Config) Validate() error {
	if c.loadErr != nil {
		return autherrors.WithCause(autherrors.ConfigurationError, c.loadErr)
	}
	return c.Security.Validate(c.IsProduction())
}
