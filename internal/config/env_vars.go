package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar        = "PORT"
	appNameVar        = "APP_NAME"
	envVar            = "ENV"
	logLevelVar       = "LOG_LEVEL"
	databaseURLVar    = "DATABASE_URL"
	storeTimeoutVar   = "STORE_TIMEOUT"
	accessSecretVar   = "JWT_ACCESS_SECRET"
	refreshSecretVar  = "JWT_REFRESH_SECRET"
	issuerVar         = "JWT_ISSUER"
	corsOriginsVar    = "CORS_ALLOWED_ORIGINS"
	loginRateVar      = "LOGIN_RATE_PER_SECOND"
	loginBurstVar     = "LOGIN_RATE_BURST"
	trustedProxiesVar = "TRUSTED_PROXIES"
)

type EnvVars struct{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "SES Client Portal")
}

func (EnvVars) GetEnv() string {
	return strings.ToUpper(GetEnv(envVar, EnvDev))
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

// GetDatabaseURL returns the Postgres DSN. Empty means the in-memory stores are used.
func (EnvVars) GetDatabaseURL() string {
	return GetEnv(databaseURLVar, "")
}

func (EnvVars) GetStoreTimeout() time.Duration {
	d, err := time.ParseDuration(GetEnv(storeTimeoutVar, "3s"))
	if err != nil || d <= 0 {
		return 3 * time.Second
	}
	return d
}

func (EnvVars) GetLoginRatePerSecond() float64 {
	v, err := strconv.ParseFloat(GetEnv(loginRateVar, "1"), 64)
	if err != nil || v <= 0 {
		return 1
	}
	return v
}

func (EnvVars) GetLoginRateBurst() int {
	v, err := strconv.Atoi(GetEnv(loginBurstVar, "5"))
	if err != nil || v <= 0 {
		return 5
	}
	return v
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
