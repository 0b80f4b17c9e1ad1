package config

import (
	"errors"
	"fmt"
	"time"

	autherrors "github.com/jrsteele09/ses-client-auth/internal/errors"
)

// MinProductionSecretLength is the minimum signing key length accepted with ENV=PROD.
const MinProductionSecretLength = 32

// Token lifetimes are fixed per deployment.
const (
	AccessTokenExpiry  = 8 * time.Hour
	RefreshTokenExpiry = 30 * 24 * time.Hour
)

type Security struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	Issuer             string
}

// Validate rejects missing or shared signing keys, and short keys in production.
func (s Security) Validate(production bool) error {
	if s.AccessTokenSecret == "" || s.RefreshTokenSecret == "" {
		return autherrors.WithCause(autherrors.ConfigurationError,
			errors.New("access and refresh token secrets are required"))
	}
	if s.AccessTokenSecret == s.RefreshTokenSecret {
		return autherrors.WithCause(autherrors.ConfigurationError,
			errors.New("access and refresh token secrets must differ"))
	}
	if !production {
		return nil
	}
	if len(s.AccessTokenSecret) < MinProductionSecretLength {
		return autherrors.WithCause(autherrors.ConfigurationError,
			fmt.Errorf("access token secret must be at least %d bytes", MinProductionSecretLength))
	}
	if len(s.RefreshTokenSecret) < MinProductionSecretLength {
		return autherrors.WithCause(autherrors.ConfigurationError,
			fmt.Errorf("refresh token secret must be at least %d bytes", MinProductionSecretLength))
	}
	return nil
}
