package session

import (
	"fmt"

	autherrors "github.com/jrsteele09/ses-client-auth/internal/errors"
)

// DecodeErrorKind classifies why a token was rejected.
type DecodeErrorKind string

const (
	Malformed        DecodeErrorKind = "malformed"
	SignatureInvalid DecodeErrorKind = "signature_invalid"
	Expired          DecodeErrorKind = "expired"
	AudienceMismatch DecodeErrorKind = "audience_mismatch"
)

type DecodeError struct {
	Kind DecodeErrorKind
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
	}
	return "token " + string(e.Kind)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// AuthError converts the decode failure into the service-wide taxonomy.
func (e *DecodeError) AuthError() *autherrors.AuthError {
	if e.Kind == Expired {
		return autherrors.WithCause(autherrors.TokenExpired, e)
	}
	return autherrors.WithCause(autherrors.InvalidToken, e)
}
