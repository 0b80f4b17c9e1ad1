package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/ses-client-auth/internal/config"
)

// claims is the JWT body for both token kinds. Refresh tokens only set the
// registered claims and TokenType.
type claims struct {
	jwt.RegisteredClaims
	TokenType     Audience `json:"token_type"`
	Identifier    string   `json:"identifier,omitempty"`
	DisplayName   string   `json:"display_name,omitempty"`
	PartnershipID string   `json:"partnership_id,omitempty"`
	Roles         []string `json:"roles"`
	Permissions   []string `json:"permissions"`
}

// Codec encodes and decodes session tokens. Access and refresh tokens are signed
// with different keys.
type Codec struct {
	accessKey  audienceKey
	refreshKey audienceKey
	issuer     string
	nowFunc    func() time.Time
}

type CodecOption func(*Codec)

// WithNowFunc sets the clock (primarily for testing)
func WithNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

// NewCodec builds a codec from the security configuration. Missing or identical
// keys are a configuration error.
func NewCodec(sec *config.Security, options ...CodecOption) (*Codec, error) {
	if err := sec.Validate(false); err != nil {
		return nil, err
	}
	c := &Codec{
		accessKey:  newAudienceKey(AudienceAccess, sec.AccessTokenSecret),
		refreshKey: newAudienceKey(AudienceRefresh, sec.RefreshTokenSecret),
		issuer:     sec.Issuer,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Expiry returns the fixed lifetime for the audience.
func Expiry(aud Audience) time.Duration {
	if aud == AudienceRefresh {
		return config.RefreshTokenExpiry
	}
	return config.AccessTokenExpiry
}

// Encode signs a token for the audience. Refresh tokens carry only the user id.
func (c *Codec) Encode(p Principal, aud Audience) (string, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return "", errors.New("principal has no user id")
	}
	now := c.nowFunc()
	tc := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(Expiry(aud))),
			ID:        uuid.New().String(),
		},
		TokenType: aud,
	}

	key := c.refreshKey
	if aud == AudienceAccess {
		tc.Identifier = p.Identifier
		tc.DisplayName = p.DisplayName
		tc.PartnershipID = p.PartnershipID
		tc.Roles = p.Roles
		tc.Permissions = p.Permissions
		key = c.accessKey
	} else if aud != AudienceRefresh {
		return "", errors.New("unknown audience " + string(aud))
	}
	return key.sign(tc)
}

// Decode verifies the token for the expected audience. Failures are *DecodeError.
func (c *Codec) Decode(rawToken string, aud Audience) (*Principal, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, &DecodeError{Kind: Malformed, Err: errors.New("empty token")}
	}

	// Read the token type first so a token of the other kind is reported as
	// an audience mismatch rather than a bad signature.
	var unverified claims
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, &unverified); err != nil {
		return nil, &DecodeError{Kind: Malformed, Err: err}
	}
	switch unverified.TokenType {
	case AudienceAccess, AudienceRefresh:
	default:
		return nil, &DecodeError{Kind: Malformed, Err: errors.New("missing token_type")}
	}
	if unverified.TokenType != aud {
		return nil, &DecodeError{Kind: AudienceMismatch}
	}

	key := c.accessKey
	if aud == AudienceRefresh {
		key = c.refreshKey
	}

	var tc claims
	_, err := jwt.ParseWithClaims(rawToken, &tc, key.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.nowFunc),
	)
	if err != nil {
		return nil, classify(err)
	}
	if tc.Subject == "" {
		return nil, &DecodeError{Kind: Malformed, Err: errors.New("missing subject")}
	}

	p := &Principal{UserID: tc.Subject}
	if aud == AudienceAccess {
		p.Identifier = tc.Identifier
		p.DisplayName = tc.DisplayName
		p.PartnershipID = tc.PartnershipID
		p.Roles = tc.Roles
		p.Permissions = tc.Permissions
	}
	return p, nil
}

func classify(err error) *DecodeError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &DecodeError{Kind: Expired, Err: err}
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return &DecodeError{Kind: Malformed, Err: err}
	}
	return &DecodeError{Kind: SignatureInvalid, Err: err}
}
