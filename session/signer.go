package session

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// audienceKey holds the HS256 secret for one token audience. Access and refresh
// tokens never share a key.
type audienceKey struct {
	aud    Audience
	secret []byte
}

func newAudienceKey(aud Audience, secret string) audienceKey {
	return audienceKey{aud: aud, secret: []byte(secret)}
}

func (k audienceKey) sign(c jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(k.secret)
	if err != nil {
		return "", errors.Wrapf(err, "sign %s token", k.aud)
	}
	return signed, nil
}

func (k audienceKey) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return k.secret, nil
}
