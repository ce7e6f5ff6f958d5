package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func buildToken(t *testing.T, mutate func(*jwt.Builder)) jwt.Token {
	t.Helper()
	now := time.Now()
	b := jwt.NewBuilder().
		Issuer("issuer").
		Audience([]string{"aud"}).
		Subject("sub").
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(time.Minute))
	if mutate != nil {
		mutate(b)
	}
	token, err := b.Build()
	require.NoError(t, err)
	return token
}

func TestTokenValidatorValidateSuccess(t *testing.T) {
	token := buildToken(t, nil)
	v := TokenValidator{Issuer: "issuer", Audience: "aud", ClockSkew: time.Second, Algorithm: jwa.HS256}
	require.NoError(t, v.Validate(token, jwa.HS256, time.Now()))
}

func TestTokenValidatorIssuerMismatch(t *testing.T) {
	token := buildToken(t, func(b *jwt.Builder) { b.Issuer("other") })
	v := TokenValidator{Issuer: "issuer", Audience: "aud", Algorithm: jwa.HS256}
	require.Error(t, v.Validate(token, jwa.HS256, time.Now()))
}

func TestTokenValidatorExpiry(t *testing.T) {
	now := time.Now()
	token := buildToken(t, func(b *jwt.Builder) {
		b.IssuedAt(now.Add(-2 * time.Hour))
		b.NotBefore(now.Add(-2 * time.Hour))
		b.Expiration(now.Add(-time.Minute))
	})
	v := TokenValidator{Issuer: "issuer", Audience: "aud", Algorithm: jwa.HS256}
	require.Error(t, v.Validate(token, jwa.HS256, now))
}

func TestTokenValidatorNotBefore(t *testing.T) {
	now := time.Now()
	token := buildToken(t, func(b *jwt.Builder) {
		b.NotBefore(now.Add(5 * time.Minute))
		b.Expiration(now.Add(10 * time.Minute))
	})
	v := TokenValidator{Issuer: "issuer", Audience: "aud", Algorithm: jwa.HS256, ClockSkew: time.Second}
	require.Error(t, v.Validate(token, jwa.HS256, now))
}

func TestTokenValidatorAlgorithmMismatch(t *testing.T) {
	token := buildToken(t, nil)
	v := TokenValidator{Issuer: "issuer", Audience: "aud", Algorithm: jwa.HS256}
	require.Error(t, v.Validate(token, jwa.RS256, time.Now()))
}
