// Package jwt verifies the bearer tokens collector clients present.
package jwt

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidPEM   = errors.New("jwt: invalid pem")
	ErrInvalidToken = errors.New("jwt: invalid token")
	ErrNoKeys       = errors.New("jwt: no verification keys")
)

// Validator checks RS/ES signed tokens against a set of certificates.
// The token's kid header selects the certificate by subject common name;
// without a match the first certificate is used.
type Validator struct {
	certs    []*x509.Certificate
	iss, aud string
}

func NewValidator(certPaths []string, issuer, audience string) (*Validator, error) {
	v := &Validator{iss: issuer, aud: audience}
	for _, p := range certPaths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		c, err := parseCert(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		v.certs = append(v.certs, c)
	}
	return v, nil
}

// Enabled reports whether any key is configured. A disabled validator
// rejects every token.
func (v *Validator) Enabled() bool { return len(v.certs) > 0 }

func (v *Validator) Verify(tokenStr string) (jwt.MapClaims, error) {
	if !v.Enabled() {
		return nil, ErrNoKeys
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"})}
	if v.iss != "" {
		opts = append(opts, jwt.WithIssuer(v.iss))
	}
	if v.aud != "" {
		opts = append(opts, jwt.WithAudience(v.aud))
	}

	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, v.key, opts...)
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

func (v *Validator) key(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	for _, c := range v.certs {
		if c.Subject.CommonName == kid {
			return c.PublicKey, nil
		}
	}
	return v.certs[0].PublicKey, nil
}

func parseCert(b []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, ErrInvalidPEM
	}
	return x509.ParseCertificate(block.Bytes)
}
