package jwt_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EchoPBX/trackbus-gateway/internal/jwt"
)

func writeCert(t *testing.T, cn string) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), cn+".pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	return key, path
}

func sign(t *testing.T, key *rsa.PrivateKey, kid string, claims gojwt.MapClaims) string {
	t.Helper()
	tok := gojwt.NewWithClaims(gojwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func Test_Verify(t *testing.T) {
	keyA, pathA := writeCert(t, "a")
	keyB, pathB := writeCert(t, "b")
	other, _ := writeCert(t, "other")

	v, err := jwt.NewValidator([]string{pathA, pathB}, "trackbus", "collector")
	require.NoError(t, err)
	require.True(t, v.Enabled())

	good := gojwt.MapClaims{"iss": "trackbus", "aud": "collector", "exp": time.Now().Add(time.Minute).Unix()}

	claims, err := v.Verify(sign(t, keyB, "b", good))
	require.NoError(t, err)
	assert.Equal(t, "trackbus", claims["iss"])

	_, err = v.Verify(sign(t, keyA, "", good))
	assert.NoError(t, err)

	_, err = v.Verify(sign(t, other, "a", good))
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)

	_, err = v.Verify(sign(t, keyA, "a", gojwt.MapClaims{"iss": "someone", "aud": "collector"}))
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)

	_, err = v.Verify("garbage")
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func Test_NewValidator_Errors(t *testing.T) {
	_, err := jwt.NewValidator([]string{filepath.Join(t.TempDir(), "missing.pem")}, "", "")
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o600))
	_, err = jwt.NewValidator([]string{bad}, "", "")
	assert.ErrorIs(t, err, jwt.ErrInvalidPEM)
}

func Test_Disabled(t *testing.T) {
	v, err := jwt.NewValidator(nil, "", "")
	require.NoError(t, err)
	assert.False(t, v.Enabled())

	_, err = v.Verify("anything")
	assert.ErrorIs(t, err, jwt.ErrNoKeys)
}
