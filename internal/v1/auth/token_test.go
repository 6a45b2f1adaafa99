package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestMintVerify_RoundTrip(t *testing.T) {
	token, err := MintToken("swift-tiger-42", "deadbeefdeadbeefdeadbeefdeadbeef", "abc123-def45678", testSecret, time.Hour)
	require.NoError(t, err)

	claims := VerifyToken(token, testSecret)
	require.NotNil(t, claims)
	assert.Equal(t, "swift-tiger-42", claims.DeviceID)
	assert.Equal(t, "deadbeefdeadbeefdeadbeefdeadbeef", claims.MobileID)
	assert.Equal(t, "abc123-def45678", claims.SessionID)
	require.NotNil(t, claims.IssuedAt)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, claims.IssuedAt.Time.Add(time.Hour), claims.ExpiresAt.Time, time.Second)
}

func TestMintToken_IsThreeSegmentEnvelope(t *testing.T) {
	token, err := MintToken("swift-tiger-42", "mobile1", "session1", testSecret, time.Hour)
	require.NoError(t, err)

	parts := splitDots(token)
	require.Len(t, parts, 3)
	for _, p := range parts {
		assert.NotEmpty(t, p)
	}
}

func TestVerifyToken_WrongSecretRejected(t *testing.T) {
	token, err := MintToken("swift-tiger-42", "mobile1", "session1", testSecret, time.Hour)
	require.NoError(t, err)

	claims := VerifyToken(token, []byte("a-completely-different-secret-32"))
	assert.Nil(t, claims)
}

func TestVerifyToken_TamperedSignatureRejected(t *testing.T) {
	token, err := MintToken("swift-tiger-42", "mobile1", "session1", testSecret, time.Hour)
	require.NoError(t, err)

	parts := splitDots(token)
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + parts[2][:len(parts[2])-1] + "x"

	claims := VerifyToken(tampered, testSecret)
	assert.Nil(t, claims)
}

func TestVerifyToken_MalformedEnvelopeRejected(t *testing.T) {
	for _, bad := range []string{
		"",
		"not-a-jwt",
		"only.two",
		"one.two.three.four",
		"!!!.!!!.!!!",
	} {
		assert.Nil(t, VerifyToken(bad, testSecret), "expected rejection for %q", bad)
	}
}

func TestVerifyToken_ExpiredRejected(t *testing.T) {
	token, err := MintToken("swift-tiger-42", "mobile1", "session1", testSecret, -time.Second)
	require.NoError(t, err)

	assert.Nil(t, VerifyToken(token, testSecret))
}

func TestVerifyToken_ExpiryExactlyNowRejected(t *testing.T) {
	now := time.Now()
	claims := Claims{
		DeviceID: "swift-tiger-42",
		MobileID: "mobile1",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(testSecret)
	require.NoError(t, err)

	assert.Nil(t, VerifyToken(signed, testSecret))
}

func TestVerifyToken_UnexpectedSigningMethodRejected(t *testing.T) {
	claims := Claims{
		DeviceID: "swift-tiger-42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	assert.Nil(t, VerifyToken(signed, testSecret))
}

func splitDots(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
