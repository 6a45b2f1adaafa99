package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the envelope the spec requires: device, mobile, and
// session identity plus standard issued/expiry timestamps. It embeds
// jwt.RegisteredClaims so minting and verifying produce the exact
// three-segment base64url `header.payload.signature` envelope described in
// §4.A — golang-jwt's HS256 path already does the base64url/HMAC work, so
// there is nothing bespoke left to hand-roll here.
type Claims struct {
	DeviceID  string `json:"device_id"`
	MobileID  string `json:"mobile_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// MintToken produces a signed bearer token for the given device/mobile pair,
// valid for ttl starting now. The returned string is always a three
// dot-separated base64url segment envelope with alg HS256.
func MintToken(deviceID, mobileID, sessionID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		DeviceID:  deviceID,
		MobileID:  mobileID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(secret)
}

// VerifyToken parses and validates envelope, returning the decoded claims.
// It returns a nil *Claims (never an error a caller needs to branch on
// beyond "unauthenticated") whenever the envelope is malformed, the
// signature doesn't match, or the token has expired — mirroring the spec's
// "no exceptions escape" contract.
func VerifyToken(envelope string, secret []byte) *Claims {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(envelope, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil
	}
	// jwt/v5 only rejects exp strictly before now, so a token with
	// exp == now parses as valid; §8's boundary case requires it be
	// rejected, so enforce the stricter "exp must be after now" here.
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(time.Now()) {
		return nil
	}
	return claims
}
