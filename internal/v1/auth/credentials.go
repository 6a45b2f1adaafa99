// Package auth implements the credential utilities that bootstrap a mobile
// client's access to a device room: PIN-pairing, identifier generation, and
// bearer-token mint/verify.
package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"time"
)

// DeviceIDPattern matches the human-pronounceable "word-word-NN" device
// identifier shape. Validated at every public entry point that accepts one.
var DeviceIDPattern = regexp.MustCompile(`^[a-z]+-[a-z]+-[0-9]{2}$`)

// PinPattern matches a 6-decimal-digit pairing code, leading zeros included.
var PinPattern = regexp.MustCompile(`^[0-9]{6}$`)

// ValidDeviceID reports whether id matches the device identifier shape.
func ValidDeviceID(id string) bool {
	return DeviceIDPattern.MatchString(id)
}

// ValidPin reports whether pin is exactly 6 decimal digits.
func ValidPin(pin string) bool {
	return PinPattern.MatchString(pin)
}

const pinMax = 1000000 // exclusive upper bound: 000000..999999

// GeneratePin returns a 6-character decimal string drawn uniformly from
// 000000..999999 using a cryptographically secure random source. Leading
// zeros are preserved by zero-padding.
func GeneratePin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(pinMax))
	if err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// GenerateMobileID returns a 32-hex-char identifier derived from 16 random
// bytes. This, not the device identifier, is what a room uses to address a
// specific mobile attachment.
func GenerateMobileID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate mobile id: %w", err)
	}
	return fmt.Sprintf("%x", b), nil
}

// GenerateSessionID returns a base36 millisecond timestamp, a dash, and 8
// hex chars of randomness. Uniqueness within a single host is sufficient;
// global uniqueness is not required.
func GenerateSessionID() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	return fmt.Sprintf("%s-%x", ts, b), nil
}
