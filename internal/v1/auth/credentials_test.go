package auth

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePin_Format(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		pin, err := GeneratePin()
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), pin)
		assert.True(t, ValidPin(pin))
		seen[pin] = true
	}
	// Not a strict uniqueness guarantee, but 200 draws from a 1e6 space
	// landing on fewer than 2 distinct values would indicate a broken RNG.
	assert.Greater(t, len(seen), 1)
}

func TestGeneratePin_PreservesLeadingZeros(t *testing.T) {
	// About one draw in ten starts with a zero, so 2000 draws exercise the
	// zero-padding path; every result must still be 6 characters long.
	for i := 0; i < 2000; i++ {
		pin, err := GeneratePin()
		require.NoError(t, err)
		assert.Len(t, pin, 6)
	}
}

func TestGenerateMobileID_Format(t *testing.T) {
	id, err := GenerateMobileID()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), id)

	id2, err := GenerateMobileID()
	require.NoError(t, err)
	assert.NotEqual(t, id, id2)
}

func TestGenerateSessionID_Format(t *testing.T) {
	id, err := GenerateSessionID()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-z]+-[0-9a-f]{8}$`), id)

	id2, err := GenerateSessionID()
	require.NoError(t, err)
	assert.NotEqual(t, id, id2)
}

func TestValidDeviceID(t *testing.T) {
	assert.True(t, ValidDeviceID("swift-tiger-42"))
	assert.False(t, ValidDeviceID("swift-tiger-4"))
	assert.False(t, ValidDeviceID("SWIFT-tiger-42"))
	assert.False(t, ValidDeviceID("swift_tiger_42"))
	assert.False(t, ValidDeviceID("swift-tiger"))
	assert.False(t, ValidDeviceID(""))
}

func TestValidPin(t *testing.T) {
	assert.True(t, ValidPin("000000"))
	assert.True(t, ValidPin("314159"))
	assert.False(t, ValidPin("12345"))
	assert.False(t, ValidPin("1234567"))
	assert.False(t, ValidPin("12a456"))
	assert.False(t, ValidPin(""))
}
