package auth

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/climanger/relay/internal/v1/logging"
)

// GetAllowedOriginsFromEnv reads a comma-separated CORS allow-list from the
// named environment variable, falling back to defaultEnvs when unset. A
// single "*" entry disables the allow-list entirely (handled by callers).
func GetAllowedOriginsFromEnv(envVarName string, defaultEnvs []string) []string {
	originsStr := os.Getenv(envVarName)
	if originsStr == "" {
		logging.Warn(context.Background(), fmt.Sprintf("%s environment variable not set. Using default origins:\n%s", envVarName, defaultEnvs))
		return defaultEnvs
	}
	return strings.Split(originsStr, ",")
}

// OriginAllowed reports whether origin matches the allow-list. A single "*"
// entry matches everything.
func OriginAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// ReflectedOrigin computes the Access-Control-Allow-Origin value for a
// request's Origin header per §4.B: reflect the request origin if and only
// if it matches the configured allow-list, else fall back to the first
// configured origin. A "*" entry disables the allow-list: every origin
// matches, and when "*" is the first entry the returned value is "*" itself
// rather than the request origin.
func ReflectedOrigin(requestOrigin string, allowed []string) string {
	if len(allowed) == 0 {
		return requestOrigin
	}
	if OriginAllowed(requestOrigin, allowed) {
		if allowed[0] == "*" {
			return "*"
		}
		return requestOrigin
	}
	return allowed[0]
}
