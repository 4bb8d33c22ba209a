package server

import (
	"errors"
	"strings"
)

// allowedOrigins trims the configured CORS origins and drops empty ones.
func allowedOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		out = append(out, "http://localhost:5173")
	}
	return out
}

var errNoSecret = errors.New("JWT_SECRET is not set")

func jwtSecret(secret string) (string, error) {
	if secret == "" {
		return "", errNoSecret
	}
	return secret, nil
}
