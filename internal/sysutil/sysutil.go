// Package sysutil holds process-level helpers: log level and flag parsing.
package sysutil

import (
	"strings"

	"github.com/rs/zerolog"
)

// ParseLogLevel maps a LOG_LEVEL value to a zerolog level. Matching is
// case-insensitive, "warning" is accepted for warn and "" means info. Levels
// zerolog does not know (including trace and disabled) are rejected.
func ParseLogLevel(s string) (zerolog.Level, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return zerolog.InfoLevel, true
	case "warning":
		s = "warn"
	case "trace", "disabled":
		return zerolog.InfoLevel, false
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel, false
	}
	return lvl, true
}

// SetLogLevel sets the global zerolog level, falling back to info for
// unknown values, and returns the level applied.
func SetLogLevel(s string) zerolog.Level {
	lvl, _ := ParseLogLevel(s)
	zerolog.SetGlobalLevel(lvl)
	return lvl
}

// IsTruthy reports whether a flag value means true: 1, true, yes, y or on,
// case-insensitive.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
