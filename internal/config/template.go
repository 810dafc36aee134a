package config

import (
	"os"
	"strings"
)

// Interpolate substitutes environment variables in raw configuration text
// before it is parsed. Supported forms:
//
//	$NAME, ${NAME}      value of NAME, empty when unset
//	${NAME:-default}    value of NAME, or default when unset or empty
//	${NAME-default}     value of NAME, or default when unset
//	$$                  a literal "$"
func Interpolate(raw string) string {
	return InterpolateWith(raw, os.LookupEnv)
}

// InterpolateWith is Interpolate with a custom variable lookup.
func InterpolateWith(raw string, lookupEnv func(string) (string, bool)) string {
	return os.Expand(raw, func(name string) string {
		if name == "$" {
			return "$"
		}

		if key, def, ok := strings.Cut(name, ":-"); ok {
			if v, found := lookupEnv(key); found && v != "" {
				return v
			}
			return def
		}
		if key, def, ok := strings.Cut(name, "-"); ok && isEnvName(key) {
			if v, found := lookupEnv(key); found {
				return v
			}
			return def
		}

		v, _ := lookupEnv(name)
		return v
	})
}

func isEnvName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
