package config

import (
	"os"
	"regexp"
)

// envRef matches ${NAME} and ${NAME:-fallback}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandEnv replaces environment references in a config file before it is
// parsed, so one file can point different runs at different streams or
// window sizes. An unset variable keeps its reference unless a fallback is
// given; a set but empty variable also takes the fallback.
func expandEnv(content []byte) []byte {
	return envRef.ReplaceAllFunc(content, func(match []byte) []byte {
		sub := envRef.FindSubmatch(match)
		value, ok := os.LookupEnv(string(sub[1]))
		hasFallback := sub[2] != nil
		switch {
		case ok && (value != "" || !hasFallback):
			return []byte(value)
		case hasFallback:
			return sub[3]
		default:
			return match
		}
	})
}
