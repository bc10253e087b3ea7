package protocol

import (
	"fmt"
	"regexp"
	"strings"
)

var prefixPattern = regexp.MustCompile(`^\(([A-Za-z]+)\)(.*)$`)

// ParseISupport parses a list of RPL_ISUPPORT (005) style capability
// tokens. Each token is split on the first "=". Tokens without a value get
// fallback; duplicate keys keep the last value seen.
func ParseISupport(tokens []string, fallback string) map[string]string {
	caps := make(map[string]string, len(tokens))
	for _, token := range tokens {
		if token == "" {
			continue
		}
		key, value, found := strings.Cut(token, "=")
		if !found {
			value = fallback
		}
		caps[key] = value
	}
	return caps
}

// ParsePrefixes separates a PREFIX field like "(qaohv)~&@%+" into a map of
// mode character to display symbol.
func ParsePrefixes(token string) (map[string]string, error) {
	m := prefixPattern.FindStringSubmatch(token)
	if m == nil {
		return nil, fmt.Errorf("invalid PREFIX value %q", token)
	}
	modes, symbols := m[1], m[2]
	if len(modes) != len(symbols) {
		return nil, fmt.Errorf("PREFIX mode/symbol length mismatch in %q", token)
	}
	prefixes := make(map[string]string, len(modes))
	for i := 0; i < len(modes); i++ {
		prefixes[string(modes[i])] = string(symbols[i])
	}
	return prefixes, nil
}
