package protocol

import "strings"

// ParseArgs turns raw space-separated protocol fields into logical
// arguments, following RFC1459 quoting: a field beginning with ":" (other
// than the first) starts a multi-word argument lasting until the end of the
// line, with the marker stripped. Malformed input degrades to however many
// arguments were found; callers decide what is fatal.
func ParseArgs(fields []string) []string {
	args := make([]string, 0, len(fields))
	for idx, field := range fields {
		if idx != 0 && strings.HasPrefix(field, ":") {
			joined := strings.Join(fields[idx:], " ")[1:]
			args = append(args, joined)
			break
		}
		args = append(args, field)
	}
	return args
}

// ParsePrefixedArgs is ParseArgs for sender-prefixed lines: it additionally
// strips one leading ":" from argument zero.
func ParsePrefixedArgs(fields []string) []string {
	args := ParseArgs(fields)
	if len(args) > 0 {
		args[0] = strings.TrimPrefix(args[0], ":")
	}
	return args
}
