package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseArgs(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "trailing joins to end of line",
			in:   []string{"PRIVMSG", "#chan", ":hello", "world"},
			want: []string{"PRIVMSG", "#chan", "hello world"},
		},
		{
			name: "no trailing",
			in:   []string{"MODE", "#chan", "+o", "alice"},
			want: []string{"MODE", "#chan", "+o", "alice"},
		},
		{
			name: "first field keeps its colon",
			in:   []string{":1UPAAAAAA", "QUIT", ":bye", "now"},
			want: []string{":1UPAAAAAA", "QUIT", "bye now"},
		},
		{
			name: "empty trailing",
			in:   []string{"TOPIC", "#chan", ":"},
			want: []string{"TOPIC", "#chan", ""},
		},
		{
			name: "colon mid-argument is not a marker",
			in:   []string{"PRIVMSG", "#chan:x", "hi"},
			want: []string{"PRIVMSG", "#chan:x", "hi"},
		},
		{
			name: "empty input",
			in:   nil,
			want: []string{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseArgs(tc.in))
		})
	}
}

func TestParsePrefixedArgs(t *testing.T) {
	got := ParsePrefixedArgs([]string{":1UPAAAAAA", "PRIVMSG", "#chan", ":hi", "there"})
	assert.Equal(t, []string{"1UPAAAAAA", "PRIVMSG", "#chan", "hi there"}, got)

	// Only one colon is stripped from the sender.
	got = ParsePrefixedArgs([]string{"::odd", "PING"})
	assert.Equal(t, []string{":odd", "PING"}, got)
}
