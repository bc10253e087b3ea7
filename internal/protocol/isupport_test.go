package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISupport(t *testing.T) {
	tokens := []string{"NICKLEN=30", "EXCEPTS", "CHANTYPES=#&", "", "NICKLEN=20"}
	caps := ParseISupport(tokens, "1")

	assert.Equal(t, "20", caps["NICKLEN"], "later duplicate wins")
	assert.Equal(t, "1", caps["EXCEPTS"], "valueless token gets fallback")
	assert.Equal(t, "#&", caps["CHANTYPES"])
	assert.NotContains(t, caps, "")
}

func TestParseISupportIdempotent(t *testing.T) {
	tokens := []string{"CHANMODES=beI,k,l,imnpst", "PREFIX=(ov)@+"}
	first := ParseISupport(tokens, "1")
	second := ParseISupport(tokens, "1")
	assert.Equal(t, first, second)
}

func TestParsePrefixes(t *testing.T) {
	prefixes, err := ParsePrefixes("(qaohv)~&@%+")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"q": "~", "a": "&", "o": "@", "h": "%", "v": "+",
	}, prefixes)
}

func TestParsePrefixesErrors(t *testing.T) {
	_, err := ParsePrefixes("ov)@+")
	assert.Error(t, err)

	_, err = ParsePrefixes("(ov)@")
	assert.Error(t, err)

	_, err = ParsePrefixes("")
	assert.Error(t, err)
}
