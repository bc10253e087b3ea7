package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectRegistry(t *testing.T) {
	d, err := LookupDialect("s2s")
	require.NoError(t, err)
	assert.Equal(t, "s2s", d.Name)
	assert.Equal(t, "ENCAP", d.EncapCommand)

	_, err = LookupDialect("inspircd3")
	assert.Error(t, err)
}

func TestDialectNames(t *testing.T) {
	RegisterDialect("zz-test", GenericS2S)
	names := DialectNames()
	assert.Contains(t, names, "s2s")
	assert.Contains(t, names, "zz-test")
	assert.IsIncreasing(t, names)
}
