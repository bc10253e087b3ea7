package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectedFlagConcurrentAccess(t *testing.T) {
	n := newTestNetwork(t)

	// The ping ticker polls Connected while handlers flip the flag; both
	// sides here so the race detector can watch the flag itself.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			n.SetConnected(i%2 == 0)
		}
	}()
	for i := 0; i < 1000; i++ {
		n.Connected()
		n.PingUplink()
	}
	<-done

	n.SetConnected(true)
	assert.True(t, n.Connected())
	n.SetConnected(false)
	assert.False(t, n.Connected())
}

func TestFindServers(t *testing.T) {
	n := newTestNetwork(t)
	n.AddServer("2LF", "leaf1.example.org", "1UP", false)
	n.AddServer("3LF", "leaf2.example.org", "1UP", false)

	assert.Equal(t, []string{"leaf1.example.org", "leaf2.example.org"}, n.FindServers("LEAF"))
	assert.Equal(t, []string{"hub.example.org"}, n.FindServers("hub."))
	assert.Empty(t, n.FindServers("nosuch"))
}
