package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestNetwork builds a linked-looking network: ourselves (0SN), an
// uplink hub (1UP) and wire output discarded.
func newTestNetwork(t *testing.T) *Network {
	t.Helper()
	n, err := NewNetwork(Options{
		Name:       "testnet",
		NetName:    "TestNet",
		SID:        "0SN",
		ServerName: "services.example.org",
	}, GenericS2S())
	require.NoError(t, err)
	n.SetSendFunc(func(string) {})
	n.SetUplink("1UP")
	n.AddServer("1UP", "hub.example.org", "0SN", false)
	return n
}

// captureEvents subscribes a hook that records every dispatched event.
func captureEvents(n *Network) *[]*Event {
	events := &[]*Event{}
	n.Hooks().Register(func(ev *Event) error {
		*events = append(*events, ev)
		return nil
	})
	return events
}

// assertMembershipInvariant checks that channel member sets and user
// channel sets mirror each other exactly, and that no empty channels
// linger.
func assertMembershipInvariant(t *testing.T, n *Network) {
	t.Helper()
	for name, ch := range n.Channels {
		require.NotEmpty(t, ch.Members, "channel %s kept with no members", name)
		for uid := range ch.Members {
			user, ok := n.Users[uid]
			require.True(t, ok, "channel %s lists unknown member %s", name, uid)
			_, joined := user.Channels[name]
			require.True(t, joined, "user %s not tracking membership of %s", uid, name)
		}
	}
	for uid, user := range n.Users {
		for name := range user.Channels {
			ch, ok := n.Channels[name]
			require.True(t, ok, "user %s tracks missing channel %s", uid, name)
			_, member := ch.Members[uid]
			require.True(t, member, "channel %s missing member %s", name, uid)
		}
	}
}
