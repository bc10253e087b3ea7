package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLowerRFC1459(t *testing.T) {
	n := newTestNetwork(t)
	assert.Equal(t, "nick{}|^", n.ToLower("Nick[]\\~"))

	n.CaseMapping = "ascii"
	assert.Equal(t, "nick[]\\~", n.ToLower("Nick[]\\~"))
}

func TestGetSIDAndGetUIDFallback(t *testing.T) {
	n := newTestNetwork(t)
	n.AddUser("1UPAAAAAA", "Alice", "1UP", 100)

	assert.Equal(t, "1UP", n.GetSID("1UP"))
	assert.Equal(t, "1UP", n.GetSID("HUB.example.org"), "server name lookup is case-insensitive")
	assert.Equal(t, "no.such.server", n.GetSID("no.such.server"), "unknown server falls back to input")

	assert.Equal(t, "1UPAAAAAA", n.GetUID("1UPAAAAAA"))
	assert.Equal(t, "1UPAAAAAA", n.GetUID("alice"), "nick lookup folds case")
	assert.Equal(t, "ghost", n.GetUID("ghost"), "unknown nick falls back to input")
}

func TestFriendlyName(t *testing.T) {
	n := newTestNetwork(t)
	n.AddUser("1UPAAAAAA", "Alice", "1UP", 100)

	assert.Equal(t, "hub.example.org", n.FriendlyName("1UP"))
	assert.Equal(t, "Alice", n.FriendlyName("1UPAAAAAA"))
	assert.Equal(t, "mystery", n.FriendlyName("mystery"))
}

func TestSpawnClientIsInternal(t *testing.T) {
	n := newTestNetwork(t)
	svc, err := n.SpawnClient("services")
	require.NoError(t, err)

	assert.True(t, n.IsInternalClient(svc.UID))
	assert.False(t, n.IsInternalClient("1UPAAAAAA"))
	assert.True(t, n.IsInternalServer("0SN"))
	assert.False(t, n.IsInternalServer("1UP"))
	_, homed := n.Servers["0SN"].Users[svc.UID]
	assert.True(t, homed)
}

func TestJoinAndRemoveKeepInvariant(t *testing.T) {
	n := newTestNetwork(t)
	n.AddUser("1UPAAAAAA", "alice", "1UP", 100)
	n.AddUser("1UPAAAAAB", "bob", "1UP", 100)

	n.JoinUser("1UPAAAAAA", "#Chat")
	n.JoinUser("1UPAAAAAB", "#chat")
	assertMembershipInvariant(t, n)

	ch := n.lookupChannel("#CHAT")
	require.NotNil(t, ch, "channel lookup folds case")
	assert.Len(t, ch.Members, 2)

	n.removeFromChannel("1UPAAAAAA", "#chat")
	assertMembershipInvariant(t, n)

	// Last member leaving removes the channel entirely.
	n.removeFromChannel("1UPAAAAAB", "#chat")
	assert.Nil(t, n.lookupChannel("#chat"))
	assertMembershipInvariant(t, n)
}

func TestRemoveClientScrubsAllState(t *testing.T) {
	n := newTestNetwork(t)
	n.AddUser("1UPAAAAAA", "alice", "1UP", 100)
	n.AddUser("1UPAAAAAB", "bob", "1UP", 100)
	n.JoinUser("1UPAAAAAA", "#chat")
	n.JoinUser("1UPAAAAAB", "#chat")

	n.removeClient("1UPAAAAAA")

	assert.NotContains(t, n.Users, "1UPAAAAAA")
	assert.NotContains(t, n.Servers["1UP"].Users, "1UPAAAAAA")
	assert.NotContains(t, n.lookupChannel("#chat").Members, "1UPAAAAAA")
	assertMembershipInvariant(t, n)
}

func TestResetKeepsUIDGenerator(t *testing.T) {
	n := newTestNetwork(t)
	first, err := n.SpawnClient("one")
	require.NoError(t, err)

	n.Reset()

	assert.Empty(t, n.Users)
	assert.Empty(t, n.Channels)
	assert.Equal(t, "", n.Uplink)
	assert.Contains(t, n.Servers, "0SN", "own server record survives a reset")

	second, err := n.SpawnClient("two")
	require.NoError(t, err)
	assert.NotEqual(t, first.UID, second.UID, "identifiers are never reissued")
}

func TestChannelCopyIsDeep(t *testing.T) {
	n := newTestNetwork(t)
	n.AddUser("1UPAAAAAA", "alice", "1UP", 100)
	n.JoinUser("1UPAAAAAA", "#chat")
	ch := n.lookupChannel("#chat")
	ch.Members["1UPAAAAAA"].Prefixes["o"] = struct{}{}

	snap := ch.Copy()
	delete(ch.Members["1UPAAAAAA"].Prefixes, "o")
	ch.Topic = "changed"

	assert.Contains(t, snap.Members["1UPAAAAAA"].Prefixes, "o")
	assert.Equal(t, "", snap.Topic)
}

func TestIsServerName(t *testing.T) {
	assert.True(t, IsServerName("hub.example.org"))
	assert.False(t, IsServerName("nodots"))
	assert.False(t, IsServerName(".leadingdot"))
}
