package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spawnService creates an internal client and captures wire output.
func spawnService(t *testing.T, n *Network) (*User, *[]string) {
	t.Helper()
	svc, err := n.SpawnClient("services")
	require.NoError(t, err)
	sent := &[]string{}
	n.SetSendFunc(func(line string) { *sent = append(*sent, line) })
	return svc, sent
}

func TestCommandsRejectForeignSources(t *testing.T) {
	n := newTestNetwork(t)
	n.AddUser("1UPAAAAAA", "alice", "1UP", 100)

	assert.ErrorIs(t, n.Message("1UPAAAAAA", "#chat", "hi"), ErrNoSuchClient)
	assert.ErrorIs(t, n.Invite("1UP", "alice", "#chat"), ErrNoSuchClient, "servers cannot send client-only commands")
	assert.ErrorIs(t, n.Kick("1UPAAAAAA", "#chat", "alice", ""), ErrNoSuchClient)
	assert.ErrorIs(t, n.Quit("ghost", "bye"), ErrNoSuchClient)
	assert.ErrorIs(t, n.SQuit("1UPAAAAAA", "2LF", ""), ErrNoSuchClient)
}

func TestMessageAndNoticeWireFormat(t *testing.T) {
	n := newTestNetwork(t)
	svc, sent := spawnService(t, n)

	require.NoError(t, n.Message(svc.UID, "#chat", "hello"))
	require.NoError(t, n.Notice("0SN", "#chat", "from the server"))

	require.Len(t, *sent, 2)
	assert.Equal(t, ":"+svc.UID+" PRIVMSG #chat :hello", (*sent)[0])
	assert.Equal(t, ":0SN NOTICE #chat :from the server", (*sent)[1])
}

func TestKickMirrorsLocally(t *testing.T) {
	n := newTestNetwork(t)
	n.AddUser("1UPAAAAAA", "alice", "1UP", 100)
	n.JoinUser("1UPAAAAAA", "#chat")
	svc, sent := spawnService(t, n)
	n.JoinUser(svc.UID, "#chat")

	require.NoError(t, n.Kick(svc.UID, "#chat", "1UPAAAAAA", ""))

	require.Len(t, *sent, 1)
	assert.Equal(t, ":"+svc.UID+" KICK #chat 1UPAAAAAA :No reason given", (*sent)[0])
	assert.NotContains(t, n.lookupChannel("#chat").Members, "1UPAAAAAA", "no echo arrives for our own kick")
	assertMembershipInvariant(t, n)
}

func TestPartMirrorsLocally(t *testing.T) {
	n := newTestNetwork(t)
	svc, sent := spawnService(t, n)
	n.JoinUser(svc.UID, "#chat")

	require.NoError(t, n.Part(svc.UID, "#chat", "done here"))
	require.Len(t, *sent, 1)
	assert.Equal(t, ":"+svc.UID+" PART #chat :done here", (*sent)[0])
	assert.Nil(t, n.lookupChannel("#chat"))

	// Empty reasons omit the trailing argument.
	n.JoinUser(svc.UID, "#other")
	require.NoError(t, n.Part(svc.UID, "#other", ""))
	assert.Equal(t, ":"+svc.UID+" PART #other", (*sent)[1])
}

func TestQuitRemovesClient(t *testing.T) {
	n := newTestNetwork(t)
	svc, sent := spawnService(t, n)
	n.JoinUser(svc.UID, "#chat")

	require.NoError(t, n.Quit(svc.UID, "shutting down"))
	require.Len(t, *sent, 1)
	assert.Equal(t, ":"+svc.UID+" QUIT :shutting down", (*sent)[0])
	assert.NotContains(t, n.Users, svc.UID)
	assert.Nil(t, n.lookupChannel("#chat"))
}

func TestTopicMirrorsLocally(t *testing.T) {
	n := newTestNetwork(t)
	svc, sent := spawnService(t, n)

	require.NoError(t, n.Topic(svc.UID, "#chat", "fresh topic"))
	require.Len(t, *sent, 1)
	assert.Equal(t, ":"+svc.UID+" TOPIC #chat :fresh topic", (*sent)[0])

	ch := n.lookupChannel("#chat")
	require.NotNil(t, ch)
	assert.Equal(t, "fresh topic", ch.Topic)
	assert.True(t, ch.TopicSet)
}

func TestSQuitMirrorsLocally(t *testing.T) {
	n := newTestNetwork(t)
	n.AddServer("0SJ", "jupe.example.org", "0SN", true)
	n.AddUser("0SJAAAAAA", "juped", "0SJ", 100)
	_, sent := spawnService(t, n)

	require.NoError(t, n.SQuit("0SN", "0SJ", ""))
	require.Len(t, *sent, 1)
	assert.Equal(t, ":0SN SQUIT 0SJ :No reason given", (*sent)[0])
	assert.NotContains(t, n.Servers, "0SJ")
	assert.NotContains(t, n.Users, "0SJAAAAAA")
}

func TestNumericFormat(t *testing.T) {
	n := newTestNetwork(t)
	_, sent := spawnService(t, n)

	n.Numeric("0SN", 1, "1UPAAAAAA", ":Welcome")
	require.Len(t, *sent, 1)
	assert.Equal(t, ":0SN 001 1UPAAAAAA :Welcome", (*sent)[0])
}

func TestInviteWireFormat(t *testing.T) {
	n := newTestNetwork(t)
	n.AddUser("1UPAAAAAA", "alice", "1UP", 100)
	svc, sent := spawnService(t, n)

	require.NoError(t, n.Invite(svc.UID, "1UPAAAAAA", "#chat"))
	require.Len(t, *sent, 1)
	assert.Equal(t, ":"+svc.UID+" INVITE 1UPAAAAAA #chat", (*sent)[0])
}

func TestExpandPUIDHook(t *testing.T) {
	dialect := GenericS2S()
	dialect.ExpandPUID = func(id string) string {
		if id == "@virtual" {
			return "resolved.example.org"
		}
		return id
	}
	n, err := NewNetwork(Options{Name: "testnet", SID: "0SN", ServerName: "services.example.org"}, dialect)
	require.NoError(t, err)
	_, sent := spawnService(t, n)

	n.Numeric("0SN", 401, "@virtual", ":No such nick")
	require.Len(t, *sent, 1)
	assert.Equal(t, ":0SN 401 resolved.example.org :No such nick", (*sent)[0])
}

func TestPingUplinkGuards(t *testing.T) {
	n := newTestNetwork(t)
	_, sent := spawnService(t, n)

	n.PingUplink()
	assert.Empty(t, *sent, "no ping before the link is established")

	n.SetConnected(true)
	n.PingUplink()
	require.Len(t, *sent, 1)
	assert.Equal(t, ":0SN PING 0SN", (*sent)[0])
}

func TestMapLines(t *testing.T) {
	n := newTestNetwork(t)
	n.AddServer("2LF", "leaf.example.org", "1UP", false)
	n.AddUser("2LFAAAAAA", "leafy", "2LF", 100)

	lines := n.MapLines()
	require.NotEmpty(t, lines)
	joined := ""
	for _, line := range lines {
		joined += line + "\n"
	}
	assert.Contains(t, joined, "services.example.org")
	assert.Contains(t, joined, "leaf.example.org [1 users]")
}
