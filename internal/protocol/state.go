package protocol

import (
	"crypto/tls"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/encoding"

	"github.com/dalnet/snexus/internal/hooks"
)

// Mode is one active (mode character, parameter) pair on a user or channel.
// An empty Arg means the mode carries no parameter.
type Mode struct {
	Char string
	Arg  string
}

// User is one client visible on the network.
type User struct {
	UID     string
	Nick    string
	TS      int64
	Server  string // SID of the user's home server
	Away    string // empty = not away
	Account string // empty = not identified to services
	Modes   []Mode
	// Channels is the set of channel names the user has joined.
	Channels map[string]struct{}
}

// HasMode reports whether the user has the given parameterless mode set.
func (u *User) HasMode(char string) bool {
	for _, m := range u.Modes {
		if m.Char == char && m.Arg == "" {
			return true
		}
	}
	return false
}

// Membership carries the per-member prefix flags (by mode character, e.g.
// "o", "v") a user holds in a channel.
type Membership struct {
	Prefixes map[string]struct{}
}

// Channel is one channel and its membership.
type Channel struct {
	Name     string
	Topic    string
	TopicSet bool
	Members  map[string]*Membership
	Modes    []Mode
}

// Copy returns a deep copy of the channel, used for before/after snapshots
// handed to hook consumers.
func (c *Channel) Copy() *Channel {
	dup := &Channel{
		Name:     c.Name,
		Topic:    c.Topic,
		TopicSet: c.TopicSet,
		Members:  make(map[string]*Membership, len(c.Members)),
		Modes:    append([]Mode(nil), c.Modes...),
	}
	for uid, member := range c.Members {
		prefixes := make(map[string]struct{}, len(member.Prefixes))
		for p := range member.Prefixes {
			prefixes[p] = struct{}{}
		}
		dup.Members[uid] = &Membership{Prefixes: prefixes}
	}
	return dup
}

// Server is one server in the network's tree.
type Server struct {
	SID      string
	Name     string
	Uplink   string // empty for ourselves
	Internal bool   // spawned by us rather than introduced by a peer
	// Users is the set of UIDs whose immediate home is this server.
	Users map[string]struct{}
}

// Event is the normalized hook payload emitted by a state mutator: the
// resolved sender, the resolved command, and the handler's structured
// result fields. Consumers treat missing optional fields as not applicable.
type Event struct {
	Sender  string
	Command string
	Data    map[string]any
}

// Options configures one network connection.
type Options struct {
	// Name is the short network name used in logs and cross-network routing.
	Name string
	// NetName is the full, human-readable network name.
	NetName string
	// SID is our own server identifier on this network.
	SID string
	// ServerName is the display name we introduce ourselves with.
	ServerName string
	// Addr is the uplink's host:port.
	Addr string
	// UseTLS wraps the connection in TLS after dialing.
	UseTLS    bool
	TLSConfig *tls.Config
	// Proxy, when set, routes the connection through a SOCKS or HTTP proxy.
	Proxy *ProxyOptions
	// Encoding is the wire encoding; nil means UTF-8 passthrough.
	Encoding encoding.Encoding
}

// Network holds one connection's worth of state. All state is owned by the
// network's receive loop and must not be mutated concurrently; the only
// cross-goroutine surface is the reply path, guarded by replyMu.
type Network struct {
	Name    string
	NetName string

	// SID and Uplink identify ourselves and our direct peer in the server
	// tree. Uplink is learned during link negotiation.
	SID    string
	Uplink string

	ServerName string

	Users    map[string]*User
	Channels map[string]*Channel
	Servers  map[string]*Server

	// Caps is the negotiated capability map from 005/ISUPPORT bursts.
	Caps map[string]string
	// CModes and UModes map named modes ("op", "banexception", ...) to mode
	// characters, plus the four ISUPPORT class tables under the keys "*A"
	// (list), "*B" (always parameter), "*C" (parameter on set only) and
	// "*D" (boolean).
	CModes map[string]string
	UModes map[string]string
	// PrefixModes maps prefix mode characters to display symbols.
	PrefixModes map[string]string

	CaseMapping string
	ChanTypes   string
	MaxNickLen  int

	dialect   *Dialect
	uidgen    *UIDGenerator
	handlers  map[string]handlerFunc
	protoCaps map[string]struct{}

	opts Options
	conn connState
	// connected is read by the ping ticker goroutine while the receive
	// loop's handlers flip it, so it must be atomic.
	connected  atomic.Bool
	lastPong   time.Time
	serviceUID string

	hooks *hooks.Registry[*Event]

	// replyMu guards reply while a cross-network command temporarily
	// reroutes this network's replies to another network's caller.
	replyMu sync.Mutex
	reply   func(text string)
}

// NewNetwork creates a network in its pre-connection state.
func NewNetwork(opts Options, dialect *Dialect) (*Network, error) {
	uidgen, err := NewUIDGenerator(opts.SID, dialect.UIDAlphabet, dialect.UIDWidth)
	if err != nil {
		return nil, err
	}

	n := &Network{
		Name:        opts.Name,
		NetName:     opts.NetName,
		SID:         opts.SID,
		ServerName:  opts.ServerName,
		Users:       make(map[string]*User),
		Channels:    make(map[string]*Channel),
		Servers:     make(map[string]*Server),
		Caps:        make(map[string]string),
		CModes:      defaultCModes(),
		UModes:      defaultUModes(),
		PrefixModes: map[string]string{"o": "@", "v": "+"},
		CaseMapping: "rfc1459",
		ChanTypes:   "#&",
		MaxNickLen:  30,
		dialect:     dialect,
		uidgen:      uidgen,
		protoCaps:   make(map[string]struct{}),
		opts:        opts,
		hooks:       hooks.NewRegistry[*Event](),
	}
	n.handlers = baseHandlers(n)

	n.AddServer(opts.SID, opts.ServerName, "", true)
	return n, nil
}

// RegisterHandler installs or overrides the handler for one inbound
// command. Concrete dialects call this after NewNetwork to extend the base
// handler table.
func (n *Network) RegisterHandler(command string, fn handlerFunc) {
	n.handlers[strings.ToUpper(command)] = fn
}

func defaultCModes() map[string]string {
	return map[string]string{
		"op": "o", "voice": "v",
		"key": "k", "limit": "l",
		"*A": "b", "*B": "k", "*C": "l", "*D": "imnpst",
	}
}

func defaultUModes() map[string]string {
	return map[string]string{
		"invisible": "i", "oper": "o",
		"*A": "", "*B": "", "*C": "", "*D": "iosw",
	}
}

// Hooks exposes the hook registry so external consumers can subscribe to
// normalized protocol events.
func (n *Network) Hooks() *hooks.Registry[*Event] {
	return n.hooks
}

// CallHooks dispatches an event to every registered consumer.
func (n *Network) CallHooks(ev *Event) {
	n.hooks.Dispatch(ev)
}

// HasProtoCap reports whether a protocol-level capability flag (such as
// "has-statusmsg") is set.
func (n *Network) HasProtoCap(name string) bool {
	_, ok := n.protoCaps[name]
	return ok
}

// ToLower folds an identifier according to the network's case mapping.
func (n *Network) ToLower(s string) string {
	lowered := strings.ToLower(s)
	if n.CaseMapping == "rfc1459" {
		lowered = strings.NewReplacer("[", "{", "]", "}", "\\", "|", "~", "^").Replace(lowered)
	}
	return lowered
}

// IsChannel reports whether the target names a channel.
func (n *Network) IsChannel(target string) bool {
	return target != "" && strings.ContainsAny(target[:1], n.ChanTypes)
}

// IsServerName reports whether the text is plausibly a server name.
func IsServerName(text string) bool {
	return strings.Contains(text, ".") && !strings.HasPrefix(text, ".")
}

// GetSID returns the SID of the server with the given name or SID. Falls
// back to returning the original text, never empty, so callers always have
// a stable value to log.
func (n *Network) GetSID(name string) string {
	if _, ok := n.Servers[name]; ok {
		return name
	}
	folded := n.ToLower(name)
	for sid, server := range n.Servers {
		if n.ToLower(server.Name) == folded {
			return sid
		}
	}
	return name
}

// GetUID converts a nick argument to its matching UID, returning the
// original text when no match exists.
func (n *Network) GetUID(target string) string {
	if _, ok := n.Users[target]; ok {
		return target
	}
	if uid := n.NickToUID(target); uid != "" {
		return uid
	}
	return target
}

// NickToUID looks up a user by nickname; empty when not found.
func (n *Network) NickToUID(nick string) string {
	folded := n.ToLower(nick)
	for uid, user := range n.Users {
		if n.ToLower(user.Nick) == folded {
			return uid
		}
	}
	return ""
}

// ServerOf returns the SID of the user's home server, or empty if the user
// is unknown.
func (n *Network) ServerOf(uid string) string {
	if user, ok := n.Users[uid]; ok {
		return user.Server
	}
	return ""
}

// FriendlyName resolves an identifier to its display form: a nick for
// users, a server name for servers, and the identifier itself otherwise.
func (n *Network) FriendlyName(id string) string {
	if server, ok := n.Servers[id]; ok {
		return server.Name
	}
	if user, ok := n.Users[id]; ok {
		return user.Nick
	}
	return id
}

// IsInternalClient reports whether the UID belongs to a client we own.
func (n *Network) IsInternalClient(uid string) bool {
	user, ok := n.Users[uid]
	if !ok {
		return false
	}
	server, ok := n.Servers[user.Server]
	return ok && server.Internal
}

// IsInternalServer reports whether the SID belongs to a server we own.
func (n *Network) IsInternalServer(sid string) bool {
	server, ok := n.Servers[sid]
	return ok && server.Internal
}

// AddServer records a server introduced on the network. Concrete dialects
// call this from their server-introduction handlers.
func (n *Network) AddServer(sid, name, uplink string, internal bool) *Server {
	server := &Server{
		SID:      sid,
		Name:     name,
		Uplink:   uplink,
		Internal: internal,
		Users:    make(map[string]struct{}),
	}
	n.Servers[sid] = server
	return server
}

// AddUser records a user introduced on the network, homed on the given
// server. Concrete dialects call this from their client-introduction
// handlers.
func (n *Network) AddUser(uid, nick, sid string, ts int64) *User {
	user := &User{
		UID:      uid,
		Nick:     nick,
		TS:       ts,
		Server:   sid,
		Channels: make(map[string]struct{}),
	}
	n.Users[uid] = user
	if server, ok := n.Servers[sid]; ok {
		server.Users[uid] = struct{}{}
	}
	return user
}

// SpawnClient introduces a client owned by us, drawing its UID from the
// dialect's identifier generator.
func (n *Network) SpawnClient(nick string) (*User, error) {
	uid, err := n.uidgen.Next()
	if err != nil {
		return nil, err
	}
	return n.AddUser(uid, nick, n.SID, time.Now().Unix()), nil
}

// channel returns the channel record for name, creating it on first join or
// topic burst.
func (n *Network) channel(name string) *Channel {
	folded := n.ToLower(name)
	if ch, ok := n.Channels[folded]; ok {
		return ch
	}
	ch := &Channel{
		Name:    folded,
		Members: make(map[string]*Membership),
	}
	n.Channels[folded] = ch
	return ch
}

// lookupChannel returns the channel record for name without creating it.
func (n *Network) lookupChannel(name string) *Channel {
	return n.Channels[n.ToLower(name)]
}

// JoinUser adds a user to a channel, keeping the membership and channel
// sets mutually consistent.
func (n *Network) JoinUser(uid, name string) {
	user, ok := n.Users[uid]
	if !ok {
		return
	}
	ch := n.channel(name)
	if _, ok := ch.Members[uid]; !ok {
		ch.Members[uid] = &Membership{Prefixes: make(map[string]struct{})}
	}
	user.Channels[ch.Name] = struct{}{}
}

// removeFromChannel drops a user's membership. Empty channels are removed
// so both sides of the membership invariant stay consistent.
func (n *Network) removeFromChannel(uid, name string) {
	folded := n.ToLower(name)
	if ch, ok := n.Channels[folded]; ok {
		delete(ch.Members, uid)
		if len(ch.Members) == 0 {
			delete(n.Channels, folded)
		}
	}
	if user, ok := n.Users[uid]; ok {
		delete(user.Channels, folded)
	}
}

// removeClient removes a user from all state: channel memberships, the home
// server's user set, and the user table itself.
func (n *Network) removeClient(uid string) {
	user, ok := n.Users[uid]
	if !ok {
		return
	}
	for name := range user.Channels {
		if ch, ok := n.Channels[name]; ok {
			delete(ch.Members, uid)
			if len(ch.Members) == 0 {
				delete(n.Channels, name)
			}
		}
	}
	if server, ok := n.Servers[user.Server]; ok {
		delete(server.Users, uid)
	}
	delete(n.Users, uid)
	log.Printf("(%s) removed client %s (%s)", n.Name, uid, user.Nick)
}

// Reset clears all per-connection state after a disconnect. The identifier
// generator is deliberately kept: UIDs are never reissued during the
// process lifetime of a server segment.
func (n *Network) Reset() {
	n.Users = make(map[string]*User)
	n.Channels = make(map[string]*Channel)
	n.Servers = make(map[string]*Server)
	n.Caps = make(map[string]string)
	n.protoCaps = make(map[string]struct{})
	n.Uplink = ""
	n.connected.Store(false)
	n.AddServer(n.SID, n.ServerName, "", true)
}
