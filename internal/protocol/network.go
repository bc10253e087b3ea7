package protocol

import (
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircreader"
	"golang.org/x/net/proxy"
	"golang.org/x/text/encoding"
	"h12.io/socks"

	"github.com/dalnet/snexus/internal/routing"
)

const (
	readBufferInitial = 1024
	readBufferMax     = 32 * 1024
	pingInterval      = 90 * time.Second
)

// ProxyOptions routes the uplink connection through a proxy, in the same
// shapes the transport supports: socks4, socks5 and http.
type ProxyOptions struct {
	Type     string
	Address  string
	Username string
	Password string
}

type connState struct {
	mu     sync.Mutex
	sock   net.Conn
	reader ircreader.Reader
	sendFn func(line string)
}

// socks4Dialer adapts the socks4 dial function to the proxy.Dialer
// interface.
type socks4Dialer struct {
	dial func(network, addr string) (net.Conn, error)
}

func (d *socks4Dialer) Dial(network, addr string) (net.Conn, error) {
	return d.dial(network, addr)
}

func buildDialer(opts *ProxyOptions) (proxy.Dialer, error) {
	if opts == nil {
		return &net.Dialer{Timeout: 30 * time.Second}, nil
	}
	switch opts.Type {
	case "socks4":
		dial := socks.Dial(fmt.Sprintf("socks4://%s:%s@%s", opts.Username, opts.Password, opts.Address))
		return &socks4Dialer{dial: dial}, nil
	case "socks5":
		auth := &proxy.Auth{User: opts.Username, Password: opts.Password}
		return proxy.SOCKS5("tcp", opts.Address, auth, proxy.Direct)
	case "http":
		proxyURL, err := url.Parse(fmt.Sprintf("http://%s:%s@%s", opts.Username, opts.Password, opts.Address))
		if err != nil {
			return nil, err
		}
		return proxy.FromURL(proxyURL, proxy.Direct)
	default:
		return nil, fmt.Errorf("unsupported proxy type: %s", opts.Type)
	}
}

// Connect dials the uplink, optionally through a proxy and TLS, and
// prepares the receive loop. Link negotiation (capability exchange, burst)
// is driven by the dialect's handlers once Run is started.
func (n *Network) Connect() error {
	dialer, err := buildDialer(n.opts.Proxy)
	if err != nil {
		return err
	}

	sock, err := dialer.Dial("tcp", n.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", n.opts.Addr, err)
	}
	if n.opts.UseTLS {
		tlsConfig := n.opts.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{InsecureSkipVerify: true}
		}
		sock = tls.Client(sock, tlsConfig)
	}

	n.conn.mu.Lock()
	n.conn.sock = sock
	n.conn.reader.Initialize(sock, readBufferInitial, readBufferMax)
	n.conn.mu.Unlock()
	n.connected.Store(true)

	log.Printf("(%s) connected to %s", n.Name, n.opts.Addr)
	return nil
}

// Connected reports whether the connection is established.
func (n *Network) Connected() bool {
	return n.connected.Load()
}

// SetConnected flips the connection-established flag; dialects call this
// once link negotiation completes.
func (n *Network) SetConnected(v bool) {
	n.connected.Store(v)
}

// Run reads and dispatches lines until the connection fails or a
// protocol-fatal condition occurs. It owns all state mutation for this
// network; nothing else may touch the state while it runs, except through
// the reply-routing path.
func (n *Network) Run() error {
	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n.PingUplink()
			case <-stopPing:
				return
			}
		}
	}()

	decoder := n.wireEncoding().NewDecoder()
	for {
		raw, err := n.conn.reader.ReadLine()
		if err != nil {
			n.Disconnect()
			return fmt.Errorf("(%s) read error: %w", n.Name, err)
		}

		line, err := decoder.String(string(raw))
		if err != nil {
			// Undecodable bytes degrade to the raw line rather than
			// dropping traffic.
			line = string(raw)
		}

		ev, err := n.HandleLine(line)
		if err != nil {
			if IsProtocolFatal(err) {
				log.Printf("(%s) disconnecting: %v", n.Name, err)
				n.Disconnect()
				return err
			}
			log.Printf("(%s) error handling line %q: %v", n.Name, line, err)
			continue
		}
		if ev != nil {
			n.CallHooks(ev)
		}
	}
}

// Disconnect closes the connection and resets all per-connection state.
func (n *Network) Disconnect() {
	n.conn.mu.Lock()
	if n.conn.sock != nil {
		n.conn.sock.Close()
		n.conn.sock = nil
	}
	n.conn.mu.Unlock()
	n.Reset()
}

// Send writes one line to the uplink, applying the network's wire
// encoding. Sends are fire-and-forget from the handlers' perspective.
func (n *Network) Send(line string) {
	n.conn.mu.Lock()
	sendFn := n.conn.sendFn
	sock := n.conn.sock
	n.conn.mu.Unlock()

	if sendFn != nil {
		sendFn(line)
		return
	}
	if sock == nil {
		log.Printf("(%s) dropping line sent while disconnected: %s", n.Name, line)
		return
	}

	encoded, err := n.wireEncoding().NewEncoder().String(line)
	if err != nil {
		encoded = line
	}
	if _, err := sock.Write([]byte(encoded + "\r\n")); err != nil {
		log.Printf("(%s) write error: %v", n.Name, err)
	}
}

// SetSendFunc replaces the wire sink. Used by tests and by virtual
// transports that do not own a socket.
func (n *Network) SetSendFunc(fn func(line string)) {
	n.conn.mu.Lock()
	n.conn.sendFn = fn
	n.conn.mu.Unlock()
}

func (n *Network) wireEncoding() encoding.Encoding {
	if n.opts.Encoding != nil {
		return n.opts.Encoding
	}
	return encoding.Nop
}

// SetUplink records the uplink's SID once the dialect learns it during
// link negotiation.
func (n *Network) SetUplink(sid string) {
	n.Uplink = sid
}

// SetServiceClient marks the UID of our main service pseudoclient.
func (n *Network) SetServiceClient(uid string) {
	n.serviceUID = uid
}

// ServiceClient returns our main service pseudoclient, or nil before one
// is spawned.
func (n *Network) ServiceClient() *User {
	return n.Users[n.serviceUID]
}

// MapLines renders the current server table as an indented topology tree,
// for operators asking where everything is linked.
func (n *Network) MapLines() []string {
	tree := routing.NewTree()
	for sid, server := range n.Servers {
		tree.Add(sid, server.Name, server.Uplink, len(server.Users))
	}
	return tree.Render()
}

// FindServers returns the names of linked servers matching a prefix,
// case-insensitively, sorted. Used by the operator map command to narrow
// large topologies.
func (n *Network) FindServers(prefix string) []string {
	tree := routing.NewTree()
	for sid, server := range n.Servers {
		tree.Add(sid, server.Name, server.Uplink, len(server.Users))
	}
	return tree.Find(prefix)
}

// FullName returns the human-readable network name, falling back to the
// short name.
func (n *Network) FullName() string {
	if n.NetName != "" {
		return n.NetName
	}
	return n.Name
}

// SetReply installs the reply function used to answer the caller of the
// command currently being executed on this network.
func (n *Network) SetReply(fn func(text string)) {
	n.reply = fn
}

// Reply routes text back to whoever invoked the current command. Must only
// be called from this network's processing context.
func (n *Network) Reply(text string) {
	if n.reply != nil {
		n.reply(text)
	}
}

// WithReplyRouter runs fn while replies from this network are rerouted
// through router. The reply lock serializes concurrent rerouting and the
// original reply function is restored unconditionally, including when fn
// panics.
func (n *Network) WithReplyRouter(router func(text string), fn func()) {
	n.replyMu.Lock()
	defer n.replyMu.Unlock()

	old := n.reply
	n.reply = router
	defer func() {
		n.reply = old
	}()
	fn()
}
