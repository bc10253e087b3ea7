package protocol

import (
	"fmt"
	"sort"
	"sync"
)

// handlerFunc applies one inbound command's state transition. A nil result
// map means the state was updated but nothing should be hooked.
type handlerFunc func(sender, command string, args []string) (map[string]any, error)

// Dialect describes the protocol-specific behavior of one S2S dialect.
// Dialects are plain configuration plus an optional handler extension;
// shared mechanics live on Network.
type Dialect struct {
	Name string

	// CommandTokens translates wire tokens to command names for dialects
	// (P10-style) that abbreviate commands on the wire.
	CommandTokens map[string]string

	// EncapCommand names the wrapper command used to tunnel commands
	// through servers that do not understand them.
	EncapCommand string

	// Use005 opts in to state mutation from 005/ISUPPORT. Off by default:
	// some dialects use 005 purely informationally and must not have their
	// mode tables rewritten by it.
	Use005 bool

	// UIDAlphabet and UIDWidth configure the identifier generator.
	UIDAlphabet string
	UIDWidth    int

	// RequiredConfKeys lists the server-block options the dialect cannot
	// link without.
	RequiredConfKeys []string

	// ExpandPUID rewrites placeholder or virtual identifiers into a form
	// the uplink understands before they reach the wire. Nil means no
	// expansion.
	ExpandPUID func(target string) string
}

// GenericS2S returns the shared TS6-style base dialect: no token
// translation, ENCAP tunneling, and the digits-then-uppercase identifier
// alphabet.
func GenericS2S() *Dialect {
	return &Dialect{
		Name:             "s2s",
		EncapCommand:     "ENCAP",
		Use005:           true,
		UIDAlphabet:      "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ",
		UIDWidth:         6,
		RequiredConfKeys: []string{"ip", "port", "sendpass", "recvpass", "hostname", "sid"},
	}
}

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]func() *Dialect{}
)

// RegisterDialect makes a dialect constructor available by protocol name.
func RegisterDialect(name string, ctor func() *Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[name] = ctor
}

// LookupDialect returns the dialect registered under the given protocol
// name.
func LookupDialect(name string) (*Dialect, error) {
	dialectsMu.RLock()
	ctor, ok := dialects[name]
	dialectsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown protocol module %q", name)
	}
	return ctor(), nil
}

// DialectNames lists the registered protocol names, sorted.
func DialectNames() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterDialect("s2s", GenericS2S)
}
