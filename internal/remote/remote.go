// Package remote executes commands on behalf of one network's caller
// against another network's service client, rerouting the remote network's
// replies back to the origin for the duration of the call. It also carries
// the network-wide announcement fanout.
package remote

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/dalnet/snexus/internal/protocol"
	"github.com/dalnet/snexus/internal/storage"
)

// ErrNested is returned when a remote-routed command is attempted while
// another is still in flight. Nesting is unsupported rather than
// deadlock-prone: the second request is rejected immediately, never queued.
var ErrNested = errors.New("the remote command can not be nested")

// ErrLocalTarget is returned when the target network is the origin
// network; routing a reply back into its own origin would recurse.
var ErrLocalTarget = errors.New("cannot remote-send a command to the local network; use a normal command")

// Invoker runs the actual command against the target network's service
// client. The command subsystem supplies it; this package only takes care
// of the routing.
type Invoker func(target *protocol.Network, command string)

// Router owns the process-wide in-flight flag guarding remote execution.
type Router struct {
	inFlight atomic.Bool
	audit    *storage.Trail
}

// NewRouter creates a router. audit may be nil to skip usage recording.
func NewRouter(audit *storage.Trail) *Router {
	return &Router{audit: audit}
}

// Call runs command on the target network on behalf of caller from the
// origin network. While the call runs, the target's reply function is
// swapped for one that forwards text to the origin; it is restored
// unconditionally on exit.
func (r *Router) Call(origin, target *protocol.Network, caller, command string, invoke Invoker) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		return ErrNested
	}
	defer r.inFlight.Store(false)

	if origin == target || origin.Name == target.Name {
		return ErrLocalTarget
	}
	if !target.Connected() {
		return fmt.Errorf("network %q is not connected", target.Name)
	}
	if target.ServiceClient() == nil {
		return fmt.Errorf("no service client is available on network %q", target.Name)
	}

	if r.audit != nil {
		if err := r.audit.Record(caller, fmt.Sprintf("remote %s %s", target.Name, command)); err != nil {
			log.Printf("(%s) failed to record remote command: %v", origin.Name, err)
		}
	}

	router := func(text string) {
		if target == origin {
			// Routing a reply back to its own origin would loop.
			log.Printf("(%s) refusing to route reply back to the same network", origin.Name)
			return
		}
		origin.Reply(text)
	}

	target.WithReplyRouter(router, func() {
		invoke(target, command)
	})
	return nil
}

// Recent returns up to count of the most recently recorded remote
// commands, oldest first. Empty when no audit trail is attached.
func (r *Router) Recent(count int) []string {
	if r.audit == nil {
		return nil
	}
	return r.audit.Tail(count)
}

// DefaultAnnounceFormat is the fallback template for Announce.
const DefaultAnnounceFormat = "[$sender@$fullnetwork] $text"

// Announce delivers text to every channel of each connected network's
// service client. The format template may reference $sender, $network,
// $fullnetwork, $current_channel, $current_network, $current_fullnetwork
// and $text.
func Announce(networks map[string]*protocol.Network, origin *protocol.Network, source, format, text string) {
	if format == "" {
		format = DefaultAnnounceFormat
	}
	for _, target := range networks {
		if !target.Connected() {
			continue
		}
		svc := target.ServiceClient()
		if svc == nil {
			continue
		}
		for channel := range svc.Channels {
			vars := map[string]string{
				"sender":              origin.FriendlyName(source),
				"network":             origin.Name,
				"fullnetwork":         origin.FullName(),
				"current_channel":     channel,
				"current_network":     target.Name,
				"current_fullnetwork": target.FullName(),
				"text":                text,
			}
			msg := os.Expand(format, func(key string) string { return vars[key] })
			if err := target.Message(svc.UID, channel, msg); err != nil {
				log.Printf("(%s) announce to %s/%s failed: %v", origin.Name, target.Name, channel, err)
			}
		}
	}
}
