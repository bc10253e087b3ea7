package protocol

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

// commonPrefixModes maps well-known prefix mode letters to mode names,
// tried in order when a 005 PREFIX field is parsed. Already-named modes are
// never overwritten.
var commonPrefixModes = []struct{ char, name string }{
	{"h", "halfop"},
	{"a", "admin"},
	{"q", "owner"},
	{"y", "owner"},
}

// baseHandlers builds the dialect-independent handler table. Concrete
// dialects extend it through RegisterHandler.
func baseHandlers(n *Network) map[string]handlerFunc {
	return map[string]handlerFunc{
		"005":     n.handle005,
		"AWAY":    n.handleAway,
		"ERROR":   n.handleError,
		"INVITE":  n.handleInvite,
		"KICK":    n.handleKick,
		"KILL":    n.handleKill,
		"MODE":    n.handleMode,
		"NOTICE":  n.handleMessage,
		"PART":    n.handlePart,
		"PONG":    n.handlePong,
		"PRIVMSG": n.handleMessage,
		"QUIT":    n.handleQuit,
		"SQUIT":   n.handleSquit,
		"STATS":   n.handleStats,
		"TIME":    n.handleTime,
		"TOPIC":   n.handleTopic,
		"VERSION": n.handleVersion,
		"WHOIS":   n.handleWhois,
	}
}

func (n *Network) handleAway(sender, command string, args []string) (map[string]any, error) {
	user, ok := n.Users[sender]
	if !ok {
		return nil, nil
	}
	text := ""
	if len(args) > 0 {
		text = args[0]
	}
	user.Away = text
	return map[string]any{"text": text}, nil
}

// handleError handles ERROR frames, which mean the uplink has disconnected
// us.
func (n *Network) handleError(sender, command string, args []string) (map[string]any, error) {
	reason := ""
	if len(args) > 0 {
		reason = args[len(args)-1]
	}
	return nil, protocolErrorf("received an ERROR from the uplink: %s", reason)
}

func (n *Network) handlePong(sender, command string, args []string) (map[string]any, error) {
	if sender == n.Uplink {
		n.lastPong = time.Now()
	}
	return nil, nil
}

// handle005 merges RPL_ISUPPORT capabilities into the running capability
// map and rebuilds the mode tables they describe. Gated behind the
// dialect's opt-in flag: dialects that use 005 informationally must not
// have their mode tables mutated by it.
func (n *Network) handle005(sender, command string, args []string) (map[string]any, error) {
	if !n.dialect.Use005 {
		log.Printf("(%s) got spurious 005 message from %s: %v", n.Name, sender, args)
		return nil, nil
	}
	if len(args) < 2 {
		return nil, nil
	}

	// Strip the addressee (first) and the trailing "are supported by this
	// server" text (last).
	newcaps := ParseISupport(args[1:len(args)-1], "")
	for k, v := range newcaps {
		n.Caps[k] = v
	}

	if v, ok := newcaps["CHANMODES"]; ok {
		n.setModeClasses(n.CModes, "CHANMODES", v)
	}
	if v, ok := newcaps["USERMODES"]; ok {
		n.setModeClasses(n.UModes, "USERMODES", v)
	}
	if v, ok := newcaps["CASEMAPPING"]; ok && v != "" {
		n.CaseMapping = v
	}

	if v, ok := newcaps["PREFIX"]; ok {
		prefixes, err := ParsePrefixes(v)
		if err != nil {
			log.Printf("(%s) skipping unparsable PREFIX capability: %v", n.Name, err)
		} else {
			n.PrefixModes = prefixes
			for _, pm := range commonPrefixModes {
				if _, ok := n.PrefixModes[pm.char]; !ok {
					continue
				}
				if _, named := n.CModes[pm.name]; !named {
					n.CModes[pm.name] = pm.char
				}
			}
		}
	}

	if v, ok := newcaps["EXCEPTS"]; ok {
		n.CModes["banexception"] = defaultChar(v, "e")
	}
	if v, ok := newcaps["INVEX"]; ok {
		n.CModes["invex"] = defaultChar(v, "I")
	}
	if v, ok := newcaps["NICKLEN"]; ok {
		if nicklen, err := strconv.Atoi(v); err == nil {
			n.MaxNickLen = nicklen
		} else {
			log.Printf("(%s) got NICKLEN capability with bad value %q", n.Name, v)
		}
	}
	if v, ok := newcaps["DEAF"]; ok {
		n.UModes["deaf"] = defaultChar(v, "D")
	}
	if v, ok := newcaps["CALLERID"]; ok {
		n.UModes["callerid"] = defaultChar(v, "g")
	}
	if _, ok := newcaps["STATUSMSG"]; ok {
		n.protoCaps["has-statusmsg"] = struct{}{}
	}
	return nil, nil
}

func (n *Network) setModeClasses(table map[string]string, capability, value string) {
	classes := strings.Split(value, ",")
	if len(classes) != 4 {
		log.Printf("(%s) expected four %s classes, got %q", n.Name, capability, value)
		return
	}
	table["*A"], table["*B"], table["*C"], table["*D"] = classes[0], classes[1], classes[2], classes[3]
}

func defaultChar(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func (n *Network) handleInvite(sender, command string, args []string) (map[string]any, error) {
	if len(args) < 2 {
		return nil, nil
	}
	target := n.GetUID(args[0])
	channel := args[1]

	// Zero timestamps are treated as the current time.
	ts := int64(0)
	if len(args) > 2 {
		ts, _ = strconv.ParseInt(args[2], 10, 64)
	}
	if ts == 0 {
		ts = time.Now().Unix()
	}
	return map[string]any{"target": target, "channel": channel, "ts": ts}, nil
}

func (n *Network) handleKick(sender, command string, args []string) (map[string]any, error) {
	if len(args) < 2 {
		return nil, nil
	}
	channel := args[0]
	kicked := n.GetUID(args[1])
	reason := ""
	if len(args) > 2 {
		reason = args[2]
	}

	// Delegate the membership removal to the PART logic so both commands
	// produce the same post-state. The kick is reported even when the
	// target was never on the channel: peers repeat kicks during races and
	// consumers see what arrived, while the channel-side filtering stays
	// with PART.
	if _, err := n.handlePart(kicked, "KICK", []string{channel, reason}); err != nil {
		return nil, err
	}
	return map[string]any{"channel": channel, "target": kicked, "text": reason}, nil
}

func (n *Network) handleKill(sender, command string, args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	killed := n.GetUID(args[0])

	// Depending on the dialect, a KILL may or may not be followed by an
	// explicit QUIT for the victim. If the user is still here, remove them
	// ourselves; quit-before-kill races are expected and fine.
	userdata := n.Users[killed]
	if userdata != nil {
		n.removeClient(killed)
	}

	reason := ""
	if len(args) > 1 {
		reason = args[1]
	}

	var killmsg string
	if first, _, _ := strings.Cut(reason, " "); strings.Contains(first, "!") {
		// Raw "killer!identity (message)" form: extract the bracketed
		// message and format a pretty kill string naming the killer.
		killer := n.FriendlyName(sender)
		rest := strings.Join(strings.Split(reason, " ")[1:], " ")
		if len(rest) >= 2 {
			rest = rest[1 : len(rest)-1]
		} else {
			rest = ""
		}
		if rest == "" {
			log.Printf("(%s) failed to extract kill reason from %v", n.Name, args)
			rest = "<No reason given>"
		}
		killmsg = fmt.Sprintf("Killed (%s (%s))", killer, rest)
	} else {
		// Already a fully-formatted kill, pass it through as is.
		killmsg = reason
	}

	return map[string]any{"target": killed, "text": killmsg, "userdata": userdata}, nil
}

func (n *Network) handleMode(sender, command string, args []string) (map[string]any, error) {
	if len(args) < 2 {
		return nil, nil
	}
	target := n.GetUID(args[0])

	// Consumers need the channel's prior state for reconciliation, so
	// snapshot before mutating.
	var channeldata *Channel
	if n.IsChannel(target) {
		if ch := n.lookupChannel(target); ch != nil {
			channeldata = ch.Copy()
		}
	}

	changes := n.ParseModes(target, args[1:])
	n.ApplyModes(target, changes)

	if _, ok := n.Users[target]; ok {
		n.checkCloakChange(target)
		n.checkUmodeAwayChange(target)
		n.checkOperStatusChange(target, changes)
	}

	return map[string]any{"target": target, "modes": changes, "channeldata": channeldata}, nil
}

// checkCloakChange is a no-op in the base protocol; dialects with
// host-cloaking umodes hook their own detection in.
func (n *Network) checkCloakChange(uid string) {}

// checkUmodeAwayChange synthesizes AWAY events for dialects that signal
// away status through a user mode rather than the AWAY command.
func (n *Network) checkUmodeAwayChange(uid string) {
	awaymode := n.UModes["away"]
	user, ok := n.Users[uid]
	if !ok || awaymode == "" {
		return
	}

	wasAway := user.Away != ""
	isAway := user.HasMode(awaymode)
	if isAway == wasAway {
		return
	}

	// No actual text is provided with umode-based away, so use a dummy
	// reason.
	text := ""
	if isAway {
		text = "Away"
	}
	user.Away = text
	n.CallHooks(&Event{Sender: uid, Command: "AWAY", Data: map[string]any{"text": text}})
}

// checkOperStatusChange emits a CLIENT_OPERED event when a user gains +o,
// naming the highest privilege tier indicated by their umodes.
func (n *Network) checkOperStatusChange(uid string, changes []ModeChange) {
	user, ok := n.Users[uid]
	if !ok {
		return
	}

	opered := false
	for _, change := range changes {
		if change.Add && change.Char == "o" && change.Arg == "" {
			opered = true
			break
		}
	}
	if !opered {
		return
	}

	opertype := "IRC Operator"
	switch {
	case n.userHasNamedMode(user, "servprotect"):
		opertype = "Network Service"
	case n.userHasNamedMode(user, "netadmin"):
		opertype = "Network Administrator"
	case n.userHasNamedMode(user, "admin"):
		opertype = "Server Administrator"
	}
	n.CallHooks(&Event{Sender: uid, Command: "CLIENT_OPERED", Data: map[string]any{"text": opertype}})
}

func (n *Network) userHasNamedMode(user *User, name string) bool {
	char, ok := n.UModes[name]
	return ok && char != "" && user.HasMode(char)
}

func (n *Network) handlePart(sender, command string, args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}

	var kept []string
	reason := ""
	for _, name := range strings.Split(args[0], ",") {
		folded := n.ToLower(name)
		if ch := n.Channels[folded]; ch != nil {
			if _, member := ch.Members[sender]; member {
				kept = append(kept, folded)
			}
		}
		// Channels the user is not on are dropped from the hook payload,
		// but membership bookkeeping is still removed best-effort.
		n.removeFromChannel(sender, name)

		// The last declared reason applies to the whole batch.
		if len(args) > 1 {
			reason = args[1]
		}
	}

	if len(kept) == 0 {
		return nil, nil
	}
	return map[string]any{"channels": kept, "text": reason}, nil
}

// handleMessage handles both PRIVMSG and NOTICE; the command identity is
// preserved in the emitted hook.
func (n *Network) handleMessage(sender, command string, args []string) (map[string]any, error) {
	if len(args) < 2 {
		return nil, nil
	}
	rawTarget := args[0]

	// Optional target@servername addressing for status/relay-style
	// delivery. A channel target (after stripping prefix characters) is
	// never split.
	prefixChars := ""
	for _, symbol := range n.PrefixModes {
		prefixChars += symbol
	}
	serverCheck := ""
	hasServer := false
	if strings.Contains(rawTarget, "@") && !n.IsChannel(strings.TrimLeft(rawTarget, prefixChars)) {
		rawTarget, serverCheck, _ = strings.Cut(rawTarget, "@")
		hasServer = true
		if !IsServerName(serverCheck) {
			log.Printf("(%s) got user@server message with invalid server name %q (full target: %q)",
				n.Name, serverCheck, args[0])
			return nil, nil
		}
	}

	target := n.GetUID(rawTarget)

	if hasServer {
		notFound := false
		if _, ok := n.Users[target]; !ok {
			// Most IRCds don't check locally whether the nick exists; we
			// bounce an error back ourselves.
			notFound = true
		} else if sid := n.GetSID(serverCheck); sid != n.ServerOf(target) {
			notFound = true
		}
		if notFound {
			n.Numeric(n.SID, 401, sender, fmt.Sprintf("%s :No such nick", args[0]))
			return nil, nil
		}
	}

	// Coerce =#channel (op-moderated convention) to @#channel.
	if strings.HasPrefix(target, "=") {
		target = "@" + target[1:]
	}

	return map[string]any{"target": target, "text": args[1]}, nil
}

func (n *Network) handleQuit(sender, command string, args []string) (map[string]any, error) {
	n.removeClient(sender)
	text := ""
	if len(args) > 0 {
		text = args[0]
	}
	return map[string]any{"text": text}, nil
}

func (n *Network) handleStats(sender, command string, args []string) (map[string]any, error) {
	if len(args) < 2 {
		return nil, nil
	}
	return map[string]any{"stats_type": args[0], "target": n.GetSID(args[1])}, nil
}

func (n *Network) handleTime(sender, command string, args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	return map[string]any{"target": args[0]}, nil
}

func (n *Network) handleTopic(sender, command string, args []string) (map[string]any, error) {
	if len(args) < 2 {
		return nil, nil
	}
	ch := n.channel(args[0])
	oldtopic := ch.Topic
	ch.Topic = args[1]
	ch.TopicSet = true

	return map[string]any{
		"channel":  ch.Name,
		"setter":   sender,
		"text":     args[1],
		"oldtopic": oldtopic,
	}, nil
}

func (n *Network) handleVersion(sender, command string, args []string) (map[string]any, error) {
	// Stateless; the hook consumer formats the version reply.
	return map[string]any{}, nil
}

func (n *Network) handleWhois(sender, command string, args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	// The last argument is the queried target; any WHOIS routed to us is
	// for one of our clients.
	return map[string]any{"target": n.GetUID(args[len(args)-1])}, nil
}
