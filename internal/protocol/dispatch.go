package protocol

import (
	"log"
	"strings"
)

// HandleLine runs the three dispatch phases for one inbound line: sender
// resolution, command resolution, and handler invocation. It returns the
// hook payload the handler produced, nil when there is nothing to hook, or
// an error for protocol-fatal conditions.
func (n *Network) HandleLine(line string) (*Event, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}

	args := ParseArgs(strings.Split(line, " "))
	if len(args) == 0 {
		return nil, nil
	}

	hadPrefix := strings.HasPrefix(args[0], ":")
	sender := strings.TrimPrefix(args[0], ":")

	// Coerce sender prefixes from server names and nicks to SIDs and UIDs
	// whenever possible. An unresolvable prefix keeps its original text so
	// downstream code always has something to log.
	if sid := n.GetSID(sender); n.Servers[sid] != nil {
		sender = sid
	} else if uid := n.GetUID(sender); n.Users[uid] != nil {
		sender = uid
	} else if !hadPrefix {
		// No sender prefix at all: the line comes from the uplink IRCd and
		// the first field is already the command.
		sender = n.Uplink
		args = append([]string{sender}, args...)
	}

	if len(args) < 2 {
		log.Printf("(%s) ignoring malformed line %q", n.Name, line)
		return nil, nil
	}

	rawCommand := strings.ToUpper(args[1])
	args = args[2:]

	command := rawCommand
	if translated, ok := n.dialect.CommandTokens[rawCommand]; ok {
		command = translated
	}

	if n.IsInternalClient(sender) || n.IsInternalServer(sender) {
		log.Printf("(%s) received command %s being routed the wrong way!", n.Name, command)
		return nil, nil
	}

	// Unwrap encapsulated commands: args are [target-wildcard, inner
	// command, inner args...].
	if n.dialect.EncapCommand != "" && command == n.dialect.EncapCommand {
		if len(args) < 2 {
			log.Printf("(%s) ignoring malformed %s line %q", n.Name, command, line)
			return nil, nil
		}
		command = args[1]
		args = args[2:]
	}

	handler, ok := n.handlers[strings.ToUpper(command)]
	if !ok {
		// Unknown commands are ignored for forward compatibility.
		return nil, nil
	}

	data, err := handler(sender, command, args)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return &Event{Sender: sender, Command: strings.ToUpper(command), Data: data}, nil
}
