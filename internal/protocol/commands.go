package protocol

import "fmt"

// The outbound builders validate that the acting identifier is one of our
// own clients or servers, format and send the wire line, and then mirror
// the effect onto local state: no echo arrives for self-originated
// traffic, so the sender must not wait for one.

func (n *Network) expandPUID(target string) string {
	if n.dialect.ExpandPUID != nil {
		return n.dialect.ExpandPUID(target)
	}
	return target
}

// sendWithPrefix sends an RFC1459-style raw command from the given sender.
func (n *Network) sendWithPrefix(source, format string, args ...any) {
	n.Send(fmt.Sprintf(":%s %s", n.expandPUID(source), fmt.Sprintf(format, args...)))
}

func (n *Network) checkInternalClient(source string) error {
	if !n.IsInternalClient(source) {
		return fmt.Errorf("%w: %s", ErrNoSuchClient, source)
	}
	return nil
}

func (n *Network) checkInternal(source string) error {
	if !n.IsInternalClient(source) && !n.IsInternalServer(source) {
		return fmt.Errorf("%w: %s", ErrNoSuchClient, source)
	}
	return nil
}

// Invite sends an INVITE from one of our clients.
func (n *Network) Invite(source, target, channel string) error {
	if err := n.checkInternalClient(source); err != nil {
		return err
	}
	n.sendWithPrefix(source, "INVITE %s %s", n.expandPUID(target), channel)
	return nil
}

// Kick sends a KICK from one of our clients or servers and removes the
// target from the channel locally.
func (n *Network) Kick(source, channel, target, reason string) error {
	if err := n.checkInternal(source); err != nil {
		return err
	}
	if reason == "" {
		reason = "No reason given"
	}
	n.sendWithPrefix(source, "KICK %s %s :%s", channel, n.expandPUID(target), reason)

	// The target can be treated as having left on its own; the PART logic
	// updates the channel userlist either way.
	_, err := n.handlePart(target, "KICK", []string{channel})
	return err
}

// Message sends a PRIVMSG from one of our clients.
func (n *Network) Message(source, target, text string) error {
	if err := n.checkInternalClient(source); err != nil {
		return err
	}
	n.sendWithPrefix(source, "PRIVMSG %s :%s", n.expandPUID(target), text)
	return nil
}

// Notice sends a NOTICE from one of our clients or servers.
func (n *Network) Notice(source, target, text string) error {
	if err := n.checkInternal(source); err != nil {
		return err
	}
	n.sendWithPrefix(source, "NOTICE %s :%s", n.expandPUID(target), text)
	return nil
}

// Numeric sends a raw numeric from a server to a remote client, as used
// for WHOIS and error replies.
func (n *Network) Numeric(source string, numeric int, target, text string) {
	n.sendWithPrefix(source, "%03d %s %s", numeric, n.expandPUID(target), text)
}

// Part sends a PART from one of our clients and removes the membership
// locally.
func (n *Network) Part(source, channel, reason string) error {
	if err := n.checkInternalClient(source); err != nil {
		return err
	}
	if reason != "" {
		n.sendWithPrefix(source, "PART %s :%s", channel, reason)
	} else {
		n.sendWithPrefix(source, "PART %s", channel)
	}
	_, err := n.handlePart(source, "PART", []string{channel})
	return err
}

// Quit removes one of our clients from the network.
func (n *Network) Quit(source, reason string) error {
	if err := n.checkInternalClient(source); err != nil {
		return err
	}
	n.sendWithPrefix(source, "QUIT :%s", reason)
	n.removeClient(source)
	return nil
}

// SQuit splits one of our servers off the network, cascading the removal
// through local state exactly as an inbound split would.
func (n *Network) SQuit(source, target, reason string) error {
	if err := n.checkInternal(source); err != nil {
		return err
	}
	if reason == "" {
		reason = "No reason given"
	}
	n.sendWithPrefix(source, "SQUIT %s :%s", n.expandPUID(target), reason)
	_, err := n.handleSquit(source, "SQUIT", []string{target, reason})
	return err
}

// Topic sends a TOPIC change from one of our clients or servers and
// mirrors it onto the channel.
func (n *Network) Topic(source, channel, text string) error {
	if err := n.checkInternal(source); err != nil {
		return err
	}
	n.sendWithPrefix(source, "TOPIC %s :%s", channel, text)
	ch := n.channel(channel)
	ch.Topic = text
	ch.TopicSet = true
	return nil
}

// TopicBurst is identical to Topic in the base dialect; burst-capable
// dialects override it with their burst framing.
func (n *Network) TopicBurst(source, channel, text string) error {
	return n.Topic(source, channel, text)
}

// PingUplink sends a PING to the uplink to verify the link is alive.
func (n *Network) PingUplink() {
	if n.SID == "" || !n.Connected() {
		return
	}
	n.sendWithPrefix(n.SID, "PING %s", n.expandPUID(n.SID))
}
