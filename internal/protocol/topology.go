package protocol

import "log"

// handleSquit handles an inbound server split. Splitting ourselves or our
// uplink is a fatal protocol condition, not a state transition; duplicate
// or late splits of already-removed servers are no-ops.
func (n *Network) handleSquit(sender, command string, args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	splitServer := n.GetSID(args[0])
	reason := args[len(args)-1]

	// Some dialects (Nefarious) name the uplink rather than the split
	// server itself as the SQUIT target.
	if splitServer == n.SID || splitServer == n.Uplink {
		return nil, protocolErrorf("SQUIT received: (reason: %s)", reason)
	}

	if _, ok := n.Servers[splitServer]; !ok {
		log.Printf("(%s) tried to split a server (%s) that didn't exist!", n.Name, splitServer)
		return nil, nil
	}

	log.Printf("(%s) splitting server %s (reason: %s)", n.Name, splitServer, reason)
	result := n.splitServer(splitServer)
	result["affected_servers"] = dedup(result["affected_servers"].([]string))
	return result, nil
}

// splitServer removes splitServer and everything transitively behind it,
// deepest leaves first, and reports what was removed.
func (n *Network) splitServer(splitServer string) map[string]any {
	affectedUsers := []string{}
	affectedServers := []string{splitServer}
	affectedNicks := make(map[string][]string)

	// Snapshot both tables: recursion and user removal mutate them while
	// we traverse.
	oldServers := make(map[string]*Server, len(n.Servers))
	for sid, server := range n.Servers {
		oldServers[sid] = server
	}
	oldChannels := make(map[string]*Channel, len(n.Channels))
	for name, ch := range n.Channels {
		oldChannels[name] = ch.Copy()
	}

	// Detach any server uplinked through the split target first, so leaves
	// go before their parents.
	for sid, server := range oldServers {
		if server.Uplink != splitServer || sid == splitServer {
			continue
		}
		if _, ok := n.Servers[sid]; !ok {
			continue
		}
		log.Printf("(%s) server %s also hosts server %s, removing those users too", n.Name, splitServer, sid)
		sub := n.splitServer(sid)
		affectedUsers = append(affectedUsers, sub["users"].([]string)...)
		affectedServers = append(affectedServers, sub["affected_servers"].([]string)...)
		for name, nicks := range sub["nicks"].(map[string][]string) {
			affectedNicks[name] = append(affectedNicks[name], nicks...)
		}
	}

	serverdata := n.Servers[splitServer]
	uids := make([]string, 0, len(serverdata.Users))
	for uid := range serverdata.Users {
		uids = append(uids, uid)
	}
	for _, uid := range uids {
		affectedUsers = append(affectedUsers, uid)
		nick := n.Users[uid].Nick

		// Affected nicks are recorded per channel: split-quit relaying
		// needs to know which nicks were visible where.
		for name, ch := range oldChannels {
			if _, ok := ch.Members[uid]; ok {
				affectedNicks[name] = append(affectedNicks[name], nick)
			}
		}
		n.removeClient(uid)
	}

	delete(n.Servers, splitServer)
	log.Printf("(%s) netsplit affected users: %v", n.Name, affectedUsers)

	return map[string]any{
		"target":           splitServer,
		"users":            affectedUsers,
		"name":             serverdata.Name,
		"uplink":           serverdata.Uplink,
		"nicks":            affectedNicks,
		"serverdata":       serverdata,
		"channeldata":      oldChannels,
		"affected_servers": affectedServers,
	}
}

func dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
