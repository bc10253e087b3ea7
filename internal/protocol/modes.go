package protocol

import (
	"log"
	"strings"
)

// ModeChange is one parsed mode operation.
type ModeChange struct {
	Add  bool
	Char string
	Arg  string
}

// ParseModes parses a modestring plus its parameters against the network's
// mode-class tables, producing the structured change list handlers apply
// and hook consumers reconcile against. args is the raw argument vector
// after the target: modestring first, then parameters.
func (n *Network) ParseModes(target string, args []string) []ModeChange {
	if len(args) == 0 {
		return nil
	}

	table := n.UModes
	isChannel := n.IsChannel(target)
	if isChannel {
		table = n.CModes
	}

	modestring := args[0]
	params := args[1:]
	add := true

	var changes []ModeChange
	for _, r := range modestring {
		char := string(r)
		switch char {
		case "+":
			add = true
			continue
		case "-":
			add = false
			continue
		}

		arg := ""
		if n.modeTakesArg(table, isChannel, char, add) {
			if len(params) > 0 {
				arg = params[0]
				params = params[1:]
			} else {
				log.Printf("(%s) mode %s%s on %s is missing its parameter", n.Name, sign(add), char, target)
			}
		}
		changes = append(changes, ModeChange{Add: add, Char: char, Arg: arg})
	}
	return changes
}

func (n *Network) modeTakesArg(table map[string]string, isChannel bool, char string, add bool) bool {
	if isChannel {
		if _, ok := n.PrefixModes[char]; ok {
			return true
		}
	}
	if strings.Contains(table["*A"], char) || strings.Contains(table["*B"], char) {
		return true
	}
	if strings.Contains(table["*C"], char) {
		return add
	}
	return false
}

// ApplyModes applies a parsed change list to the target's state: prefix
// modes update channel memberships, list modes accumulate, parameter and
// boolean modes replace.
func (n *Network) ApplyModes(target string, changes []ModeChange) {
	if n.IsChannel(target) {
		ch := n.lookupChannel(target)
		if ch == nil {
			return
		}
		for _, change := range changes {
			if _, ok := n.PrefixModes[change.Char]; ok {
				n.applyPrefixChange(ch, change)
				continue
			}
			ch.Modes = applyOne(ch.Modes, change, strings.Contains(n.CModes["*A"], change.Char))
		}
		return
	}

	user, ok := n.Users[n.GetUID(target)]
	if !ok {
		return
	}
	for _, change := range changes {
		user.Modes = applyOne(user.Modes, change, false)
	}
}

func (n *Network) applyPrefixChange(ch *Channel, change ModeChange) {
	member, ok := ch.Members[n.GetUID(change.Arg)]
	if !ok {
		return
	}
	if change.Add {
		member.Prefixes[change.Char] = struct{}{}
	} else {
		delete(member.Prefixes, change.Char)
	}
}

func applyOne(modes []Mode, change ModeChange, isList bool) []Mode {
	out := modes[:0]
	for _, m := range modes {
		if m.Char != change.Char {
			out = append(out, m)
			continue
		}
		// List modes only drop the entry matching the parameter; other
		// classes always replace or remove.
		if isList && m.Arg != change.Arg {
			out = append(out, m)
		}
	}
	if change.Add {
		out = append(out, Mode{Char: change.Char, Arg: change.Arg})
	}
	return out
}

// JoinModes formats a change list back into a modestring and parameter
// vector, the inverse of ParseModes.
func (n *Network) JoinModes(changes []ModeChange) []string {
	if len(changes) == 0 {
		return []string{"+"}
	}

	var modestring strings.Builder
	var params []string
	lastAdd := !changes[0].Add // force an explicit leading sign
	for _, change := range changes {
		if change.Add != lastAdd {
			modestring.WriteString(sign(change.Add))
			lastAdd = change.Add
		}
		modestring.WriteString(change.Char)
		if change.Arg != "" {
			params = append(params, change.Arg)
		}
	}
	return append([]string{modestring.String()}, params...)
}

func sign(add bool) string {
	if add {
		return "+"
	}
	return "-"
}
