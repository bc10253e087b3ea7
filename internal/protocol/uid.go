package protocol

import (
	"fmt"
	"strings"
)

// UIDGenerator produces collision-free user identifiers for one server
// segment. Identifiers are the server's SID followed by a fixed-width
// suffix drawn from the dialect's alphabet; the internal cursor advances
// like an odometer, carrying leftward on wrap. Adapted from the incremental
// scheme used by InspIRCd.
type UIDGenerator struct {
	sid      string
	alphabet string
	cursor   []int
}

// NewUIDGenerator creates a generator for the given server segment. The
// alphabet must be non-empty and the suffix width positive; these come from
// the concrete dialect.
func NewUIDGenerator(sid, alphabet string, width int) (*UIDGenerator, error) {
	if alphabet == "" {
		return nil, fmt.Errorf("uid generator for %s: empty alphabet", sid)
	}
	if width <= 0 {
		return nil, fmt.Errorf("uid generator for %s: invalid suffix width %d", sid, width)
	}
	return &UIDGenerator{
		sid:      sid,
		alphabet: alphabet,
		cursor:   make([]int, width),
	}, nil
}

// Next returns the next unissued identifier, or ErrIDExhausted once the
// suffix space has been fully consumed.
func (g *UIDGenerator) Next() (string, error) {
	if g.cursor == nil {
		return "", ErrIDExhausted
	}

	var suffix strings.Builder
	for _, idx := range g.cursor {
		suffix.WriteByte(g.alphabet[idx])
	}
	uid := g.sid + suffix.String()

	if err := g.increment(len(g.cursor) - 1); err != nil {
		// Mark the generator spent; the UID built above is still valid.
		g.cursor = nil
	}
	return uid, nil
}

func (g *UIDGenerator) increment(pos int) error {
	if pos < 0 {
		return ErrIDExhausted
	}
	if g.cursor[pos] == len(g.alphabet)-1 {
		g.cursor[pos] = 0
		return g.increment(pos - 1)
	}
	g.cursor[pos]++
	return nil
}
