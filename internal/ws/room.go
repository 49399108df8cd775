package ws

import (
	"cmp"
	"slices"
)

// room is the set of connection ids currently sharing a room id. It holds no
// lock of its own; the Registry guards it.
type room struct {
	conns map[string]*Membership // connID -> membership
}

func newRoom() *room { return &room{conns: map[string]*Membership{}} }

func (r *room) add(m *Membership) { r.conns[m.Conn.ID()] = m }

func (r *room) remove(connID string) { delete(r.conns, connID) }

func (r *room) empty() bool { return len(r.conns) == 0 }

// snapshot copies the members out in join order.
func (r *room) snapshot() []Membership {
	out := make([]Membership, 0, len(r.conns))
	for _, m := range r.conns {
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Membership) int { return cmp.Compare(a.seq, b.seq) })
	return out
}
