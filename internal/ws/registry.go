package ws

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Conn is the transport-side handle the registry refers to. ID must be stable
// for the lifetime of the connection; Send must not block.
type Conn interface {
	ID() string
	Send(msg []byte) error
}

// Membership binds one connection to one room under one display name.
type Membership struct {
	Conn     Conn
	Room     string
	Username string
	JoinedAt time.Time

	seq uint64
}

// RoomSummary describes a live room.
type RoomSummary struct {
	ID      string `json:"id"`
	Members int    `json:"members"`
}

// Registry is the single source of truth for who is in which room. Every
// method is safe for concurrent use and observes whole add/remove operations.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*Membership // connID -> membership
	rooms  map[string]*room       // roomID -> members
	seq    uint64
	now    func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]*Membership),
		rooms:  make(map[string]*room),
		now:    time.Now,
	}
}

// Add binds conn to roomID as username. A connection belongs to at most one
// room: any previous membership is removed in the same critical section and
// returned as displaced.
func (r *Registry) Add(conn Conn, roomID, username string) (added Membership, displaced *Membership) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.removeLocked(conn.ID()); ok {
		displaced = &prev
	}

	r.seq++
	m := &Membership{
		Conn:     conn,
		Room:     roomID,
		Username: username,
		JoinedAt: r.now(),
		seq:      r.seq,
	}
	r.byConn[conn.ID()] = m

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = newRoom()
		r.rooms[roomID] = rm
	}
	rm.add(m)
	return *m, displaced
}

// Remove deletes the membership of conn, if any.
func (r *Registry) Remove(conn Conn) (Membership, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(conn.ID())
}

func (r *Registry) removeLocked(connID string) (Membership, bool) {
	m, ok := r.byConn[connID]
	if !ok {
		return Membership{}, false
	}
	delete(r.byConn, connID)
	if rm, ok := r.rooms[m.Room]; ok {
		rm.remove(connID)
		if rm.empty() {
			delete(r.rooms, m.Room)
		}
	}
	return *m, true
}

// Find returns the membership of conn. A miss means the connection has not
// joined yet.
func (r *Registry) Find(conn Conn) (Membership, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byConn[conn.ID()]
	if !ok {
		return Membership{}, false
	}
	return *m, true
}

// MembersOf returns the members of roomID in join order.
func (r *Registry) MembersOf(roomID string) []Membership {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	return rm.snapshot()
}

// Rooms lists every live room sorted by id.
func (r *Registry) Rooms() []RoomSummary {
	r.mu.RLock()
	out := make([]RoomSummary, 0, len(r.rooms))
	for id, rm := range r.rooms {
		out = append(out, RoomSummary{ID: id, Members: len(rm.conns)})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Usernames returns the display names in roomID, in join order.
func (r *Registry) Usernames(roomID string) []string {
	return lo.Map(r.MembersOf(roomID), func(m Membership, _ int) string { return m.Username })
}
