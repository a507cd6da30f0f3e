package app

import (
	"sort"

	"github.com/dkeye/Incommunicado/internal/core"
	"github.com/dkeye/Incommunicado/internal/domain"
	"github.com/rs/zerolog/log"
)

type binding struct {
	SID  core.SessionID
	Conn core.SignalConnection
	seq  uint64
}

// Registry maps peer ids to their live connection, with a reverse index
// from connection to peer id. A Registry is not safe for concurrent use;
// the orchestrator serializes access.
type Registry struct {
	byPeer map[domain.PeerID]*binding
	bySID  map[core.SessionID]domain.PeerID
	seq    uint64
}

func NewRegistry() *Registry {
	return &Registry{
		byPeer: make(map[domain.PeerID]*binding),
		bySID:  make(map[core.SessionID]domain.PeerID),
	}
}

// Register binds id to conn, replacing any earlier binding for id.
// The superseded connection is not notified. If sid was bound to a
// different peer id, that binding is released and the old id returned.
func (r *Registry) Register(id domain.PeerID, sid core.SessionID, conn core.SignalConnection) (released domain.PeerID, ok bool) {
	if prev, bound := r.bySID[sid]; bound && prev != id {
		if b, exists := r.byPeer[prev]; exists && b.SID == sid {
			delete(r.byPeer, prev)
		}
		released, ok = prev, true
	}

	seq := r.nextSeq()
	if old, exists := r.byPeer[id]; exists {
		if old.SID != sid {
			delete(r.bySID, old.SID)
			log.Info().Str("module", "app.registry").Str("peer", string(id)).Str("old_sid", string(old.SID)).Str("sid", string(sid)).Msg("superseded connection")
		}
		seq = old.seq
	}
	r.byPeer[id] = &binding{SID: sid, Conn: conn, seq: seq}
	r.bySID[sid] = id
	log.Info().Str("module", "app.registry").Str("peer", string(id)).Str("sid", string(sid)).Msg("registered peer")
	return released, ok
}

// Remove unbinds whatever peer id sid currently carries.
func (r *Registry) Remove(sid core.SessionID) (domain.PeerID, bool) {
	id, ok := r.bySID[sid]
	if !ok {
		return "", false
	}
	delete(r.bySID, sid)
	if b, exists := r.byPeer[id]; exists && b.SID == sid {
		delete(r.byPeer, id)
	}
	log.Info().Str("module", "app.registry").Str("peer", string(id)).Str("sid", string(sid)).Msg("removed peer")
	return id, true
}

func (r *Registry) Resolve(id domain.PeerID) (core.SignalConnection, bool) {
	b, ok := r.byPeer[id]
	if !ok {
		return nil, false
	}
	return b.Conn, true
}

// PeerOf returns the peer id currently carried by sid.
func (r *Registry) PeerOf(sid core.SessionID) (domain.PeerID, bool) {
	id, ok := r.bySID[sid]
	return id, ok
}

// SessionOf returns the connection id id is bound to.
func (r *Registry) SessionOf(id domain.PeerID) (core.SessionID, bool) {
	b, ok := r.byPeer[id]
	if !ok {
		return "", false
	}
	return b.SID, true
}

func (r *Registry) Has(id domain.PeerID) bool {
	_, ok := r.byPeer[id]
	return ok
}

func (r *Registry) Len() int { return len(r.byPeer) }

// Peers returns registered ids in first-registration order.
func (r *Registry) Peers() []domain.PeerID {
	type entry struct {
		id  domain.PeerID
		seq uint64
	}
	entries := make([]entry, 0, len(r.byPeer))
	for id, b := range r.byPeer {
		entries = append(entries, entry{id: id, seq: b.seq})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]domain.PeerID, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.id)
	}
	return out
}

func (r *Registry) nextSeq() uint64 {
	r.seq++
	return r.seq
}
