package orch

import (
	"github.com/dkeye/Incommunicado/internal/app"
	"github.com/dkeye/Incommunicado/internal/core"
	"github.com/dkeye/Incommunicado/internal/domain"
	"github.com/rs/zerolog/log"
)

// Register binds id to the connection and pushes fresh presence to everyone.
func (o *Orchestrator) Register(sid core.SessionID, conn core.SignalConnection, id domain.PeerID) {
	o.run(func() {
		o.bind(sid, conn, id)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("peer", string(id)).Msg("register")
		o.broadcastPresence()
	})
}

// InviteJoin records the trust edge master -> invitee and registers the
// invitee on conn in the same step. Errors leave all state untouched.
func (o *Orchestrator) InviteJoin(sid core.SessionID, conn core.SignalConnection, master, invitee domain.PeerID) error {
	var err error
	o.run(func() {
		// Rebinding the master's own channel would release the master.
		if cur, ok := o.Registry.PeerOf(sid); ok && cur == master {
			err = app.ErrSelfInvite
			return
		}
		if err = o.Ledger.Join(master, invitee); err != nil {
			return
		}
		o.bind(sid, conn, invitee)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("master", string(master)).Str("invitee", string(invitee)).Msg("invite join")

		o.send(invitee, conn, core.MasterNotice{Type: core.TypeInviteSuccess, MasterID: master})
		o.send(invitee, conn, core.MasterNotice{Type: core.TypeMasterConnected, MasterID: master})
		if mc, ok := o.Registry.Resolve(master); ok {
			o.send(master, mc, core.InviteeNotice{Type: core.TypeNewInvitee, InviteeID: invitee})
		}
		o.broadcastPresence()
	})
	return err
}

// Disconnect is normal teardown: it releases whatever peer sid carried,
// prunes the ledger and rebroadcasts. Superseded connections change nothing.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	o.run(func() {
		delete(o.cancels, sid)
		id, ok := o.Registry.Remove(sid)
		if !ok {
			return
		}
		o.Ledger.OnDisconnect(id)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("peer", string(id)).Msg("disconnect")
		o.broadcastPresence()
	})
}

// bind must run under mu. A channel carries one peer id at a time, so
// rebinding it releases the previous id as if that peer disconnected.
func (o *Orchestrator) bind(sid core.SessionID, conn core.SignalConnection, id domain.PeerID) {
	if released, ok := o.Registry.Register(id, sid, conn); ok {
		o.Ledger.OnDisconnect(released)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("released", string(released)).Msg("channel rebound")
	}
}

// broadcastPresence must run under mu.
func (o *Orchestrator) broadcastPresence() {
	views := o.presence().Views()
	for id, view := range views {
		conn, ok := o.Registry.Resolve(id)
		if !ok {
			continue
		}
		o.send(id, conn, core.PeersList{Type: core.TypePeersList, Peers: domain.NewPeerDTOs(view)})
	}
	o.Metrics.IncBroadcast()
	o.Metrics.SetTopology(o.Registry.Len(), o.Ledger.Edges())
	log.Debug().Str("module", "orch").Int("peers", len(views)).Msg("presence broadcast")
}
