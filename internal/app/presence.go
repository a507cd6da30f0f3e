package app

import "github.com/dkeye/Incommunicado/internal/domain"

// Presence computes per-observer filtered views of who is online.
type Presence struct {
	Registry *Registry
	Ledger   *Ledger
}

// ViewFor returns the peers observer may see, self included.
//   - invitee: master then self (self only while the master is offline)
//   - master: self then registered invitees in join order
//   - regular: every registered peer that is nobody's invitee
func (p Presence) ViewFor(observer domain.PeerID) []domain.PeerID {
	return p.viewFrom(observer, nil)
}

// Views computes the view of every registered peer against one registry snapshot.
func (p Presence) Views() map[domain.PeerID][]domain.PeerID {
	all := p.Registry.Peers()
	out := make(map[domain.PeerID][]domain.PeerID, len(all))
	for _, id := range all {
		out[id] = p.viewFrom(id, all)
	}
	return out
}

func (p Presence) viewFrom(observer domain.PeerID, all []domain.PeerID) []domain.PeerID {
	role := p.Ledger.RoleOf(observer)
	switch role.Kind {
	case RoleInvitee:
		view := make([]domain.PeerID, 0, 2)
		if p.Registry.Has(role.Master) {
			view = append(view, role.Master)
		}
		if p.Registry.Has(observer) {
			view = append(view, observer)
		}
		return view

	case RoleMaster:
		view := make([]domain.PeerID, 0, len(role.Invitees)+1)
		view = append(view, observer)
		for _, inv := range role.Invitees {
			if p.Registry.Has(inv) {
				view = append(view, inv)
			}
		}
		return view

	default:
		if all == nil {
			all = p.Registry.Peers()
		}
		view := make([]domain.PeerID, 0, len(all))
		for _, id := range all {
			if p.Ledger.IsInvitee(id) {
				continue
			}
			view = append(view, id)
		}
		return view
	}
}
