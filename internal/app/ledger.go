package app

import (
	"errors"
	"slices"

	"github.com/dkeye/Incommunicado/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrMasterNotFound = errors.New("master not found")
	ErrSelfInvite     = errors.New("cannot join own invite link")
)

type RoleKind int

const (
	RoleRegular RoleKind = iota
	RoleMaster
	RoleInvitee
)

func (k RoleKind) String() string {
	switch k {
	case RoleMaster:
		return "master"
	case RoleInvitee:
		return "invitee"
	default:
		return "regular"
	}
}

// Role is derived from ledger state on every call, never stored.
type Role struct {
	Kind     RoleKind
	Master   domain.PeerID   // set for RoleInvitee, and for a RoleMaster that followed a link
	Invitees []domain.PeerID // set for RoleMaster
}

// Ledger records invite-link trust edges: master -> ordered invitees.
// Each invitee belongs to at most one master. Like Registry, a Ledger
// is not safe for concurrent use.
type Ledger struct {
	reg      *Registry
	invitees map[domain.PeerID][]domain.PeerID
	masterOf map[domain.PeerID]domain.PeerID
}

func NewLedger(reg *Registry) *Ledger {
	return &Ledger{
		reg:      reg,
		invitees: make(map[domain.PeerID][]domain.PeerID),
		masterOf: make(map[domain.PeerID]domain.PeerID),
	}
}

// Join records invitee under master. Repeated joins are idempotent; joining
// a second master moves the invitee away from the first one.
func (l *Ledger) Join(master, invitee domain.PeerID) error {
	if master == invitee {
		return ErrSelfInvite
	}
	if !l.reg.Has(master) {
		return ErrMasterNotFound
	}
	if prev, ok := l.masterOf[invitee]; ok {
		if prev == master {
			return nil
		}
		l.detach(prev, invitee)
	}
	l.invitees[master] = append(l.invitees[master], invitee)
	l.masterOf[invitee] = master
	log.Info().Str("module", "app.ledger").Str("master", string(master)).Str("invitee", string(invitee)).Msg("trust edge added")
	return nil
}

// RoleOf evaluates master first: a peer that has invitees is a master even
// if it also followed someone else's link. Such a master keeps its own
// master in Role.Master.
func (l *Ledger) RoleOf(id domain.PeerID) Role {
	if list, ok := l.invitees[id]; ok && len(list) > 0 {
		return Role{Kind: RoleMaster, Master: l.masterOf[id], Invitees: slices.Clone(list)}
	}
	if master, ok := l.masterOf[id]; ok {
		return Role{Kind: RoleInvitee, Master: master}
	}
	return Role{Kind: RoleRegular}
}

// IsInvitee reports whether id appears in any master's list.
func (l *Ledger) IsInvitee(id domain.PeerID) bool {
	_, ok := l.masterOf[id]
	return ok
}

// OnDisconnect prunes every edge id takes part in.
func (l *Ledger) OnDisconnect(id domain.PeerID) {
	if list, ok := l.invitees[id]; ok {
		for _, inv := range list {
			delete(l.masterOf, inv)
		}
		delete(l.invitees, id)
		log.Info().Str("module", "app.ledger").Str("master", string(id)).Int("invitees", len(list)).Msg("trust edge removed")
	}
	if master, ok := l.masterOf[id]; ok {
		l.detach(master, id)
	}
}

// Edges returns the number of masters with at least one invitee.
func (l *Ledger) Edges() int { return len(l.invitees) }

func (l *Ledger) detach(master, invitee domain.PeerID) {
	delete(l.masterOf, invitee)
	list := slices.DeleteFunc(l.invitees[master], func(id domain.PeerID) bool { return id == invitee })
	if len(list) == 0 {
		delete(l.invitees, master)
		log.Info().Str("module", "app.ledger").Str("master", string(master)).Msg("trust edge removed")
		return
	}
	l.invitees[master] = list
}
