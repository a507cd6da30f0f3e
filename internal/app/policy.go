package app

import (
	"slices"

	"github.com/dkeye/Incommunicado/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// ParseBackpressureAction maps a config value onto an action; unknown values drop.
func ParseBackpressureAction(s string) BackpressureAction {
	switch s {
	case "kick":
		return KickMember
	case "none":
		return NoAction
	default:
		return DropFrame
	}
}

type Policy interface {
	Authorize(sender, target domain.PeerID) bool
	OnBackPressure(peer domain.PeerID) BackpressureAction
}

// TrustPolicy gates reachability on the invite-link ledger.
type TrustPolicy struct {
	Registry     *Registry
	Ledger       *Ledger
	Backpressure BackpressureAction
}

func (p TrustPolicy) Authorize(sender, target domain.PeerID) bool {
	return Authorize(p.Registry, p.Ledger, sender, target)
}

func (p TrustPolicy) OnBackPressure(domain.PeerID) BackpressureAction {
	return p.Backpressure
}

// Authorize decides whether sender may reach target under the current
// registry and ledger. Targets that are not registered are never reachable.
// It has no side effects and is never cached.
func Authorize(reg *Registry, l *Ledger, sender, target domain.PeerID) bool {
	if !reg.Has(target) {
		return false
	}
	role := l.RoleOf(sender)
	switch role.Kind {
	case RoleMaster:
		if role.Master != "" && target == role.Master {
			return true
		}
		return target == sender || slices.Contains(role.Invitees, target)
	case RoleInvitee:
		return target == role.Master
	default:
		return true
	}
}
