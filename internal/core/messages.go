package core

import (
	"encoding/json"

	"github.com/dkeye/Incommunicado/internal/domain"
)

// Outbound frame types that are not plain relay pass-through.
const (
	TypePeersList           = "peers-list"
	TypeAuthError           = "auth-error"
	TypeInviteError         = "invite-link-error"
	TypeInviteSuccess       = "invite-link-success"
	TypeNewInvitee          = "new-invitee"
	TypeMasterConnected     = "master-connected"
	TypeInviteTargetOffline = "invite-target-offline"
	TypeError               = "error"
	TypeRateLimited         = "rate-limited"
	TypePong                = "pong"
)

type PeersList struct {
	Type  string           `json:"type"`
	Peers []domain.PeerDTO `json:"peers"`
}

type ErrorReply struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

type MasterNotice struct {
	Type     string        `json:"type"`
	MasterID domain.PeerID `json:"masterId"`
}

type InviteeNotice struct {
	Type      string        `json:"type"`
	InviteeID domain.PeerID `json:"inviteeId"`
}

// Encode marshals one outbound message into a frame.
func Encode(v any) (Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}
