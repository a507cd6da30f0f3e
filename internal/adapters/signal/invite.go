package signal

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Incommunicado/internal/app"
	"github.com/dkeye/Incommunicado/internal/core"
	"github.com/dkeye/Incommunicado/internal/domain"
	"github.com/rs/zerolog/log"
)

// handleInviteJoin registers the sender as an invitee of masterId. Invite
// links carry their own trust, so no shared secret is asked for.
func (ctl *SignalWSController) handleInviteJoin(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type joinPayload struct {
		Type      string `json:"type"`
		MasterID  string `json:"masterId"`
		InviteeID string `json:"inviteeId"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad invite payload")
		ctl.replyError(conn, "bad_payload")
		return
	}

	master, err := domain.ParsePeerID(p.MasterID)
	if err != nil {
		ctl.inviteError(conn, "invalid master id: "+err.Error())
		return
	}
	invitee, err := domain.ParsePeerID(p.InviteeID)
	if err != nil {
		ctl.inviteError(conn, "invalid invitee id: "+err.Error())
		return
	}

	err = ctl.Orch.InviteJoin(sid, conn, master, invitee)
	switch {
	case err == nil:
		log.Info().Str("module", "signal").Str("sid", string(sid)).Str("master", string(master)).Str("invitee", string(invitee)).Msg("invite join")
	case errors.Is(err, app.ErrMasterNotFound):
		log.Info().Str("module", "signal").Str("sid", string(sid)).Str("master", string(master)).Msg("invite target offline")
		ctl.inviteError(conn, err.Error())
		ctl.sendJSON(conn, core.MasterNotice{Type: core.TypeInviteTargetOffline, MasterID: master})
	default:
		ctl.inviteError(conn, err.Error())
	}
}

func (ctl *SignalWSController) inviteError(conn *WsSignalConn, reason string) {
	ctl.sendJSON(conn, core.ErrorReply{Type: core.TypeInviteError, Reason: reason})
}
