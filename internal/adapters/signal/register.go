package signal

import (
	"crypto/subtle"
	"encoding/json"

	"github.com/dkeye/Incommunicado/internal/core"
	"github.com/dkeye/Incommunicado/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleRegister(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type registerPayload struct {
		Type   string `json:"type"`
		PeerID string `json:"peerId"`
		Secret string `json:"secret,omitempty"`
	}
	var p registerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad register payload")
		ctl.replyError(conn, "bad_payload")
		return
	}

	if !ctl.secretOK(p.Secret) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("peer", p.PeerID).Msg("register rejected: bad secret")
		if f, err := core.Encode(core.ErrorReply{Type: core.TypeAuthError, Reason: "invalid secret"}); err == nil {
			conn.Finish(f)
		}
		return
	}

	id, err := domain.ParsePeerID(p.PeerID)
	if err != nil {
		ctl.sendJSON(conn, core.ErrorReply{Type: core.TypeAuthError, Reason: err.Error()})
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("peer", string(id)).Msg("register")
	ctl.Orch.Register(sid, conn, id)
}

// secretOK reports whether got matches the configured shared secret.
// An empty configured secret disables the check.
func (ctl *SignalWSController) secretOK(got string) bool {
	want := ctl.opts.SharedSecret
	if want == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
