package signal

import (
	"encoding/json"

	"github.com/dkeye/Incommunicado/internal/adapters/rtc"
	"github.com/dkeye/Incommunicado/internal/app/orch"
	"github.com/dkeye/Incommunicado/internal/core"
	"github.com/dkeye/Incommunicado/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleRelay(
	sid core.SessionID,
	conn *WsSignalConn,
	kind domain.EventKind,
	data []byte,
) {
	var p orch.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("kind", string(kind)).Msg("bad relay payload")
		ctl.replyError(conn, "bad_payload")
		return
	}
	var rawTarget string
	if err := json.Unmarshal(p["targetId"], &rawTarget); err != nil {
		ctl.replyError(conn, "bad_payload")
		return
	}
	target, err := domain.ParsePeerID(rawTarget)
	if err != nil {
		ctl.replyError(conn, "bad_payload")
		return
	}

	if ctl.opts.ValidateSignals {
		if err := validateSignal(kind, p); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("kind", string(kind)).Msg("invalid signal")
			ctl.replyError(conn, "bad_payload")
			return
		}
	}

	ctl.Orch.Relay(sid, kind, target, p)
}

// validateSignal checks negotiation payloads structurally. Other kinds
// are opaque to the server.
func validateSignal(kind domain.EventKind, p orch.Payload) error {
	switch kind {
	case domain.EventOffer:
		return rtc.ValidateSessionDescription(p["offer"], webrtc.SDPTypeOffer)
	case domain.EventAnswer:
		return rtc.ValidateSessionDescription(p["answer"], webrtc.SDPTypeAnswer)
	case domain.EventICECandidate:
		return rtc.ValidateCandidate(p["candidate"])
	default:
		return nil
	}
}
