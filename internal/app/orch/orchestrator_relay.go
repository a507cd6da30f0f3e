package orch

import (
	"encoding/json"
	"time"

	"github.com/dkeye/Incommunicado/internal/core"
	"github.com/dkeye/Incommunicado/internal/domain"
	"github.com/dkeye/Incommunicado/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Payload is the decoded body of a relayed frame. Fields are forwarded
// verbatim except type, senderId and the per-kind server stamps.
type Payload map[string]json.RawMessage

// Relay forwards one point-to-point event from the peer on sid to target.
// Unregistered senders, denied targets and offline targets are dropped
// without telling the sender. The returned outcome is one of the
// metrics.Outcome* values.
func (o *Orchestrator) Relay(sid core.SessionID, kind domain.EventKind, target domain.PeerID, payload Payload) string {
	outcome := metrics.OutcomeForwarded
	o.run(func() {
		sender, ok := o.Registry.PeerOf(sid)
		if !ok {
			outcome = metrics.OutcomeUnregistered
			return
		}
		l := log.With().Str("module", "orch").Str("kind", string(kind)).Str("from", string(sender)).Str("to", string(target)).Logger()

		if !o.Policy.Authorize(sender, target) {
			// An unknown target and an out-of-scope target look the same to the sender.
			if o.Registry.Has(target) {
				outcome = metrics.OutcomeDenied
			} else {
				outcome = metrics.OutcomeOffline
			}
			l.Debug().Str("outcome", outcome).Msg("relay dropped")
			return
		}
		conn, ok := o.Registry.Resolve(target)
		if !ok {
			outcome = metrics.OutcomeOffline
			l.Debug().Str("outcome", outcome).Msg("relay dropped")
			return
		}

		out, err := stamp(kind, sender, payload)
		if err != nil {
			outcome = metrics.OutcomeDropped
			l.Error().Err(err).Msg("relay stamp")
			return
		}
		if !o.send(target, conn, out) {
			outcome = metrics.OutcomeDropped
			return
		}
		l.Debug().Msg("relayed")
	})
	o.Metrics.ObserveRelay(string(kind), outcome)
	return outcome
}

// stamp builds the outbound body: pass-through fields plus the outbound
// type and the authoritative senderId.
func stamp(kind domain.EventKind, sender domain.PeerID, in Payload) (Payload, error) {
	out := make(Payload, len(in)+3)
	for k, v := range in {
		out[k] = v
	}
	var err error
	set := func(key string, v any) {
		if err != nil {
			return
		}
		var raw []byte
		raw, err = json.Marshal(v)
		out[key] = raw
	}

	set("type", kind.Outbound())
	set("senderId", sender)
	switch kind {
	case domain.EventChatMessage:
		if _, ok := in["timestamp"]; !ok {
			set("timestamp", time.Now().UTC())
		}
	case domain.EventMarkRead:
		set("readerId", sender)
	}
	return out, err
}
