package orch

import (
	"context"
	"sync"

	"github.com/dkeye/Incommunicado/internal/app"
	"github.com/dkeye/Incommunicado/internal/core"
	"github.com/dkeye/Incommunicado/internal/domain"
	"github.com/dkeye/Incommunicado/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Orchestrator owns the registry and ledger. Every inbound event runs to
// completion under mu, so one event's mutations are never observed half
// done by another. Nothing under mu blocks on the network: frames go out
// through SignalConnection.TrySend.
type Orchestrator struct {
	mu       sync.Mutex
	Registry *app.Registry
	Ledger   *app.Ledger
	Policy   app.Policy
	Metrics  *metrics.Metrics

	cancels map[core.SessionID]context.CancelFunc
	kicks   []context.CancelFunc
}

func New(backpressure app.BackpressureAction, m *metrics.Metrics) *Orchestrator {
	reg := app.NewRegistry()
	ledger := app.NewLedger(reg)
	return &Orchestrator{
		Registry: reg,
		Ledger:   ledger,
		Policy:   app.TrustPolicy{Registry: reg, Ledger: ledger, Backpressure: backpressure},
		Metrics:  m,
		cancels:  make(map[core.SessionID]context.CancelFunc),
	}
}

// Attach records the cancel func of a freshly accepted connection so the
// backpressure policy can kick it.
func (o *Orchestrator) Attach(sid core.SessionID, cancel context.CancelFunc) {
	o.run(func() {
		o.cancels[sid] = cancel
	})
}

// KickBySID closes the connection behind sid; cleanup follows through Disconnect.
func (o *Orchestrator) KickBySID(sid core.SessionID) bool {
	o.mu.Lock()
	cancel, ok := o.cancels[sid]
	o.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("kicked connection")
	return true
}

func (o *Orchestrator) PeerOf(sid core.SessionID) (domain.PeerID, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Registry.PeerOf(sid)
}

func (o *Orchestrator) Authorize(sender, target domain.PeerID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Policy.Authorize(sender, target)
}

func (o *Orchestrator) ViewFor(id domain.PeerID) []domain.PeerID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.presence().ViewFor(id)
}

// Stats returns the number of registered peers and live trust edges.
func (o *Orchestrator) Stats() (peers, edges int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Registry.Len(), o.Ledger.Edges()
}

func (o *Orchestrator) presence() app.Presence {
	return app.Presence{Registry: o.Registry, Ledger: o.Ledger}
}

// run executes fn as one atomic event, then fires any kicks it queued
// once the lock is released.
func (o *Orchestrator) run(fn func()) {
	o.mu.Lock()
	fn()
	kicks := o.kicks
	o.kicks = nil
	o.mu.Unlock()

	for _, cancel := range kicks {
		cancel()
	}
}

// send is fire-and-forget. A failed push consults the backpressure policy;
// kicks are deferred until the current event releases the lock.
func (o *Orchestrator) send(id domain.PeerID, conn core.SignalConnection, v any) bool {
	f, err := core.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode frame")
		return false
	}
	if err := conn.TrySend(f); err != nil {
		o.Metrics.IncDroppedFrame()
		log.Warn().Err(err).Str("module", "orch").Str("peer", string(id)).Msg("frame dropped")
		if o.Policy.OnBackPressure(id) == app.KickMember {
			if sid, ok := o.Registry.SessionOf(id); ok {
				if cancel, ok := o.cancels[sid]; ok {
					o.kicks = append(o.kicks, cancel)
					o.Metrics.IncKicked()
				}
			}
		}
		return false
	}
	return true
}
