package orch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dkeye/Incommunicado/internal/app"
	"github.com/dkeye/Incommunicado/internal/core"
	"github.com/dkeye/Incommunicado/internal/core/mocks"
	"github.com/dkeye/Incommunicado/internal/domain"
	"github.com/dkeye/Incommunicado/internal/metrics"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var errFull = errors.New("send buffer full")

// recConn records every frame pushed to it. full simulates a stalled reader.
type recConn struct {
	mu     sync.Mutex
	frames []map[string]any
	full   bool
}

func (c *recConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errFull
	}
	var m map[string]any
	if err := json.Unmarshal(f, &m); err != nil {
		return err
	}
	c.frames = append(c.frames, m)
	return nil
}

func (c *recConn) Close() {}

func (c *recConn) take() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.frames
	c.frames = nil
	return out
}

func (c *recConn) ofType(typ string) []map[string]any {
	var out []map[string]any
	for _, f := range c.take() {
		if f["type"] == typ {
			out = append(out, f)
		}
	}
	return out
}

// lastPeers returns the ids in the most recent peers-list frame.
func (c *recConn) lastPeers(t *testing.T) []string {
	t.Helper()
	lists := c.ofType(core.TypePeersList)
	require.NotEmpty(t, lists, "no peers-list received")
	raw := lists[len(lists)-1]["peers"].([]any)
	ids := make([]string, 0, len(raw))
	for _, p := range raw {
		ids = append(ids, p.(map[string]any)["peerId"].(string))
	}
	return ids
}

type peer struct {
	sid  core.SessionID
	conn *recConn
}

func register(o *Orchestrator, id domain.PeerID) *peer {
	p := &peer{sid: core.SessionID("sid-" + id), conn: &recConn{}}
	o.Register(p.sid, p.conn, id)
	return p
}

func join(t *testing.T, o *Orchestrator, master, invitee domain.PeerID) *peer {
	t.Helper()
	p := &peer{sid: core.SessionID("sid-" + invitee), conn: &recConn{}}
	require.NoError(t, o.InviteJoin(p.sid, p.conn, master, invitee))
	return p
}

func payload(t *testing.T, fields map[string]any) Payload {
	t.Helper()
	out := make(Payload, len(fields))
	for k, v := range fields {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		out[k] = raw
	}
	return out
}

func TestScenarioRegularPeersSeeEachOther(t *testing.T) {
	o := New(app.DropFrame, nil)
	alice := register(o, "alice")
	bob := register(o, "bob")

	assert.Equal(t, []string{"alice", "bob"}, alice.conn.lastPeers(t))
	assert.Equal(t, []string{"alice", "bob"}, bob.conn.lastPeers(t))

	out := o.Relay(alice.sid, domain.EventOffer, "bob", payload(t, map[string]any{
		"targetId": "bob",
		"offer":    map[string]any{"type": "offer", "sdp": "v=0"},
	}))
	assert.Equal(t, metrics.OutcomeForwarded, out)

	offers := bob.conn.ofType("offer")
	require.Len(t, offers, 1)
	assert.Equal(t, "alice", offers[0]["senderId"])
	assert.Equal(t, "v=0", offers[0]["offer"].(map[string]any)["sdp"])
}

func TestScenarioInviteeIsolation(t *testing.T) {
	o := New(app.DropFrame, nil)
	alice := register(o, "alice")
	bob := register(o, "bob")
	carol := join(t, o, "alice", "carol")

	success := carol.conn.take()
	var types []string
	for _, f := range success {
		types = append(types, f["type"].(string))
	}
	assert.Contains(t, types, core.TypeInviteSuccess)
	assert.Contains(t, types, core.TypeMasterConnected)

	assert.Len(t, alice.conn.ofType(core.TypeNewInvitee), 1)
	assert.Equal(t, []string{"alice", "bob"}, bob.conn.lastPeers(t))

	// carol reaches alice only.
	assert.Equal(t, metrics.OutcomeForwarded, o.Relay(carol.sid, domain.EventChatMessage, "alice", payload(t, map[string]any{"content": "hi"})))
	assert.Equal(t, metrics.OutcomeDenied, o.Relay(carol.sid, domain.EventOffer, "bob", payload(t, map[string]any{"offer": "x"})))
	assert.Empty(t, bob.conn.ofType("offer"))

	// alice is a master now and cannot reach bob either.
	assert.Equal(t, metrics.OutcomeDenied, o.Relay(alice.sid, domain.EventChatMessage, "bob", payload(t, map[string]any{"content": "yo"})))

	// bob is regular and may still reach carol.
	assert.True(t, o.Authorize("bob", "carol"))

	assert.Equal(t, []domain.PeerID{"alice", "carol"}, o.ViewFor("carol"))
	assert.Equal(t, []domain.PeerID{"alice", "carol"}, o.ViewFor("alice"))
	assert.Equal(t, []domain.PeerID{"alice", "bob"}, o.ViewFor("bob"))
}

func TestScenarioMasterDisconnect(t *testing.T) {
	o := New(app.DropFrame, nil)
	register(o, "alice")
	bob := register(o, "bob")
	carol := join(t, o, "alice", "carol")

	o.Disconnect("sid-alice")

	assert.Equal(t, []string{"bob", "carol"}, bob.conn.lastPeers(t))
	assert.Equal(t, []string{"bob", "carol"}, carol.conn.lastPeers(t))
	assert.False(t, o.Authorize("carol", "alice"))
	assert.True(t, o.Authorize("carol", "bob"))

	peers, edges := o.Stats()
	assert.Equal(t, 2, peers)
	assert.Equal(t, 0, edges)
}

func TestScenarioInviteMasterNotFound(t *testing.T) {
	o := New(app.DropFrame, nil)
	bob := register(o, "bob")
	bob.conn.take()

	carol := &recConn{}
	err := o.InviteJoin("sid-carol", carol, "ghost", "carol")
	assert.ErrorIs(t, err, app.ErrMasterNotFound)

	_, ok := o.PeerOf("sid-carol")
	assert.False(t, ok)
	assert.Empty(t, carol.take())
	assert.Empty(t, bob.conn.take())
}

func TestInviteJoinOwnChannelRejected(t *testing.T) {
	o := New(app.DropFrame, nil)
	alice := register(o, "alice")

	err := o.InviteJoin(alice.sid, alice.conn, "alice", "carol")
	assert.ErrorIs(t, err, app.ErrSelfInvite)
	peer, ok := o.PeerOf(alice.sid)
	require.True(t, ok)
	assert.Equal(t, domain.PeerID("alice"), peer)
}

func TestSupersededConnectionReceivesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	o := New(app.DropFrame, nil)

	stale := mocks.NewMockSignalConnection(ctrl)
	stale.EXPECT().TrySend(gomock.Any()).Return(nil).Times(1) // initial peers-list only
	o.Register("sid-old", stale, "alice")

	fresh := &recConn{}
	o.Register("sid-new", fresh, "alice")
	bob := register(o, "bob")

	o.Relay(bob.sid, domain.EventChatMessage, "alice", payload(t, map[string]any{"content": "hi"}))
	assert.Len(t, fresh.ofType("message"), 1)

	// The stale socket closing must not unregister the fresh one.
	o.Disconnect("sid-old")
	_, ok := o.PeerOf("sid-new")
	assert.True(t, ok)
}

func TestRebindReleasesOldID(t *testing.T) {
	o := New(app.DropFrame, nil)
	alice := register(o, "alice")
	join(t, o, "alice", "carol")

	o.Register(alice.sid, alice.conn, "alice2")
	assert.False(t, o.Authorize("carol", "alice"))
	_, edges := o.Stats()
	assert.Equal(t, 0, edges)
}

func TestRelayFromUnregisteredSender(t *testing.T) {
	o := New(app.DropFrame, nil)
	bob := register(o, "bob")
	bob.conn.take()

	out := o.Relay("sid-nobody", domain.EventOffer, "bob", payload(t, map[string]any{"offer": "x"}))
	assert.Equal(t, metrics.OutcomeUnregistered, out)
	assert.Empty(t, bob.conn.take())
}

func TestRelayOfflineTarget(t *testing.T) {
	o := New(app.DropFrame, nil)
	alice := register(o, "alice")
	out := o.Relay(alice.sid, domain.EventCallInvite, "ghost", payload(t, map[string]any{}))
	assert.Equal(t, metrics.OutcomeOffline, out)
}

func TestRelayStamps(t *testing.T) {
	o := New(app.DropFrame, nil)
	alice := register(o, "alice")
	bob := register(o, "bob")
	bob.conn.take()

	o.Relay(alice.sid, domain.EventChatMessage, "bob", payload(t, map[string]any{"content": "hi", "senderId": "mallory"}))
	msg := bob.conn.take()
	require.Len(t, msg, 1)
	assert.Equal(t, "alice", msg[0]["senderId"])
	assert.NotEmpty(t, msg[0]["timestamp"])

	o.Relay(alice.sid, domain.EventMarkRead, "bob", payload(t, map[string]any{"messageIds": []string{"1"}}))
	read := bob.conn.take()
	require.Len(t, read, 1)
	assert.Equal(t, "messages-marked-as-read", read[0]["type"])
	assert.Equal(t, "alice", read[0]["readerId"])

	o.Relay(alice.sid, domain.EventCallEnd, "bob", payload(t, map[string]any{}))
	end := bob.conn.take()
	require.Len(t, end, 1)
	assert.Equal(t, "call-ended", end[0]["type"])
}

func TestRelayEveryKind(t *testing.T) {
	o := New(app.DropFrame, nil)
	alice := register(o, "alice")
	bob := register(o, "bob")
	carol := register(o, "carol")

	for _, kind := range domain.RelayKinds {
		t.Run(string(kind), func(t *testing.T) {
			bob.conn.take()
			carol.conn.take()

			out := o.Relay(alice.sid, kind, "bob", payload(t, map[string]any{"targetId": "bob"}))
			assert.Equal(t, metrics.OutcomeForwarded, out)

			got := bob.conn.take()
			require.Len(t, got, 1)
			assert.Equal(t, kind.Outbound(), got[0]["type"])
			assert.Equal(t, "alice", got[0]["senderId"])
			assert.Empty(t, carol.conn.take())
			assert.Empty(t, alice.conn.take())
		})
	}
}

// Events from many connections interleave, but each one is applied whole:
// the final topology matches what the surviving connections did.
func TestConcurrentEventsKeepTopologyConsistent(t *testing.T) {
	o := New(app.DropFrame, nil)
	register(o, "alice")

	const n = 48
	ids := make([]domain.PeerID, n)
	var wg conc.WaitGroup
	for i := range n {
		id := domain.PeerID(fmt.Sprintf("p%02d", i))
		ids[i] = id
		wg.Go(func() {
			sid := core.SessionID("sid-" + id)
			conn := &recConn{}
			if i%2 == 0 {
				assert.NoError(t, o.InviteJoin(sid, conn, "alice", id))
			} else {
				o.Register(sid, conn, id)
			}
			out := o.Relay(sid, domain.EventChatMessage, "alice", payload(t, map[string]any{"content": "hi"}))
			assert.Equal(t, metrics.OutcomeForwarded, out)
			if i%4 < 2 {
				o.Disconnect(sid)
			}
		})
	}
	wg.Wait()

	// Survivors: i%4 == 2 are invitees, i%4 == 3 are regular.
	peers, edges := o.Stats()
	assert.Equal(t, 1+n/2, peers)
	assert.Equal(t, 1, edges)

	o.run(func() {
		invitees := o.Ledger.RoleOf("alice").Invitees
		assert.Len(t, invitees, n/4)
		for _, inv := range invitees {
			assert.True(t, o.Registry.Has(inv), "edge to removed peer %s", inv)
		}
		for i, id := range ids {
			switch i % 4 {
			case 0, 1:
				assert.False(t, o.Registry.Has(id), id)
				assert.False(t, o.Ledger.IsInvitee(id), id)
			case 2:
				assert.Equal(t, app.RoleInvitee, o.Ledger.RoleOf(id).Kind, id)
			case 3:
				assert.Equal(t, app.RoleRegular, o.Ledger.RoleOf(id).Kind, id)
			}
		}
	})
}

func TestBackpressureKick(t *testing.T) {
	m := metrics.New()
	o := New(app.KickMember, m)
	alice := register(o, "alice")

	ctx, cancel := context.WithCancel(context.Background())
	o.Attach("sid-bob", cancel)
	bob := &recConn{full: true}
	o.Register("sid-bob", bob, "bob")

	assert.Error(t, ctx.Err(), "stalled peer should be kicked")
	assert.Equal(t, metrics.OutcomeDropped, o.Relay(alice.sid, domain.EventChatMessage, "bob", payload(t, map[string]any{"content": "hi"})))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "incommunicado_kicked_peers_total 2")
	assert.Contains(t, rec.Body.String(), `incommunicado_relay_events_total{kind="message",outcome="dropped"} 1`)
}

func TestBackpressureDropKeepsPeer(t *testing.T) {
	o := New(app.DropFrame, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Attach("sid-bob", cancel)
	o.Register("sid-bob", &recConn{full: true}, "bob")

	assert.NoError(t, ctx.Err())
	_, ok := o.PeerOf("sid-bob")
	assert.True(t, ok)
}

func TestKickBySID(t *testing.T) {
	o := New(app.DropFrame, nil)
	ctx, cancel := context.WithCancel(context.Background())
	o.Attach("sid-a", cancel)

	assert.True(t, o.KickBySID("sid-a"))
	assert.Error(t, ctx.Err())
	assert.False(t, o.KickBySID("sid-missing"))
}
