package hub

import (
	"errors"
	"sync"
	"testing"
)

// fakeConn records payloads delivered to it.
type fakeConn struct {
	id   string
	mu   sync.Mutex
	got  [][]byte
	fail bool

	// onSend, when set, runs synchronously inside Send to exercise
	// membership changes triggered by delivery side effects.
	onSend func()
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(payload []byte) error {
	if c.onSend != nil {
		c.onSend()
	}
	if c.fail {
		return errors.New("boom")
	}
	c.mu.Lock()
	c.got = append(c.got, payload)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) deliveries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func TestJoin_CreatesRoomAndTracksMembership(t *testing.T) {
	h := New()
	c := &fakeConn{id: "c1"}
	h.Join(c, "roomA")

	if room, ok := h.RoomOf("c1"); !ok || room != "roomA" {
		t.Fatalf("RoomOf = (%q, %v)", room, ok)
	}
	if n := h.MemberCount("roomA"); n != 1 {
		t.Fatalf("MemberCount = %d", n)
	}
	if n := h.TotalConnections(); n != 1 {
		t.Fatalf("TotalConnections = %d", n)
	}
}

func TestJoin_SecondRoomImplicitlyLeavesFirst(t *testing.T) {
	h := New()
	c := &fakeConn{id: "c1"}
	other := &fakeConn{id: "c2"}
	h.Join(other, "roomA")
	h.Join(c, "roomA")

	before := h.MemberCount("roomA")
	h.Join(c, "roomB")

	if room, _ := h.RoomOf("c1"); room != "roomB" {
		t.Fatalf("RoomOf = %q, want roomB", room)
	}
	if n := h.MemberCount("roomA"); n != before-1 {
		t.Fatalf("roomA count = %d, want %d", n, before-1)
	}
	// A connection is never in two rooms.
	if n := h.TotalConnections(); n != 2 {
		t.Fatalf("TotalConnections = %d, want 2", n)
	}
}

func TestJoin_LastMemberLeavingDeletesRoom(t *testing.T) {
	h := New()
	c := &fakeConn{id: "c1"}
	h.Join(c, "roomA")
	h.Join(c, "roomB")

	if n := h.MemberCount("roomA"); n != 0 {
		t.Fatalf("roomA count = %d, want 0", n)
	}
	rooms := h.Rooms()
	if len(rooms) != 1 || rooms[0] != "roomB" {
		t.Fatalf("Rooms = %v, want [roomB]", rooms)
	}
}

func TestLeave_NoopWhenNotMember(t *testing.T) {
	h := New()
	h.Leave(&fakeConn{id: "ghost"})
	if n := h.TotalConnections(); n != 0 {
		t.Fatalf("TotalConnections = %d", n)
	}
}

func TestLeave_RejoinSameRoomIsHarmless(t *testing.T) {
	h := New()
	c := &fakeConn{id: "c1"}
	h.Join(c, "roomA")
	h.Join(c, "roomA")

	if n := h.MemberCount("roomA"); n != 1 {
		t.Fatalf("MemberCount = %d after re-join", n)
	}
}

func TestBroadcastToRoom_ExcludesSenderDeliversOthersOnce(t *testing.T) {
	h := New()
	sender := &fakeConn{id: "sender"}
	peer1 := &fakeConn{id: "p1"}
	peer2 := &fakeConn{id: "p2"}
	outsider := &fakeConn{id: "out"}
	h.Join(sender, "roomA")
	h.Join(peer1, "roomA")
	h.Join(peer2, "roomA")
	h.Join(outsider, "roomB")

	h.BroadcastToRoom("roomA", []byte("msg"), "sender")

	if sender.deliveries() != 0 {
		t.Fatal("excluded sender received the broadcast")
	}
	if peer1.deliveries() != 1 || peer2.deliveries() != 1 {
		t.Fatalf("peers got %d/%d deliveries, want 1/1", peer1.deliveries(), peer2.deliveries())
	}
	if outsider.deliveries() != 0 {
		t.Fatal("broadcast leaked across rooms")
	}
}

func TestBroadcastToRoom_FailedSendDoesNotAbortOthers(t *testing.T) {
	h := New()
	bad := &fakeConn{id: "bad", fail: true}
	good := &fakeConn{id: "good"}
	h.Join(bad, "roomA")
	h.Join(good, "roomA")

	h.BroadcastToRoom("roomA", []byte("msg"), "")

	if good.deliveries() != 1 {
		t.Fatalf("good conn got %d deliveries", good.deliveries())
	}
}

func TestBroadcastToRoom_MembershipChangeDuringDelivery(t *testing.T) {
	h := New()
	leaver := &fakeConn{id: "leaver"}
	peer := &fakeConn{id: "peer"}
	// Leaving mid-broadcast must not corrupt the iteration.
	leaver.onSend = func() { h.Leave(leaver) }
	h.Join(leaver, "roomA")
	h.Join(peer, "roomA")

	h.BroadcastToRoom("roomA", []byte("msg"), "")

	if peer.deliveries() != 1 {
		t.Fatalf("peer got %d deliveries", peer.deliveries())
	}
	if _, ok := h.RoomOf("leaver"); ok {
		t.Fatal("leaver still registered")
	}
}

func TestBroadcastAll_ReachesEveryRoom(t *testing.T) {
	h := New()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}
	h.Join(a, "roomA")
	h.Join(b, "roomB")

	h.BroadcastAll([]byte("notice"))

	if a.deliveries() != 1 || b.deliveries() != 1 {
		t.Fatalf("deliveries = %d/%d, want 1/1", a.deliveries(), b.deliveries())
	}
}
