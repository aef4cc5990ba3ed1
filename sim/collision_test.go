package sim

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiresim/wiresim/sim/geom"
	"github.com/wiresim/wiresim/sim/trace"
)

// obstacleRig wires a source straight through a relay to a sink:
// wire from (20,10) to (120,10) across the box (60,0)-(80,20).
func obstacleRig(t *testing.T, budget float64, coins int) (*rig, *Connection, SystemID) {
	t.Helper()
	r := newRig(budget, coins)
	src := r.source("src", 0, 0, PortSquare)
	wall := r.relay("wall", 60, 0, 5, PortHexagon)
	snk := r.sink("sink", 120, 0, PortSquare)
	c := r.wire(t, r.out(src, 0), r.in(snk, 0))
	return r, c, wall
}

func TestCheckCollision_StraightWireThroughSystem_OneSegment(t *testing.T) {
	// GIVEN a straight wire crossing an intervening system
	r, c, wall := obstacleRig(t, 1000, 0)

	// WHEN checked
	segs := r.cm.CheckCollision(c.ID)

	// THEN one segment spans the box from left edge to right edge
	require.Len(t, segs, 1)
	assert.Equal(t, wall, segs[0].System)
	assert.True(t, segs[0].Entry.Near(geom.Pt(60, 10), 1e-6), "entry %v", segs[0].Entry)
	assert.True(t, segs[0].Exit.Near(geom.Pt(80, 10), 1e-6), "exit %v", segs[0].Exit)
	assert.Equal(t, CollisionColliding, r.cm.State(c.ID))
	assert.Equal(t, []ConnectionID{c.ID}, r.cm.Colliding())
}

func TestCheckCollision_EndpointSystemsIgnored(t *testing.T) {
	r := newRig(1000, 0)
	src := r.source("src", 0, 0, PortSquare)
	snk := r.sink("sink", 120, 0, PortSquare)
	c := r.wire(t, r.out(src, 0), r.in(snk, 0))

	assert.Empty(t, r.cm.CheckCollision(c.ID))
	assert.Equal(t, CollisionClear, r.cm.State(c.ID))
}

func TestInsertBend_ProvisionalUntilConfirmed(t *testing.T) {
	// GIVEN a colliding wire and one coin
	r, c, _ := obstacleRig(t, 1000, 1)

	// WHEN a bend is inserted above the obstruction
	require.NoError(t, r.cm.InsertBend(c.ID, geom.Pt(70, -60)))

	// THEN the coin is spent, the wire is Bending and its path is unchanged
	assert.Equal(t, 0, r.wallet.Coins())
	assert.Equal(t, CollisionBending, r.cm.State(c.ID))
	at, ok := c.PendingBend()
	require.True(t, ok)
	assert.Equal(t, geom.Pt(70, -60), at)
	assert.Empty(t, c.Bends())
	assert.InDelta(t, 100, c.Length, 1e-9)
}

func TestConfirmBend_ResolvesCollision(t *testing.T) {
	// GIVEN a colliding wire with a provisional bend clear of the box
	r, c, _ := obstacleRig(t, 1000, 1)
	require.NoError(t, r.cm.InsertBend(c.ID, geom.Pt(70, -60)))

	// WHEN the bend is confirmed
	require.NoError(t, r.cm.ConfirmBend(c.ID))

	// THEN the wire no longer crosses anything and pays for the detour
	assert.Empty(t, r.cm.CheckCollision(c.ID))
	assert.Equal(t, CollisionResolved, r.cm.State(c.ID))
	assert.Equal(t, []geom.Point{geom.Pt(70, -60)}, c.Bends())
	_, pending := c.PendingBend()
	assert.False(t, pending)
	assert.Greater(t, c.Length, 100.0)
	assert.InDelta(t, 1000-c.Length, r.net.Budget().Remaining(), 1e-6)
	assert.False(t, c.OutOfBudget())

	// AND the bend edits are traced
	require.Len(t, r.trace.Bends, 2)
	assert.Equal(t, trace.BendInserted, r.trace.Bends[0].Action)
	assert.Equal(t, trace.BendConfirmed, r.trace.Bends[1].Action)
	assert.Equal(t, 1, r.trace.Bends[1].Bends)
}

func TestCancelBend_RefundsAndRestoresState(t *testing.T) {
	r, c, _ := obstacleRig(t, 1000, 1)
	require.NoError(t, r.cm.InsertBend(c.ID, geom.Pt(70, -60)))

	require.NoError(t, r.cm.CancelBend(c.ID))

	assert.Equal(t, 1, r.wallet.Coins())
	assert.Equal(t, CollisionColliding, r.cm.State(c.ID))
	_, pending := c.PendingBend()
	assert.False(t, pending)
	assert.InDelta(t, 100, c.Length, 1e-9)
}

func TestInsertBend_InsufficientCurrency(t *testing.T) {
	// GIVEN an empty wallet
	r, c, _ := obstacleRig(t, 1000, 0)

	// WHEN a bend is requested
	err := r.cm.InsertBend(c.ID, geom.Pt(70, -60))

	// THEN it is refused and nothing changes
	assert.True(t, IsRejected(err, RejectInsufficientCurrency), "got %v", err)
	_, pending := c.PendingBend()
	assert.False(t, pending)
	assert.Equal(t, CollisionColliding, r.cm.State(c.ID))
}

func TestInsertBend_LimitReached(t *testing.T) {
	// GIVEN a wire that already has the maximum of 3 confirmed bends
	r, c, _ := obstacleRig(t, 5000, 10)
	for _, at := range []geom.Point{geom.Pt(40, -60), geom.Pt(70, -60), geom.Pt(100, -60)} {
		require.NoError(t, r.cm.InsertBend(c.ID, at))
		require.NoError(t, r.cm.ConfirmBend(c.ID))
	}
	require.Len(t, c.Bends(), 3)

	// WHEN a fourth bend is requested
	err := r.cm.InsertBend(c.ID, geom.Pt(90, -80))

	// THEN it is refused without charging
	assert.True(t, IsRejected(err, RejectBendLimit), "got %v", err)
	assert.Equal(t, 7, r.wallet.Coins())
}

func TestBendCommands_StateErrors(t *testing.T) {
	r, c, _ := obstacleRig(t, 1000, 5)

	assert.True(t, IsRejected(r.cm.ConfirmBend(c.ID), RejectNoPendingBend))
	assert.True(t, IsRejected(r.cm.CancelBend(c.ID), RejectNoPendingBend))
	assert.True(t, IsRejected(r.cm.MovePendingBend(c.ID, geom.Pt(0, 0)), RejectNoPendingBend))
	assert.True(t, IsRejected(r.cm.RemoveBend(c.ID, 0), RejectUnknownBend))

	require.NoError(t, r.cm.InsertBend(c.ID, geom.Pt(70, 10)))
	assert.True(t, IsRejected(r.cm.InsertBend(c.ID, geom.Pt(70, -60)), RejectBendPending))
	assert.Equal(t, 4, r.wallet.Coins(), "the refused insert is not charged")
}

func TestMovePendingBend_ThenConfirm(t *testing.T) {
	// GIVEN a provisional bend placed on the obstruction
	r, c, _ := obstacleRig(t, 1000, 1)
	require.NoError(t, r.cm.InsertBend(c.ID, geom.Pt(70, 10)))

	// WHEN it is dragged clear and confirmed
	require.NoError(t, r.cm.MovePendingBend(c.ID, geom.Pt(70, -60)))
	require.NoError(t, r.cm.ConfirmBend(c.ID))

	// THEN the confirmed bend is at the dragged position
	assert.Equal(t, []geom.Point{geom.Pt(70, -60)}, c.Bends())
	assert.Equal(t, CollisionResolved, r.cm.State(c.ID))
}

func TestRemoveBend_CollidesAgainWithoutRefund(t *testing.T) {
	r, c, _ := obstacleRig(t, 1000, 1)
	require.NoError(t, r.cm.InsertBend(c.ID, geom.Pt(70, -60)))
	require.NoError(t, r.cm.ConfirmBend(c.ID))

	require.NoError(t, r.cm.RemoveBend(c.ID, 0))

	assert.Empty(t, c.Bends())
	assert.InDelta(t, 100, c.Length, 1e-9)
	assert.InDelta(t, 900, r.net.Budget().Remaining(), 1e-6)
	assert.Equal(t, CollisionColliding, r.cm.State(c.ID))
	assert.Equal(t, 0, r.wallet.Coins())
}

func TestMoveBend_BackOntoObstruction(t *testing.T) {
	r, c, _ := obstacleRig(t, 1000, 1)
	require.NoError(t, r.cm.InsertBend(c.ID, geom.Pt(70, -60)))
	require.NoError(t, r.cm.ConfirmBend(c.ID))

	require.NoError(t, r.cm.MoveBend(c.ID, 0, geom.Pt(70, 10)))

	assert.Equal(t, CollisionColliding, r.cm.State(c.ID))
	assert.True(t, IsRejected(r.cm.MoveBend(c.ID, 1, geom.Pt(0, 0)), RejectUnknownBend))
}

func TestLayoutChanged_MovingSystemIntoWire(t *testing.T) {
	// GIVEN a clear wire and a relay parked away from it
	r := newRig(1000, 0)
	src := r.source("src", 0, 0, PortSquare)
	wall := r.relay("wall", 60, 100, 5, PortHexagon)
	snk := r.sink("sink", 120, 0, PortSquare)
	c := r.wire(t, r.out(src, 0), r.in(snk, 0))
	require.Equal(t, CollisionClear, r.cm.State(c.ID))

	// WHEN the relay is moved onto the wire
	r.net.MoveSystem(wall, geom.Pt(60, 0))

	// THEN the wire is re-checked without being asked
	assert.Equal(t, CollisionColliding, r.cm.State(c.ID))

	// WHEN it moves away again
	r.net.MoveSystem(wall, geom.Pt(60, 100))

	// THEN the wire reports the collision as resolved
	assert.Equal(t, CollisionResolved, r.cm.State(c.ID))
}

func TestSuggestBendPoints_CornersOnNearerSide(t *testing.T) {
	r, c, _ := obstacleRig(t, 1000, 0)
	seg := r.cm.CheckCollision(c.ID)[0]

	pts := r.cm.SuggestBendPoints(seg)

	want := []geom.Point{geom.Pt(40, -20), geom.Pt(100, -20)}
	if diff := cmp.Diff(want, pts); diff != "" {
		t.Errorf("suggested bends mismatch (-want +got):\n%s", diff)
	}
}

func TestSuggestBendPoints_ClearWideObstacle(t *testing.T) {
	// GIVEN a straight wire across a 200x30 system
	r := newRig(2000, 2)
	src := r.source("src", 0, 0, PortSquare)
	r.net.AddSystem("wall", RoleRelay, geom.Pt(100, -5), 200, 30, 5)
	snk := r.sink("sink", 400, 0, PortSquare)
	c := r.wire(t, r.out(src, 0), r.in(snk, 0))
	segs := r.cm.CheckCollision(c.ID)
	require.Len(t, segs, 1)

	// WHEN both suggested bends are placed and confirmed
	pts := r.cm.SuggestBendPoints(segs[0])
	require.Len(t, pts, 2)
	for _, at := range pts {
		require.NoError(t, r.cm.InsertBend(c.ID, at))
		require.NoError(t, r.cm.ConfirmBend(c.ID))
	}

	// THEN the wire no longer crosses the footprint
	assert.Empty(t, r.cm.CheckCollision(c.ID))
	assert.Equal(t, CollisionResolved, r.cm.State(c.ID))
	assert.Equal(t, []geom.Point{geom.Pt(80, -25), geom.Pt(320, -25)}, c.Bends())
	assert.Equal(t, 0, r.wallet.Coins())
}
