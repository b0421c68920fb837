package modes

import (
	"testing"
	"time"

	"github.com/tiiuae/flightcore/internal/types"
)

type fakeMission struct {
	items   []Item
	cursor  int
	hasLand bool
}

func (f *fakeMission) CurrentItem() (Item, bool) {
	if f.cursor >= len(f.items) {
		return Item{}, false
	}
	return f.items[f.cursor], true
}

func (f *fakeMission) Advance() (Item, bool) {
	f.cursor++
	return f.CurrentItem()
}

func (f *fakeMission) HasLandingSequence() bool { return f.hasLand }

func (f *fakeMission) LandingSequenceStart() (Item, bool) {
	if !f.hasLand || len(f.items) == 0 {
		return Item{}, false
	}
	return f.items[len(f.items)-1], true
}

func (f *fakeMission) ReverseFrom(seq int) (Item, bool) {
	if !f.hasLand || len(f.items) == 0 {
		return Item{}, false
	}
	return f.items[0], true
}

func (f *fakeMission) CurrentSeq() int {
	if f.cursor >= len(f.items) {
		return -1
	}
	return f.items[f.cursor].Seq
}

func baseCtx() *Context {
	return &Context{
		Now:              time.Unix(0, 0),
		AcceptanceRadius: 5,
		LoiterRadius:     80,
		ReturnAltitude:   50,
	}
}

func TestMissionFillsSetpointFromCurrentItem(t *testing.T) {
	ctx := baseCtx()
	ctx.Mission = &fakeMission{items: []Item{{Seq: 0, Lat: 1, Lon: 2, Alt: 3, AcceptanceRadius: 5}}}
	var triplet types.PositionSetpointTriplet
	m := &Mission{}

	res := m.Tick(true, ctx, &triplet)
	if !res.Valid || res.Finished {
		t.Fatalf("got %+v", res)
	}
	if triplet.Current.Lat != 1 || triplet.Current.Lon != 2 || triplet.Current.Alt != 3 {
		t.Fatalf("got %+v", triplet.Current)
	}
}

func TestMissionAdvancesWithinAcceptanceRadius(t *testing.T) {
	ctx := baseCtx()
	fm := &fakeMission{items: []Item{
		{Seq: 0, Lat: 0, Lon: 0, Alt: 0, AcceptanceRadius: 5},
		{Seq: 1, Lat: 1, Lon: 1, Alt: 0, AcceptanceRadius: 5},
	}}
	ctx.Mission = fm
	ctx.VehicleLat, ctx.VehicleLon, ctx.VehicleAlt = 0, 0, 0
	var triplet types.PositionSetpointTriplet
	m := &Mission{}

	res := m.Tick(true, ctx, &triplet)
	if res.SeqCurrent != 1 {
		t.Fatalf("expected the mode to have advanced to item 1, got seq=%d", res.SeqCurrent)
	}
}

func TestMissionFinishesWhenAdvanceExhausted(t *testing.T) {
	ctx := baseCtx()
	fm := &fakeMission{items: []Item{{Seq: 0, Lat: 0, Lon: 0, Alt: 0, AcceptanceRadius: 5}}}
	ctx.Mission = fm
	var triplet types.PositionSetpointTriplet
	m := &Mission{}

	res := m.Tick(true, ctx, &triplet)
	if !res.Finished {
		t.Fatalf("expected Finished once Advance reports no further item, got %+v", res)
	}
}

func TestMissionResetsOnDeactivation(t *testing.T) {
	ctx := baseCtx()
	ctx.Mission = &fakeMission{items: []Item{{Seq: 0, Lat: 1, Lon: 1}}}
	var triplet types.PositionSetpointTriplet
	m := &Mission{}
	m.Tick(true, ctx, &triplet)
	m.Tick(false, ctx, &triplet)
	if m.haveItem {
		t.Fatalf("expected deactivation to clear cached item state")
	}
}

func TestMissionFailsWithoutMissionSource(t *testing.T) {
	ctx := baseCtx()
	var triplet types.PositionSetpointTriplet
	m := &Mission{}
	res := m.Tick(true, ctx, &triplet)
	if res.Valid || !res.Failure {
		t.Fatalf("expected a failure result without a mission source, got %+v", res)
	}
}
