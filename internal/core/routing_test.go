package core

import "testing"

// Hop propagation from neighbour adverts, and degradation when the best
// neighbour disappears.
func TestRecomputeHopPropagatesAndDegrades(t *testing.T) {
	table := NewNeighbourTable(RSSIMinDefault, DefaultAutoSendM, nil)

	// R2 hears R1 at hop 1, good RSSI.
	table.Observe(frameFrom(10, 0, 1, 0), -60, 5, 99)
	hop := RecomputeHop(table, RSSIMinDefault)
	if hop != 2 {
		t.Fatalf("R2.hop = %d, want 2", hop)
	}

	// Kill R1 for >= MaxInactiveCycles; R2 should fall back to unreachable.
	for i := 0; i < MaxInactiveCycles; i++ {
		table.Tick()
	}
	if table.Len() != 0 {
		t.Fatalf("expected R1 to be evicted after %d ticks, table has %d entries", MaxInactiveCycles, table.Len())
	}
	hop = RecomputeHop(table, RSSIMinDefault)
	if hop != HopUnreachable {
		t.Fatalf("R2.hop after R1 eviction = %d, want 0x7F", hop)
	}
}

func TestRecomputeHopIgnoresUnreachableAndBelowFloorCandidates(t *testing.T) {
	table := NewNeighbourTable(RSSIMinDefault, DefaultAutoSendM, nil)
	table.Observe(frameFrom(1, 0, HopUnreachable, 0), -60, 5, 99) // unreachable candidate
	table.Observe(frameFrom(2, 0, 3, 0), -60, 5, 99)              // good candidate, hop 3

	hop := RecomputeHop(table, RSSIMinDefault)
	if hop != 4 {
		t.Fatalf("hop = %d, want 4 (from the only reachable candidate)", hop)
	}
}

func TestSelectNextHopPrefersGoodRSSIRegardlessOfHop(t *testing.T) {
	table := NewNeighbourTable(RSSIMinDefault, DefaultAutoSendM, nil)

	// Neighbour A: poor RSSI but closer hop.
	table.Observe(frameFrom(1, 0, 1, 0, 99), -110, 1, 99)
	// Neighbour B: good RSSI, farther hop.
	table.Observe(frameFrom(2, 0, 3, 0, 99), -90, 1, 99)

	next := SelectNextHop(table, 5, RSSIMinDefault, RSSIGoodDefault)
	if next != 2 {
		t.Fatalf("SelectNextHop = %d, want 2 (good RSSI beats lower hop)", next)
	}
}

func TestSelectNextHopRequiresBidirectionalAndStrictlyLowerHop(t *testing.T) {
	table := NewNeighbourTable(RSSIMinDefault, DefaultAutoSendM, nil)
	// Not bidirectional: does not list us.
	table.Observe(frameFrom(1, 0, 1, 0), -60, 5, 99)
	// Equal hop: not a valid next hop toward the gateway.
	table.Observe(frameFrom(2, 0, 5, 0, 99), -60, 5, 99)

	next := SelectNextHop(table, 5, RSSIMinDefault, RSSIGoodDefault)
	if next != 0 {
		t.Fatalf("SelectNextHop = %d, want 0 (nothing qualifies)", next)
	}
}

func TestSelectNextHopTiebreaksByHopThenRSSIThenSNR(t *testing.T) {
	table := NewNeighbourTable(RSSIMinDefault, DefaultAutoSendM, nil)
	table.Observe(frameFrom(1, 0, 2, 0, 99), -90, 3, 99)
	table.Observe(frameFrom(2, 0, 1, 0, 99), -90, 3, 99) // lower hop wins

	next := SelectNextHop(table, 5, RSSIMinDefault, RSSIGoodDefault)
	if next != 2 {
		t.Fatalf("SelectNextHop = %d, want 2 (lower hop within same RSSI class)", next)
	}

	table = NewNeighbourTable(RSSIMinDefault, DefaultAutoSendM, nil)
	table.Observe(frameFrom(1, 0, 1, 0, 99), -95, 3, 99)
	table.Observe(frameFrom(2, 0, 1, 0, 99), -90, 3, 99) // same hop, higher RSSI wins

	next = SelectNextHop(table, 5, RSSIMinDefault, RSSIGoodDefault)
	if next != 2 {
		t.Fatalf("SelectNextHop = %d, want 2 (higher RSSI within same hop)", next)
	}

	table = NewNeighbourTable(RSSIMinDefault, DefaultAutoSendM, nil)
	table.Observe(frameFrom(1, 0, 1, 0, 99), -90, 3, 99)
	table.Observe(frameFrom(2, 0, 1, 0, 99), -90, 7, 99) // same hop and RSSI, higher SNR wins

	next = SelectNextHop(table, 5, RSSIMinDefault, RSSIGoodDefault)
	if next != 2 {
		t.Fatalf("SelectNextHop = %d, want 2 (higher SNR within same RSSI)", next)
	}
}
