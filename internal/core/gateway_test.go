package core

import "testing"

// Gateway latency and PDR accounting.
func TestGatewayPDRGapDetection(t *testing.T) {
	gw := NewGatewaySink(1, nil, nil)

	gw.Receive(5, MessageID(5, 10), []byte("abc"), nil, 0, 0, false)
	gw.Receive(5, MessageID(5, 13), []byte("abc"), nil, 0, 0, false)

	entry := gw.PDRFor(5)
	if entry.ReceivedCount != 2 {
		t.Fatalf("received = %d, want 2", entry.ReceivedCount)
	}
	if entry.ExpectedCount != 4 {
		t.Fatalf("expected = %d, want 4", entry.ExpectedCount)
	}
	if entry.GapCount != 2 {
		t.Fatalf("gaps = %d, want 2", entry.GapCount)
	}
	if entry.PDR() != 0.5 {
		t.Fatalf("pdr = %v, want 0.5", entry.PDR())
	}
}

func TestGatewayDropsLoopback(t *testing.T) {
	gw := NewGatewaySink(1, nil, nil)
	gw.Receive(1, MessageID(1, 1), []byte("x"), nil, 0, 0, false)
	if len(gw.AllPDR()) != 0 {
		t.Fatal("loopback from self must not be recorded")
	}
}

func TestGatewayLatencyWithinWindowRecorded(t *testing.T) {
	gw := NewGatewaySink(1, nil, nil)
	const nowUS int64 = 10_000_000
	const originTS uint64 = 9_500_000 // 500ms ago, well within the 1-hour window

	gw.Receive(5, MessageID(5, 1), []byte("x"), nil, originTS, nowUS, true)

	cache := gw.LatencyCache()
	if len(cache) != 1 {
		t.Fatalf("latency cache len = %d, want 1", len(cache))
	}
	if cache[0].LatencyUS != nowUS-int64(originTS) {
		t.Fatalf("latency = %d, want %d", cache[0].LatencyUS, nowUS-int64(originTS))
	}
	stats := gw.PDRFor(5).Latency
	if stats.Count != 1 || stats.Min != stats.Max {
		t.Fatalf("unexpected latency stats: %+v", stats)
	}
}

func TestGatewayDiscardsClockAnomaly(t *testing.T) {
	gw := NewGatewaySink(1, nil, nil)
	// Negative delta: wall clock anomaly, sample must be discarded but PDR
	// accounting still proceeds.
	gw.Receive(5, MessageID(5, 1), []byte("x"), nil, 10_000_000, 5_000_000, true)
	if len(gw.LatencyCache()) != 0 {
		t.Fatal("negative latency delta must be discarded")
	}
	if gw.PDRFor(5).ReceivedCount != 1 {
		t.Fatal("PDR accounting must proceed despite the discarded latency sample")
	}
}

func TestGatewayLatencyCacheIsBoundedAndCircular(t *testing.T) {
	gw := NewGatewaySink(1, nil, nil)
	for i := 0; i < LatencyCacheSize+5; i++ {
		gw.Receive(5, MessageID(5, uint8(i)), []byte("x"), nil, 1_000_000, 1_000_000+int64(i)+1, true)
	}
	if len(gw.LatencyCache()) != LatencyCacheSize {
		t.Fatalf("latency cache len = %d, want bounded at %d", len(gw.LatencyCache()), LatencyCacheSize)
	}
}

func TestGatewayPDRCapacityDoesNotEvictExisting(t *testing.T) {
	gw := NewGatewaySink(1, nil, nil)
	for origin := uint16(1); origin <= PDROriginCapacity+3; origin++ {
		gw.Receive(origin+1000, MessageID(uint16(origin), 1), []byte("x"), nil, 0, 0, false)
	}
	if len(gw.AllPDR()) > PDROriginCapacity {
		t.Fatalf("PDR table exceeded capacity: %d entries", len(gw.AllPDR()))
	}
	// Entries recorded before the table filled must still be present.
	if _, ok := gw.AllPDR()[1001]; !ok {
		t.Fatal("existing PDR entries must not be evicted to make room")
	}
}
