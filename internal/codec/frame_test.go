package codec

import "testing"

func TestBitPackRoundTrip(t *testing.T) {
	for _, hop := range []uint8{0, 1, 63, 127} {
		for _, localized := range []bool{true, false} {
			b := packByte6(localized, hop)
			gotLoc, gotHop := unpackByte6(b)
			if gotLoc != localized || gotHop != hop {
				t.Fatalf("byte6 round trip: got (%v,%d) want (%v,%d)", gotLoc, gotHop, localized, hop)
			}
		}
	}

	for _, cycle := range []uint8{0, 1, 17, 31} {
		for _, nc := range []uint8{0, 1, 4} {
			b := packByte7(cycle, nc)
			gotCycle, gotNC := unpackByte7(b)
			if gotCycle != cycle || gotNC != nc {
				t.Fatalf("byte7 round trip: got (%d,%d) want (%d,%d)", gotCycle, gotNC, cycle, nc)
			}
		}
	}

	for _, stratum := range []uint8{0, 1, 2, 3} {
		for _, synced := range []bool{true, false} {
			b := packByte11(stratum, synced)
			gotStratum, gotSynced := unpackByte11(b)
			if gotStratum != stratum || gotSynced != synced {
				t.Fatalf("byte11 round trip: got (%d,%v) want (%d,%v)", gotStratum, gotSynced, stratum, synced)
			}
		}
	}
}

func TestEncodeDecodeRoundTripNoData(t *testing.T) {
	f := &Frame{
		Destination:       0,
		Command:           CommandIDAndNeighbours,
		SenderID:          42,
		SenderSlot:        3,
		IsLocalized:       true,
		Hop:               2,
		Cycle:             5,
		NeighbourCount:    2,
		DataModeField:     DataNone,
		HopDecisionTarget: 0,
		Stratum:           1,
		TimeSynced:        true,
		Neighbours: [MaxFrameNeighbours]NeighbourAdvert{
			{ID: 7, Slot: 1, IsLocalized: false, IsBidirectinal: true},
			{ID: 9, Slot: 4, IsLocalized: true, IsBidirectinal: false},
		},
	}

	wire := Encode(f)
	if len(wire) != FrameSize {
		t.Fatalf("wire size = %d, want %d", len(wire), FrameSize)
	}

	decoded, ok, err := Decode(wire[:])
	if err != nil || !ok {
		t.Fatalf("decode failed: ok=%v err=%v", ok, err)
	}

	rewire := Encode(&decoded)
	if rewire != wire {
		t.Fatalf("encode(decode(bytes)) != bytes\n got  %x\n want %x", rewire, wire)
	}
	if decoded.SenderID != f.SenderID || decoded.Hop != f.Hop || decoded.Cycle != f.Cycle {
		t.Fatalf("decoded header mismatch: %+v", decoded)
	}
	if decoded.Neighbours[0].ID != 7 || decoded.Neighbours[1].ID != 9 {
		t.Fatalf("decoded neighbours mismatch: %+v", decoded.Neighbours)
	}
}

func TestEncodeDecodeRoundTripWithPayload(t *testing.T) {
	var payload [MaxPayloadLen]byte
	copy(payload[:], []byte("T25H80"))

	f := &Frame{
		SenderID:          5,
		SenderSlot:        4,
		Hop:               3,
		Cycle:             1,
		NeighbourCount:    4, // will be trimmed to make room for the payload
		DataModeField:     DataOwn,
		HopDecisionTarget: 4,
		Stratum:           2,
		TimeSynced:        true,
		Neighbours: [MaxFrameNeighbours]NeighbourAdvert{
			{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4},
		},
		OriginID:          5,
		MessageID:         MessageID(5, 10),
		HopCount:          0,
		PayloadLen:        6,
		Path:              [MaxPathHops]uint16{},
		OriginTxTimestamp: 1_000_000,
		Payload:           payload,
	}

	wire := Encode(f)
	decoded, ok, err := Decode(wire[:])
	if err != nil || !ok {
		t.Fatalf("decode failed: ok=%v err=%v", ok, err)
	}

	if decoded.NeighbourCount > MaxNeighboursFor(6) {
		t.Fatalf("decoded neighbour count %d exceeds budget for 6-byte payload", decoded.NeighbourCount)
	}
	if decoded.Payload != payload {
		t.Fatalf("payload mismatch: got %v want %v", decoded.Payload, payload)
	}
	if decoded.OriginTxTimestamp != f.OriginTxTimestamp {
		t.Fatalf("timestamp mismatch: got %d want %d", decoded.OriginTxTimestamp, f.OriginTxTimestamp)
	}

	rewire := Encode(&decoded)
	if rewire != wire {
		t.Fatalf("encode(decode(bytes)) != bytes\n got  %x\n want %x", rewire, wire)
	}
}

func TestDecodeUnknownCommandDropped(t *testing.T) {
	var wire [FrameSize]byte
	wire[2] = 0x7F // not CommandIDAndNeighbours

	_, ok, err := Decode(wire[:])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected unknown command to be dropped silently")
	}
}

func TestDecodeShortBuffer(t *testing.T) {
	_, _, err := Decode(make([]byte, 10))
	if err == nil {
		t.Fatalf("expected error for short buffer")
	}
}

func TestMessageIDAndSequence(t *testing.T) {
	id := MessageID(5, 13)
	if SequenceOf(id) != 13 {
		t.Fatalf("SequenceOf(%d) = %d, want 13", id, SequenceOf(id))
	}
	// wraparound: counter wraps at 256, sequence follows modulo-256
	id2 := MessageID(5, 255)
	if SequenceOf(id2) != 255 {
		t.Fatalf("SequenceOf(%d) = %d, want 255", id2, SequenceOf(id2))
	}
}
