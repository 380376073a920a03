package core

import (
	"fmt"
	"sort"

	"github.com/lora-mesh/tdma-core/internal/codec"
	"github.com/lora-mesh/tdma-core/internal/iface"
)

// RejectReason explains why observe() declined to record a frame.
type RejectReason string

const (
	RejectRSSI RejectReason = "rssi_below_floor"
	RejectFull RejectReason = "table_full"
)

// RejectedError is returned by Observe when a frame is not folded into the
// neighbour table. The decoded frame must not influence any other state
// when this is returned.
type RejectedError struct {
	Reason RejectReason
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("neighbour observation rejected: %s", e.Reason)
}

// NeighbourTable is a fixed-capacity, keyed-by-NodeID neighbour set. It is
// owned exclusively by one node's event loop; no locking is required.
type NeighbourTable struct {
	rssiMin   int8
	byID      map[uint16]*NeighbourEntry
	sortedIDs []uint16 // ascending by Hop, rebuilt by Tick

	autoSendM uint8
	onEvent   func(iface.TelemetryEvent)
}

// NewNeighbourTable constructs an empty table. autoSendM is the cycle
// modulus (M) used to judge cycle-history sequentiality. onEvent may be nil.
func NewNeighbourTable(rssiMin int8, autoSendM uint8, onEvent func(iface.TelemetryEvent)) *NeighbourTable {
	if onEvent == nil {
		onEvent = func(iface.TelemetryEvent) {}
	}
	return &NeighbourTable{
		rssiMin:   rssiMin,
		byID:      make(map[uint16]*NeighbourEntry),
		autoSendM: autoSendM,
		onEvent:   onEvent,
	}
}

// Len returns the number of neighbours currently tracked.
func (t *NeighbourTable) Len() int { return len(t.byID) }

// Get returns the neighbour entry for id, if present.
func (t *NeighbourTable) Get(id uint16) (*NeighbourEntry, bool) {
	n, ok := t.byID[id]
	return n, ok
}

// SortedByHop returns neighbour entries in ascending hop order, as rebuilt
// by the last Tick.
func (t *NeighbourTable) SortedByHop() []*NeighbourEntry {
	out := make([]*NeighbourEntry, 0, len(t.sortedIDs))
	for _, id := range t.sortedIDs {
		if n, ok := t.byID[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// All returns every tracked neighbour in no particular order.
func (t *NeighbourTable) All() []*NeighbourEntry {
	out := make([]*NeighbourEntry, 0, len(t.byID))
	for _, n := range t.byID {
		out = append(out, n)
	}
	return out
}

// Observe folds a decoded, accepted frame into the table. myID is this
// node's own NodeID, used to compute AmIListed/IsBidirectional.
func (t *NeighbourTable) Observe(frame *codec.Frame, rssi, snr int8, myID uint16) (*NeighbourEntry, error) {
	if rssi < t.rssiMin {
		t.onEvent(iface.TelemetryEvent{Kind: iface.EventRSSILow, NodeID: frame.SenderID, Fields: map[string]any{"rssi": rssi}})
		return nil, &RejectedError{Reason: RejectRSSI}
	}

	n, exists := t.byID[frame.SenderID]
	if !exists {
		if len(t.byID) >= MaxNeighbours {
			t.onEvent(iface.TelemetryEvent{Kind: iface.EventNeighbourAdded, NodeID: frame.SenderID, Fields: map[string]any{"dropped": "table_full"}})
			return nil, &RejectedError{Reason: RejectFull}
		}
		n = &NeighbourEntry{ID: frame.SenderID, CycleHistory: [3]uint8{0xFF, 0xFF, 0xFF}}
		t.byID[frame.SenderID] = n
		t.onEvent(iface.TelemetryEvent{Kind: iface.EventNeighbourAdded, NodeID: frame.SenderID})
	}

	n.Slot = frame.SenderSlot
	n.Hop = frame.Hop
	n.IsLocalized = frame.IsLocalized
	n.Stratum = Stratum(frame.Stratum)
	n.RSSI = rssi
	n.SNR = snr
	n.InactiveCounter = 0

	n.OneHop = n.OneHop[:0]
	amIListed := false
	for i := uint8(0); i < frame.NeighbourCount; i++ {
		adv := frame.Neighbours[i]
		n.OneHop = append(n.OneHop, OneHopNeighbour{ID: adv.ID, Slot: adv.Slot})
		if adv.ID == myID {
			amIListed = true
		}
	}
	wasBidirectional := n.IsBidirectional
	n.AmIListed = amIListed
	n.IsBidirectional = amIListed
	if amIListed && !wasBidirectional {
		t.onEvent(iface.TelemetryEvent{Kind: iface.EventBidirLink, NodeID: frame.SenderID})
	}

	t.recordCycle(n, frame.Cycle)

	if exists && n.RSSI < t.rssiMin {
		delete(t.byID, frame.SenderID)
		t.onEvent(iface.TelemetryEvent{Kind: iface.EventNeighbourRemoved, NodeID: frame.SenderID, Fields: map[string]any{"reason": "rssi"}})
		return nil, &RejectedError{Reason: RejectRSSI}
	}

	return n, nil
}

// recordCycle pushes a newly-observed cycle value into the 3-slot ring
// buffer and updates CyclesSequential.
func (t *NeighbourTable) recordCycle(n *NeighbourEntry, cycle uint8) {
	n.CycleHistory[0] = n.CycleHistory[1]
	n.CycleHistory[1] = n.CycleHistory[2]
	n.CycleHistory[2] = cycle
	n.LastCycle = cycle

	m := t.autoSendM
	if m == 0 {
		m = DefaultAutoSendM
	}
	c0, c1, c2 := n.CycleHistory[0], n.CycleHistory[1], n.CycleHistory[2]
	n.CyclesSequential = c0 != 0xFF &&
		c1 == (c0+1)%m &&
		c2 == (c1+1)%m
}

// Tick runs the once-per-cycle housekeeping: age every entry, evict stale
// or below-floor entries, and rebuild the hop-sorted index.
func (t *NeighbourTable) Tick() {
	for id, n := range t.byID {
		n.InactiveCounter++
		if n.InactiveCounter >= MaxInactiveCycles || n.RSSI < t.rssiMin {
			delete(t.byID, id)
			t.onEvent(iface.TelemetryEvent{Kind: iface.EventNeighbourRemoved, NodeID: id, Fields: map[string]any{"reason": "inactive_or_rssi"}})
		}
	}

	ids := make([]uint16, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return t.byID[ids[i]].Hop < t.byID[ids[j]].Hop
	})
	t.sortedIDs = ids
}
