package core

import "github.com/lora-mesh/tdma-core/internal/iface"

// RelaySink owns the forward queue and the loop/duplicate suppression that
// guards it. Every non-gateway node runs one; the gateway does not relay,
// it consumes via GatewaySink instead.
type RelaySink struct {
	myID  uint16
	queue *ForwardQueue

	seenOrigin map[uint16]uint8 // origin -> last msg-id sequence forwarded, for duplicate suppression
	onEvent    func(iface.TelemetryEvent)
}

// NewRelaySink constructs a relay sink for node myID.
func NewRelaySink(myID uint16, onEvent func(iface.TelemetryEvent)) *RelaySink {
	if onEvent == nil {
		onEvent = func(iface.TelemetryEvent) {}
	}
	return &RelaySink{
		myID:       myID,
		queue:      NewForwardQueue(),
		seenOrigin: make(map[uint16]uint8),
		onEvent:    onEvent,
	}
}

// Queue exposes the underlying bounded FIFO for the scheduler's dequeue-one-
// per-cycle TX step.
func (r *RelaySink) Queue() *ForwardQueue { return r.queue }

// duplicate reports whether msgID for origin has already been forwarded by
// this node, using the wire message id's low-8-bit sequence.
func (r *RelaySink) duplicate(origin uint16, msgID uint16) bool {
	last, ok := r.seenOrigin[origin]
	return ok && last == uint8(msgID&0xFF)
}

func (r *RelaySink) markSeen(origin uint16, msgID uint16) {
	r.seenOrigin[origin] = uint8(msgID & 0xFF)
}

// ReceiveForward folds one received DataForward frame into the relay sink.
// It appends this node to the path at hopCount's index, preserves the
// origin's tx timestamp verbatim, and enqueues for retransmission unless a
// loop, duplicate, full path, or full queue rejects it. Returns true if the frame was
// accepted into the queue.
func (r *RelaySink) ReceiveForward(origin, msgID uint16, hopCount uint8, payload []byte, path [MaxPathHopsCompat]uint16, originTxTimestamp uint64) bool {
	if r.duplicate(origin, msgID) {
		return false
	}

	entry := ForwardEntry{
		Origin:            origin,
		MsgID:             msgID,
		HopsSoFar:         hopCount,
		PayloadLen:        uint8(len(payload)),
		OriginTxTimestamp: originTxTimestamp,
	}
	n := copy(entry.Payload[:], payload)
	entry.PayloadLen = uint8(n)
	copy(entry.Path[:], path[:])

	if ContainsNode(&entry, r.myID) {
		r.onEvent(iface.TelemetryEvent{Kind: iface.EventForwardEnqueue, NodeID: r.myID, Fields: map[string]any{"origin": origin, "dropped": "loop"}})
		return false
	}
	if int(entry.HopsSoFar) >= len(entry.Path) {
		r.onEvent(iface.TelemetryEvent{Kind: iface.EventForwardEnqueue, NodeID: r.myID, Fields: map[string]any{"origin": origin, "dropped": "path_full"}})
		return false
	}

	entry.Path[entry.HopsSoFar] = r.myID
	entry.HopsSoFar++

	if err := r.queue.Enqueue(entry); err != nil {
		r.onEvent(iface.TelemetryEvent{Kind: iface.EventForwardEnqueue, NodeID: r.myID, Fields: map[string]any{"origin": origin, "dropped": "queue_full"}})
		return false
	}

	r.markSeen(origin, msgID)
	r.onEvent(iface.TelemetryEvent{Kind: iface.EventForwardEnqueue, NodeID: r.myID, Fields: map[string]any{"origin": origin, "hops": entry.HopsSoFar}})
	return true
}

// MaxPathHopsCompat mirrors codec.MaxPathHops as a core-local constant.
const MaxPathHopsCompat = 3

// MessageID mirrors codec.MessageID as a core-local helper.
func MessageID(origin uint16, counter uint8) uint16 {
	return uint16(origin&0xFF)<<8 | uint16(counter)
}

// Reset empties the queue and duplicate-suppression state, used by the
// pause/resume control command.
func (r *RelaySink) Reset() {
	r.queue.Reset()
	r.seenOrigin = make(map[uint16]uint8)
}
