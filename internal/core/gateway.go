package core

import (
	"context"

	"github.com/lora-mesh/tdma-core/internal/iface"
)

// GatewaySink is the gateway-only end-to-end delivery collector: PDR
// tracking, latency accounting, loopback suppression, and upstream batch
// handoff. Non-gateway nodes never construct one.
type GatewaySink struct {
	myID uint16

	pdr map[uint16]*PDREntry

	latencyCache []LatencyRecord
	latencyHead  int

	batch    []iface.UpstreamMessage
	upstream iface.UpstreamSink
	onEvent  func(iface.TelemetryEvent)
}

// NewGatewaySink constructs a sink for the gateway node identified by myID.
func NewGatewaySink(myID uint16, upstream iface.UpstreamSink, onEvent func(iface.TelemetryEvent)) *GatewaySink {
	if onEvent == nil {
		onEvent = func(iface.TelemetryEvent) {}
	}
	return &GatewaySink{
		myID:         myID,
		pdr:          make(map[uint16]*PDREntry),
		latencyCache: make([]LatencyRecord, 0, LatencyCacheSize),
		upstream:     upstream,
		onEvent:      onEvent,
	}
}

// PDRFor returns the PDR entry for an origin, creating one if unseen.
func (g *GatewaySink) PDRFor(origin uint16) *PDREntry {
	e, ok := g.pdr[origin]
	if !ok {
		if len(g.pdr) >= PDROriginCapacity {
			// Capacity failure: do not evict existing state, but still surface
			// the drop so an operator can see origins are being starved.
			g.onEvent(iface.TelemetryEvent{Kind: iface.EventPDRNode, NodeID: origin, Fields: map[string]any{"dropped": "pdr_full"}})
			return &PDREntry{Origin: origin}
		}
		e = &PDREntry{Origin: origin}
		g.pdr[origin] = e
	}
	return e
}

// AllPDR returns every tracked origin's PDR entry.
func (g *GatewaySink) AllPDR() map[uint16]*PDREntry { return g.pdr }

// Receive folds one received data frame into the gateway's accounting and
// queues its payload for upstream delivery. epochNowUS is the wall clock
// used for latency computation, consulted only when haveEpoch is true.
func (g *GatewaySink) Receive(origin, msgID uint16, payload []byte, path []uint16, originTxTimestamp uint64, epochNowUS int64, haveEpoch bool) {
	if origin == g.myID {
		return // loopback, drop silently
	}

	g.onEvent(iface.TelemetryEvent{Kind: iface.EventGatewayRxData, NodeID: g.myID, Fields: map[string]any{"origin": origin, "msg_id": msgID}})

	if originTxTimestamp > 0 && haveEpoch {
		delta := epochNowUS - int64(originTxTimestamp)
		if delta > 0 && delta <= MaxLatencyWindowUS {
			g.recordLatency(origin, msgID, delta)
		}
		// Clock anomaly (delta<=0 or too large): discard the sample, leave
		// PDR and neighbour state untouched.
	}

	entry := g.PDRFor(origin)
	entry.Observe(uint8(msgID & 0xFF))
	g.onEvent(iface.TelemetryEvent{Kind: iface.EventPDRNode, NodeID: g.myID, Fields: map[string]any{"origin": origin, "pdr": entry.PDR()}})

	msg := iface.UpstreamMessage{Origin: origin, MsgID: msgID, Path: append([]uint16(nil), path...)}
	msg.Payload = append([]byte(nil), payload...)
	g.enqueueUpstream(msg)
}

func (g *GatewaySink) recordLatency(origin, msgID uint16, latencyUS int64) {
	rec := LatencyRecord{Origin: origin, MsgID: msgID, LatencyUS: latencyUS}
	if len(g.latencyCache) < LatencyCacheSize {
		g.latencyCache = append(g.latencyCache, rec)
	} else {
		g.latencyCache[g.latencyHead] = rec
		g.latencyHead = (g.latencyHead + 1) % LatencyCacheSize
	}
	g.PDRFor(origin).Latency.Add(latencyUS)
	g.onEvent(iface.TelemetryEvent{Kind: iface.EventLatency, NodeID: g.myID, Fields: map[string]any{"origin": origin, "latency_us": latencyUS}})
}

// LatencyCache returns the circular latency sample buffer in insertion
// order (oldest first once full).
func (g *GatewaySink) LatencyCache() []LatencyRecord {
	out := append([]LatencyRecord(nil), g.latencyCache[g.latencyHead:]...)
	return append(out, g.latencyCache[:g.latencyHead]...)
}

func (g *GatewaySink) enqueueUpstream(msg iface.UpstreamMessage) {
	g.batch = append(g.batch, msg)
	if len(g.batch) >= UpstreamBatchSize {
		g.FlushUpstream(context.Background())
	}
}

// FlushUpstream hands any pending batch to the upstream sink and clears it.
// Called when the batch fills or the processing phase ends. Delivery is
// best-effort; a failed publish still clears the local batch per the
// "core does not retry" non-goal.
func (g *GatewaySink) FlushUpstream(ctx context.Context) {
	if len(g.batch) == 0 {
		return
	}
	if g.upstream != nil {
		_ = g.upstream.PublishBatch(ctx, g.batch)
	}
	g.batch = g.batch[:0]
}

// Reset clears PDR and latency state, used by the pause/resume control
// command. The gateway's hop/stratum pinning is unaffected.
func (g *GatewaySink) Reset() {
	g.pdr = make(map[uint16]*PDREntry)
	g.latencyCache = g.latencyCache[:0]
	g.latencyHead = 0
	g.batch = g.batch[:0]
}
