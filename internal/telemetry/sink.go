// Package telemetry implements the optional, non-blocking event mirror
// described in §6: a bounded fan-out sink the core can emit into without
// ever being made to wait on a slow or absent subscriber.
package telemetry

import (
	"log"
	"sync"

	"github.com/lora-mesh/tdma-core/internal/core"
	"github.com/lora-mesh/tdma-core/internal/iface"
)

// Bus is a fan-out TelemetrySink. Emit never blocks: a full subscriber
// channel drops the event rather than stalling the scheduler.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan iface.TelemetryEvent
}

// NewBus constructs an empty telemetry bus.
func NewBus() *Bus {
	return &Bus{}
}

// Emit implements iface.TelemetrySink.
func (b *Bus) Emit(event iface.TelemetryEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			log.Printf("telemetry: dropping %s event, subscriber channel full", event.Kind)
		}
	}
}

// Subscribe returns a new channel that receives every subsequently emitted
// event, buffered to core.TelemetryQueueSize per the capacity table in §5.
func (b *Bus) Subscribe() <-chan iface.TelemetryEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan iface.TelemetryEvent, core.TelemetryQueueSize)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// PDRSnapshot is the flattened, JSON-friendly form of one origin's PDR
// accounting.
type PDRSnapshot struct {
	Origin        uint16  `json:"origin"`
	Expected      uint64  `json:"expected"`
	Received      uint64  `json:"received"`
	Gaps          uint64  `json:"gaps"`
	PDR           float64 `json:"pdr"`
	LatencyCount  int64   `json:"latency_count"`
	LatencyAvgUS  float64 `json:"latency_avg_us"`
	LatencyMinUS  int64   `json:"latency_min_us"`
	LatencyMaxUS  int64   `json:"latency_max_us"`
}

// SnapshotPDR flattens a gateway sink's PDR table into a JSON-friendly
// slice.
func SnapshotPDR(gw *core.GatewaySink) []PDRSnapshot {
	out := make([]PDRSnapshot, 0, len(gw.AllPDR()))
	for origin, e := range gw.AllPDR() {
		out = append(out, PDRSnapshot{
			Origin:       origin,
			Expected:     e.ExpectedCount,
			Received:     e.ReceivedCount,
			Gaps:         e.GapCount,
			PDR:          e.PDR(),
			LatencyCount: e.Latency.Count,
			LatencyAvgUS: e.Latency.Average(),
			LatencyMinUS: e.Latency.Min,
			LatencyMaxUS: e.Latency.Max,
		})
	}
	return out
}
