package sim

import (
	"fmt"
	"io"

	"github.com/lora-mesh/tdma-core/internal/iface"
)

// GatewayLogWriter mirrors telemetry events to a tagged text log, one line
// per category, the way the reference gateway server classifies incoming
// lines into [ROUTE]/[PDR]/[LAT] before accounting for them.
type GatewayLogWriter struct {
	w io.Writer
}

// NewGatewayLogWriter constructs a writer over w.
func NewGatewayLogWriter(w io.Writer) *GatewayLogWriter {
	return &GatewayLogWriter{w: w}
}

// Emit implements iface.TelemetrySink.
func (g *GatewayLogWriter) Emit(event iface.TelemetryEvent) {
	switch event.Kind {
	case iface.EventHopChange, iface.EventNeighbourAdded, iface.EventNeighbourRemoved, iface.EventBidirLink:
		fmt.Fprintf(g.w, "[ROUTE] node=%d kind=%s fields=%v\n", event.NodeID, event.Kind, event.Fields)
	case iface.EventPDRNode, iface.EventPDRNetwork:
		fmt.Fprintf(g.w, "[PDR] node=%d fields=%v\n", event.NodeID, event.Fields)
	case iface.EventLatency:
		fmt.Fprintf(g.w, "[LAT] node=%d fields=%v\n", event.NodeID, event.Fields)
	default:
		fmt.Fprintf(g.w, "[MISC] node=%d kind=%s fields=%v\n", event.NodeID, event.Kind, event.Fields)
	}
}
