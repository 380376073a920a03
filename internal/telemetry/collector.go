package telemetry

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/lora-mesh/tdma-core/internal/iface"
)

// Counters is a network-wide running tally, flushed to disk for
// post-run analysis the way a simulation batch would.
type Counters struct {
	FramesSent      uint64           `json:"frames_sent"`
	FramesReceived  uint64           `json:"frames_received"`
	CorruptFrames   uint64           `json:"corrupt_frames"`
	NeighboursAdded uint64           `json:"neighbours_added"`
	ForwardDrops    map[string]uint64 `json:"forward_drops"`
	GatewayDeliveries uint64         `json:"gateway_deliveries"`
}

// Collector subscribes to a Bus and folds every event into running,
// mutex-guarded counters.
type Collector struct {
	mu sync.Mutex
	Counters
}

// NewCollector constructs a collector with its drop-reason map initialised.
func NewCollector() *Collector {
	return &Collector{Counters: Counters{ForwardDrops: make(map[string]uint64)}}
}

// Observe folds one telemetry event into the running counters. Intended to
// be called from a goroutine draining Bus.Subscribe().
func (c *Collector) Observe(e iface.TelemetryEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch e.Kind {
	case iface.EventPacketRx:
		c.FramesReceived++
	case iface.EventNeighbourAdded:
		c.NeighboursAdded++
	case iface.EventGatewayRxData:
		c.GatewayDeliveries++
	case iface.EventForwardEnqueue:
		if reason, ok := e.Fields["dropped"]; ok {
			if s, ok := reason.(string); ok {
				c.ForwardDrops[s]++
			}
		}
	}
}

// Flush writes the current counter snapshot to file as indented JSON.
func (c *Collector) Flush(file string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c.Counters)
}
