package core

import (
	"errors"
	"fmt"

	"github.com/lora-mesh/tdma-core/internal/codec"
	"github.com/lora-mesh/tdma-core/internal/iface"
)

// ErrOwnPayloadPending is returned by QueueOwnPayload when an own payload is
// already waiting to be originated.
var ErrOwnPayloadPending = errors.New("core: own payload already pending")

// ErrPayloadTooLong is returned when a caller-supplied payload exceeds the
// wire format's maximum sensor payload length.
var ErrPayloadTooLong = errors.New("core: payload exceeds max length")

// Health tracks non-fatal error counters surfaced by the STATUS control
// command.
type Health struct {
	RadioTransmitErrors uint64
	RadioReceiveErrors  uint64
	CorruptFrames       uint64
	DroppedNoNextHop    uint64
}

// Node owns the entire per-node state described in §3: identity, neighbour
// table, routing, stratum, forward/gateway sink, and origination gating.
// Everything here is touched from the scheduler's single event loop only;
// no internal locking is used, mirroring the cooperative single-threaded
// model the core is specified against.
type Node struct {
	My      MyInfo
	Timing  Timing
	RSSIMin int8
	RSSIGood int8
	AutoSendM uint8

	Neighbours *NeighbourTable
	Stratum    *StratumEngine
	CycleVal   *CycleValidator
	OriginGate *OriginationGate

	Relay   *RelaySink // nil on the gateway
	Gateway *GatewaySink // nil on non-gateway nodes

	NextHop uint16

	pendingOwn     bool
	pendingPayload [codec.MaxPayloadLen]byte
	pendingLen     uint8
	ownCounter     uint8 // low-8-bit sequence for this node's own originations

	SchedulerEnabled bool

	Radio     iface.Radio
	Clock     iface.Clock
	WallClock iface.WallClock

	OnEvent func(iface.TelemetryEvent)
	Control iface.ControlChannel // optional

	Health Health
}

// NodeConfig is the minimal set of parameters needed to construct a Node.
// internal/config builds this from validated YAML.
type NodeConfig struct {
	ID        uint16
	Slot      uint8
	IsGateway bool
	Timing    Timing
	RSSIMin   int8
	RSSIGood  int8
	AutoSendM uint8

	Radio     iface.Radio
	Clock     iface.Clock
	WallClock iface.WallClock
	Upstream  iface.UpstreamSink // gateway only
	OnEvent   func(iface.TelemetryEvent)
}

// NewNode constructs a Node ready to run, in the pre-sync state: hop
// unreachable (0 for the gateway), stratum Local (Gateway, pinned), no
// neighbours, scheduler enabled.
func NewNode(cfg NodeConfig) *Node {
	onEvent := cfg.OnEvent
	if onEvent == nil {
		onEvent = func(iface.TelemetryEvent) {}
	}
	autoSendM := cfg.AutoSendM
	if autoSendM == 0 {
		autoSendM = DefaultAutoSendM
	}

	n := &Node{
		My: MyInfo{
			ID:        cfg.ID,
			Slot:      cfg.Slot,
			IsGateway: cfg.IsGateway,
		},
		Timing:           cfg.Timing,
		RSSIMin:          cfg.RSSIMin,
		RSSIGood:         cfg.RSSIGood,
		AutoSendM:        autoSendM,
		Neighbours:       NewNeighbourTable(cfg.RSSIMin, autoSendM, onEvent),
		Stratum:          NewStratumEngine(onEvent),
		CycleVal:         NewCycleValidator(autoSendM),
		OriginGate:       NewOriginationGate(autoSendM),
		SchedulerEnabled: true,
		Radio:            cfg.Radio,
		Clock:            cfg.Clock,
		WallClock:        cfg.WallClock,
		OnEvent:          onEvent,
	}

	if cfg.IsGateway {
		n.My.Hop = 0
		n.Stratum.PinGateway()
		n.My.Stratum = StratumGateway
		n.Gateway = NewGatewaySink(cfg.ID, cfg.Upstream, onEvent)
	} else {
		n.My.Hop = HopUnreachable
		n.Relay = NewRelaySink(cfg.ID, onEvent)
	}

	return n
}

// QueueOwnPayload stages payload for origination on this node's next
// origination turn. Returns ErrOwnPayloadPending if one is already queued,
// or ErrPayloadTooLong if payload exceeds the wire maximum.
func (n *Node) QueueOwnPayload(payload []byte) error {
	if n.pendingOwn {
		return ErrOwnPayloadPending
	}
	if len(payload) > codec.MaxPayloadLen {
		return ErrPayloadTooLong
	}
	n.pendingLen = uint8(copy(n.pendingPayload[:], payload))
	n.pendingOwn = true
	return nil
}

// HasPendingOwnPayload reports whether an own payload awaits origination.
func (n *Node) HasPendingOwnPayload() bool { return n.pendingOwn }

// Pause implements the STOP/TDMA_OFF control command: routing state is
// cleared immediately and the scheduler flag drops, per §5's cancellation
// rule. The monotonic clock and any NTP reference are left untouched.
func (n *Node) Pause() {
	n.resetRoutingState()
	n.SchedulerEnabled = false
}

// Resume implements START/TDMA_ON: re-enables the scheduler and clears
// routing state exactly as pause did, so the node restarts from a clean
// slate rather than resuming with stale neighbours.
func (n *Node) Resume() {
	n.resetRoutingState()
	n.SchedulerEnabled = true
}

// ResetConfig implements the RESET_CONFIG control command's in-core effect:
// clear all routing and cycle-validation state without touching the
// enabled flag.
func (n *Node) ResetConfig() {
	n.resetRoutingState()
}

func (n *Node) resetRoutingState() {
	n.Neighbours = NewNeighbourTable(n.RSSIMin, n.AutoSendM, n.OnEvent)
	if n.My.IsGateway {
		n.My.Hop = 0
		n.Stratum.PinGateway()
	} else {
		n.My.Hop = HopUnreachable
		n.Stratum.Reset()
		n.Relay.Reset()
		n.My.Stratum = n.Stratum.Stratum()
		n.My.SyncSource = n.Stratum.SyncSource()
		n.My.SyncValidCounter = n.Stratum.ValidCounter()
	}
	if n.Gateway != nil {
		n.Gateway.Reset()
	}
	n.CycleVal.Reset()
	n.NextHop = 0
	n.My.Cycle = 0
}

// nextOwnMessageID packs this node's own sequence counter into a wire
// message id and advances the counter.
func (n *Node) nextOwnMessageID() uint16 {
	id := codec.MessageID(n.My.ID, n.ownCounter)
	n.ownCounter++
	return id
}

// drainControlCommands executes every pending control command during the
// processing phase, per §5's rule that the control channel is only serviced
// from the core's own loop. STATUS and PING reply directly; STOP/START/
// RESET_CONFIG mutate scheduler state; SET_*/SAVE/SHOW are configuration-
// persistence concerns handled by the embedder and simply acknowledged.
func (n *Node) drainControlCommands() {
	if n.Control == nil {
		return
	}
	for {
		select {
		case cmd := <-n.Control.Commands():
			n.executeCommand(cmd)
		default:
			return
		}
	}
}

func (n *Node) executeCommand(cmd iface.ControlCommand) {
	switch cmd.Verb {
	case "STOP", "TDMA_OFF":
		n.Pause()
		n.Control.Reply("OK")
	case "START", "TDMA_ON":
		n.Resume()
		n.Control.Reply("OK")
	case "STATUS":
		n.Control.Reply(n.statusLine())
	case "PING":
		n.Control.Reply("PONG")
	case "RESET_CONFIG":
		n.ResetConfig()
		n.Control.Reply("OK")
	case "SAVE", "SHOW", "SET_SSID", "SET_PASS", "SET_SERVER", "SET_MODE":
		// Persistence is outside the core's state; the embedder's
		// config layer owns these. Acknowledge receipt only.
		n.Control.Reply("OK")
	default:
		n.Control.Reply("ERR unknown command")
	}
	n.OnEvent(iface.TelemetryEvent{Kind: iface.EventCommandExecuted, NodeID: n.My.ID, Fields: map[string]any{"verb": cmd.Verb}})
}

func (n *Node) statusLine() string {
	return fmt.Sprintf("id=%d hop=%d stratum=%s neighbours=%d enabled=%t tx_err=%d rx_err=%d corrupt=%d no_next_hop=%d",
		n.My.ID, n.My.Hop, n.My.Stratum, n.Neighbours.Len(), n.SchedulerEnabled,
		n.Health.RadioTransmitErrors, n.Health.RadioReceiveErrors, n.Health.CorruptFrames, n.Health.DroppedNoNextHop)
}
