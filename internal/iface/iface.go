// Package iface declares the external collaborators the mesh core talks to
// through interfaces only: the radio driver, the monotonic/wall clocks, the
// gateway's upstream sink, the telemetry mirror, and the control channel.
// Nothing in this package touches hardware; concrete implementations live in
// internal/sim (software loopback), internal/transport (UDP radio and
// system clocks), or are supplied by an embedder.
package iface

import (
	"context"
	"time"
)

// Frame is one received 48-byte wire frame as raw (undecoded) bytes, plus
// the radio-reported signal quality.
type Frame struct {
	Raw  [48]byte
	RSSI int8 // dBm
	SNR  int8 // dB
}

// Radio is the half-duplex transceiver collaborator. Transmit blocks until
// on-air completion; ReceiveUntil blocks until a frame arrives, the deadline
// passes, or ctx is cancelled — whichever is first.
type Radio interface {
	Transmit(ctx context.Context, frame [48]byte) error
	ReceiveUntil(ctx context.Context, deadline time.Time) (Frame, bool, error)
}

// Clock is the monotonic microsecond time source the scheduler measures
// phases against.
type Clock interface {
	NowUS() uint64
}

// WallClock is the optional external time source used only to stamp
// outgoing Own frames and compute gateway-side latency.
type WallClock interface {
	EpochNowUS() (int64, bool)
}

// UpstreamMessage is one payload handed off to the gateway's upstream sink.
type UpstreamMessage struct {
	Origin  uint16
	MsgID   uint16
	Payload []byte
	Path    []uint16
}

// UpstreamSink is the gateway-only best-effort delivery collaborator.
// PublishBatch is never retried and must not block the caller for long.
type UpstreamSink interface {
	PublishBatch(ctx context.Context, messages []UpstreamMessage) error
}

// EventKind enumerates the telemetry event kinds recognised by the
// reference tooling (spec §6).
type EventKind string

const (
	EventNeighbourAdded   EventKind = "NEIGHBOR_ADDED"
	EventNeighbourRemoved EventKind = "NEIGHBOR_REMOVED"
	EventBidirLink        EventKind = "BIDIR_LINK"
	EventRSSILow          EventKind = "RSSI_LOW"
	EventCycleSync        EventKind = "CYCLE_SYNC"
	EventCycleVal         EventKind = "CYCLE_VAL"
	EventHopChange        EventKind = "HOP_CHANGE"
	EventForwardEnqueue   EventKind = "FORWARD_ENQUEUE"
	EventGatewayRxData    EventKind = "GW_RX_DATA"
	EventLatency          EventKind = "LATENCY"
	EventPDRNetwork       EventKind = "PDR_NETWORK"
	EventPDRNode          EventKind = "PDR_NODE"
	EventPacketRx         EventKind = "PKT_RX"
	EventStatus           EventKind = "STATUS"
	EventCommandExecuted  EventKind = "CMD_EXECUTED"
)

// TelemetryEvent is one record mirrored to the optional telemetry sink.
type TelemetryEvent struct {
	Kind   EventKind
	NodeID uint16
	Fields map[string]any
	Time   time.Time
}

// TelemetrySink is the non-blocking event mirror. Emit must never block the
// core; dropping events under backpressure is the expected failure mode.
type TelemetrySink interface {
	Emit(event TelemetryEvent)
}

// ControlCommand is one parsed command from the serial/UDP control channel.
type ControlCommand struct {
	Verb string
	Args []string
}

// ControlChannel delivers parsed commands to the core and lets the core
// reply (e.g. to a STATUS or PING request).
type ControlChannel interface {
	Commands() <-chan ControlCommand
	Reply(text string)
}
