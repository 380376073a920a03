package core

import (
	"context"
	"time"

	"github.com/lora-mesh/tdma-core/internal/codec"
	"github.com/lora-mesh/tdma-core/internal/iface"
)

// Scheduler drives one Node through the four-phase TDMA cycle described in
// §4.6. It holds no state of its own; the cycle-local reference time is
// local to RunCycle and everything else it touches lives on the Node.
type Scheduler struct {
	node *Node
}

// NewScheduler constructs a scheduler for node.
func NewScheduler(node *Node) *Scheduler {
	return &Scheduler{node: node}
}

// RunCycle runs one full Processing/RX-before/TX/RX-after cycle. It returns
// a non-nil error only on ctx cancellation; radio failures are counted in
// Health and absorbed per §7.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	n := s.node

	n.drainControlCommands()

	if !n.SchedulerEnabled {
		return nil
	}

	t0 := n.Clock.NowUS()
	timing := n.Timing

	s.processingPhase()

	rxBeforeNominal := uint64(n.My.Slot) * timing.TSlot
	if err := s.rxWindow(ctx, t0, rxBeforeNominal, true); err != nil {
		return err
	}

	if err := s.txPhase(ctx); err != nil {
		return err
	}

	rxAfterNominal := uint64(timing.NSlots-n.My.Slot-1) * timing.TSlot
	if err := s.rxWindow(ctx, n.Clock.NowUS(), rxAfterNominal, false); err != nil {
		return err
	}

	n.My.Cycle = (n.My.Cycle + 1) % SyncCycleModulus
	return nil
}

// processingPhase runs the non-radio per-cycle housekeeping: neighbour
// aging, hop recomputation, stratum countdown, and next-hop selection. No
// radio activity occurs here, matching §4.6 phase 1.
func (s *Scheduler) processingPhase() {
	n := s.node

	n.Neighbours.Tick()

	if !n.My.IsGateway {
		oldHop := n.My.Hop
		n.My.Hop = RecomputeHop(n.Neighbours, n.RSSIMin)
		if n.My.Hop != oldHop {
			n.OnEvent(iface.TelemetryEvent{Kind: iface.EventHopChange, NodeID: n.My.ID, Fields: map[string]any{"hop": n.My.Hop}})
		}
		n.NextHop = SelectNextHop(n.Neighbours, n.My.Hop, n.RSSIMin, n.RSSIGood)
		n.Stratum.Tick(n.My.ID)
		n.My.Stratum = n.Stratum.Stratum()
		n.My.SyncSource = n.Stratum.SyncSource()
		n.My.SyncValidCounter = n.Stratum.ValidCounter()
	}

	if n.Gateway != nil {
		n.Gateway.FlushUpstream(context.Background())
	}
}

// rxWindow repeatedly receives until the nominal window elapses, folding
// each accepted frame into routing/stratum/forward state and reconstructing
// the remaining deadline via the LoRa-Quake timing correction.
func (s *Scheduler) rxWindow(ctx context.Context, phaseStart uint64, nominal uint64, before bool) error {
	n := s.node
	timing := n.Timing

	remaining := nominal
	for remaining > 0 {
		deadline := time.Now().Add(clampDuration(remaining, timing.TSlot))
		frame, ok, err := n.Radio.ReceiveUntil(ctx, deadline)
		if err != nil {
			n.Health.RadioReceiveErrors++
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			elapsed := n.Clock.NowUS() - phaseStart
			if elapsed >= nominal {
				return nil
			}
			remaining = nominal - elapsed
			continue
		}

		if !ok {
			// Deadline expired with no frame: fall through to the
			// elapsed-time fallback below.
			elapsed := n.Clock.NowUS() - phaseStart
			if elapsed >= nominal {
				return nil
			}
			remaining = nominal - elapsed
			continue
		}

		decoded, accepted, derr := codec.Decode(frame.Raw[:])
		if derr != nil {
			n.Health.CorruptFrames++
			elapsed := n.Clock.NowUS() - phaseStart
			if elapsed >= nominal {
				return nil
			}
			remaining = nominal - elapsed
			continue
		}
		if !accepted {
			elapsed := n.Clock.NowUS() - phaseStart
			if elapsed >= nominal {
				return nil
			}
			remaining = nominal - elapsed
			continue
		}

		s.observeFrame(&decoded, frame.RSSI, frame.SNR)

		k := int(n.My.Slot) - int(decoded.SenderSlot) - 1
		k = ((k % int(timing.NSlots)) + int(timing.NSlots)) % int(timing.NSlots)

		var adjusted int64
		if before {
			if n.My.Slot > decoded.SenderSlot {
				adjusted = int64(k)*int64(timing.TSlot) + timing.SlotOffset
			} else {
				adjusted = int64(k)*int64(timing.TSlot) + timing.SlotOffset + int64(timing.TProcessing)
			}
		} else {
			kAfter := int(timing.NSlots) - int(decoded.SenderSlot) - 1
			adjusted = int64(kAfter)*int64(timing.TSlot) + timing.SlotOffset
		}
		if adjusted < 0 {
			adjusted = 0
		}
		remaining = uint64(adjusted)
	}
	return nil
}

// clampDuration converts a microsecond remaining budget to a
// time.Duration, clamped to [0, tSlot] per §4.6.
func clampDuration(remainingUS uint64, tSlotUS uint64) time.Duration {
	if remainingUS > tSlotUS {
		remainingUS = tSlotUS
	}
	return time.Duration(remainingUS) * time.Microsecond
}

// observeFrame folds one decoded, signal-quality-tagged frame into
// neighbour, stratum, cycle-validation, and forward/gateway state, in that
// order, per the ordering guarantee in §5.
func (s *Scheduler) observeFrame(f *codec.Frame, rssi, snr int8) {
	n := s.node

	n.OnEvent(iface.TelemetryEvent{Kind: iface.EventPacketRx, NodeID: f.SenderID, Fields: map[string]any{"rssi": rssi, "snr": snr}})

	if _, err := n.Neighbours.Observe(f, rssi, snr, n.My.ID); err != nil {
		return
	}

	if !n.My.IsGateway {
		n.Stratum.Observe(f.SenderID, Stratum(f.Stratum), n.My.ID)

		if nb, ok := n.Neighbours.Get(f.SenderID); ok && nb.Hop < n.My.Hop {
			n.CycleVal.Observe(f.Cycle)
			if n.CycleVal.Validated() {
				n.OnEvent(iface.TelemetryEvent{Kind: iface.EventCycleVal, NodeID: n.My.ID})
			}
		}
	}

	if f.DataModeField == codec.DataNone {
		return
	}

	if n.My.IsGateway {
		if f.HopDecisionTarget != n.My.ID {
			return
		}
		var epoch int64
		var haveEpoch bool
		if n.WallClock != nil {
			epoch, haveEpoch = n.WallClock.EpochNowUS()
		}
		path := make([]uint16, 0, f.HopCount)
		for i := uint8(0); i < f.HopCount && int(i) < len(f.Path); i++ {
			path = append(path, f.Path[i])
		}
		n.Gateway.Receive(f.OriginID, f.MessageID, f.Payload[:f.PayloadLen], path, f.OriginTxTimestamp, epoch, haveEpoch)
		return
	}

	if f.HopDecisionTarget != n.My.ID {
		return
	}
	var pathArr [MaxPathHopsCompat]uint16
	copy(pathArr[:], f.Path[:])
	n.Relay.ReceiveForward(f.OriginID, f.MessageID, f.HopCount, f.Payload[:f.PayloadLen], pathArr, f.OriginTxTimestamp)
}

// txPhase builds and transmits exactly one frame in this node's owned
// slot, per the priority rule in §4.6: forward beats own beats header-only.
// The gateway never forwards or originates.
func (s *Scheduler) txPhase(ctx context.Context) error {
	n := s.node

	time.Sleep(clampDuration(n.Timing.TTxDelay, n.Timing.TSlot))

	frame := s.buildFrame()
	raw := codec.Encode(&frame)

	if err := n.Radio.Transmit(ctx, raw); err != nil {
		n.Health.RadioTransmitErrors++
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	return nil
}

// buildFrame assembles this cycle's outgoing frame: header fields always,
// plus a forwarded, own, or absent data section per the priority rule.
func (s *Scheduler) buildFrame() codec.Frame {
	n := s.node

	f := codec.Frame{
		Command:        codec.CommandIDAndNeighbours,
		SenderID:       n.My.ID,
		SenderSlot:     n.My.Slot,
		Hop:            n.My.Hop,
		Cycle:          n.My.Cycle,
		Stratum:        uint8(n.My.Stratum),
		TimeSynced:     n.My.IsGateway || n.My.SyncValidCounter > 0,
		DataModeField:  codec.DataNone,
	}

	neighbours := n.Neighbours.SortedByHop()
	for i := 0; i < codec.MaxFrameNeighbours && i < len(neighbours); i++ {
		nb := neighbours[i]
		f.Neighbours[i] = codec.NeighbourAdvert{ID: nb.ID, Slot: nb.Slot, IsLocalized: nb.IsLocalized, IsBidirectinal: nb.IsBidirectional}
		f.NeighbourCount++
	}

	if n.My.IsGateway {
		return f // gateway never forwards or originates
	}

	if entry, ok := n.Relay.Queue().Dequeue(); ok {
		f.DataModeField = codec.DataForward
		f.Destination = BroadcastID
		f.HopDecisionTarget = n.NextHop
		f.OriginID = entry.Origin
		f.MessageID = entry.MsgID
		f.HopCount = entry.HopsSoFar
		f.PayloadLen = entry.PayloadLen
		copy(f.Payload[:], entry.Payload[:entry.PayloadLen])
		f.Path = entry.Path
		f.OriginTxTimestamp = entry.OriginTxTimestamp
		return f
	}

	if n.pendingOwn && n.OriginGate.CanOriginate(&n.My, false, HasCloserBidirNeighbour(n.Neighbours, n.My.Hop), n.CycleVal.Validated()) {
		f.DataModeField = codec.DataOwn
		f.Destination = BroadcastID
		f.HopDecisionTarget = n.NextHop
		f.OriginID = n.My.ID
		f.MessageID = n.nextOwnMessageID()
		// The origin records itself at path[0]; relays append after it.
		f.Path[0] = n.My.ID
		f.HopCount = 1
		f.PayloadLen = n.pendingLen
		copy(f.Payload[:], n.pendingPayload[:n.pendingLen])
		if n.WallClock != nil {
			if ts, ok := n.WallClock.EpochNowUS(); ok {
				f.OriginTxTimestamp = uint64(ts)
			}
		}
		n.pendingOwn = false
		n.pendingLen = 0
		return f
	}

	return f
}
