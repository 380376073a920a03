package core

import "github.com/lora-mesh/tdma-core/internal/iface"

// StratumEngine tracks sync-source election and timed degradation for one
// non-gateway node. The gateway never runs this — its stratum is pinned to
// StratumGateway with an unbounded valid counter.
type StratumEngine struct {
	stratum    Stratum
	syncSource uint16
	validCounter int

	onEvent func(iface.TelemetryEvent)
}

// NewStratumEngine constructs a stratum engine starting at {Local, 0, 0}.
func NewStratumEngine(onEvent func(iface.TelemetryEvent)) *StratumEngine {
	if onEvent == nil {
		onEvent = func(iface.TelemetryEvent) {}
	}
	return &StratumEngine{stratum: StratumLocal, onEvent: onEvent}
}

func (s *StratumEngine) Stratum() Stratum       { return s.stratum }
func (s *StratumEngine) SyncSource() uint16     { return s.syncSource }
func (s *StratumEngine) ValidCounter() int      { return s.validCounter }

// Observe folds one accepted frame's sender/stratum into the engine's
// election logic.
func (s *StratumEngine) Observe(senderID uint16, senderStratum Stratum, myID uint16) {
	var proposed Stratum
	if senderID == GatewayID {
		proposed = StratumDirect
	} else {
		proposed = senderStratum + 1
		if proposed > StratumIndirect {
			proposed = StratumIndirect
		}
	}

	if proposed < s.stratum || (proposed == s.stratum && s.syncSource == senderID) {
		changed := proposed != s.stratum || s.syncSource != senderID
		s.stratum = proposed
		s.syncSource = senderID
		s.validCounter = SyncValidCycles
		if changed {
			s.onEvent(iface.TelemetryEvent{
				Kind:   iface.EventCycleSync,
				NodeID: myID,
				Fields: map[string]any{"stratum": proposed, "sync_source": senderID},
			})
		}
	}
}

// Tick runs the once-per-cycle countdown and degrade-to-Local transition.
// Degradation is instantaneous to Local, never stepwise, per the resolved
// design open question.
func (s *StratumEngine) Tick(myID uint16) {
	if s.stratum == StratumGateway {
		return
	}
	s.validCounter--
	if s.validCounter <= 0 && s.stratum < StratumLocal {
		s.stratum = StratumLocal
		s.syncSource = 0
		s.validCounter = 0
		s.onEvent(iface.TelemetryEvent{Kind: iface.EventCycleSync, NodeID: myID, Fields: map[string]any{"stratum": StratumLocal, "degraded": true}})
	}
}

// Reset clears sync state back to the unsynced starting point, used by the
// pause/resume control-channel command.
func (s *StratumEngine) Reset() {
	s.stratum = StratumLocal
	s.syncSource = 0
	s.validCounter = 0
}

// PinGateway forces gateway-only invariants: stratum Gateway, no sync
// source, and an effectively unbounded valid counter.
func (s *StratumEngine) PinGateway() {
	s.stratum = StratumGateway
	s.syncSource = 0
	s.validCounter = 1 << 30
}
