package core

// CycleValidator implements the three-consecutive-cycle gate a non-gateway
// node must pass, observing cycles from a neighbour closer to the gateway,
// before it may originate its own payload. Once validated it stays
// validated for the lifetime of the process, or until Reset is called.
type CycleValidator struct {
	m                 uint8
	lastReceivedCycle uint8
	haveLast          bool
	sequentialCount   int
	validated         bool
}

// NewCycleValidator constructs a validator for cycle modulus m.
func NewCycleValidator(m uint8) *CycleValidator {
	return &CycleValidator{m: m}
}

// Validated reports whether the three-observation threshold has been met.
func (v *CycleValidator) Validated() bool { return v.validated }

// Observe folds one cycle value seen from a closer-to-gateway neighbour
// into the validator. Call only when the observing neighbour's hop is
// strictly less than this node's own hop.
func (v *CycleValidator) Observe(cycle uint8) {
	if v.validated {
		return
	}
	m := v.m
	if m == 0 {
		m = DefaultAutoSendM
	}
	if v.haveLast && cycle == (v.lastReceivedCycle+1)%m {
		v.sequentialCount++
	} else {
		v.sequentialCount = 1
	}
	v.lastReceivedCycle = cycle
	v.haveLast = true
	if v.sequentialCount >= 3 {
		v.validated = true
	}
}

// Reset clears validation state; used by the pause/resume control command
// and the RESET command (§6).
func (v *CycleValidator) Reset() {
	v.haveLast = false
	v.sequentialCount = 0
	v.validated = false
}

// OriginationGate decides whether this cycle is this node's turn to
// originate, per the round-robin schedule and its preconditions.
type OriginationGate struct {
	m uint8
}

// NewOriginationGate constructs a gate for cycle modulus m.
func NewOriginationGate(m uint8) *OriginationGate {
	if m == 0 {
		m = DefaultAutoSendM
	}
	return &OriginationGate{m: m}
}

// MyTurn reports whether my.Cycle is this node's origination slot in the
// round-robin schedule: cycle == (id-1) mod M.
func (g *OriginationGate) MyTurn(myID uint16, cycle uint8) bool {
	slot := uint8((int(myID) - 1) % int(g.m))
	return cycle == slot
}

// CanOriginate reports whether every precondition for originating this
// cycle holds: it is this node's turn, no own payload is already pending,
// hop is known and not the gateway's, there is a bidirectional neighbour
// strictly closer to the gateway, and cycle validation has been earned.
func (g *OriginationGate) CanOriginate(my *MyInfo, hasPendingOwn bool, hasCloserBidirNeighbour bool, validated bool) bool {
	if !g.MyTurn(my.ID, my.Cycle) {
		return false
	}
	if hasPendingOwn {
		return false
	}
	if my.Hop == 0 || my.Hop == HopUnreachable {
		return false
	}
	if !hasCloserBidirNeighbour {
		return false
	}
	return validated
}

// HasCloserBidirNeighbour reports whether table has at least one
// bidirectional neighbour with strictly lower hop than myHop.
func HasCloserBidirNeighbour(table *NeighbourTable, myHop uint8) bool {
	for _, n := range table.All() {
		if n.IsBidirectional && n.Hop < myHop {
			return true
		}
	}
	return false
}
