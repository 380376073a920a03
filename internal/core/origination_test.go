package core

import "testing"

// Cycle validation.
func TestCycleValidatorThreeSequentialObservations(t *testing.T) {
	v := NewCycleValidator(6)
	v.Observe(2)
	v.Observe(3)
	if v.Validated() {
		t.Fatal("should not validate after only two observations")
	}
	v.Observe(4)
	if !v.Validated() {
		t.Fatal("should validate after three sequential observations (2,3,4)")
	}
}

func TestCycleValidatorResetsOnNonSequential(t *testing.T) {
	v := NewCycleValidator(6)
	v.Observe(2)
	v.Observe(3)
	v.Observe(5) // skip: not sequential (expected 4), resets the run to count 1
	if v.Validated() {
		t.Fatal("should not validate after a non-sequential jump")
	}
	// (5, 0, 1) is itself a valid sequential-cycle run mod 6.
	v.Observe(0)
	if v.Validated() {
		t.Fatal("only two sequential observations (5,0) since the reset")
	}
	v.Observe(1)
	if !v.Validated() {
		t.Fatal("should validate after three consecutive observations (5,0,1)")
	}
}

func TestCycleValidatorWrapsModulo(t *testing.T) {
	v := NewCycleValidator(6)
	v.Observe(4)
	v.Observe(5)
	v.Observe(0) // wraps: 5+1 mod 6 == 0
	if !v.Validated() {
		t.Fatal("should validate across a modulo wrap-around")
	}
}

func TestCycleValidatorStaysValidatedOnceEarned(t *testing.T) {
	v := NewCycleValidator(6)
	v.Observe(0)
	v.Observe(1)
	v.Observe(2)
	if !v.Validated() {
		t.Fatal("expected validated")
	}
	v.Observe(5) // non-sequential: must not un-validate once earned
	if !v.Validated() {
		t.Fatal("validated flag must stick for the lifetime of the process")
	}
}

func TestOriginationGateMyTurn(t *testing.T) {
	g := NewOriginationGate(6)
	// id=5: turn is cycle (5-1) mod 6 == 4
	if !g.MyTurn(5, 4) {
		t.Fatal("expected id 5's turn at cycle 4")
	}
	if g.MyTurn(5, 0) {
		t.Fatal("id 5 should not originate at cycle 0")
	}
}

// A node only originates on its turn, and only with every other
// precondition satisfied.
func TestOriginationGateCanOriginateRequiresAllPreconditions(t *testing.T) {
	g := NewOriginationGate(6)
	my := &MyInfo{ID: 5, Hop: 3, Cycle: 4}

	if !g.CanOriginate(my, false, true, true) {
		t.Fatal("expected CanOriginate true with every precondition satisfied")
	}
	if g.CanOriginate(my, true, true, true) {
		t.Fatal("must not originate with an own payload already pending")
	}
	if g.CanOriginate(my, false, false, true) {
		t.Fatal("must not originate without a closer bidirectional neighbour")
	}
	if g.CanOriginate(my, false, true, false) {
		t.Fatal("must not originate before cycle validation")
	}

	myGateway := &MyInfo{ID: 5, Hop: 0, Cycle: 4}
	if g.CanOriginate(myGateway, false, true, true) {
		t.Fatal("must not originate at hop 0")
	}

	myUnreachable := &MyInfo{ID: 5, Hop: HopUnreachable, Cycle: 4}
	if g.CanOriginate(myUnreachable, false, true, true) {
		t.Fatal("must not originate at unreachable hop")
	}
}

func TestHasCloserBidirNeighbour(t *testing.T) {
	table := NewNeighbourTable(RSSIMinDefault, DefaultAutoSendM, nil)
	table.Observe(frameFrom(1, 0, 2, 0), -60, 5, 99) // not bidirectional
	if HasCloserBidirNeighbour(table, 3) {
		t.Fatal("should be false: neighbour is not bidirectional")
	}

	table.Observe(frameFrom(2, 0, 2, 0, 99), -60, 5, 99) // bidirectional, hop 2 < myHop 3
	if !HasCloserBidirNeighbour(table, 3) {
		t.Fatal("should be true: bidirectional neighbour with strictly lower hop exists")
	}
}
