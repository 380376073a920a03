package core

import (
	"context"
	"testing"
	"time"

	"github.com/lora-mesh/tdma-core/internal/iface"
)

// pipeRadio is a minimal loopback iface.Radio for scheduler tests: transmits
// written to one side appear on the paired side's inbox, tagged with a
// fixed RSSI/SNR.
type pipeRadio struct {
	inbox chan [48]byte
	peer  *pipeRadio
	rssi  int8
	snr   int8
}

func newPipePair(rssi, snr int8) (*pipeRadio, *pipeRadio) {
	a := &pipeRadio{inbox: make(chan [48]byte, 4), rssi: rssi, snr: snr}
	b := &pipeRadio{inbox: make(chan [48]byte, 4), rssi: rssi, snr: snr}
	a.peer = b
	b.peer = a
	return a, b
}

func (r *pipeRadio) Transmit(ctx context.Context, frame [48]byte) error {
	select {
	case r.peer.inbox <- frame:
	default:
	}
	return nil
}

func (r *pipeRadio) ReceiveUntil(ctx context.Context, deadline time.Time) (iface.Frame, bool, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case raw := <-r.inbox:
		return iface.Frame{Raw: raw, RSSI: r.rssi, SNR: r.snr}, true, nil
	case <-timer.C:
		return iface.Frame{}, false, nil
	case <-ctx.Done():
		return iface.Frame{}, false, ctx.Err()
	}
}

// fastTiming shrinks every phase to microsecond-scale durations so a unit
// test can run several cycles without sleeping for real slot lengths.
func fastTiming() Timing {
	return NewTiming(2, 2000, 500, 200, 50, 50)
}

// wallClock is an iface.Clock that advances with real time, so the
// scheduler's elapsed-time RX fallback can close each window.
type wallClock struct{ start time.Time }

func (c *wallClock) NowUS() uint64 { return uint64(time.Since(c.start).Microseconds()) }

func TestSchedulerExchangesFramesAndDiscoversNeighbour(t *testing.T) {
	gwRadio, leafRadio := newPipePair(-60, 8)
	timing := fastTiming()

	gw := NewNode(NodeConfig{
		ID: GatewayID, Slot: 0, IsGateway: true, Timing: timing,
		RSSIMin: RSSIMinDefault, RSSIGood: RSSIGoodDefault, AutoSendM: DefaultAutoSendM,
		Radio: gwRadio, Clock: &wallClock{start: time.Now()},
	})
	leaf := NewNode(NodeConfig{
		ID: 2, Slot: 1, Timing: timing,
		RSSIMin: RSSIMinDefault, RSSIGood: RSSIGoodDefault, AutoSendM: DefaultAutoSendM,
		Radio: leafRadio, Clock: &wallClock{start: time.Now()},
	})

	gwSched := NewScheduler(gw)
	leafSched := NewScheduler(leaf)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := gwSched.RunCycle(ctx); err != nil {
			t.Fatalf("gateway cycle %d: %v", i, err)
		}
		if err := leafSched.RunCycle(ctx); err != nil {
			t.Fatalf("leaf cycle %d: %v", i, err)
		}
	}

	if _, ok := leaf.Neighbours.Get(GatewayID); !ok {
		t.Fatal("leaf should have discovered the gateway as a neighbour")
	}
	if leaf.My.Hop != 1 {
		t.Fatalf("leaf hop = %d, want 1 after hearing the gateway", leaf.My.Hop)
	}
}

func TestSchedulerNoopWhenDisabled(t *testing.T) {
	radio, _ := newPipePair(-60, 8)
	n := NewNode(NodeConfig{ID: 2, Slot: 0, Timing: fastTiming(), Radio: radio, Clock: &fakeClock{}})
	n.SchedulerEnabled = false
	sched := NewScheduler(n)
	if err := sched.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error on disabled scheduler: %v", err)
	}
	if n.My.Cycle != 0 {
		t.Fatal("a disabled scheduler must not advance the cycle counter")
	}
}
