package sim

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lora-mesh/tdma-core/internal/core"
	"github.com/lora-mesh/tdma-core/internal/iface"
	"github.com/lora-mesh/tdma-core/internal/telemetry"
)

// simClock is a monotonic microsecond clock derived from a fixed start
// time, used by every simulated node so cycle arithmetic matches wall time.
type simClock struct {
	start time.Time
}

func newSimClock() *simClock { return &simClock{start: time.Now()} }

func (c *simClock) NowUS() uint64 {
	return uint64(time.Since(c.start).Microseconds())
}

// Runner drives a whole simulated network: builds one core.Node and
// Scheduler per scenario entry, wires them to a shared Medium, and runs
// them concurrently for the scenario's duration: a grid-placement runner
// generalized from a message-passing node graph to scheduled TDMA
// cycles.
type Runner struct {
	RunID uuid.UUID

	sc           *Scenario
	medium       *Medium
	bus          *telemetry.Bus
	coll         *telemetry.Collector
	nodes        []*core.Node
	clock        *simClock
	upstreamFile *os.File
}

// NewRunner constructs a runner for scenario sc, wiring a fresh Medium and
// telemetry bus. RunID uniquely identifies this run for correlating log
// lines and metrics files across repeated invocations of the same scenario.
func NewRunner(sc *Scenario) *Runner {
	return &Runner{
		RunID:  uuid.New(),
		sc:     sc,
		medium: NewMedium(sc.MaxRangeM, 0),
		bus:    telemetry.NewBus(),
		coll:   telemetry.NewCollector(),
		clock:  newSimClock(),
	}
}

// Bus exposes the shared telemetry bus for dashboards/loggers to subscribe to.
func (r *Runner) Bus() *telemetry.Bus { return r.bus }

// Nodes returns the constructed nodes, valid only after Run has started
// building them (call after the build step, e.g. from a test).
func (r *Runner) Nodes() []*core.Node { return r.nodes }

// Run builds every node from the scenario and drives them concurrently
// until the scenario duration elapses or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	timing := core.NewTiming(orDefault(r.sc.NSlots, core.DefaultNSlots), core.DefaultTSlotUS, core.DefaultTProcessingUS, core.DefaultTPacketUS, core.DefaultTTxDelayUS, core.DefaultTRxDelayUS)
	autoSendM := orDefault(r.sc.AutoSendM, core.DefaultAutoSendM)

	var mu sync.Mutex
	sub := r.bus.Subscribe()
	go func() {
		for ev := range sub {
			mu.Lock()
			r.coll.Observe(ev)
			mu.Unlock()
		}
	}()

	var upstream iface.UpstreamSink
	if r.sc.MetricsFile != "" {
		if f, err := os.Create(r.sc.MetricsFile + ".upstream.msgpack"); err != nil {
			log.Printf("sim: run %s: failed to open upstream log: %v", r.RunID, err)
		} else {
			upstream = NewFileUpstreamSink(f)
			r.upstreamFile = f
		}
	}

	for _, ns := range r.sc.Nodes {
		radio := r.medium.Attach(ns.ID, Position{X: ns.X, Y: ns.Y})
		cfg := core.NodeConfig{
			ID:        ns.ID,
			Slot:      ns.Slot,
			IsGateway: ns.IsGateway,
			Timing:    timing,
			RSSIMin:   core.RSSIMinDefault,
			RSSIGood:  core.RSSIGoodDefault,
			AutoSendM: autoSendM,
			Radio:     radio,
			Clock:     r.clock,
			Upstream:  upstream,
			OnEvent:   r.bus.Emit,
		}
		r.nodes = append(r.nodes, core.NewNode(cfg))
	}

	deadline := time.Now().Add(r.sc.Duration)
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range r.nodes {
		node := n
		sched := core.NewScheduler(node)
		g.Go(func() error {
			for time.Now().Before(deadline) {
				if err := sched.RunCycle(gctx); err != nil {
					if gctx.Err() != nil {
						return nil
					}
					return err
				}
				select {
				case <-gctx.Done():
					return nil
				default:
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if r.upstreamFile != nil {
		r.upstreamFile.Close()
	}

	if r.sc.MetricsFile != "" {
		if err := r.coll.Flush(r.sc.MetricsFile); err != nil {
			log.Printf("sim: run %s: failed to flush metrics: %v", r.RunID, err)
		}
	}
	return nil
}

func orDefault(v, def uint8) uint8 {
	if v == 0 {
		return def
	}
	return v
}
