// Command meshsim runs a simulated TDMA mesh network from a YAML scenario
// file: N nodes placed on a plane, driven through real Scheduler cycles
// over a collision-modelled shared medium, for a fixed duration.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lora-mesh/tdma-core/internal/sim"
	"github.com/lora-mesh/tdma-core/internal/telemetry"
)

func main() {
	if err := os.MkdirAll("logs", 0755); err != nil {
		log.Fatalf("meshsim: failed to create logs directory: %v", err)
	}
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logFile, err := os.OpenFile("logs/meshsim_"+timestamp+".log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("meshsim: failed to open log file: %v", err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	scenarioPath := flag.String("scenario", "scenario.yaml", "path to the scenario YAML file")
	flag.Parse()

	sc, err := sim.LoadScenario(*scenarioPath)
	if err != nil {
		log.Fatalf("meshsim: failed to load scenario %s: %v", *scenarioPath, err)
	}

	runner := sim.NewRunner(sc)
	telemetry.MonitorResources(10*time.Second, nil)

	gwLog := sim.NewGatewayLogWriter(logFile)
	go func() {
		for ev := range runner.Bus().Subscribe() {
			gwLog.Emit(ev)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		s := <-sigCh
		log.Printf("meshsim: received signal %v, shutting down early", s)
		cancel()
	}()

	log.Printf("meshsim: run %s: running %d nodes for %s", runner.RunID, len(sc.Nodes), sc.Duration)
	if err := runner.Run(ctx); err != nil {
		log.Fatalf("meshsim: run failed: %v", err)
	}
	log.Println("meshsim: run complete")
}
