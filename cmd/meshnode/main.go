// Command meshnode runs a single mesh core instance against a real UDP
// broadcast transport, for deployments without dedicated LoRa radio
// hardware wired into this process. An embedder targeting real hardware
// supplies its own iface.Radio and links against internal/core directly.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/lora-mesh/tdma-core/internal/config"
	"github.com/lora-mesh/tdma-core/internal/core"
	"github.com/lora-mesh/tdma-core/internal/iface"
	"github.com/lora-mesh/tdma-core/internal/server"
	"github.com/lora-mesh/tdma-core/internal/sim"
	"github.com/lora-mesh/tdma-core/internal/telemetry"
	"github.com/lora-mesh/tdma-core/internal/transport"
)

func main() {
	configPath := flag.String("config", "node.yaml", "path to the node configuration file")
	listenAddr := flag.String("listen", ":9000", "UDP listen address")
	broadcastAddr := flag.String("broadcast", "255.255.255.255:9000", "UDP broadcast address")
	httpAddr := flag.String("http", ":8080", "telemetry/control HTTP listen address")
	metricsFile := flag.String("metrics-file", "", "msgpack upstream log path (gateway only)")
	flag.Parse()

	nodeCfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("meshnode: %v", err)
	}

	radio, err := transport.NewUDPRadio(*listenAddr, *broadcastAddr)
	if err != nil {
		log.Fatalf("meshnode: radio init failed: %v", err)
	}
	defer radio.Close()

	bus := telemetry.NewBus()
	controlEndpoint := server.NewControlEndpoint()

	var upstream iface.UpstreamSink
	if nodeCfg.IsGateway && *metricsFile != "" {
		f, err := os.Create(*metricsFile)
		if err != nil {
			log.Fatalf("meshnode: failed to open metrics file: %v", err)
		}
		defer f.Close()
		upstream = sim.NewFileUpstreamSink(f)
	}

	node := core.NewNode(core.NodeConfig{
		ID:        nodeCfg.ID,
		Slot:      nodeCfg.Slot,
		IsGateway: nodeCfg.IsGateway,
		Timing:    nodeCfg.Timing(),
		RSSIMin:   nodeCfg.Radio.RSSIMin,
		RSSIGood:  nodeCfg.Radio.RSSIGood,
		AutoSendM: nodeCfg.AutoSendM,
		Radio:     radio,
		Clock:     transport.NewMonotonicClock(),
		WallClock: transport.SystemWallClock{},
		Upstream:  upstream,
		OnEvent:   bus.Emit,
	})
	node.Control = controlEndpoint

	mux := http.NewServeMux()
	server.RegisterTelemetryRoutes(mux, bus)
	server.RegisterControlRoutes(mux, controlEndpoint)
	go func() {
		log.Printf("meshnode: telemetry/control server listening on %s", *httpAddr)
		if err := http.ListenAndServe(*httpAddr, mux); err != nil {
			log.Printf("meshnode: http server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sched := core.NewScheduler(node)
	log.Printf("meshnode: node %d (gateway=%t, slot=%d) starting", node.My.ID, node.My.IsGateway, node.My.Slot)
	for ctx.Err() == nil {
		if err := sched.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("meshnode: cycle error: %v", err)
		}
	}
	log.Println("meshnode: shutting down")
}
