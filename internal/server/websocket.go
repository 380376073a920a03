// Package server exposes a node or simulation's telemetry and control
// channel over HTTP: a websocket event stream plus a command endpoint,
// generalized from a node-graph front end to the mesh core's event and
// command grammar.
package server

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/lora-mesh/tdma-core/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsHandler upgrades the connection and pushes every telemetry event from
// bus to the client as JSON, one frame per event.
func wsHandler(bus *telemetry.Bus, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	eventCh := bus.Subscribe()
	for event := range eventCh {
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("server: websocket write error: %v", err)
			return
		}
	}
}

// RegisterTelemetryRoutes wires the /ws telemetry stream onto mux.
func RegisterTelemetryRoutes(mux *http.ServeMux, bus *telemetry.Bus) {
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		wsHandler(bus, w, r)
	})
}
