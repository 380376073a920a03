package telemetry

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/lora-mesh/tdma-core/internal/iface"
)

// MQTTSink publishes every telemetry event as a retained-off JSON message
// under a per-node topic, for an operator dashboard subscribed over MQTT
// rather than the in-process Bus.
type MQTTSink struct {
	client      mqtt.Client
	topicPrefix string
	qos         byte
}

// NewMQTTSink connects to broker and returns a sink publishing under
// topicPrefix/<node_id>/<event_kind>.
func NewMQTTSink(broker, clientID, topicPrefix string) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &MQTTSink{client: client, topicPrefix: topicPrefix, qos: 0}, nil
}

// Emit implements iface.TelemetrySink. Publish failures are logged and
// otherwise ignored: telemetry delivery is best-effort, the core must
// never be made to wait on it.
func (s *MQTTSink) Emit(event iface.TelemetryEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("telemetry: mqtt marshal error: %v", err)
		return
	}
	topic := fmt.Sprintf("%s/%d/%s", s.topicPrefix, event.NodeID, event.Kind)
	token := s.client.Publish(topic, s.qos, false, body)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("telemetry: mqtt publish error on %s: %v", topic, err)
		}
	}()
}

// Disconnect performs a clean disconnect from the broker.
func (s *MQTTSink) Disconnect() {
	s.client.Disconnect(250)
}
