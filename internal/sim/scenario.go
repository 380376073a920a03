package sim

import (
	"encoding/json"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// NodeScenario is one simulated node's placement and identity.
type NodeScenario struct {
	ID        uint16  `yaml:"id" json:"id"`
	Slot      uint8   `yaml:"slot" json:"slot"`
	IsGateway bool    `yaml:"is_gateway" json:"is_gateway"`
	X         float64 `yaml:"x" json:"x"`
	Y         float64 `yaml:"y" json:"y"`
}

// Scenario describes a full simulated deployment: shared timing, the
// medium's range model, and the placed nodes.
type Scenario struct {
	Duration    time.Duration  `yaml:"duration" json:"duration"`
	Seed        int64          `yaml:"seed" json:"seed"`
	NSlots      uint8          `yaml:"n_slots" json:"n_slots"`
	AutoSendM   uint8          `yaml:"auto_send_interval_cycles" json:"auto_send_interval_cycles"`
	MaxRangeM   float64        `yaml:"max_range_m" json:"max_range_m"`
	Nodes       []NodeScenario `yaml:"nodes" json:"nodes"`
	MetricsFile string         `yaml:"metrics_file" json:"metrics_file"`
}

// LoadScenario reads a scenario descriptor, trying YAML first and falling
// back to JSON so either format works without a file extension hint.
func LoadScenario(path string) (*Scenario, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc := &Scenario{}
	if yaml.Unmarshal(f, sc) == nil && len(sc.Nodes) > 0 {
		return sc, nil
	}
	if err := json.Unmarshal(f, sc); err != nil {
		return nil, err
	}
	return sc, nil
}
