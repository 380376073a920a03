// Package config loads and validates persistent per-node configuration,
// generalizing the reference firmware's EEPROM-backed RuntimeConfig: the
// stored shape is {ssid, password, server_ip, debug_mode, rssi_min,
// rssi_good, tx_power_dbm} plus the mesh identity fields an operator needs
// to bring a node or a whole simulated network up.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lora-mesh/tdma-core/internal/core"
)

// RadioConfig mirrors the firmware's EEPROM record: network credentials
// and RF parameters, validated against the same ranges the firmware
// enforces before trusting a stored value.
type RadioConfig struct {
	SSID       string `yaml:"ssid"`
	Password   string `yaml:"password"`
	ServerIP   string `yaml:"server_ip"`
	DebugMode  uint8  `yaml:"debug_mode"`
	RSSIMin    int8   `yaml:"rssi_min"`
	RSSIGood   int8   `yaml:"rssi_good"`
	TXPowerDBm int8   `yaml:"tx_power_dbm"`
}

// NodeConfig is one node's full YAML-loadable configuration: identity,
// timing, and the embedded radio record.
type NodeConfig struct {
	ID        uint16 `yaml:"id"`
	Slot      uint8  `yaml:"slot"`
	IsGateway bool   `yaml:"is_gateway"`
	NSlots    uint8  `yaml:"n_slots"`
	AutoSendM uint8  `yaml:"auto_send_interval_cycles"`

	Radio RadioConfig `yaml:"radio"`
}

// NetworkConfig describes an entire simulated or real deployment: shared
// timing plus the per-node records.
type NetworkConfig struct {
	NSlots    uint8        `yaml:"n_slots"`
	AutoSendM uint8        `yaml:"auto_send_interval_cycles"`
	Nodes     []NodeConfig `yaml:"nodes"`
}

const (
	maxSSIDLen = 32
	maxPassLen = 64

	debugModeMax = 2

	// TX power range mirrors the reference radio's documented envelope.
	txPowerMinDBm = -9
	txPowerMaxDBm = 22
)

// Load reads and validates a single node's configuration from a YAML file.
// An invalid or absent record yields compiled-in defaults for every field
// it could not validate, matching the firmware's configLoad fallback.
func Load(path string) (NodeConfig, error) {
	cfg := defaultNodeConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, nil // absent record: defaults
	}
	var loaded NodeConfig
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return cfg, fmt.Errorf("config: invalid record, using defaults: %w", err)
	}
	if verr := loaded.Radio.Validate(); verr != nil {
		return mergeDefaults(loaded), fmt.Errorf("config: radio record failed validation, falling back field-by-field: %w", verr)
	}
	return mergeDefaults(loaded), nil
}

// LoadNetwork reads and validates a multi-node deployment/simulation
// descriptor.
func LoadNetwork(path string) (*NetworkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var net NetworkConfig
	if err := yaml.Unmarshal(data, &net); err != nil {
		return nil, fmt.Errorf("config: invalid network descriptor: %w", err)
	}
	if net.NSlots == 0 {
		net.NSlots = core.DefaultNSlots
	}
	if net.AutoSendM == 0 {
		net.AutoSendM = core.DefaultAutoSendM
	}
	for i := range net.Nodes {
		net.Nodes[i] = mergeDefaults(net.Nodes[i])
	}
	return &net, nil
}

func defaultNodeConfig() NodeConfig {
	return NodeConfig{
		NSlots:    core.DefaultNSlots,
		AutoSendM: core.DefaultAutoSendM,
		Radio: RadioConfig{
			DebugMode:  0,
			RSSIMin:    core.RSSIMinDefault,
			RSSIGood:   core.RSSIGoodDefault,
			TXPowerDBm: txPowerMinDBm,
		},
	}
}

// mergeDefaults validates loaded against the firmware's documented ranges,
// falling back field-by-field to the compiled-in default on any violation.
// Over-long SSID and password values are truncated to their caps rather
// than replaced.
func mergeDefaults(loaded NodeConfig) NodeConfig {
	cfg := loaded

	if cfg.NSlots == 0 {
		cfg.NSlots = core.DefaultNSlots
	}
	if cfg.AutoSendM == 0 {
		cfg.AutoSendM = core.DefaultAutoSendM
	}
	if len(cfg.Radio.SSID) > maxSSIDLen {
		cfg.Radio.SSID = cfg.Radio.SSID[:maxSSIDLen]
	}
	if len(cfg.Radio.Password) > maxPassLen {
		cfg.Radio.Password = cfg.Radio.Password[:maxPassLen]
	}
	if cfg.Radio.DebugMode > debugModeMax {
		cfg.Radio.DebugMode = 0
	}
	if cfg.Radio.RSSIMin >= 0 {
		cfg.Radio.RSSIMin = core.RSSIMinDefault
	}
	if cfg.Radio.RSSIGood >= 0 || cfg.Radio.RSSIGood < cfg.Radio.RSSIMin {
		cfg.Radio.RSSIGood = core.RSSIGoodDefault
	}
	if cfg.Radio.TXPowerDBm < txPowerMinDBm || cfg.Radio.TXPowerDBm > txPowerMaxDBm {
		cfg.Radio.TXPowerDBm = txPowerMinDBm
	}
	return cfg
}

// Timing derives the core.Timing this node should run with, using
// compiled-in defaults for the base time constants; only NSlots is
// operator-configurable.
func (c NodeConfig) Timing() core.Timing {
	return core.NewTiming(c.NSlots, core.DefaultTSlotUS, core.DefaultTProcessingUS, core.DefaultTPacketUS, core.DefaultTTxDelayUS, core.DefaultTRxDelayUS)
}
