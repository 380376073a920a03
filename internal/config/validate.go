package config

import (
	"errors"
	"fmt"
)

// Validate checks every field of a loaded radio record against the ranges
// the reference firmware's EEPROM checksum/magic-number guard enforced
// before trusting a stored value. It never mutates c; mergeDefaults is
// responsible for falling back to compiled-in defaults for any field this
// reports as out of range (over-long SSID and password are truncated
// instead).
func (c RadioConfig) Validate() error {
	var errs []error
	if len(c.SSID) > maxSSIDLen {
		errs = append(errs, fmt.Errorf("ssid exceeds %d characters", maxSSIDLen))
	}
	if len(c.Password) > maxPassLen {
		errs = append(errs, fmt.Errorf("password exceeds %d characters", maxPassLen))
	}
	if c.DebugMode > debugModeMax {
		errs = append(errs, fmt.Errorf("debug_mode %d out of range [0,%d]", c.DebugMode, debugModeMax))
	}
	if c.TXPowerDBm < txPowerMinDBm || c.TXPowerDBm > txPowerMaxDBm {
		errs = append(errs, fmt.Errorf("tx_power_dbm %d out of range [%d,%d]", c.TXPowerDBm, txPowerMinDBm, txPowerMaxDBm))
	}
	if c.RSSIMin > 0 {
		errs = append(errs, fmt.Errorf("rssi_min %d must be a negative dBm floor", c.RSSIMin))
	}
	if c.RSSIGood > 0 || c.RSSIGood < c.RSSIMin {
		errs = append(errs, fmt.Errorf("rssi_good %d must be negative and not below rssi_min %d", c.RSSIGood, c.RSSIMin))
	}
	return errors.Join(errs...)
}
