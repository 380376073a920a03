// Package sim provides an in-process simulated deployment: a shared-medium
// radio with collision and range modelling, a YAML scenario loader, and a
// multi-node runner, so the mesh core can be exercised without real
// hardware: a fully-connected collision-window simulation generalized to
// a per-frame, RSSI-aware half-duplex radio.
package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/lora-mesh/tdma-core/internal/core"
	"github.com/lora-mesh/tdma-core/internal/iface"
)

// Position is a node's 2D location in the simulated area, in metres.
type Position struct {
	X, Y float64
}

// DistanceTo returns the Euclidean distance to other, in metres.
func (p Position) DistanceTo(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Medium is a shared half-duplex broadcast medium for a set of simulated
// radios. Overlapping transmissions within range of each other collide and
// are dropped at every in-range receiver, using a time.AfterFunc window
// to detect overlap.
type Medium struct {
	mu sync.Mutex

	radios    map[uint16]*nodeRadio
	airtimeUS uint64
	maxRangeM float64

	transmissions map[uint16]*transmission
}

type transmission struct {
	senderID  uint16
	start     time.Time
	end       time.Time
	collided  bool
	raw       [48]byte
}

// NewMedium constructs a medium with the given maximum communication range
// and per-frame on-air time (defaults to core.DefaultTPacketUS if 0).
func NewMedium(maxRangeM float64, airtimeUS uint64) *Medium {
	if airtimeUS == 0 {
		airtimeUS = core.DefaultTPacketUS
	}
	return &Medium{
		radios:        make(map[uint16]*nodeRadio),
		airtimeUS:     airtimeUS,
		maxRangeM:     maxRangeM,
		transmissions: make(map[uint16]*transmission),
	}
}

// Attach registers a node at pos and returns the iface.Radio it should use.
func (m *Medium) Attach(id uint16, pos Position) iface.Radio {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &nodeRadio{id: id, pos: pos, medium: m, inbox: make(chan iface.Frame, 8)}
	m.radios[id] = r
	return r
}

func (m *Medium) inRange(a, b Position) bool {
	return a.DistanceTo(b) <= m.maxRangeM
}

// simulatedRSSI derives a plausible RSSI from distance: RSSIGoodDefault at
// zero range, decaying linearly to RSSIMinDefault (the reject floor) at max
// range.
func (m *Medium) simulatedRSSI(dist float64) int8 {
	if m.maxRangeM <= 0 {
		return core.RSSIGoodDefault
	}
	frac := dist / m.maxRangeM
	if frac > 1 {
		frac = 1
	}
	span := float64(core.RSSIGoodDefault - core.RSSIMinDefault)
	rssi := float64(core.RSSIGoodDefault) - frac*span
	return int8(rssi)
}

func (m *Medium) transmit(senderID uint16, raw [48]byte) {
	senderPos := m.radios[senderID].pos

	m.mu.Lock()
	start := time.Now()
	end := start.Add(time.Duration(m.airtimeUS) * time.Microsecond)
	tx := &transmission{senderID: senderID, start: start, end: end, raw: raw}

	for otherID, ongoing := range m.transmissions {
		if otherID == senderID {
			continue
		}
		if overlaps(start, end, ongoing.start, ongoing.end) && m.inRange(senderPos, m.radios[ongoing.senderID].pos) {
			ongoing.collided = true
			tx.collided = true
		}
	}
	m.transmissions[senderID] = tx
	m.mu.Unlock()

	time.AfterFunc(end.Sub(start), func() {
		m.mu.Lock()
		delete(m.transmissions, senderID)
		collided := tx.collided
		m.mu.Unlock()

		if collided {
			return
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		for id, recv := range m.radios {
			if id == senderID {
				continue
			}
			if !m.inRange(senderPos, recv.pos) {
				continue
			}
			dist := senderPos.DistanceTo(recv.pos)
			frame := iface.Frame{Raw: raw, RSSI: m.simulatedRSSI(dist), SNR: 8}
			select {
			case recv.inbox <- frame:
			default:
				// receiver busy, drop: half-duplex radios cannot buffer
				// indefinitely either.
			}
		}
	})
}

func overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// nodeRadio is the per-node handle into the shared Medium, implementing
// iface.Radio.
type nodeRadio struct {
	id     uint16
	pos    Position
	medium *Medium
	inbox  chan iface.Frame
}

func (r *nodeRadio) Transmit(ctx context.Context, frame [48]byte) error {
	r.medium.transmit(r.id, frame)
	return nil
}

func (r *nodeRadio) ReceiveUntil(ctx context.Context, deadline time.Time) (iface.Frame, bool, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case f := <-r.inbox:
		return f, true, nil
	case <-timer.C:
		return iface.Frame{}, false, nil
	case <-ctx.Done():
		return iface.Frame{}, false, ctx.Err()
	}
}
