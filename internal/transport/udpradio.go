// Package transport provides a real-network iface.Radio implementation for
// deployments without dedicated LoRa hardware attached to this process: a
// UDP broadcast socket stands in for the half-duplex radio driver §6
// requires an embedder to supply. Grounded on the reference gateway
// server's UDP monitor/command sockets.
package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/lora-mesh/tdma-core/internal/iface"
)

// UDPRadio implements iface.Radio over a UDP broadcast socket. Every
// Transmit broadcasts the 48-byte frame to the configured broadcast
// address; ReceiveUntil reads the next inbound datagram, discarding any
// that are not exactly 48 bytes (a corrupt or foreign frame).
type UDPRadio struct {
	conn      *net.UDPConn
	broadcast *net.UDPAddr
}

// NewUDPRadio opens a UDP socket bound to listenAddr (e.g. ":9000") and
// configured to broadcast to broadcastAddr (e.g. "255.255.255.255:9000").
func NewUDPRadio(listenAddr, broadcastAddr string) (*UDPRadio, error) {
	laddr, err := net.ResolveUDPAddr("udp4", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve listen addr: %w", err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen: %w", err)
	}
	baddr, err := net.ResolveUDPAddr("udp4", broadcastAddr)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: resolve broadcast addr: %w", err)
	}
	return &UDPRadio{conn: conn, broadcast: baddr}, nil
}

// Close releases the underlying socket.
func (r *UDPRadio) Close() error { return r.conn.Close() }

// Transmit implements iface.Radio. There is no real on-air delay to
// simulate; the call still blocks until the datagram is handed to the
// kernel, matching the blocking contract §6 specifies.
func (r *UDPRadio) Transmit(ctx context.Context, frame [48]byte) error {
	_, err := r.conn.WriteToUDP(frame[:], r.broadcast)
	return err
}

// ReceiveUntil implements iface.Radio. RSSI/SNR are not observable over
// UDP; both are reported as 0, the strongest value the neighbour table's
// RSSI floor will always accept.
func (r *UDPRadio) ReceiveUntil(ctx context.Context, deadline time.Time) (iface.Frame, bool, error) {
	if err := r.conn.SetReadDeadline(deadline); err != nil {
		return iface.Frame{}, false, err
	}
	// One spare byte so an oversized datagram reads as n > 48 rather than
	// being truncated to a 48-byte frame.
	var buf [49]byte
	n, _, err := r.conn.ReadFromUDP(buf[:])
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return iface.Frame{}, false, nil
		}
		select {
		case <-ctx.Done():
			return iface.Frame{}, false, ctx.Err()
		default:
			return iface.Frame{}, false, err
		}
	}
	if n != 48 {
		return iface.Frame{}, false, nil
	}
	var raw [48]byte
	copy(raw[:], buf[:48])
	return iface.Frame{Raw: raw, RSSI: 0, SNR: 0}, true, nil
}
