package trackermux

import (
	"fmt"
	"net"
)

// ErrReadOnlyLink is returned when a command is written to a UDP source that
// has no command address configured (e.g. a pcap replay feed).
var ErrReadOnlyLink = fmt.Errorf("tracker link is read-only: no command address configured")

// UDPSource adapts a UDP socket into a SampleSource. The backend pushes one
// or more newline-terminated gaze records per datagram to the local listen
// port; control commands are sent to the backend's command address over the
// same socket.
type UDPSource struct {
	conn        *net.UDPConn
	commandAddr *net.UDPAddr // nil for read-only feeds
}

// NewUDPSource listens for gaze records on listenAddr. commandAddr is the
// backend's control endpoint; pass "" for a read-only feed (replayed
// captures have nobody listening for commands).
func NewUDPSource(listenAddr, commandAddr string) (*UDPSource, error) {
	local, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve listen address %q: %w", listenAddr, err)
	}

	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %q: %w", listenAddr, err)
	}

	var remote *net.UDPAddr
	if commandAddr != "" {
		remote, err = net.ResolveUDPAddr("udp", commandAddr)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to resolve command address %q: %w", commandAddr, err)
		}
	}

	return &UDPSource{conn: conn, commandAddr: remote}, nil
}

// Read reads the next datagram payload. Datagrams carry whole records, so
// handing the payload to a line scanner preserves record boundaries.
func (u *UDPSource) Read(p []byte) (int, error) {
	n, _, err := u.conn.ReadFromUDP(p)
	return n, err
}

// Write sends a control command to the backend's command address.
func (u *UDPSource) Write(p []byte) (int, error) {
	if u.commandAddr == nil {
		return 0, ErrReadOnlyLink
	}
	return u.conn.WriteToUDP(p, u.commandAddr)
}

// Close closes the underlying socket.
func (u *UDPSource) Close() error {
	return u.conn.Close()
}

// LocalAddr returns the bound listen address, useful when listening on
// port 0 in tests.
func (u *UDPSource) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// NewUDPTrackerMux creates a TrackerMux backed by a UDP gaze feed.
func NewUDPTrackerMux(listenAddr, commandAddr string) (*TrackerMux[*UDPSource], error) {
	source, err := NewUDPSource(listenAddr, commandAddr)
	if err != nil {
		return nil, err
	}
	return NewTrackerMux[*UDPSource](source), nil
}
