// Package tap defines the TAP/TUN collaborator contract the core consumes
// (§6): a bidirectional frame pipe plus the platform side-effects
// (addressing, MTU, connected-state signaling) that stay out of scope for
// the core itself. The actual device driver is platform glue; this package
// only describes and fakes the interface.
package tap

//go:generate mockgen -source=tap.go -destination=mock_tap.go -package=tap

import "net"

// Device is the frame pipe the engine reads from and writes to. The core
// is ignorant of whether Ethernet or raw IP frames flow through it beyond
// choosing switch vs router dispatch.
type Device interface {
	// Read blocks until a frame is available, copies it into buf, and
	// returns its length. It returns an error only on shutdown.
	Read(buf []byte) (int, error)
	// Write sends a frame.
	Write(buf []byte) (int, error)
	// EthernetAddress returns the device's MAC address, used in switch
	// mode to recognize frames originating from the local TAP.
	EthernetAddress() net.HardwareAddr
	// Configure applies the addressing/MTU the engine has decided on.
	Configure(cfg Configuration) error
	// SetConnectedState reports whether the engine considers the tunnel
	// up, for platforms that reflect it (e.g. carrier/link state).
	SetConnectedState(connected bool) error
	// AddIP/RemoveIP manage additional addresses beyond the ones applied
	// by Configure, e.g. ones learned via routing announcements.
	AddIP(ip net.IPNet) error
	RemoveIP(ip net.IPNet) error
	// Close releases the device, unblocking any pending Read.
	Close() error
}

// Configuration is the address/MTU state applied to a Device at startup.
type Configuration struct {
	IPv4 *net.IPNet
	IPv6 *net.IPNet
	MTU  int
}
