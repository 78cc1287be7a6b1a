// Package config holds the engine's runtime configuration, enumerated in
// §6. Loading it from a file or CLI flags is out of scope for the core;
// callers (e.g. cmd/fscpd) construct a Config directly.
package config

import (
	"crypto/x509"
	"fmt"
	"net"
	"time"

	"github.com/freelan-go/fscp/internal/wire"
)

// HostnameResolutionProtocol selects which address family to prefer when
// resolving contact endpoints.
type HostnameResolutionProtocol int

const (
	ResolveIPv4 HostnameResolutionProtocol = iota
	ResolveIPv6
)

// ContactHint is one entry of the contact list: an endpoint, a
// certificate fingerprint, or both.
type ContactHint struct {
	Endpoint    *wire.Endpoint
	Fingerprint *[32]byte
}

// StaticRoute assigns the network prefixes a peer may route for and the
// client-routing group it belongs to, for router dispatch mode (§4.7).
// FSCP has no ROUTE message of its own; route announcement is entirely
// configuration-driven.
type StaticRoute struct {
	Peer     wire.Endpoint
	Group    string
	Prefixes []net.IPNet
}

// Config is every tunable the core engine reads (§6). Defaults are applied
// by Default, not by the zero value.
type Config struct {
	ListenOn                  wire.Endpoint
	HostnameResolutionProtocol HostnameResolutionProtocol

	HelloTimeout    time.Duration
	SessionTimeout  time.Duration
	KeepAlivePeriod time.Duration

	CipherSuiteCapabilities []wire.CipherSuite
	EllipticCurveCapabilities []wire.EllipticCurve

	AllowPeerCertRotation bool
	ClientRoutingEnabled  bool
	RelayModeEnabled      bool

	ContactList  []ContactHint
	TrustAnchors []*x509.Certificate
	StaticRoutes []StaticRoute

	// HandshakeFailureThreshold and HandshakeFailureCooldown implement the
	// §7 blacklist policy for repeatedly-failing peers.
	HandshakeFailureThreshold int
	HandshakeFailureCooldown  time.Duration

	// HelloRetryLimit and HelloRetryBackoff drive the §4.2 retransmission
	// schedule of HELLO_REQUEST. SESSION_REQUEST and SESSION are sent once
	// and are not retransmitted.
	HelloRetryLimit   int
	HelloRetryBackoff time.Duration
}

// Default returns a Config matching §6's stated defaults: both cipher
// suites and all three curves are offered, and no trust anchors or
// contact list are populated.
func Default() *Config {
	return &Config{
		ListenOn:                   wire.NewEndpoint(net.IPv4zero, 12000),
		HostnameResolutionProtocol: ResolveIPv4,
		HelloTimeout:               5 * time.Second,
		SessionTimeout:             10 * time.Minute,
		KeepAlivePeriod:            30 * time.Second,
		CipherSuiteCapabilities: []wire.CipherSuite{
			wire.CipherSuiteECDHE_RSA_AES256_GCM_SHA384,
			wire.CipherSuiteECDHE_RSA_AES128_GCM_SHA256,
		},
		EllipticCurveCapabilities: []wire.EllipticCurve{
			wire.CurveSecp521r1,
			wire.CurveSecp384r1,
			wire.CurveSect571k1,
		},
		AllowPeerCertRotation:     false,
		ClientRoutingEnabled:      true,
		RelayModeEnabled:          false,
		HandshakeFailureThreshold: 5,
		HandshakeFailureCooldown:  time.Minute,
		HelloRetryLimit:           3,
		HelloRetryBackoff:         time.Second,
	}
}

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	if len(c.CipherSuiteCapabilities) == 0 {
		return fmt.Errorf("config: cipher_suite_capabilities must not be empty")
	}
	if len(c.EllipticCurveCapabilities) == 0 {
		return fmt.Errorf("config: elliptic_curve_capabilities must not be empty")
	}
	if c.HelloTimeout <= 0 {
		return fmt.Errorf("config: hello_timeout must be positive")
	}
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("config: session_timeout must be positive")
	}
	if c.KeepAlivePeriod <= 0 {
		return fmt.Errorf("config: keepalive_period must be positive")
	}
	if c.HelloRetryLimit <= 0 {
		return fmt.Errorf("config: hello retry limit must be positive")
	}
	return nil
}
