package engine

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"

	"github.com/freelan-go/fscp/internal/clock"
	"github.com/freelan-go/fscp/internal/config"
	"github.com/freelan-go/fscp/internal/cryptoutil"
	"github.com/freelan-go/fscp/internal/dispatch"
	"github.com/freelan-go/fscp/internal/identity"
	"github.com/freelan-go/fscp/internal/metrics"
	"github.com/freelan-go/fscp/internal/tap"
	"github.com/freelan-go/fscp/internal/wire"
)

func generateCert(t *testing.T, subject string, signerCert *x509.Certificate, signerKey *rsa.PrivateKey, isCA bool) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	now := time.Now()
	usage := x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment
	if isCA {
		usage = x509.KeyUsageCertSign
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: subject},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(time.Hour),
		KeyUsage:              usage,
		IsCA:                  isCA,
		BasicConstraintsValid: true,
	}
	parent := template
	signingKey := key
	if signerCert != nil {
		parent = signerCert
		signingKey = signerKey
	}
	der, err := x509.CreateCertificate(rand.Reader, template, parent, &key.PublicKey, signingKey)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return cert, key
}

func newTestEngine(t *testing.T, ca *x509.Certificate, cert *x509.Certificate, key *rsa.PrivateKey, mac dispatch.MAC) (*Engine, *tap.Pipe) {
	t.Helper()
	id, err := identity.NewIdentity(cert, key, nil, nil)
	if err != nil {
		t.Fatalf("new identity: %v", err)
	}
	trust := identity.NewTrustStore([]*x509.Certificate{ca}, nil)

	cfg := config.Default()
	cfg.ListenOn = wire.NewEndpoint(net.IPv4(127, 0, 0, 1), 0)
	cfg.HelloRetryLimit = 3
	cfg.HelloRetryBackoff = 10 * time.Millisecond

	device := tap.NewPipe(net.HardwareAddr(mac[:]))
	m := metrics.New(prometheus.NewRegistry())
	e, err := New(cfg, id, trust, device, m, zap.NewNop(), clock.System{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	sw, err := dispatch.NewSwitch(64, mac, true)
	if err != nil {
		t.Fatalf("new switch: %v", err)
	}
	e.UseSwitch(sw, mac)
	return e, device
}

// waitFor polls cond every 5ms until it returns true or timeout elapses,
// failing the test otherwise.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestHandshakeAndDataRoundTrip(t *testing.T) {
	ca, caKey := generateCert(t, "test-ca", nil, nil, true)
	certA, keyA := generateCert(t, "node-a", ca, caKey, false)
	certB, keyB := generateCert(t, "node-b", ca, caKey, false)

	macA := dispatch.MAC{0x02, 0, 0, 0, 0, 0x0A}
	macB := dispatch.MAC{0x02, 0, 0, 0, 0, 0x0B}

	engineA, _ := newTestEngine(t, ca, certA, keyA, macA)
	engineB, deviceB := newTestEngine(t, ca, certB, keyB, macB)
	defer engineA.Close()
	defer engineB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go engineA.Run(ctx)
	go engineB.Run(ctx)

	epA := wire.NewEndpointFromUDPAddr(engineA.LocalAddr())
	epB := wire.NewEndpointFromUDPAddr(engineB.LocalAddr())

	engineA.SendPresentation(ctx, epB)
	engineB.SendPresentation(ctx, epA)

	waitFor(t, time.Second, func() bool {
		pa, ok := engineA.registry.Lookup(epB)
		pb, ok2 := engineB.registry.Lookup(epA)
		return ok && ok2 && pa.Record() != nil && pb.Record() != nil
	})

	if err := engineA.InitiateSession(ctx, epB); err != nil {
		t.Fatalf("initiate session: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		pa, _ := engineA.registry.Lookup(epB)
		pb, _ := engineB.registry.Lookup(epA)
		return pa != nil && pb != nil && pa.CurrentSession() != nil && pb.CurrentSession() != nil
	})

	frame := append(append(append([]byte{}, macB[:]...), macA[:]...), []byte("hello-from-a")...)
	engineA.sendData(ctx, epB, frame)

	received := make(chan []byte, 1)
	go func() { received <- deviceB.WrittenFrame() }()

	select {
	case got := <-received:
		if string(got) != string(frame) {
			t.Fatalf("frame mismatch: got %q want %q", got, frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for forwarded frame")
	}
}

func TestDuplicateDataMessageIsDropped(t *testing.T) {
	ca, caKey := generateCert(t, "test-ca", nil, nil, true)
	certA, keyA := generateCert(t, "node-a", ca, caKey, false)
	certB, keyB := generateCert(t, "node-b", ca, caKey, false)

	macA := dispatch.MAC{0x02, 0, 0, 0, 0, 0x0A}
	macB := dispatch.MAC{0x02, 0, 0, 0, 0, 0x0B}

	engineA, _ := newTestEngine(t, ca, certA, keyA, macA)
	engineB, deviceB := newTestEngine(t, ca, certB, keyB, macB)
	defer engineA.Close()
	defer engineB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go engineA.Run(ctx)
	go engineB.Run(ctx)

	epA := wire.NewEndpointFromUDPAddr(engineA.LocalAddr())
	epB := wire.NewEndpointFromUDPAddr(engineB.LocalAddr())

	engineA.SendPresentation(ctx, epB)
	engineB.SendPresentation(ctx, epA)
	waitFor(t, time.Second, func() bool {
		pa, ok := engineA.registry.Lookup(epB)
		pb, ok2 := engineB.registry.Lookup(epA)
		return ok && ok2 && pa.Record() != nil && pb.Record() != nil
	})
	if err := engineA.InitiateSession(ctx, epB); err != nil {
		t.Fatalf("initiate session: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		pa, _ := engineA.registry.Lookup(epB)
		pb, _ := engineB.registry.Lookup(epA)
		return pa != nil && pb != nil && pa.CurrentSession() != nil && pb.CurrentSession() != nil
	})

	pa, _ := engineA.registry.Lookup(epB)
	sess := pa.CurrentSession()

	seq, err := sess.NextSequence(wire.ChannelData, time.Now())
	if err != nil {
		t.Fatalf("next sequence: %v", err)
	}
	plaintext := append(append(append([]byte{}, macB[:]...), macA[:]...), []byte("replay-me")...)
	bodyLen := 4 + len(plaintext) + sess.Outbound.Overhead()
	ad := wire.AssociatedData(wire.DataType(wire.ChannelData), bodyLen, wire.ChannelData)
	sealed := sess.Outbound.Seal(wire.ChannelData, seq, ad, plaintext)
	datagram := wire.Encode(wire.Message{
		Type:    wire.DataType(wire.ChannelData),
		Channel: wire.ChannelData,
		Data:    wire.DataBody{SequenceNumber: seq, Sealed: sealed},
	})

	engineB.handleDatagram(ctx, epA, datagram)
	first := deviceB.WrittenFrame()
	if string(first) != string(plaintext) {
		t.Fatalf("unexpected first frame: %q", first)
	}

	before := testCounterValue(t, engineB.metrics.ReplayDropped)
	engineB.handleDatagram(ctx, epA, datagram)
	after := testCounterValue(t, engineB.metrics.ReplayDropped)
	if after != before+1 {
		t.Fatalf("expected replay counter to increment by 1, got %v -> %v", before, after)
	}

	select {
	case got := <-deviceBWritten(deviceB):
		t.Fatalf("unexpected second frame delivered: %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestContactRequestAnswersWithKnownPeer(t *testing.T) {
	ca, caKey := generateCert(t, "test-ca", nil, nil, true)
	certA, keyA := generateCert(t, "node-a", ca, caKey, false)
	certB, keyB := generateCert(t, "node-b", ca, caKey, false)

	macA := dispatch.MAC{0x02, 0, 0, 0, 0, 0x0A}
	macB := dispatch.MAC{0x02, 0, 0, 0, 0, 0x0B}

	engineA, _ := newTestEngine(t, ca, certA, keyA, macA)
	engineB, _ := newTestEngine(t, ca, certB, keyB, macB)
	defer engineA.Close()
	defer engineB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go engineA.Run(ctx)
	go engineB.Run(ctx)

	epA := wire.NewEndpointFromUDPAddr(engineA.LocalAddr())
	epB := wire.NewEndpointFromUDPAddr(engineB.LocalAddr())

	engineA.SendPresentation(ctx, epB)
	engineB.SendPresentation(ctx, epA)
	waitFor(t, time.Second, func() bool {
		pa, ok := engineA.registry.Lookup(epB)
		pb, ok2 := engineB.registry.Lookup(epA)
		return ok && ok2 && pa.Record() != nil && pb.Record() != nil
	})
	if err := engineA.InitiateSession(ctx, epB); err != nil {
		t.Fatalf("initiate session: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		pa, _ := engineA.registry.Lookup(epB)
		pb, _ := engineB.registry.Lookup(epA)
		return pa != nil && pb != nil && pa.CurrentSession() != nil && pb.CurrentSession() != nil
	})

	fpA := cryptoutil.Fingerprint(certA.Raw)
	if err := engineA.SendContactRequest(ctx, epB, [][32]byte{fpA}); err != nil {
		t.Fatalf("send contact request: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		ep, ok := engineA.LearnedContacts()[fpA]
		return ok && ep == epA
	})
}

func TestKeepAliveIsAuthenticatedAndReplayProtected(t *testing.T) {
	ca, caKey := generateCert(t, "test-ca", nil, nil, true)
	certA, keyA := generateCert(t, "node-a", ca, caKey, false)
	certB, keyB := generateCert(t, "node-b", ca, caKey, false)

	macA := dispatch.MAC{0x02, 0, 0, 0, 0, 0x0A}
	macB := dispatch.MAC{0x02, 0, 0, 0, 0, 0x0B}

	engineA, _ := newTestEngine(t, ca, certA, keyA, macA)
	engineB, deviceB := newTestEngine(t, ca, certB, keyB, macB)
	defer engineA.Close()
	defer engineB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go engineA.Run(ctx)
	go engineB.Run(ctx)

	epA := wire.NewEndpointFromUDPAddr(engineA.LocalAddr())
	epB := wire.NewEndpointFromUDPAddr(engineB.LocalAddr())

	engineA.SendPresentation(ctx, epB)
	engineB.SendPresentation(ctx, epA)
	waitFor(t, time.Second, func() bool {
		pa, ok := engineA.registry.Lookup(epB)
		pb, ok2 := engineB.registry.Lookup(epA)
		return ok && ok2 && pa.Record() != nil && pb.Record() != nil
	})
	if err := engineA.InitiateSession(ctx, epB); err != nil {
		t.Fatalf("initiate session: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		pa, _ := engineA.registry.Lookup(epB)
		pb, _ := engineB.registry.Lookup(epA)
		return pa != nil && pb != nil && pa.CurrentSession() != nil && pb.CurrentSession() != nil
	})

	pa, _ := engineA.registry.Lookup(epB)
	sess := pa.CurrentSession()

	seq, err := sess.NextSequence(wire.ChannelKeepAlive, time.Now())
	if err != nil {
		t.Fatalf("next sequence: %v", err)
	}
	bodyLen := 4 + len(wire.KeepAliveOpaquePayload) + sess.Outbound.Overhead()
	ad := wire.AssociatedData(wire.DataType(wire.ChannelKeepAlive), bodyLen, wire.ChannelKeepAlive)
	sealed := sess.Outbound.Seal(wire.ChannelKeepAlive, seq, ad, wire.KeepAliveOpaquePayload)
	datagram := wire.Encode(wire.Message{
		Type:    wire.DataType(wire.ChannelKeepAlive),
		Channel: wire.ChannelKeepAlive,
		Data:    wire.DataBody{SequenceNumber: seq, Sealed: sealed},
	})

	malformedBefore := testCounterValue(t, engineB.metrics.MalformedDropped)
	engineB.handleDatagram(ctx, epA, datagram)
	malformedAfter := testCounterValue(t, engineB.metrics.MalformedDropped)
	if malformedAfter != malformedBefore {
		t.Fatalf("keep-alive should authenticate cleanly, malformed counter moved %v -> %v", malformedBefore, malformedAfter)
	}

	replayBefore := testCounterValue(t, engineB.metrics.ReplayDropped)
	engineB.handleDatagram(ctx, epA, datagram)
	replayAfter := testCounterValue(t, engineB.metrics.ReplayDropped)
	if replayAfter != replayBefore+1 {
		t.Fatalf("expected replay counter to increment by 1, got %v -> %v", replayBefore, replayAfter)
	}

	select {
	case got := <-deviceBWritten(deviceB):
		t.Fatalf("keep-alive must never be forwarded to the tap device, got %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUseRouterInstallsStaticRoutes(t *testing.T) {
	ca, caKey := generateCert(t, "test-ca", nil, nil, true)
	certA, keyA := generateCert(t, "node-a", ca, caKey, false)

	peerEndpoint := wire.NewEndpoint(net.IPv4(10, 0, 0, 2), 12000)
	id, err := identity.NewIdentity(certA, keyA, nil, nil)
	if err != nil {
		t.Fatalf("new identity: %v", err)
	}
	trust := identity.NewTrustStore([]*x509.Certificate{ca}, nil)

	cfg := config.Default()
	cfg.ListenOn = wire.NewEndpoint(net.IPv4(127, 0, 0, 1), 0)
	_, prefix, err := net.ParseCIDR("10.0.0.0/24")
	if err != nil {
		t.Fatalf("parse cidr: %v", err)
	}
	cfg.StaticRoutes = []config.StaticRoute{
		{Peer: peerEndpoint, Group: "site-a", Prefixes: []net.IPNet{*prefix}},
	}

	m := metrics.New(prometheus.NewRegistry())
	e, err := New(cfg, id, trust, nil, m, zap.NewNop(), clock.System{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer e.Close()

	rt := dispatch.NewRouter(cfg.ClientRoutingEnabled)
	e.UseRouter(rt)

	target := rt.Resolve(net.IPv4(10, 0, 0, 9), dispatch.PeerID{}, true, []dispatch.PeerID{dispatch.PeerID(peerEndpoint)})
	if len(target.ToPeers) != 1 || target.ToPeers[0] != dispatch.PeerID(peerEndpoint) {
		t.Fatalf("expected the configured static route to resolve, got %+v", target)
	}
}

func TestSessionRequestRegressionIsRejected(t *testing.T) {
	ca, caKey := generateCert(t, "test-ca", nil, nil, true)
	certA, keyA := generateCert(t, "node-a", ca, caKey, false)
	certB, keyB := generateCert(t, "node-b", ca, caKey, false)

	macA := dispatch.MAC{0x02, 0, 0, 0, 0, 0x0A}
	macB := dispatch.MAC{0x02, 0, 0, 0, 0, 0x0B}

	engineA, _ := newTestEngine(t, ca, certA, keyA, macA)
	engineB, _ := newTestEngine(t, ca, certB, keyB, macB)
	defer engineA.Close()
	defer engineB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go engineA.Run(ctx)
	go engineB.Run(ctx)

	epA := wire.NewEndpointFromUDPAddr(engineA.LocalAddr())
	epB := wire.NewEndpointFromUDPAddr(engineB.LocalAddr())

	engineA.SendPresentation(ctx, epB)
	engineB.SendPresentation(ctx, epA)
	waitFor(t, time.Second, func() bool {
		pa, ok := engineA.registry.Lookup(epB)
		pb, ok2 := engineB.registry.Lookup(epA)
		return ok && ok2 && pa.Record() != nil && pb.Record() != nil
	})
	if err := engineA.InitiateSession(ctx, epB); err != nil {
		t.Fatalf("initiate session: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		pa, _ := engineA.registry.Lookup(epB)
		pb, _ := engineB.registry.Lookup(epA)
		return pa != nil && pb != nil && pa.CurrentSession() != nil && pb.CurrentSession() != nil
	})

	pb, _ := engineB.registry.Lookup(epA)
	sessBefore := pb.CurrentSession()

	curve := engineA.cfg.EllipticCurveCapabilities[0]
	suite := engineA.cfg.CipherSuiteCapabilities[0]
	keyPair, err := cryptoutil.GenerateEphemeralKeyPair(curve)
	if err != nil {
		t.Fatalf("generate ephemeral key pair: %v", err)
	}
	replay := wire.SessionRequest{
		SessionNumber:   1, // already accepted by engineB during the handshake above
		HostID:          engineA.hostID,
		CipherSuites:    []wire.CipherSuite{suite},
		Curves:          []wire.EllipticCurve{curve},
		EphemeralPubKey: keyPair.PublicKeyBytes(),
	}
	sig, err := cryptoutil.Sign(keyA, suite, replay.SignedPayload())
	if err != nil {
		t.Fatalf("sign replayed session request: %v", err)
	}
	replay.Signature = sig

	before := testCounterValue(t, engineB.metrics.PolicyRejected.WithLabelValues("session_regression").(prometheus.Counter))
	engineB.handleSessionRequest(ctx, pb, replay)
	after := testCounterValue(t, engineB.metrics.PolicyRejected.WithLabelValues("session_regression").(prometheus.Counter))
	if after != before+1 {
		t.Fatalf("expected session_regression rejection counter to increment by 1, got %v -> %v", before, after)
	}
	if pb.CurrentSession() != sessBefore {
		t.Fatal("a regressed session request must not replace the active session")
	}
}

func deviceBWritten(p *tap.Pipe) <-chan []byte {
	ch := make(chan []byte, 1)
	go func() { ch <- p.WrittenFrame() }()
	return ch
}

func testCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}
