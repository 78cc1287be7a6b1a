package engine

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/freelan-go/fscp/internal/bufpool"
	"github.com/freelan-go/fscp/internal/clock"
	"github.com/freelan-go/fscp/internal/config"
	"github.com/freelan-go/fscp/internal/cryptoutil"
	"github.com/freelan-go/fscp/internal/dispatch"
	"github.com/freelan-go/fscp/internal/fscperr"
	"github.com/freelan-go/fscp/internal/identity"
	"github.com/freelan-go/fscp/internal/metrics"
	"github.com/freelan-go/fscp/internal/peer"
	"github.com/freelan-go/fscp/internal/session"
	"github.com/freelan-go/fscp/internal/tap"
	"github.com/freelan-go/fscp/internal/wire"
)

// Engine is the FSCP engine: one UDP socket, one TAP device, the peer
// registry, and the switch/router dispatch, wired together per §2's five
// layers.
type Engine struct {
	cfg      *config.Config
	id       *identity.Identity
	trust    *identity.TrustStore
	registry *peer.Registry
	device   tap.Device
	metrics  *metrics.Metrics
	log      *zap.Logger
	clk      clock.Clock

	hostID session.HostID

	conn  *net.UDPConn
	queue *sendQueue

	mu                sync.Mutex
	actors            map[wire.Endpoint]*actor
	nextSessionNumber uint32
	runCtx            context.Context

	localMAC dispatch.MAC
	sw       *dispatch.Switch
	rt       *dispatch.Router

	contacts *contactBook
}

// New constructs an Engine bound to cfg.ListenOn. The caller must call
// Run to start its loops.
func New(cfg *config.Config, id *identity.Identity, trust *identity.TrustStore, device tap.Device, m *metrics.Metrics, log *zap.Logger, clk clock.Clock) (*Engine, error) {
	conn, err := net.ListenUDP("udp", cfg.ListenOn.UDPAddr())
	if err != nil {
		return nil, fscperr.New(fscperr.KindTransport, "bind udp socket", err)
	}

	hostID := make(session.HostID, 32)
	if _, err := rand.Read(hostID); err != nil {
		conn.Close()
		return nil, fmt.Errorf("engine: generate host identifier: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		id:       id,
		trust:    trust,
		registry: peer.NewRegistry(),
		device:   device,
		metrics:  m,
		log:      log,
		clk:      clk,
		hostID:   hostID,
		conn:     conn,
		actors:   make(map[wire.Endpoint]*actor),
		runCtx:   context.Background(),
		contacts: newContactBook(),
	}
	e.queue = newSendQueue(conn, log)
	return e, nil
}

// UseSwitch puts the engine in bridging mode, dispatching decrypted
// Ethernet frames by learned MAC->peer bindings (§4.7).
func (e *Engine) UseSwitch(sw *dispatch.Switch, localMAC dispatch.MAC) {
	e.sw = sw
	e.rt = nil
	e.localMAC = localMAC
}

// UseRouter puts the engine in routing mode, dispatching decrypted IP
// packets by longest matching announced prefix (§4.7). Since FSCP has no
// wire message for route announcement, routes are taken from the
// statically configured cfg.StaticRoutes and installed immediately.
func (e *Engine) UseRouter(rt *dispatch.Router) {
	e.rt = rt
	e.sw = nil
	for _, route := range e.cfg.StaticRoutes {
		rt.SetRoutes(dispatch.PeerID(route.Peer), route.Group, route.Prefixes)
	}
}

// Close releases the UDP socket and TAP device.
func (e *Engine) Close() error {
	connErr := e.conn.Close()
	var devErr error
	if e.device != nil {
		devErr = e.device.Close()
	}
	if connErr != nil {
		return connErr
	}
	return devErr
}

// LocalAddr returns the bound UDP address, useful for tests that bind to
// an ephemeral port.
func (e *Engine) LocalAddr() *net.UDPAddr {
	return e.conn.LocalAddr().(*net.UDPAddr)
}

// Run starts the receive loop, send queue, and (if a TAP device was
// supplied) the TAP read loop. It blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.runCtx = ctx
	e.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.queue.run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.receiveLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.keepAliveLoop(ctx)
	}()

	if e.device != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.tapReadLoop(ctx)
		}()
	}

	<-ctx.Done()
	wg.Wait()
}

func (e *Engine) receiveLoop(ctx context.Context) {
	buf := bufpool.Get(bufpool.DatagramSize)
	defer bufpool.Put(buf)

	for {
		if ctx.Err() != nil {
			return
		}
		e.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, addr, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			e.log.Warn("udp read failed", zap.Error(err))
			continue
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		from := wire.NewEndpointFromUDPAddr(addr)

		act := e.actorFor(from)
		act.submit(ctx, func() {
			e.handleDatagram(ctx, from, datagram)
		})
	}
}

func (e *Engine) actorFor(endpoint wire.Endpoint) *actor {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.actors[endpoint]
	if !ok {
		a = newActor()
		e.actors[endpoint] = a
		go a.run(e.runCtx)
	}
	return a
}

func (e *Engine) handleDatagram(ctx context.Context, from wire.Endpoint, datagram []byte) {
	msg, err := wire.Parse(datagram)
	if err != nil {
		e.metrics.MalformedDropped.Inc()
		e.log.Debug("dropping malformed datagram", zap.Stringer("from", from), zap.Error(err))
		return
	}

	p := e.registry.GetOrCreate(from)
	p.Touch(e.clk.Now())

	switch msg.Type {
	case wire.TypeHelloRequest:
		e.sendHelloResponse(ctx, from, msg.HelloRequest.RequestID)
	case wire.TypeHelloResponse:
		p.SignalHelloAck(msg.HelloResponse.RequestID)
	case wire.TypePresentation:
		e.handlePresentation(p, msg.Presentation)
	case wire.TypeSessionRequest:
		e.handleSessionRequest(ctx, p, msg.SessionRequest)
	case wire.TypeSession:
		e.handleSession(p, msg.Session)
	default:
		if wire.IsDataType(msg.Type) {
			// Channels 1 (CONTACT) and 2 (CONTACT_REQUEST) are handled
			// inside handleData alongside channel 0, since §4.6 requires
			// them to travel sealed under the session like ordinary data.
			e.handleData(ctx, p, msg)
		}
	}
}

func (e *Engine) sendHelloResponse(ctx context.Context, to wire.Endpoint, requestID uint32) {
	resp := wire.HelloResponse{RequestID: requestID}
	e.queue.enqueue(ctx, to, wire.Encode(wire.Message{Type: wire.TypeHelloResponse, HelloResponse: resp}))
}

// SendHelloRequest sends a HELLO_REQUEST and retransmits it per the
// configured back-off until acked or exhausted (§4.2).
func (e *Engine) SendHelloRequest(ctx context.Context, to wire.Endpoint) error {
	var requestID uint32
	idBytes := make([]byte, 4)
	if _, err := rand.Read(idBytes); err != nil {
		return fmt.Errorf("engine: generate hello request id: %w", err)
	}
	requestID = binary.BigEndian.Uint32(idBytes)

	p := e.registry.GetOrCreate(to)
	ack := p.AwaitHelloAck(requestID)

	send := func() {
		e.queue.enqueue(ctx, to, wire.Encode(wire.Message{Type: wire.TypeHelloRequest, HelloRequest: wire.HelloRequest{RequestID: requestID}}))
	}
	return retransmit(ctx, e.clk, e.cfg.HelloRetryLimit, e.cfg.HelloRetryBackoff, send, ack)
}

// SendPresentation sends this node's certificates to to.
func (e *Engine) SendPresentation(ctx context.Context, to wire.Endpoint) {
	pres := wire.Presentation{SigningCertificateDER: e.id.SigningCertificate.Raw}
	if e.id.EncryptionCertificate != nil {
		pres.EncryptionCertificateDER = e.id.EncryptionCertificate.Raw
	}
	e.queue.enqueue(ctx, to, wire.Encode(wire.Message{Type: wire.TypePresentation, Presentation: pres}))
}

func (e *Engine) allocateSessionNumber() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextSessionNumber++
	return e.nextSessionNumber
}

// keepAliveLoop sends a KEEP_ALIVE (DATA_3 with the well-known opaque
// payload, on the reserved keep-alive channel) to every peer with an active
// session, once per configured period, so idle sessions do not time out
// (§2, §4.1).
func (e *Engine) keepAliveLoop(ctx context.Context) {
	timer := e.clk.NewTimer(e.cfg.KeepAlivePeriod)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C():
			e.sendKeepAlives(ctx)
			timer.Reset(e.cfg.KeepAlivePeriod)
		}
	}
}

func (e *Engine) sendKeepAlives(ctx context.Context) {
	e.registry.Each(func(p *peer.Peer) {
		if p.CurrentSession() == nil {
			return
		}
		e.sendOnChannel(ctx, p.Endpoint, wire.ChannelKeepAlive, wire.KeepAliveOpaquePayload)
	})
}

func (e *Engine) tapReadLoop(ctx context.Context) {
	buf := bufpool.Get(bufpool.DatagramSize)
	defer bufpool.Put(buf)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := e.device.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.log.Warn("tap read failed", zap.Error(err))
			return
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		e.forwardFromLocal(ctx, frame)
	}
}

// knownPeerIDs snapshots the currently registered peers as dispatch
// targets.
func (e *Engine) knownPeerIDs() []dispatch.PeerID {
	var ids []dispatch.PeerID
	e.registry.Each(func(p *peer.Peer) {
		ids = append(ids, dispatch.PeerID(p.Endpoint))
	})
	return ids
}

func negotiatedCurve(preferences []wire.EllipticCurve) (wire.EllipticCurve, bool) {
	for _, c := range preferences {
		if cryptoutil.CurveAvailable(c) {
			return c, true
		}
	}
	return wire.CurveUnsupported, false
}
