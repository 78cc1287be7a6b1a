package engine

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"go.uber.org/zap"

	"github.com/freelan-go/fscp/internal/cryptoutil"
	"github.com/freelan-go/fscp/internal/fscperr"
	"github.com/freelan-go/fscp/internal/identity"
	"github.com/freelan-go/fscp/internal/peer"
	"github.com/freelan-go/fscp/internal/session"
	"github.com/freelan-go/fscp/internal/wire"
)

func rekeyPolicy(allow bool) identity.RekeyPolicy {
	if allow {
		return identity.RekeyAllow
	}
	return identity.RekeyReject
}

func rsaPublicKey(cert *x509.Certificate) (*rsa.PublicKey, error) {
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("engine: certificate public key is %T, not RSA", cert.PublicKey)
	}
	return pub, nil
}

func policyRejectionReason(err error) string {
	rejection, ok := err.(*identity.RejectionError)
	if !ok {
		return "untrusted"
	}
	switch rejection.Kind {
	case identity.RejectionExpired:
		return "expired"
	case identity.RejectionMismatch:
		return "mismatch"
	case identity.RejectionKeyUsage:
		return "key_usage"
	default:
		return "untrusted"
	}
}

// handlePresentation validates an incoming PRESENTATION and installs it as
// p's record, per §4.3.
func (e *Engine) handlePresentation(p *peer.Peer, pres wire.Presentation) {
	signingCert, err := x509.ParseCertificate(pres.SigningCertificateDER)
	if err != nil {
		e.metrics.MalformedDropped.Inc()
		e.log.Debug("presentation: malformed signing certificate", zap.Stringer("from", p.Endpoint), zap.Error(err))
		return
	}
	var encryptionCert *x509.Certificate
	if len(pres.EncryptionCertificateDER) > 0 {
		encryptionCert, err = x509.ParseCertificate(pres.EncryptionCertificateDER)
		if err != nil {
			e.metrics.MalformedDropped.Inc()
			e.log.Debug("presentation: malformed encryption certificate", zap.Stringer("from", p.Endpoint), zap.Error(err))
			return
		}
	}

	existing := p.Record()
	rec, err := identity.InstallPresentation(e.trust, existing, signingCert, encryptionCert, rekeyPolicy(e.cfg.AllowPeerCertRotation))
	if err != nil {
		reason := policyRejectionReason(err)
		e.metrics.PolicyRejected.WithLabelValues(reason).Inc()
		e.log.Info("presentation rejected", zap.Stringer("from", p.Endpoint), zap.String("reason", reason), zap.Error(err))
		return
	}
	p.SetRecord(rec)
}

// InitiateSession sends a SESSION_REQUEST to the peer at to, generating and
// remembering the local ephemeral key pair it proposes so the reply can be
// matched against it (§4.4). The peer must already have an installed
// presentation.
func (e *Engine) InitiateSession(ctx context.Context, to wire.Endpoint) error {
	p, ok := e.registry.Lookup(to)
	if !ok || p.Record() == nil {
		return fscperr.New(fscperr.KindState, "no presentation installed for peer", nil)
	}

	curve, ok := negotiatedCurve(e.cfg.EllipticCurveCapabilities)
	if !ok {
		return fscperr.New(fscperr.KindCrypto, "no locally supported elliptic curve is available", nil)
	}
	keyPair, err := cryptoutil.GenerateEphemeralKeyPair(curve)
	if err != nil {
		return fmt.Errorf("engine: initiate session: %w", err)
	}

	number := e.allocateSessionNumber()
	req := wire.SessionRequest{
		SessionNumber:   number,
		HostID:          e.hostID,
		CipherSuites:    e.cfg.CipherSuiteCapabilities,
		Curves:          e.cfg.EllipticCurveCapabilities,
		EphemeralPubKey: keyPair.PublicKeyBytes(),
	}

	rsaKey, err := e.id.RSASigningKey()
	if err != nil {
		return fmt.Errorf("engine: initiate session: %w", err)
	}
	sig, err := cryptoutil.Sign(rsaKey, e.cfg.CipherSuiteCapabilities[0], req.SignedPayload())
	if err != nil {
		return fmt.Errorf("engine: sign session request: %w", err)
	}
	req.Signature = sig

	p.SetPendingRequest(&session.PendingRequest{
		Number:  number,
		KeyPair: keyPair,
		Suite:   e.cfg.CipherSuiteCapabilities[0],
		Curve:   curve,
	})

	e.queue.enqueue(ctx, to, wire.Encode(wire.Message{Type: wire.TypeSessionRequest, SessionRequest: req}))
	return nil
}

// handleSessionRequest validates an incoming SESSION_REQUEST, applies the
// §4.4 tie-break rule against any locally pending request, negotiates a
// (cipher suite, curve) pair, generates an ephemeral key pair, derives the
// session, and replies with SESSION.
func (e *Engine) handleSessionRequest(ctx context.Context, p *peer.Peer, req wire.SessionRequest) {
	rec := p.Record()
	if rec == nil {
		e.metrics.PolicyRejected.WithLabelValues("unsolicited").Inc()
		return
	}
	if len(req.CipherSuites) == 0 || len(req.Curves) == 0 || len(req.HostID) == 0 {
		e.metrics.MalformedDropped.Inc()
		return
	}

	suite, ok := cryptoutil.NegotiateSuite(e.cfg.CipherSuiteCapabilities, req.CipherSuites)
	if !ok {
		e.log.Info("no acceptable cipher suite", zap.Stringer("from", p.Endpoint))
		return
	}

	pub, err := rsaPublicKey(rec.SigningCertificate)
	if err != nil {
		e.log.Info("peer certificate is not RSA", zap.Stringer("from", p.Endpoint), zap.Error(err))
		return
	}
	if err := cryptoutil.Verify(pub, suite, req.SignedPayload(), req.Signature); err != nil {
		e.metrics.PolicyRejected.WithLabelValues("signature").Inc()
		e.log.Info("session request signature invalid", zap.Stringer("from", p.Endpoint), zap.Error(err))
		return
	}

	if !p.AcceptSessionNumber(req.SessionNumber) {
		e.metrics.PolicyRejected.WithLabelValues("session_regression").Inc()
		e.log.Info("session request number regression", zap.Stringer("from", p.Endpoint), zap.Uint32("session", req.SessionNumber),
			zap.Error(fscperr.New(fscperr.KindState, "session number not strictly greater than last accepted", nil)))
		return
	}

	// If this node also has a SESSION_REQUEST in flight to the same peer,
	// §4.4's tie-break applies: only one of the two proposals survives.
	if pending := p.TakePendingRequest(req.SessionNumber); pending != nil {
		if !session.LocalWins(e.hostID, req.HostID) {
			// The remote HostID wins; let its request proceed below and
			// discard the one we initiated.
		} else {
			// The local proposal wins; ignore this incoming request and
			// re-arm the pending one so the eventual SESSION reply is still
			// matched.
			p.SetPendingRequest(pending)
			return
		}
	}

	curve, ok := cryptoutil.NegotiateCurve(e.cfg.EllipticCurveCapabilities, req.Curves)
	if !ok {
		e.log.Info("no acceptable elliptic curve", zap.Stringer("from", p.Endpoint))
		return
	}

	local, err := cryptoutil.GenerateEphemeralKeyPair(curve)
	if err != nil {
		e.log.Warn("generate ephemeral key pair failed", zap.Error(err))
		return
	}

	now := e.clk.Now()
	sess, err := session.New(req.SessionNumber, e.hostID, req.HostID, suite, curve, local, req.EphemeralPubKey, now)
	if err != nil {
		e.log.Warn("derive session failed", zap.Stringer("from", p.Endpoint), zap.Error(err))
		return
	}

	resp := wire.Session{
		SessionNumber:   req.SessionNumber,
		HostID:          e.hostID,
		CipherSuite:     suite,
		Curve:           curve,
		EphemeralPubKey: local.PublicKeyBytes(),
	}
	rsaSigningKey, err := e.id.RSASigningKey()
	if err != nil {
		e.log.Warn("local signing key is not RSA", zap.Error(err))
		return
	}
	sig, err := cryptoutil.Sign(rsaSigningKey, suite, resp.SignedPayload())
	if err != nil {
		e.log.Warn("sign session response failed", zap.Error(err))
		return
	}
	resp.Signature = sig

	p.SetPendingSession(sess)
	drained := p.PromotePending()

	e.queue.enqueue(ctx, p.Endpoint, wire.Encode(wire.Message{Type: wire.TypeSession, Session: resp}))
	e.replayQueuedControls(ctx, p, drained)
}

// handleSession completes the handshake on the initiating side when the
// peer's SESSION reply arrives, deriving the shared key schedule from the
// ephemeral key pair remembered by InitiateSession.
func (e *Engine) handleSession(p *peer.Peer, resp wire.Session) {
	rec := p.Record()
	if rec == nil {
		return
	}
	pub, err := rsaPublicKey(rec.SigningCertificate)
	if err != nil {
		e.log.Info("peer certificate is not RSA", zap.Stringer("from", p.Endpoint), zap.Error(err))
		return
	}
	if err := cryptoutil.Verify(pub, resp.CipherSuite, resp.SignedPayload(), resp.Signature); err != nil {
		e.metrics.PolicyRejected.WithLabelValues("signature").Inc()
		e.log.Info("session response signature invalid", zap.Stringer("from", p.Endpoint), zap.Error(err))
		return
	}

	pending := p.TakePendingRequest(resp.SessionNumber)
	if pending == nil {
		e.log.Debug("session response matches no pending request", zap.Stringer("from", p.Endpoint), zap.Uint32("session", resp.SessionNumber))
		return
	}
	if pending.Curve != resp.Curve || pending.Suite != resp.CipherSuite {
		e.log.Info("session response negotiated parameters disagree with request", zap.Stringer("from", p.Endpoint))
		return
	}

	now := e.clk.Now()
	sess, err := session.New(resp.SessionNumber, e.hostID, resp.HostID, resp.CipherSuite, resp.Curve, pending.KeyPair, resp.EphemeralPubKey, now)
	if err != nil {
		e.log.Warn("derive session failed", zap.Stringer("from", p.Endpoint), zap.Error(err))
		return
	}

	p.SetPendingSession(sess)
	drained := p.PromotePending()
	e.replayQueuedControls(context.Background(), p, drained)
}

// replayQueuedControls reprocesses control messages that had been queued
// while the peer had no session ready (invariant 4, §3).
func (e *Engine) replayQueuedControls(ctx context.Context, p *peer.Peer, drained []peer.PendingControlMessage) {
	for _, pending := range drained {
		msg := pending.Message
		if wire.IsDataType(msg.Type) {
			e.handleData(ctx, p, msg)
		}
	}
}
