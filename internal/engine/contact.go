package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/freelan-go/fscp/internal/cryptoutil"
	"github.com/freelan-go/fscp/internal/fscperr"
	"github.com/freelan-go/fscp/internal/peer"
	"github.com/freelan-go/fscp/internal/wire"
)

// contactBook remembers the (fingerprint, endpoint) hints this node has
// learned from CONTACT answers, per §4.6. It is purely advisory: nothing
// dials a learned endpoint automatically.
type contactBook struct {
	mu      sync.Mutex
	entries map[[32]byte]wire.Endpoint
}

func newContactBook() *contactBook {
	return &contactBook{entries: make(map[[32]byte]wire.Endpoint)}
}

func (b *contactBook) record(fp [32]byte, ep wire.Endpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[fp] = ep
}

func (b *contactBook) snapshot() map[[32]byte]wire.Endpoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[[32]byte]wire.Endpoint, len(b.entries))
	for k, v := range b.entries {
		out[k] = v
	}
	return out
}

// LearnedContacts returns the (fingerprint, endpoint) hints learned so far
// from CONTACT answers.
func (e *Engine) LearnedContacts() map[[32]byte]wire.Endpoint {
	return e.contacts.snapshot()
}

// SendContactRequest asks to for endpoint hints on the given certificate
// fingerprints, carried as CONTACT_REQUEST over the reserved contact-request
// channel so it inherits the session's confidentiality and authentication
// (§4.6). The peer must already have an active session.
func (e *Engine) SendContactRequest(ctx context.Context, to wire.Endpoint, fingerprints [][32]byte) error {
	body := wire.EncodeContactRequest(wire.ContactRequest{Fingerprints: fingerprints})
	if !e.sendOnChannel(ctx, to, wire.ChannelContactRequest, body) {
		return fscperr.New(fscperr.KindState, "no active session for contact request target "+to.String(), nil)
	}
	return nil
}

// handleContactRequest answers an inbound CONTACT_REQUEST with endpoint
// hints for the requested fingerprints, limited to peers this node is
// currently connected to (direct peers only, per the scoped §9 exchange).
func (e *Engine) handleContactRequest(ctx context.Context, p *peer.Peer, plaintext []byte) {
	req, err := wire.DecodeContactRequest(plaintext)
	if err != nil {
		e.metrics.MalformedDropped.Inc()
		e.log.Debug("contact request malformed", zap.Stringer("from", p.Endpoint), zap.Error(err))
		return
	}

	wanted := make(map[[32]byte]struct{}, len(req.Fingerprints))
	for _, fp := range req.Fingerprints {
		wanted[fp] = struct{}{}
	}

	var entries []wire.ContactEntry
	e.registry.Each(func(candidate *peer.Peer) {
		if candidate.CurrentSession() == nil {
			return
		}
		rec := candidate.Record()
		if rec == nil {
			return
		}
		fp := cryptoutil.Fingerprint(rec.SigningCertificate.Raw)
		if _, ok := wanted[fp]; !ok {
			return
		}
		entries = append(entries, wire.ContactEntry{
			Fingerprint: fp,
			IP:          candidate.Endpoint.Addr(),
			Port:        candidate.Endpoint.Port,
		})
	})

	body := wire.EncodeContact(wire.Contact{Entries: entries})
	e.sendOnChannel(ctx, p.Endpoint, wire.ChannelContact, body)
}

// handleContact records the endpoint hints carried by an inbound CONTACT
// answer.
func (e *Engine) handleContact(p *peer.Peer, plaintext []byte) {
	contact, err := wire.DecodeContact(plaintext)
	if err != nil {
		e.metrics.MalformedDropped.Inc()
		e.log.Debug("contact malformed", zap.Stringer("from", p.Endpoint), zap.Error(err))
		return
	}
	for _, entry := range contact.Entries {
		ep := wire.NewEndpoint(entry.IP, entry.Port)
		e.contacts.record(entry.Fingerprint, ep)
		e.log.Debug("learned contact", zap.Stringer("from", p.Endpoint), zap.Stringer("endpoint", ep))
	}
}
