package identity

import (
	"crypto/x509"
	"fmt"
)

// RekeyPolicy controls whether a presentation may replace the certificates
// already on file for an endpoint (§4.3 step 3, default reject).
type RekeyPolicy int

const (
	RekeyReject RekeyPolicy = iota
	RekeyAllow
)

// PeerRecord binds a remote endpoint to its validated certificates. It is
// created on the first accepted PRESENTATION for an endpoint and updated
// only when RekeyPolicy allows it.
type PeerRecord struct {
	SigningCertificate    *x509.Certificate
	EncryptionCertificate *x509.Certificate
}

// EncryptionCert returns the certificate used for the encryption role,
// falling back to the signing certificate.
func (p *PeerRecord) EncryptionCert() *x509.Certificate {
	if p.EncryptionCertificate != nil {
		return p.EncryptionCertificate
	}
	return p.SigningCertificate
}

func sameCertificate(a, b *x509.Certificate) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(b)
}

// InstallPresentation validates the incoming signing/encryption
// certificates against trust and, if a record already exists for the
// endpoint, against the rekey policy. It returns the PeerRecord to install
// (possibly unchanged) or a *RejectionError.
func InstallPresentation(store *TrustStore, existing *PeerRecord, signingCert, encryptionCert *x509.Certificate, policy RekeyPolicy) (*PeerRecord, error) {
	if err := store.Validate(signingCert, x509.KeyUsageDigitalSignature); err != nil {
		return nil, err
	}
	effectiveEncryptionCert := encryptionCert
	if effectiveEncryptionCert == nil {
		effectiveEncryptionCert = signingCert
	}
	if effectiveEncryptionCert != signingCert {
		if err := store.Validate(effectiveEncryptionCert, x509.KeyUsageKeyEncipherment|x509.KeyUsageDataEncipherment|x509.KeyUsageDigitalSignature); err != nil {
			return nil, err
		}
	}

	next := &PeerRecord{SigningCertificate: signingCert, EncryptionCertificate: encryptionCert}

	if existing == nil {
		return next, nil
	}

	unchanged := sameCertificate(existing.SigningCertificate, signingCert) && sameCertificate(existing.EncryptionCertificate, encryptionCert)
	if unchanged {
		return existing, nil
	}
	if policy != RekeyAllow {
		return nil, &RejectionError{Kind: RejectionMismatch, Err: fmt.Errorf("identity: peer presented different certificates and rekeying is disabled")}
	}
	return next, nil
}
