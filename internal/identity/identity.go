// Package identity holds the local node's signing/encryption keypairs and
// validates remote certificates against a trust anchor, per §3/§4.3.
package identity

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// Identity is the local node's certificate-backed key material: a signing
// X.509 certificate and private key, and an optional separate encryption
// certificate and private key. When the encryption pair is omitted, the
// signing pair serves both roles (§3: "If only one pair is supplied, it
// serves both roles").
type Identity struct {
	SigningCertificate    *x509.Certificate
	SigningKey            crypto.Signer
	EncryptionCertificate *x509.Certificate
	EncryptionKey         crypto.Signer
}

// EncryptionCert returns the certificate that should be presented for the
// encryption role, falling back to the signing certificate.
func (id *Identity) EncryptionCert() *x509.Certificate {
	if id.EncryptionCertificate != nil {
		return id.EncryptionCertificate
	}
	return id.SigningCertificate
}

// EncryptionPrivateKey returns the private key for the encryption role,
// falling back to the signing key.
func (id *Identity) EncryptionPrivateKey() crypto.Signer {
	if id.EncryptionKey != nil {
		return id.EncryptionKey
	}
	return id.SigningKey
}

// RSASigningKey returns the signing key as an *rsa.PrivateKey, which is the
// only key type the wire protocol's PSS signatures support (§6).
func (id *Identity) RSASigningKey() (*rsa.PrivateKey, error) {
	priv, ok := id.SigningKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("identity: signing key is %T, not *rsa.PrivateKey", id.SigningKey)
	}
	return priv, nil
}

// NewIdentity builds an Identity from a signing certificate/key pair and an
// optional, distinct encryption certificate/key pair. It enforces that the
// two certificates share subject and issuer names when both are supplied
// (§3).
func NewIdentity(signingCert *x509.Certificate, signingKey crypto.Signer, encryptionCert *x509.Certificate, encryptionKey crypto.Signer) (*Identity, error) {
	if signingCert == nil || signingKey == nil {
		return nil, fmt.Errorf("identity: signing certificate and key are required")
	}
	if encryptionCert != nil {
		if encryptionCert.Subject.String() != signingCert.Subject.String() {
			return nil, fmt.Errorf("identity: encryption certificate subject %q does not match signing certificate subject %q", encryptionCert.Subject, signingCert.Subject)
		}
		if encryptionCert.Issuer.String() != signingCert.Issuer.String() {
			return nil, fmt.Errorf("identity: encryption certificate issuer %q does not match signing certificate issuer %q", encryptionCert.Issuer, signingCert.Issuer)
		}
	}
	return &Identity{
		SigningCertificate:    signingCert,
		SigningKey:            signingKey,
		EncryptionCertificate: encryptionCert,
		EncryptionKey:         encryptionKey,
	}, nil
}

// LoadIdentity reads a signing certificate/key pair from PEM files, and
// optionally a distinct encryption certificate/key pair. Either encryption
// path may be empty, in which case the signing pair is reused.
func LoadIdentity(signingCertPath, signingKeyPath, encryptionCertPath, encryptionKeyPath string) (*Identity, error) {
	signingCert, signingKey, err := loadCertAndKey(signingCertPath, signingKeyPath)
	if err != nil {
		return nil, fmt.Errorf("identity: load signing pair: %w", err)
	}

	var encryptionCert *x509.Certificate
	var encryptionKey crypto.Signer
	if encryptionCertPath != "" || encryptionKeyPath != "" {
		encryptionCert, encryptionKey, err = loadCertAndKey(encryptionCertPath, encryptionKeyPath)
		if err != nil {
			return nil, fmt.Errorf("identity: load encryption pair: %w", err)
		}
	}

	return NewIdentity(signingCert, signingKey, encryptionCert, encryptionKey)
}

func loadCertAndKey(certPath, keyPath string) (*x509.Certificate, crypto.Signer, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read certificate: %w", err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, nil, fmt.Errorf("%s: not a PEM certificate", certPath)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse certificate: %w", err)
	}

	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read private key: %w", err)
	}
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil {
		return nil, nil, fmt.Errorf("%s: not a PEM private key", keyPath)
	}
	key, err := parsePrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse private key: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, nil, fmt.Errorf("private key does not implement crypto.Signer")
	}
	return cert, signer, nil
}

func parsePrivateKey(der []byte) (any, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("unsupported private key encoding")
}
