// Package tlsconf derives matching TLS credentials for the clipd TCP port
// and its clients from a shared passphrase.
//
// Both ends derive the same ECDSA P-256 key:
//
//	HKDF-SHA256(ikm=passphrase, salt="clipd-tls-v1", info="private-key")
//	→ 64 bytes → reduced into [1, N-1]
//
// The server presents a fresh self-signed certificate for that key; clients
// accept a certificate only if its public key equals the one they derived.
// A wrong passphrase therefore fails the handshake. No CA is involved.
package tlsconf

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"golang.org/x/crypto/hkdf"
	"google.golang.org/grpc/credentials"
)

// DefaultPassphrase is used when no passphrase is configured.
const DefaultPassphrase = "clipd"

const serverName = "clipd"

// ErrKeyMismatch is returned by the client verifier when the server's key
// was derived from a different passphrase.
var ErrKeyMismatch = errors.New("tlsconf: server public key does not match passphrase")

// Credentials is the server TLS config and the matching client credentials.
type Credentials struct {
	// Server is suitable for tls.NewListener. ALPN offers h2 and http/1.1 so
	// gRPC and the HTTP gateway share the listener.
	Server *tls.Config
	// Client verifies the server by public key.
	Client credentials.TransportCredentials
}

// New derives Credentials from passphrase; "" selects DefaultPassphrase.
func New(passphrase string) (*Credentials, error) {
	if passphrase == "" {
		passphrase = DefaultPassphrase
	}
	key, err := deriveKey(passphrase)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: derive key: %w", err)
	}
	der, err := selfSigned(key)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: cert: %w", err)
	}
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: marshal pubkey: %w", err)
	}

	return &Credentials{
		Server: &tls.Config{
			Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
			NextProtos:   []string{"h2", "http/1.1"},
			MinVersion:   tls.VersionTLS13,
		},
		Client: credentials.NewTLS(&tls.Config{
			// Chain verification is replaced by the public key check.
			InsecureSkipVerify:    true, //nolint:gosec
			ServerName:            serverName,
			MinVersion:            tls.VersionTLS13,
			VerifyPeerCertificate: verifyPublicKey(pub),
		}),
	}, nil
}

// ClientCredentials returns only the client half of New(passphrase).
func ClientCredentials(passphrase string) (credentials.TransportCredentials, error) {
	c, err := New(passphrase)
	if err != nil {
		return nil, err
	}
	return c.Client, nil
}

func verifyPublicKey(expected []byte) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return errors.New("tlsconf: server presented no certificate")
		}
		cert, err := x509.ParseCertificate(rawCerts[0])
		if err != nil {
			return fmt.Errorf("tlsconf: parse server cert: %w", err)
		}
		pub, err := x509.MarshalPKIXPublicKey(cert.PublicKey)
		if err != nil {
			return fmt.Errorf("tlsconf: marshal server pubkey: %w", err)
		}
		if !bytes.Equal(pub, expected) {
			return ErrKeyMismatch
		}
		return nil
	}
}

func deriveKey(passphrase string) (*ecdsa.PrivateKey, error) {
	r := hkdf.New(sha256.New, []byte(passphrase), []byte("clipd-tls-v1"), []byte("private-key"))
	buf := make([]byte, 64)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("hkdf read: %w", err)
	}

	curve := elliptic.P256()
	k := new(big.Int).SetBytes(buf)
	k.Mod(k, new(big.Int).Sub(curve.Params().N, big.NewInt(1)))
	k.Add(k, big.NewInt(1))

	key := &ecdsa.PrivateKey{D: k}
	key.Curve = curve
	key.X, key.Y = curve.ScalarBaseMult(k.Bytes())
	return key, nil
}

// selfSigned returns a DER certificate for key. Only its public key matters
// to clients.
func selfSigned(key *ecdsa.PrivateKey) ([]byte, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: serverName},
		DNSNames:              []string{serverName},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.AddDate(10, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	return x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
}
