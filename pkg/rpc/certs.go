package rpc

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"soltick/pkg/types"
)

// ALPN protocol spoken over QUIC.
const protocolName = "soltick/1"

const nameEncoding = "abcdefghijklmnopqrstuvwxyz234567"

// ServerTLSConfig returns a TLS config presenting a self-signed certificate for the
// node identity key.
func ServerTLSConfig(identity ed25519.PrivateKey) (*tls.Config, error) {
	cert, err := generateCertificate(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to generate certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
		NextProtos:   []string{protocolName},
	}, nil
}

// ClientTLSConfig returns a TLS config for dialing a node. If expected is non-zero,
// the node must present a certificate for that identity.
func ClientTLSConfig(expected types.Pubkey) *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS13,
		NextProtos: []string{protocolName},
		// Certificates are self-signed; identity is checked in verifyPeerCertificate.
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return verifyPeerCertificate(rawCerts, expected)
		},
	}
}

func generateCertificate(privateKey ed25519.PrivateKey) (tls.Certificate, error) {
	publicKey := privateKey.Public().(ed25519.PublicKey)
	name := nodeName(types.Pubkey(publicKey))

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{CommonName: name},
		DNSNames:              []string{name},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, publicKey, privateKey)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate: %w", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{certBytes},
		PrivateKey:  privateKey,
	}, nil
}

// nodeName encodes a public key, read little-endian, as 52 base-32 digits prefixed with 'n'.
func nodeName(pub types.Pubkey) string {
	rev := make([]byte, len(pub))
	for i, b := range pub {
		rev[len(pub)-1-i] = b
	}
	n := new(big.Int).SetBytes(rev)

	thirtytwo := big.NewInt(32)
	mod := new(big.Int)
	out := make([]byte, 0, 53)
	out = append(out, 'n')
	for i := 0; i < 52; i++ {
		mod.Mod(n, thirtytwo)
		out = append(out, nameEncoding[mod.Int64()])
		n.Div(n, thirtytwo)
	}
	return string(out)
}

func verifyPeerCertificate(rawCerts [][]byte, expected types.Pubkey) error {
	if len(rawCerts) == 0 {
		return fmt.Errorf("no certificate provided by peer")
	}
	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return fmt.Errorf("failed to parse peer certificate: %w", err)
	}
	publicKey, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return fmt.Errorf("peer certificate does not use Ed25519 key")
	}
	if len(cert.DNSNames) != 1 || cert.DNSNames[0] != nodeName(types.Pubkey(publicKey)) {
		return fmt.Errorf("peer certificate DNS names %v do not match its key", cert.DNSNames)
	}
	if !expected.IsZero() && types.Pubkey(publicKey) != expected {
		return fmt.Errorf("peer identity %s, expected %s", types.Pubkey(publicKey), expected)
	}
	return nil
}
