// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509certs

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pkcs12"
)

var (
	// ErrNoPrivateKey indicates that no supported private key block was found.
	ErrNoPrivateKey = errors.New("x509certs: no private key found")

	// ErrEncryptedKey indicates a passphrase-protected PEM key, which is not accepted.
	ErrEncryptedKey = errors.New("x509certs: encrypted private keys are not supported")

	// ErrUnsupportedKey indicates a key type that cannot sign TLS handshakes.
	ErrUnsupportedKey = errors.New("x509certs: unsupported private key type")

	// ErrKeyMismatch indicates that the private key does not belong to the leaf certificate.
	ErrKeyMismatch = errors.New("x509certs: private key does not match certificate")

	// ErrBrokenChain indicates that a certificate in the bundle is not signed by the next one.
	ErrBrokenChain = errors.New("x509certs: certificate chain is not in issuing order")

	// ErrParsePKCS12 indicates a failure to decode a PKCS#12 archive.
	ErrParsePKCS12 = errors.New("x509certs: failed to parse PKCS12 data")
)

// KeyPair is a client identity: a leaf certificate, any intermediates that
// should be presented with it, and the matching private key.
type KeyPair struct {
	// Chain holds the leaf first, followed by intermediates in issuing order.
	Chain []*x509.Certificate
	// PrivateKey signs the TLS CertificateVerify message.
	PrivateKey crypto.Signer
}

// Leaf returns the end-entity certificate.
func (k *KeyPair) Leaf() *x509.Certificate { return k.Chain[0] }

// TLSCertificate returns the pair in the shape crypto/tls expects.
func (k *KeyPair) TLSCertificate() tls.Certificate {
	raw := make([][]byte, 0, len(k.Chain))
	for _, cert := range k.Chain {
		raw = append(raw, cert.Raw)
	}
	return tls.Certificate{
		Certificate: raw,
		PrivateKey:  k.PrivateKey,
		Leaf:        k.Chain[0],
	}
}

// CertificatePEM encodes the chain as concatenated PEM blocks.
func (k *KeyPair) CertificatePEM() []byte { return New().EncodeMultiplePEM(k.Chain) }

// PrivateKeyPEM encodes the private key as a PEM block.
func (k *KeyPair) PrivateKeyPEM() ([]byte, error) { return EncodePrivateKeyPEM(k.PrivateKey) }

// EncodePrivateKeyPEM encodes key as an RSA, EC or PKCS#8 PEM block.
func EncodePrivateKeyPEM(key crypto.Signer) ([]byte, error) {
	block, err := privateKeyPemBlock(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(block), nil
}

// LoadKeyPair builds a KeyPair from a PEM or DER certificate bundle and a PEM private key.
//
// The key must match the first certificate, and when the bundle carries
// intermediates each certificate must be signed by the one that follows it.
func LoadKeyPair(certData, keyData []byte) (*KeyPair, error) {
	chain, err := New().DecodeMultiple(certData)
	if err != nil {
		return nil, err
	}

	key, err := ParsePrivateKey(keyData)
	if err != nil {
		return nil, err
	}

	return newKeyPair(chain, key)
}

// LoadPKCS12 builds a KeyPair from a PKCS#12 archive holding one certificate and its key.
func LoadPKCS12(data []byte, password string) (*KeyPair, error) {
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParsePKCS12, err)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, ErrUnsupportedKey
	}

	return newKeyPair([]*x509.Certificate{cert}, signer)
}

func newKeyPair(chain []*x509.Certificate, key crypto.Signer) (*KeyPair, error) {
	if len(chain) == 0 {
		return nil, ErrNoCertificates
	}

	pub, ok := chain[0].PublicKey.(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(key.Public()) {
		return nil, ErrKeyMismatch
	}

	for i := 0; i < len(chain)-1; i++ {
		if err := chain[i].CheckSignatureFrom(chain[i+1]); err != nil {
			return nil, fmt.Errorf("%w: %q is not issued by %q: %w",
				ErrBrokenChain, chain[i].Subject.CommonName, chain[i+1].Subject.CommonName, err)
		}
	}

	return &KeyPair{Chain: chain, PrivateKey: key}, nil
}

// ParsePrivateKey parses the first private key found in PEM data.
//
// PKCS#1 RSA, SEC1 EC and PKCS#8 keys are accepted. Other blocks, such as the
// EC PARAMETERS block emitted by openssl ecparam, are skipped.
func ParsePrivateKey(data []byte) (crypto.Signer, error) {
	for len(data) > 0 {
		block, rest := pem.Decode(data)
		if block == nil {
			break
		}
		data = rest

		if block.Type == "ENCRYPTED PRIVATE KEY" || strings.Contains(block.Headers["Proc-Type"], "ENCRYPTED") {
			return nil, ErrEncryptedKey
		}

		switch block.Type {
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			return key, nil
		case "EC PRIVATE KEY":
			key, err := x509.ParseECPrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			return key, nil
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			signer, ok := key.(crypto.Signer)
			if !ok {
				return nil, ErrUnsupportedKey
			}
			return signer, nil
		}
	}

	return nil, ErrNoPrivateKey
}

func privateKeyPemBlock(privateKey crypto.Signer) (*pem.Block, error) {
	switch typedKey := privateKey.(type) {
	case *rsa.PrivateKey:
		return &pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(typedKey),
		}, nil
	case *ecdsa.PrivateKey:
		ecdsaRaw, err := x509.MarshalECPrivateKey(typedKey)
		if err != nil {
			return nil, err
		}
		return &pem.Block{
			Type:  "EC PRIVATE KEY",
			Bytes: ecdsaRaw,
		}, nil
	case nil:
		return nil, fmt.Errorf("x509certs: private key cannot be nil")
	}

	pkcs8, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedKey, err)
	}
	return &pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}, nil
}
