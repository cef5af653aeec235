// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509certs

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"time"
)

// ErrMissingCommonName is returned when [GenerateOptions] has no common name.
var ErrMissingCommonName = errors.New("x509certs: common name is required")

// DefaultValidity is the lifetime of generated certificates when none is given.
const DefaultValidity = 365 * 24 * time.Hour

// GenerateOptions describes a certificate to issue with [Generate].
type GenerateOptions struct {
	CommonName   string
	Organization []string
	DNSNames     []string
	IPAddresses  []net.IP

	// IsCA issues a certificate authority instead of a client/server leaf.
	IsCA bool
	// Parent signs the new certificate. A nil Parent self-signs.
	Parent *KeyPair

	// NotBefore defaults to one minute ago to tolerate clock skew.
	NotBefore time.Time
	// Validity defaults to [DefaultValidity].
	Validity time.Duration

	// RSABits selects an RSA key of that size; zero selects ECDSA P-256.
	RSABits int
	// Entropy defaults to crypto/rand.
	Entropy io.Reader
}

// Generate issues a new certificate and private key.
//
// Leaves carry both client and server extended key usage so the same helper
// can mint the identity presented by a binding and the origin it talks to.
// The returned chain contains the leaf followed by the parent's chain minus
// any self-signed root.
func Generate(opts GenerateOptions) (*KeyPair, error) {
	if opts.CommonName == "" {
		return nil, ErrMissingCommonName
	}

	entropy := opts.Entropy
	if entropy == nil {
		entropy = rand.Reader
	}

	key, err := generateKey(entropy, opts.RSABits)
	if err != nil {
		return nil, err
	}

	serial, err := serialNumber(entropy)
	if err != nil {
		return nil, err
	}

	notBefore := opts.NotBefore
	if notBefore.IsZero() {
		notBefore = time.Now().Add(-time.Minute)
	}
	validity := opts.Validity
	if validity <= 0 {
		validity = DefaultValidity
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   opts.CommonName,
			Organization: opts.Organization,
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(validity),
		DNSNames:              opts.DNSNames,
		IPAddresses:           opts.IPAddresses,
		BasicConstraintsValid: true,
		IsCA:                  opts.IsCA,
	}

	if opts.IsCA {
		template.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature
	} else {
		template.KeyUsage = x509.KeyUsageDigitalSignature
		if _, ok := key.(*rsa.PrivateKey); ok {
			template.KeyUsage |= x509.KeyUsageKeyEncipherment
		}
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth}
	}

	parent, signer := template, key
	if opts.Parent != nil {
		if !opts.Parent.Leaf().IsCA {
			return nil, fmt.Errorf("x509certs: parent %q is not a certificate authority", opts.Parent.Leaf().Subject.CommonName)
		}
		parent, signer = opts.Parent.Leaf(), opts.Parent.PrivateKey
	}

	der, err := x509.CreateCertificate(entropy, template, parent, key.Public(), signer)
	if err != nil {
		return nil, fmt.Errorf("x509certs: failed to generate certificate from template: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, ErrParseCertificate
	}

	chain := []*x509.Certificate{cert}
	if opts.Parent != nil {
		for _, c := range opts.Parent.Chain {
			if !IsSelfSigned(c) {
				chain = append(chain, c)
			}
		}
	}

	return &KeyPair{Chain: chain, PrivateKey: key}, nil
}

func generateKey(entropy io.Reader, rsaBits int) (crypto.Signer, error) {
	if rsaBits > 0 {
		key, err := rsa.GenerateKey(entropy, rsaBits)
		if err != nil {
			return nil, fmt.Errorf("x509certs: failed to generate RSA key: %w", err)
		}
		return key, nil
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), entropy)
	if err != nil {
		return nil, fmt.Errorf("x509certs: failed to generate ECDSA key: %w", err)
	}
	return key, nil
}

func serialNumber(entropy io.Reader) (*big.Int, error) {
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(entropy, serialNumberLimit)
	if err != nil {
		return nil, fmt.Errorf("x509certs: failed to generate serial number: %w", err)
	}

	return serialNumber, nil
}
