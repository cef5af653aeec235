// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package store

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	x509certs "github.com/H0llyW00dzZ/mtls-binding/src/internal/x509/certs"
)

var (
	// ErrNotFound indicates that no certificate has the requested identifier or name.
	ErrNotFound = errors.New("store: certificate not found")

	// ErrDuplicateName indicates that another certificate already uses the name.
	ErrDuplicateName = errors.New("store: certificate name already in use")

	// ErrExpired indicates that the uploaded leaf certificate is past its NotAfter.
	ErrExpired = errors.New("store: certificate has expired")

	// ErrNotYetValid indicates that the uploaded leaf certificate is before its NotBefore.
	ErrNotYetValid = errors.New("store: certificate is not yet valid")

	// ErrNotClientCertificate indicates that a CA bundle was used where a client identity is needed.
	ErrNotClientCertificate = errors.New("store: certificate is a CA bundle, not a client certificate")

	// ErrNotCABundle indicates that a client identity was used where a CA bundle is needed.
	ErrNotCABundle = errors.New("store: certificate is not a CA bundle")
)

// recordExt is the file extension of certificate records.
const recordExt = ".yaml"

// Certificate is one stored certificate record.
type Certificate struct {
	ID             string    `yaml:"id" json:"id"`
	Name           string    `yaml:"name,omitempty" json:"name,omitempty"`
	CA             bool      `yaml:"ca" json:"ca"`
	Subject        string    `yaml:"subject" json:"subject"`
	Issuer         string    `yaml:"issuer" json:"issuer"`
	SerialNumber   string    `yaml:"serial_number" json:"serial_number"`
	Fingerprint    string    `yaml:"fingerprint_sha256" json:"fingerprint_sha256"`
	ExpiresOn      time.Time `yaml:"expires_on" json:"expires_on"`
	UploadedOn     time.Time `yaml:"uploaded_on" json:"uploaded_on"`
	CertificatePEM string    `yaml:"certificate_pem" json:"certificate_pem"`
	PrivateKeyPEM  string    `yaml:"private_key_pem,omitempty" json:"-"`
}

// UploadRequest is the input of [Store.Upload].
type UploadRequest struct {
	// Name is an optional human-readable label, unique within the store.
	Name string
	// CertificatePEM holds the leaf certificate, optionally followed by intermediates.
	CertificatePEM []byte
	// PrivateKeyPEM holds the private key matching the leaf.
	PrivateKeyPEM []byte
}

// Store is a directory-backed certificate store.
//
// Store is safe for concurrent use by multiple goroutines within one process.
type Store struct {
	mu    sync.RWMutex
	dir   string
	certs map[string]*Certificate
	now   func() time.Time
}

// Open opens the store rooted at dir, creating the directory when needed,
// and loads every record it contains.
func Open(dir string) (*Store, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: failed to create directory: %w", err)
	}

	s := &Store{
		dir:   dir,
		certs: make(map[string]*Certificate),
		now:   time.Now,
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("store: failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != recordExt {
			continue
		}

		cert, err := readRecord(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		s.certs[cert.ID] = cert
	}

	return s, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string { return s.dir }

// Upload validates a client certificate and key, stores them, and returns the
// new record. The record's ID is the opaque identifier bindings refer to.
func (s *Store) Upload(ctx context.Context, req UploadRequest) (*Certificate, error) {
	kp, err := x509certs.LoadKeyPair(req.CertificatePEM, req.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}
	return s.UploadKeyPair(ctx, req.Name, kp)
}

// UploadKeyPair stores an already parsed client identity.
func (s *Store) UploadKeyPair(ctx context.Context, name string, kp *x509certs.KeyPair) (*Certificate, error) {
	leaf := kp.Leaf()
	if err := s.checkValidity(leaf); err != nil {
		return nil, err
	}

	keyPEM, err := kp.PrivateKeyPEM()
	if err != nil {
		return nil, err
	}

	cert := s.newRecord(name, leaf)
	cert.CertificatePEM = string(kp.CertificatePEM())
	cert.PrivateKeyPEM = string(keyPEM)

	if err := s.insert(ctx, cert); err != nil {
		return nil, err
	}
	return cert.clone(), nil
}

// UploadCA stores a bundle of one or more CA certificates used to verify origins.
func (s *Store) UploadCA(ctx context.Context, name string, bundle []byte) (*Certificate, error) {
	certs, err := x509certs.New().DecodeMultiple(bundle)
	if err != nil {
		return nil, err
	}

	for _, c := range certs {
		if !c.IsCA {
			return nil, fmt.Errorf("store: %q is not a certificate authority", c.Subject.CommonName)
		}
	}
	if err := s.checkValidity(certs[0]); err != nil {
		return nil, err
	}

	cert := s.newRecord(name, certs[0])
	cert.CA = true
	cert.CertificatePEM = string(x509certs.New().EncodeMultiplePEM(certs))

	if err := s.insert(ctx, cert); err != nil {
		return nil, err
	}
	return cert.clone(), nil
}

// Get returns the record with the given identifier.
func (s *Store) Get(id string) (*Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cert, ok := s.certs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cert.clone(), nil
}

// GetByName returns the record with the given name.
func (s *Store) GetByName(name string) (*Certificate, error) {
	name = normalizeName(name)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cert := range s.certs {
		if name != "" && cert.Name == name {
			return cert.clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: name %q", ErrNotFound, name)
}

// List returns every record ordered by upload time, oldest first.
// Private keys are not included.
func (s *Store) List() []*Certificate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Certificate, 0, len(s.certs))
	for _, cert := range s.certs {
		c := cert.clone()
		c.PrivateKeyPEM = ""
		out = append(out, c)
	}

	slices.SortFunc(out, func(a, b *Certificate) int {
		if c := a.UploadedOn.Compare(b.UploadedOn); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Delete removes the record with the given identifier.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.certs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := os.Remove(s.recordPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("store: failed to delete %s: %w", id, err)
	}
	delete(s.certs, id)
	return nil
}

// KeyPair returns the stored client identity ready for a TLS handshake.
func (s *Store) KeyPair(id string) (tls.Certificate, error) {
	cert, err := s.Get(id)
	if err != nil {
		return tls.Certificate{}, err
	}
	if cert.CA {
		return tls.Certificate{}, fmt.Errorf("%w: %s", ErrNotClientCertificate, id)
	}

	kp, err := x509certs.LoadKeyPair([]byte(cert.CertificatePEM), []byte(cert.PrivateKeyPEM))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("store: record %s is corrupt: %w", id, err)
	}
	return kp.TLSCertificate(), nil
}

// CertPool returns a pool holding the certificates of a stored CA bundle.
func (s *Store) CertPool(id string) (*x509.CertPool, error) {
	cert, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !cert.CA {
		return nil, fmt.Errorf("%w: %s", ErrNotCABundle, id)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM([]byte(cert.CertificatePEM)) {
		return nil, fmt.Errorf("store: record %s is corrupt: %w", id, x509certs.ErrNoCertificates)
	}
	return pool, nil
}

func (s *Store) checkValidity(leaf *x509.Certificate) error {
	now := s.now()
	if now.After(leaf.NotAfter) {
		return fmt.Errorf("%w: %q expired on %s", ErrExpired, leaf.Subject.CommonName, leaf.NotAfter.Format(time.RFC3339))
	}
	if now.Before(leaf.NotBefore) {
		return fmt.Errorf("%w: %q is valid from %s", ErrNotYetValid, leaf.Subject.CommonName, leaf.NotBefore.Format(time.RFC3339))
	}
	return nil
}

func (s *Store) newRecord(name string, leaf *x509.Certificate) *Certificate {
	return &Certificate{
		ID:           uuid.NewString(),
		Name:         normalizeName(name),
		Subject:      leaf.Subject.String(),
		Issuer:       leaf.Issuer.String(),
		SerialNumber: leaf.SerialNumber.Text(16),
		Fingerprint:  x509certs.Fingerprint(leaf),
		ExpiresOn:    leaf.NotAfter.UTC(),
		UploadedOn:   s.now().UTC(),
	}
}

func (s *Store) insert(ctx context.Context, cert *Certificate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cert.Name != "" {
		for _, existing := range s.certs {
			if existing.Name == cert.Name {
				return fmt.Errorf("%w: %q", ErrDuplicateName, cert.Name)
			}
		}
	}

	if err := writeRecord(s.dir, s.recordPath(cert.ID), cert); err != nil {
		return err
	}
	s.certs[cert.ID] = cert
	return nil
}

// normalizeName trims name and puts it in Unicode NFC so that names which
// render identically compare equal.
func normalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.dir, id+recordExt)
}

func (c *Certificate) clone() *Certificate {
	cp := *c
	return &cp
}

func readRecord(path string) (*Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: failed to read %s: %w", path, err)
	}

	var cert Certificate
	if err := yaml.Unmarshal(data, &cert); err != nil {
		return nil, fmt.Errorf("store: failed to parse %s: %w", path, err)
	}
	if cert.ID == "" {
		return nil, fmt.Errorf("store: record %s has no id", path)
	}
	return &cert, nil
}

// writeRecord writes through a temporary file and a rename so that a crash
// never leaves a truncated record behind.
func writeRecord(dir, path string, cert *Certificate) error {
	data, err := yaml.Marshal(cert)
	if err != nil {
		return fmt.Errorf("store: failed to encode record: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".record-*")
	if err != nil {
		return fmt.Errorf("store: failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("store: failed to restrict permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: failed to write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: failed to write record: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("store: failed to commit record: %w", err)
	}
	return nil
}
