// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigFile names the environment variable consulted when no path is given.
	EnvConfigFile = "MTLS_BINDING_CONFIG"
	// EnvStoreDir overrides the certificate store directory.
	EnvStoreDir = "MTLS_BINDING_STORE"

	// DefaultConfigFile is used when neither a path nor EnvConfigFile is set.
	DefaultConfigFile = "wrangler.toml"
	// DefaultStoreDir is the certificate store location relative to the working directory.
	DefaultStoreDir = ".mtls-binding/certificates"
	// DefaultTimeoutSeconds bounds a single binding fetch.
	DefaultTimeoutSeconds = 30
)

// ErrInvalid indicates a configuration that is well-formed but semantically wrong.
var ErrInvalid = errors.New("config: invalid configuration")

// bindingName mirrors the identifier rules for bindings exposed to a worker.
var bindingName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Format represents a supported configuration file format.
type Format int

const (
	// FormatTOML represents TOML configuration (.toml), the default.
	FormatTOML Format = iota
	// FormatYAML represents YAML configuration (.yaml, .yml).
	FormatYAML
	// FormatJSON represents JSON configuration (.json).
	FormatJSON
)

// String returns the lowercase name of the format.
func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatJSON:
		return "json"
	default:
		return "toml"
	}
}

// MtlsCertificate maps a binding name to a stored certificate identifier.
type MtlsCertificate struct {
	Binding       string `toml:"binding" yaml:"binding" json:"binding"`
	CertificateID string `toml:"certificate_id" yaml:"certificate_id" json:"certificate_id"`
}

// Config is the binding configuration.
type Config struct {
	// Name identifies the worker; informational only.
	Name string `toml:"name" yaml:"name" json:"name"`
	// Upstream is the URL the example handler fetches through its binding.
	Upstream string `toml:"upstream" yaml:"upstream" json:"upstream"`
	// ProxiedZones lists hosts served through the platform's reverse proxy.
	// Binding fetches to these hosts, or their subdomains, answer 520.
	ProxiedZones []string `toml:"proxied_zones" yaml:"proxied_zones" json:"proxied_zones"`
	// MtlsCertificates declares the mTLS certificate bindings.
	MtlsCertificates []MtlsCertificate `toml:"mtls_certificates" yaml:"mtls_certificates" json:"mtls_certificates"`

	Store struct {
		// Dir is the certificate store directory.
		Dir string `toml:"dir" yaml:"dir" json:"dir"`
	} `toml:"store" yaml:"store" json:"store"`

	Fetch struct {
		// TimeoutSeconds bounds one fetch, including the TLS handshake.
		TimeoutSeconds int `toml:"timeout_seconds" yaml:"timeout_seconds" json:"timeout_seconds"`
		// UserAgent overrides the default User-Agent header.
		UserAgent string `toml:"user_agent" yaml:"user_agent" json:"user_agent"`
		// CACertificateID names a stored CA bundle used to verify origins
		// instead of the system roots.
		CACertificateID string `toml:"ca_certificate_id" yaml:"ca_certificate_id" json:"ca_certificate_id"`
	} `toml:"fetch" yaml:"fetch" json:"fetch"`

	path string
}

// DetectFormat determines the configuration format from the file extension.
// Unknown extensions are treated as TOML.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatTOML
	}
}

// ResolvePath returns path, or the value of EnvConfigFile, or DefaultConfigFile.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(EnvConfigFile); env != "" {
		return env
	}
	return DefaultConfigFile
}

// Load reads, validates and returns the configuration at path.
//
// Configuration Priority:
//  1. Default values are set
//  2. Values from the file override defaults
//  3. EnvStoreDir overrides the store directory
func Load(path string) (*Config, error) {
	path = ResolvePath(path)

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	cfg, err := Parse(data, DetectFormat(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.path = path

	return cfg, nil
}

// Parse decodes and validates a configuration document.
func Parse(data []byte, format Format) (*Config, error) {
	doc := make(map[string]any)
	if err := unmarshal(data, &doc, format); err != nil {
		return nil, err
	}
	if err := validateSchema(doc); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := unmarshal(data, cfg, format); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func unmarshal(data []byte, v any, format Format) error {
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("config: failed to parse YAML config file: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("config: failed to parse JSON config file: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("config: failed to parse TOML config file: %w", err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Store.Dir == "" {
		c.Store.Dir = DefaultStoreDir
	}
	if env := os.Getenv(EnvStoreDir); env != "" {
		c.Store.Dir = env
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = DefaultTimeoutSeconds
	}
	for i, zone := range c.ProxiedZones {
		c.ProxiedZones[i] = strings.TrimSuffix(strings.ToLower(zone), ".")
	}
}

// Validate checks the semantic rules the schema cannot express.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.MtlsCertificates))
	for i, b := range c.MtlsCertificates {
		if !bindingName.MatchString(b.Binding) {
			return fmt.Errorf("%w: mtls_certificates[%d].binding %q must be a valid identifier", ErrInvalid, i, b.Binding)
		}
		if seen[b.Binding] {
			return fmt.Errorf("%w: binding %q is declared more than once", ErrInvalid, b.Binding)
		}
		seen[b.Binding] = true

		if strings.TrimSpace(b.CertificateID) == "" {
			return fmt.Errorf("%w: mtls_certificates[%d].certificate_id is required", ErrInvalid, i)
		}
	}

	if c.Upstream != "" {
		u, err := url.Parse(c.Upstream)
		if err != nil {
			return fmt.Errorf("%w: upstream: %w", ErrInvalid, err)
		}
		if u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("%w: upstream %q must be an absolute https URL", ErrInvalid, c.Upstream)
		}
	}

	for i, zone := range c.ProxiedZones {
		if zone == "" || strings.ContainsAny(zone, "/:@ ") || net.ParseIP(zone) != nil {
			return fmt.Errorf("%w: proxied_zones[%d] %q must be a bare host name", ErrInvalid, i, zone)
		}
	}

	return nil
}

// Binding returns the entry declared for name.
func (c *Config) Binding(name string) (MtlsCertificate, bool) {
	for _, b := range c.MtlsCertificates {
		if b.Binding == name {
			return b, true
		}
	}
	return MtlsCertificate{}, false
}

// Timeout returns the per-fetch timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// Path returns the file the configuration was loaded from, if any.
func (c *Config) Path() string { return c.path }
