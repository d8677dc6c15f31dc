package config

import (
	"crypto/tls"
	"errors"
	"flag"
	"fmt"

	"gopkg.in/yaml.v3"
	"k8s.io/utils/env"
)

const (
	tlsVersion12 = "1.2"
	tlsVersion13 = "1.3"
)

// TLSVersion is a minimum TLS version settable from flags, env and YAML.
type TLSVersion uint16

var _ flag.Value = (*TLSVersion)(nil)

func (v *TLSVersion) String() string {
	if v != nil && uint16(*v) == tls.VersionTLS13 {
		return tlsVersion13
	}
	return tlsVersion12
}

func (v *TLSVersion) Set(s string) error {
	switch s {
	case tlsVersion12:
		*v = TLSVersion(tls.VersionTLS12)
	case tlsVersion13:
		*v = TLSVersion(tls.VersionTLS13)
	default:
		return fmt.Errorf("unsupported TLS version %q: must be %s or %s", s, tlsVersion12, tlsVersion13)
	}
	return nil
}

func (v *TLSVersion) UnmarshalYAML(node *yaml.Node) error {
	return v.Set(node.Value)
}

func (v *TLSVersion) Value() uint16 {
	return uint16(*v)
}

// TLSConfig holds TLS-related configuration.
type TLSConfig struct {
	Cert       string     `yaml:"cert"`       // Path to TLS certificate
	Key        string     `yaml:"key"`        // Path to TLS private key
	SelfSigned bool       `yaml:"selfSigned"` // Generate self-signed certificate
	MinVersion TLSVersion `yaml:"minVersion"` // Minimum TLS version
}

func defaultTLSConfig() TLSConfig {
	return TLSConfig{MinVersion: TLSVersion(tls.VersionTLS12)}
}

// Enabled returns true if TLS is configured (either with certs or self-signed).
func (t *TLSConfig) Enabled() bool {
	return t.HasCerts() || t.SelfSigned
}

// HasCerts returns true if certificate files are configured.
func (t *TLSConfig) HasCerts() bool {
	return t.Cert != "" && t.Key != ""
}

func (t *TLSConfig) loadEnv() error {
	t.Cert = env.GetString("TLS_CERT", t.Cert)
	t.Key = env.GetString("TLS_KEY", t.Key)

	selfSigned, err := env.GetBool("TLS_SELF_SIGNED", t.SelfSigned)
	if err != nil {
		return fmt.Errorf("invalid TLS_SELF_SIGNED: %w", err)
	}
	t.SelfSigned = selfSigned

	if envVal := env.GetString("TLS_MIN_VERSION", ""); envVal != "" {
		if err := t.MinVersion.Set(envVal); err != nil {
			return err
		}
	}
	return nil
}

func (t *TLSConfig) bindFlags(fs *flag.FlagSet) {
	fs.StringVar(&t.Cert, "tls-cert", t.Cert, "Path to TLS certificate")
	fs.StringVar(&t.Key, "tls-key", t.Key, "Path to TLS private key")
	fs.BoolVar(&t.SelfSigned, "tls-self-signed", t.SelfSigned, "Generate self-signed certificate")
	fs.Var(&t.MinVersion, "tls-min-version", "Minimum TLS version: 1.2 or 1.3 (default: 1.2)")
}

func (t *TLSConfig) validate() error {
	if (t.Cert != "" && t.Key == "") || (t.Cert == "" && t.Key != "") {
		return errors.New("--tls-cert and --tls-key must both be provided together")
	}

	// Explicit certificates win over self-signed generation.
	if t.HasCerts() {
		t.SelfSigned = false
	}
	return nil
}
