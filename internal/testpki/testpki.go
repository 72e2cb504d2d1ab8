// Package testpki builds a throwaway certificate hierarchy and PKCS#12
// containers for tests. Keys are small RSA keys to keep test runs fast.
package testpki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"testing"
	"time"

	"software.sslmate.com/src/go-pkcs12"
)

var oidICPBrasilPF = asn1.ObjectIdentifier{2, 16, 76, 1, 3, 1}

// TestPKI holds a self-signed CA able to issue signing leaves.
type TestPKI struct {
	T        *testing.T
	RootKey  *rsa.PrivateKey
	RootCert *x509.Certificate
	serial   int64
}

func New(t *testing.T) *TestPKI {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate root key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   "Docsign Test Root CA",
			Organization: []string{"Docsign Test"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		t.Fatalf("create root cert: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse root cert: %v", err)
	}

	return &TestPKI{T: t, RootKey: key, RootCert: cert, serial: 1}
}

// LeafOptions controls the issued signing certificate.
type LeafOptions struct {
	CommonName string
	CPF        string // embedded in the ICP-Brasil person extension when set
	NotAfter   time.Time
}

// IssueLeaf creates a signing key pair and certificate under the test root.
func (p *TestPKI) IssueLeaf(opts LeafOptions) (*rsa.PrivateKey, *x509.Certificate) {
	p.T.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		p.T.Fatalf("generate leaf key: %v", err)
	}

	notAfter := opts.NotAfter
	if notAfter.IsZero() {
		notAfter = time.Now().Add(12 * time.Hour)
	}

	p.serial++
	template := &x509.Certificate{
		SerialNumber: big.NewInt(p.serial),
		Subject: pkix.Name{
			CommonName:   opts.CommonName,
			Organization: []string{"Docsign Test"},
		},
		NotBefore: time.Now().Add(-time.Hour),
		NotAfter:  notAfter,
		KeyUsage:  x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
	}

	if opts.CPF != "" {
		// Birth date + CPF, the printable layout the extractor expects.
		payload := fmt.Sprintf("01011980%s", opts.CPF)
		value, err := asn1.Marshal(payload)
		if err != nil {
			p.T.Fatalf("marshal ICP extension: %v", err)
		}
		template.ExtraExtensions = append(template.ExtraExtensions, pkix.Extension{
			Id:    oidICPBrasilPF,
			Value: value,
		})
	}

	der, err := x509.CreateCertificate(rand.Reader, template, p.RootCert, key.Public(), p.RootKey)
	if err != nil {
		p.T.Fatalf("issue leaf: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		p.T.Fatalf("parse leaf: %v", err)
	}

	return key, cert
}

// EncodePFX bundles a key, its certificate and the chain into a PKCS#12
// container protected by passphrase.
func (p *TestPKI) EncodePFX(key *rsa.PrivateKey, cert *x509.Certificate, passphrase string) []byte {
	p.T.Helper()

	data, err := pkcs12.Modern.Encode(key, cert, []*x509.Certificate{p.RootCert}, passphrase)
	if err != nil {
		p.T.Fatalf("encode pfx: %v", err)
	}
	return data
}

// EncodeTrustStorePFX produces a container holding only certificates, the
// shape of a truststore export that carries no signing key.
func (p *TestPKI) EncodeTrustStorePFX(passphrase string) []byte {
	p.T.Helper()

	data, err := pkcs12.Modern.EncodeTrustStore([]*x509.Certificate{p.RootCert}, passphrase)
	if err != nil {
		p.T.Fatalf("encode truststore pfx: %v", err)
	}
	return data
}
