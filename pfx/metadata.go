package pfx

import (
	"crypto/sha1"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// oidICPBrasilPF is the ICP-Brasil "pessoa física" subject alternative name
// extension. Its payload begins with an 8-digit birth date followed by the
// holder's 11-digit CPF.
var oidICPBrasilPF = asn1.ObjectIdentifier{2, 16, 76, 1, 3, 1}

var (
	cnSuffixPattern = regexp.MustCompile(`^(.*):(\d{11})$`)
	digitRunPattern = regexp.MustCompile(`\d{11,}`)
)

// Metadata is the certificate summary persisted with a stored credential and
// returned by the metadata-only validation preview.
type Metadata struct {
	SubjectDN  string
	IssuerDN   string
	Thumbprint string
	NotBefore  time.Time
	NotAfter   time.Time

	// HolderName and HolderCPF are best effort; either may be empty.
	HolderName string
	HolderCPF  string
}

// Extract derives the stored metadata from a parsed certificate.
func Extract(cert *x509.Certificate) Metadata {
	md := Metadata{
		SubjectDN:  cert.Subject.String(),
		IssuerDN:   cert.Issuer.String(),
		Thumbprint: Thumbprint(cert),
		NotBefore:  cert.NotBefore,
		NotAfter:   cert.NotAfter,
	}

	md.HolderName, md.HolderCPF = holderFromCN(cert.Subject.CommonName)
	if md.HolderCPF == "" {
		md.HolderCPF = cpfFromExtensions(cert)
	}
	if md.HolderName == "" {
		md.HolderName = strings.TrimSpace(cert.Subject.CommonName)
	}

	return md
}

// Thumbprint returns the SHA-1 digest of the DER certificate in uppercase
// hex. This matches the platform thumbprint convention the stored rows were
// created with, so it stays usable as a dedup key.
func Thumbprint(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Expired reports whether the certificate validity window has passed.
func (m Metadata) Expired(now time.Time) bool {
	return now.After(m.NotAfter)
}

// holderFromCN splits an ICP-Brasil style common name of the form
// "JOHN DOE:12345678901" into display name and CPF.
func holderFromCN(cn string) (name, cpf string) {
	match := cnSuffixPattern.FindStringSubmatch(cn)
	if match == nil {
		return strings.TrimSpace(cn), ""
	}
	return strings.TrimSpace(match[1]), match[2]
}

// cpfFromExtensions searches the ICP-Brasil person extension for the holder's
// CPF. The raw value is scanned for digit runs rather than fully decoded: the
// payload layout varies across issuing CAs, but the birth date (8 digits) and
// CPF (11 digits) are always adjacent printable digits.
func cpfFromExtensions(cert *x509.Certificate) string {
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(oidICPBrasilPF) {
			continue
		}
		return cpfFromRaw(ext.Value)
	}
	// The extension usually arrives inside the SAN otherName; scan that too.
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(asn1.ObjectIdentifier{2, 5, 29, 17}) {
			if cpf := cpfFromRaw(ext.Value); cpf != "" {
				return cpf
			}
		}
	}
	return ""
}

func cpfFromRaw(raw []byte) string {
	run := digitRunPattern.FindString(string(raw))
	if run == "" {
		return ""
	}
	// Date-of-birth prefix present: the CPF is the 11 digits after it.
	if len(run) >= 19 {
		return run[8:19]
	}
	if len(run) >= 11 {
		return run[:11]
	}
	return ""
}
