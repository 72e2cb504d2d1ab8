// Package verify checks the detached CMS signatures embedded in a signed
// PDF. It validates the cryptographic signature against the designated byte
// range and the certificate chain carried inside the structure; trust
// anchoring and revocation are outside this platform's responsibility.
package verify

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pkcs7"
)

var (
	ErrNoSignature      = errors.New("verify: no digital signature in document")
	ErrInvalidSignature = errors.New("verify: signature does not verify against document bytes")
)

// Signature describes one verified signature found in the document.
type Signature struct {
	Name        string
	Reason      string
	Location    string
	ContactInfo string
	SigningTime time.Time

	Certificate *x509.Certificate
	Chain       []*x509.Certificate

	// Valid is true when the CMS signature verifies over the ByteRange and
	// the message digest matches.
	Valid bool

	// CoversWholeDocument is true when the ByteRange spans the entire file
	// except the Contents hex string, i.e. nothing was appended after
	// signing.
	CoversWholeDocument bool
}

// Result is the outcome of verifying a document.
type Result struct {
	Signatures []Signature
}

// File verifies the PDF in content.
func File(content []byte) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("verify: failed to process file (%v)", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("verify: failed to open file: %w", err)
	}

	// A document carrying a signature advertises it via AcroForm SigFlags.
	if reader.Trailer().Key("Root").Key("AcroForm").Key("SigFlags").IsNull() {
		return nil, ErrNoSignature
	}

	result = &Result{}
	for _, x := range reader.Xref() {
		v, err := reader.GetObject(x.Ptr().GetID())
		if err != nil {
			continue
		}
		if v.Key("Filter").Name() != "Adobe.PPKLite" {
			continue
		}

		sig, err := checkSignature(v, content)
		if err != nil {
			return nil, err
		}
		result.Signatures = append(result.Signatures, *sig)
	}

	if len(result.Signatures) == 0 {
		return nil, ErrNoSignature
	}
	return result, nil
}

func checkSignature(v pdf.Value, content []byte) (*Signature, error) {
	sig := &Signature{
		Name:        v.Key("Name").Text(),
		Reason:      v.Key("Reason").Text(),
		Location:    v.Key("Location").Text(),
		ContactInfo: v.Key("ContactInfo").Text(),
	}
	if m := v.Key("M"); !m.IsNull() {
		if t, err := parsePDFDate(m.Text()); err == nil {
			sig.SigningTime = t
		}
	}

	p7, err := pkcs7.Parse([]byte(v.Key("Contents").RawString()))
	if err != nil {
		return nil, fmt.Errorf("verify: failed to parse CMS structure: %w", err)
	}

	// Reassemble the designated byte range; it becomes the detached content
	// the digest is checked against.
	byteRange := v.Key("ByteRange")
	var ranges [][2]int64
	for i := 0; i+1 < byteRange.Len(); i += 2 {
		start := byteRange.Index(i).Int64()
		length := byteRange.Index(i + 1).Int64()
		if start < 0 || length < 0 || start+length > int64(len(content)) {
			return nil, fmt.Errorf("verify: byte range [%d %d] outside document", start, length)
		}
		ranges = append(ranges, [2]int64{start, length})
		p7.Content = append(p7.Content, content[start:start+length]...)
	}

	sig.CoversWholeDocument = coversWholeDocument(ranges, int64(len(content)))

	if err := p7.Verify(); err != nil {
		sig.Valid = false
		return sig, nil
	}
	sig.Valid = true

	sig.Certificate = p7.GetOnlySigner()
	for _, cert := range p7.Certificates {
		if sig.Certificate != nil && bytes.Equal(cert.Raw, sig.Certificate.Raw) {
			continue
		}
		sig.Chain = append(sig.Chain, cert)
	}

	return sig, nil
}

func coversWholeDocument(ranges [][2]int64, size int64) bool {
	if len(ranges) != 2 {
		return false
	}
	if ranges[0][0] != 0 {
		return false
	}
	return ranges[1][0]+ranges[1][1] == size
}

// parsePDFDate reads the D:YYYYMMDDHHmmSS±HH'mm' date form. Seconds and the
// timezone suffix are optional in the wild.
func parsePDFDate(s string) (time.Time, error) {
	if len(s) < 2 || s[:2] != "D:" {
		return time.Time{}, fmt.Errorf("verify: not a PDF date: %q", s)
	}
	s = s[2:]

	layouts := []struct {
		layout string
		n      int
	}{
		{"20060102150405-07'00'", 21},
		{"20060102150405Z", 15},
		{"20060102150405", 14},
		{"200601021504", 12},
		{"20060102", 8},
	}
	for _, l := range layouts {
		if len(s) >= l.n {
			if t, err := time.Parse(l.layout, s[:l.n]); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("verify: unparsable PDF date: %q", s)
}

// ReadFile is a convenience wrapper for callers holding an open file.
func ReadFile(r io.Reader) (*Result, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return File(content)
}
