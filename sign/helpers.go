package sign

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// pdfString encodes text as a PDF string literal: UTF-16BE with BOM when the
// text leaves ASCII, escaped PDFDocEncoding otherwise.
func pdfString(text string) string {
	if !isASCII(text) {
		enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
		res, _, err := transform.String(enc, text)
		if err != nil {
			// Encoding to UTF-16 cannot fail for valid UTF-8 input.
			panic(err)
		}
		return "(" + res + ")"
	}

	text = strings.ReplaceAll(text, "\\", "\\\\")
	text = strings.ReplaceAll(text, ")", "\\)")
	text = strings.ReplaceAll(text, "(", "\\(")
	text = strings.ReplaceAll(text, "\r", "\\r")
	return "(" + text + ")"
}

// pdfDateTime formats a timestamp in the D:YYYYMMDDHHmmSS+HH'mm' form used by
// signature dictionaries. Go cannot express the primed timezone directly.
func pdfDateTime(date time.Time) string {
	_, originalOffset := date.Zone()
	offset := originalOffset
	if offset < 0 {
		offset = -offset
	}

	duration := time.Duration(offset) * time.Second
	hours := int(math.Floor(duration.Hours()))
	minutes := int(math.Floor(duration.Minutes())) - hours*60

	out := "D:" + date.Format("20060102150405")
	if originalOffset < 0 {
		out += "-"
	} else {
		out += "+"
	}
	out += fmt.Sprintf("%02d'%02d'", hours, minutes)

	return pdfString(out)
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > '\u007f' {
			return false
		}
	}
	return true
}

var digestOIDs = map[crypto.Hash]asn1.ObjectIdentifier{
	crypto.SHA256: {2, 16, 840, 1, 101, 3, 4, 2, 1},
	crypto.SHA384: {2, 16, 840, 1, 101, 3, 4, 2, 2},
	crypto.SHA512: {2, 16, 840, 1, 101, 3, 4, 2, 3},
}

func digestOID(h crypto.Hash) asn1.ObjectIdentifier {
	if oid, ok := digestOIDs[h]; ok {
		return oid
	}
	return digestOIDs[crypto.SHA256]
}

// signatureSize returns the size in bytes of a signature value produced by
// the signer. Only RSA keys reach this engine.
func signatureSize(signer crypto.Signer) (int, error) {
	pub, ok := signer.Public().(*rsa.PublicKey)
	if !ok {
		return 0, fmt.Errorf("sign: unsupported key type %T", signer.Public())
	}
	return pub.Size(), nil
}

// validateKeyMatch confirms the signer and certificate share a public key,
// preventing a signature that can never verify against the embedded chain.
func validateKeyMatch(signer crypto.Signer, cert *x509.Certificate) error {
	signerPub, err := x509.MarshalPKIXPublicKey(signer.Public())
	if err != nil {
		return fmt.Errorf("marshal signer public key: %w", err)
	}
	certPub, err := x509.MarshalPKIXPublicKey(cert.PublicKey)
	if err != nil {
		return fmt.Errorf("marshal certificate public key: %w", err)
	}
	if !bytes.Equal(signerPub, certPub) {
		return ErrKeyCertificateMismatch
	}
	return nil
}
