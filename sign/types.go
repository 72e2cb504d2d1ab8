package sign

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"errors"
	"time"

	"github.com/digitorus/pdf"
)

var (
	// ErrMalformedPDF indicates the input could not be parsed as a PDF that
	// this engine can extend with an incremental update.
	ErrMalformedPDF = errors.New("sign: malformed or unsupported PDF")

	// ErrKeyCertificateMismatch indicates the signer's public key differs
	// from the one embedded in the certificate.
	ErrKeyCertificateMismatch = errors.New("sign: signer public key does not match certificate")

	ErrNilSigner      = errors.New("sign: signer cannot be nil")
	ErrNilCertificate = errors.New("sign: certificate cannot be nil")
)

// TSA points at an optional RFC 3161 timestamp authority. When the URL is
// empty no timestamp attribute is added.
type TSA struct {
	URL      string
	Username string
	Password string
}

// Request describes one detached CAdES signature to embed into a PDF.
type Request struct {
	Signer      crypto.Signer
	Certificate *x509.Certificate
	// Chain lists intermediates and root, leaf excluded, leaf-nearest first.
	Chain []*x509.Certificate

	Name        string
	Location    string
	Reason      string
	ContactInfo string
	// Date is the claimed signing time written into the signature
	// dictionary. Zero means time.Now.
	Date time.Time

	// DigestAlgorithm defaults to SHA-256, the only value the surrounding
	// platform produces.
	DigestAlgorithm crypto.Hash

	TSA TSA
}

// documentRefs holds the indirect references copied out of the parsed
// document before any bytes are written. Reading them is the only phase where
// the parser touches damaged structures, so it runs under a scoped recover.
type documentRefs struct {
	page  string
	pages string
	// names and info are empty when the document carries neither.
	names string
	info  string
}

// context carries the state of one incremental-update signing pass.
type context struct {
	request Request
	reader  *pdf.Reader
	input   []byte
	refs    documentRefs
	output  *bytes.Buffer

	// Object ids assigned for this update.
	signatureObjectID uint32
	widgetObjectID    uint32
	catalogObjectID   uint32

	// Offsets of the appended objects inside the output buffer.
	newObjectOffsets []int64

	// Placeholder bookkeeping, absolute offsets in the output buffer.
	byteRangeOffset    int64
	contentsHoleOffset int64
	contentsHoleSize   int64

	byteRange [4]int64
}
